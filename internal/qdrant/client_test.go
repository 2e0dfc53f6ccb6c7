package qdrant

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securecode/internal/models"
)

func TestParseQdrantAddress(t *testing.T) {
	tests := []struct {
		raw  string
		host string
		port int
	}{
		{"", "localhost", 6334},
		{"  ", "localhost", 6334},
		{"qdrant.internal", "qdrant.internal", 6334},
		{"qdrant.internal:7000", "qdrant.internal", 7000},
		{"http://10.0.0.5:6334", "10.0.0.5", 6334},
		{"https://cloud.example.com", "cloud.example.com", 6334},
		{":7001", "localhost", 7001},
	}
	for _, tt := range tests {
		host, port, err := parseQdrantAddress(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.host, host, tt.raw)
		assert.Equal(t, tt.port, port, tt.raw)
	}

	_, _, err := parseQdrantAddress("host:notaport")
	assert.Error(t, err)
}

func TestGetQdrantAPIKey(t *testing.T) {
	t.Setenv("QDRANT_API_KEY", "")
	t.Setenv("qdrant_api_key", "")
	t.Setenv("QDRANT_API_TOKEN", "token")
	assert.Equal(t, "token", getQdrantAPIKey())
}

func TestFunctionPointAndHits(t *testing.T) {
	payload := models.FunctionPayload{
		FilePath:  "/src/a.c",
		Language:  "c",
		Name:      "copy_input",
		StartLine: 10,
		EndLine:   20,
		CodeHash:  "h",
		Content:   "void copy_input(void) {}",
	}
	pt := FunctionPoint(42, []float32{0.1, 0.2}, payload)
	assert.Equal(t, uint64(42), pt.GetId().GetNum())
	assert.Equal(t, []float32{0.1, 0.2}, pt.GetVectors().GetVector().GetData())
	assert.Equal(t, int64(10), pt.GetPayload()["start_line"].GetIntegerValue())

	hits := ToSearchHits([]*qdrant.ScoredPoint{{Payload: pt.GetPayload(), Score: 0.87}})
	require.Len(t, hits, 1)
	assert.Equal(t, payload, hits[0].FunctionPayload)
	assert.InDelta(t, 0.87, hits[0].Score, 1e-6)
}

func TestFileFilter(t *testing.T) {
	f := FileFilter("/src/a.c")
	require.Len(t, f.GetMust(), 1)
	field := f.GetMust()[0].GetField()
	assert.Equal(t, "file_path", field.GetKey())
	assert.Equal(t, "/src/a.c", field.GetMatch().GetKeyword())
}

func TestPayloadValueConversion(t *testing.T) {
	in := map[string]interface{}{
		"s": "x",
		"i": 3,
		"f": 1.5,
		"b": true,
		"o": []string{"a"},
	}
	out := PayloadToMap(MapToPayload(in))
	assert.Equal(t, "x", out["s"])
	assert.Equal(t, int64(3), out["i"])
	assert.Equal(t, 1.5, out["f"])
	assert.Equal(t, true, out["b"])
	assert.Equal(t, "[a]", out["o"])
	assert.Nil(t, valueToInterface(nil))
}
