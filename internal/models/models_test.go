package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFunctionPayloadMapRoundTrip(t *testing.T) {
	p := FunctionPayload{
		FilePath:  "/src/a.c",
		Language:  "c",
		Name:      "CWE121_bad",
		StartLine: 3,
		EndLine:   9,
		CodeHash:  "abc",
		Content:   "void CWE121_bad() {}",
	}
	assert.Equal(t, p, FunctionPayloadFromMap(p.ToMap()))
}

func TestFunctionPayloadFromStoreTypes(t *testing.T) {
	// The vector store hands integers back as int64.
	got := FunctionPayloadFromMap(map[string]interface{}{
		"name":       "f",
		"start_line": int64(12),
		"end_line":   float64(14),
		"file_path":  42,
	})
	assert.Equal(t, "f", got.Name)
	assert.Equal(t, 12, got.StartLine)
	assert.Equal(t, 14, got.EndLine)
	assert.Empty(t, got.FilePath)
}
