package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securecode/internal/classifier"
	"securecode/internal/detector"
	"securecode/internal/models"
)

type stubSearcher struct {
	gotQuery string
	gotTopK  int
}

func (s *stubSearcher) Search(_ context.Context, query string, topK int) ([]models.SearchHit, error) {
	s.gotQuery, s.gotTopK = query, topK
	return []models.SearchHit{{
		FunctionPayload: models.FunctionPayload{Name: "copy_input", FilePath: "/src/a.c", StartLine: 3},
		Score:           0.9,
	}}, nil
}

type rpcReply struct {
	ID     float64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func serve(t *testing.T, srv *Server, lines ...string) []rpcReply {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, srv.Serve(context.Background(), strings.NewReader(strings.Join(lines, "\n")), &out))

	var replies []rpcReply
	sc := bufio.NewScanner(&out)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var r rpcReply
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		replies = append(replies, r)
	}
	return replies
}

func toolText(t *testing.T, raw json.RawMessage) (string, bool) {
	t.Helper()
	var res struct {
		IsError bool `json:"isError"`
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(raw, &res))
	require.Len(t, res.Content, 1)
	return res.Content[0].Text, res.IsError
}

func newTestServer(s Searcher) *Server {
	clf := classifier.Func(func(_ context.Context, codes []string) ([][]classifier.Prediction, error) {
		out := make([][]classifier.Prediction, len(codes))
		for i, c := range codes {
			if strings.Contains(c, "strcpy") {
				out[i] = classifier.Binary(0.8)
			} else {
				out[i] = classifier.Binary(0.1)
			}
		}
		return out, nil
	})
	return NewServer(detector.New(clf), s, "test", zerolog.Nop())
}

func writeC(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.c")
	src := "int safe(void) { return 0; }\n\nvoid copy(char *d, char *s)\n{\n\tstrcpy(d, s);\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestInitializeAndList(t *testing.T) {
	replies := serve(t, newTestServer(nil),
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	)
	require.Len(t, replies, 2)
	assert.Contains(t, string(replies[0].Result), "securecode-mcp")

	var list struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(replies[1].Result, &list))
	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"extract_functions", "scan_file"}, names)
}

func TestExtractTool(t *testing.T) {
	path := writeC(t)
	req, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": 7, "method": "tools/call",
		"params": map[string]any{"name": "extract_functions", "arguments": map[string]string{"path": path}},
	})
	replies := serve(t, newTestServer(nil), string(req))
	require.Len(t, replies, 1)
	assert.EqualValues(t, 7, replies[0].ID)

	text, isErr := toolText(t, replies[0].Result)
	require.False(t, isErr)
	var funcs []struct {
		Name      string `json:"name"`
		StartLine int    `json:"start_line"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &funcs))
	require.Len(t, funcs, 2)
	assert.Equal(t, "safe", funcs[0].Name)
	assert.Equal(t, "copy", funcs[1].Name)
	assert.Equal(t, 3, funcs[1].StartLine)
}

func TestScanTool(t *testing.T) {
	path := writeC(t)
	req, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": 1, "method": "tools/call",
		"params": map[string]any{"name": "scan_file", "arguments": map[string]string{"path": path}},
	})
	replies := serve(t, newTestServer(nil), string(req))
	require.Len(t, replies, 1)

	text, isErr := toolText(t, replies[0].Result)
	require.False(t, isErr)
	var report detector.Report
	require.NoError(t, json.Unmarshal([]byte(text), &report))
	assert.Equal(t, 2, report.Functions)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "copy", report.Findings[0].Name)
}

func TestSearchTool(t *testing.T) {
	s := &stubSearcher{}
	replies := serve(t, newTestServer(s),
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"search_functions","arguments":{"query":"string copy"}}}`,
	)
	require.Len(t, replies, 1)
	text, isErr := toolText(t, replies[0].Result)
	require.False(t, isErr)
	assert.Contains(t, text, "copy_input")
	assert.Equal(t, "string copy", s.gotQuery)
	assert.Equal(t, 10, s.gotTopK)
}

func TestToolErrors(t *testing.T) {
	replies := serve(t, newTestServer(nil),
		`not json`,
		`{"jsonrpc":"2.0","id":1,"method":"nope"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"search_functions","arguments":{"query":"x"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"scan_file","arguments":{"path":"/definitely/missing.c"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"extract_functions","arguments":{}}}`,
	)
	require.Len(t, replies, 5)

	require.NotNil(t, replies[0].Error)
	assert.Equal(t, codeParseError, replies[0].Error.Code)
	require.NotNil(t, replies[1].Error)
	assert.Equal(t, codeMethodNotFound, replies[1].Error.Code)
	require.NotNil(t, replies[2].Error, "search is unavailable without an index")

	_, isErr := toolText(t, replies[3].Result)
	assert.True(t, isErr)
	text, isErr := toolText(t, replies[4].Result)
	assert.True(t, isErr)
	assert.Contains(t, text, "path is required")
}
