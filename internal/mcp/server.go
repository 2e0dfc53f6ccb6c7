package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"securecode/internal/detector"
	"securecode/internal/models"
	"securecode/internal/parser"
)

const protocolVersion = "2024-11-05"

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// Searcher finds indexed functions similar to a query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]models.SearchHit, error)
}

type Server struct {
	detector *detector.Detector
	searcher Searcher
	version  string
	log      zerolog.Logger
}

// NewServer wires the tools. A nil searcher disables search_functions.
func NewServer(d *detector.Detector, s Searcher, version string, log zerolog.Logger) *Server {
	return &Server{detector: d, searcher: s, version: version, log: log}
}

// Run serves newline-delimited JSON-RPC on stdin/stdout until EOF.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	writer := bufio.NewWriter(out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := reader.ReadBytes('\n')
		if len(strings.TrimSpace(string(line))) > 0 {
			var req JSONRPCRequest
			if jerr := json.Unmarshal(line, &req); jerr != nil {
				s.writeError(writer, nil, codeParseError, "Parse error")
			} else {
				s.handleRequest(ctx, writer, &req)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, writer *bufio.Writer, req *JSONRPCRequest) {
	s.log.Debug().Str("method", req.Method).Msg("request")
	switch req.Method {
	case "initialize":
		s.handleInitialize(writer, req)
	case "ping":
		s.writeResponse(writer, req.ID, map[string]interface{}{})
	case "tools/list":
		s.handleToolsList(writer, req)
	case "tools/call":
		s.handleToolsCall(ctx, writer, req)
	default:
		if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
			return
		}
		s.writeError(writer, req.ID, codeMethodNotFound, "Method not found")
	}
}

func (s *Server) handleInitialize(writer *bufio.Writer, req *JSONRPCRequest) {
	result := map[string]interface{}{
		"protocolVersion": protocolVersion,
		"serverInfo": map[string]string{
			"name":    "securecode-mcp",
			"version": s.version,
		},
		"capabilities": map[string]interface{}{
			"tools": map[string]bool{},
		},
	}
	s.writeResponse(writer, req.ID, result)
}

func pathSchema(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]string{"type": "string", "description": desc},
		},
		"required": []string{"path"},
	}
}

func (s *Server) tools() []map[string]interface{} {
	tools := []map[string]interface{}{
		{
			"name":        "extract_functions",
			"description": "List the C function definitions in a file with their names and line ranges",
			"inputSchema": pathSchema("Path to a .c or .h file"),
		},
		{
			"name":        "scan_file",
			"description": "Classify every function in a C file and report the likely vulnerable ones",
			"inputSchema": pathSchema("Path to a .c file"),
		},
	}
	if s.searcher != nil {
		tools = append(tools, map[string]interface{}{
			"name":        "search_functions",
			"description": "Search indexed C functions using a natural language query",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]string{"type": "string"},
					"top_k": map[string]string{"type": "integer"},
				},
				"required": []string{"query"},
			},
		})
	}
	return tools
}

func (s *Server) handleToolsList(writer *bufio.Writer, req *JSONRPCRequest) {
	s.writeResponse(writer, req.ID, map[string]interface{}{"tools": s.tools()})
}

func (s *Server) handleToolsCall(ctx context.Context, writer *bufio.Writer, req *JSONRPCRequest) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(writer, req.ID, codeInvalidParams, "Invalid params")
		return
	}

	var (
		result interface{}
		err    error
	)
	switch params.Name {
	case "extract_functions":
		result, err = s.handleExtract(params.Arguments)
	case "scan_file":
		result, err = s.handleScan(ctx, params.Arguments)
	case "search_functions":
		if s.searcher == nil {
			s.writeError(writer, req.ID, codeInvalidParams, "Unknown tool")
			return
		}
		result, err = s.handleSearch(ctx, params.Arguments)
	default:
		s.writeError(writer, req.ID, codeInvalidParams, "Unknown tool")
		return
	}

	if err != nil {
		s.log.Warn().Err(err).Str("tool", params.Name).Msg("tool call failed")
		s.writeResponse(writer, req.ID, map[string]interface{}{
			"isError": true,
			"content": []map[string]interface{}{{"type": "text", "text": err.Error()}},
		})
		return
	}

	s.writeResponse(writer, req.ID, map[string]interface{}{
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": formatResult(result),
			},
		},
	})
}

type pathArgs struct {
	Path string `json:"path"`
}

func decodePath(args json.RawMessage) (string, error) {
	var input pathArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return "", err
		}
	}
	if strings.TrimSpace(input.Path) == "" {
		return "", errors.New("path is required")
	}
	return input.Path, nil
}

func (s *Server) handleExtract(args json.RawMessage) (interface{}, error) {
	path, err := decodePath(args)
	if err != nil {
		return nil, err
	}
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	funcs := parser.ExtractFunctions(code)
	if funcs == nil {
		funcs = []parser.FunctionRecord{}
	}
	return funcs, nil
}

func (s *Server) handleScan(ctx context.Context, args json.RawMessage) (interface{}, error) {
	path, err := decodePath(args)
	if err != nil {
		return nil, err
	}
	if s.detector == nil {
		return nil, errors.New("scanner is not configured")
	}
	return s.detector.ScanFile(ctx, path)
}

func (s *Server) handleSearch(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var input struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, err
	}
	if input.TopK <= 0 {
		input.TopK = 10
	}
	hits, err := s.searcher.Search(ctx, input.Query, input.TopK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return hits, nil
}

func (s *Server) writeResponse(writer *bufio.Writer, id interface{}, result interface{}) {
	s.write(writer, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

func (s *Server) writeError(writer *bufio.Writer, id interface{}, code int, message string) {
	s.write(writer, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	})
}

func (s *Server) write(writer *bufio.Writer, resp JSONRPCResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal response")
		return
	}
	writer.Write(data)
	writer.WriteByte('\n')
	if err := writer.Flush(); err != nil {
		s.log.Error().Err(err).Msg("write response")
	}
}

func formatResult(result interface{}) string {
	data, _ := json.MarshalIndent(result, "", "  ")
	return string(data)
}
