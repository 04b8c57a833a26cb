// Package mcp serves the tool catalogue over newline-delimited JSON-RPC 2.0
// on stdio: initialize, tools/list, tools/call and ping. Stdout carries only
// protocol frames; logs go to stderr.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/mohammad-safakhou/legalmcp/internal/capability"
	"github.com/mohammad-safakhou/legalmcp/internal/dispatch"
)

const (
	ProtocolVersion = "2024-11-05"

	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602

	maxLine = 8 << 20
)

// ---------- JSON-RPC skeleton ----------

type rpcReq struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResp struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Caller is the dispatch surface the server needs.
type Caller interface {
	Tools() []capability.ToolCard
	Call(ctx context.Context, name string, args map[string]any) dispatch.Envelope
}

// Server answers JSON-RPC requests against a tool registry.
type Server struct {
	tools   Caller
	name    string
	version string
	logger  *log.Logger

	mu sync.Mutex
}

// NewServer wraps tools. name and version are reported by initialize.
func NewServer(tools Caller, name, version string) *Server {
	return &Server{
		tools:   tools,
		name:    name,
		version: version,
		logger:  log.New(log.Writer(), "[MCP] ", log.LstdFlags),
	}
}

// SetLogger replaces the default "[MCP] " logger.
func (s *Server) SetLogger(l *log.Logger) { s.logger = l }

// ---------- stdio loop ----------

// Serve reads one request per line from in until EOF or ctx is cancelled.
// Requests are handled in order; notifications get no reply.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	rd := bufio.NewReaderSize(in, 64<<10)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := readLine(rd)
		if len(strings.TrimSpace(string(line))) > 0 {
			if resp, ok := s.handle(ctx, line); ok {
				if werr := s.write(out, resp); werr != nil {
					return fmt.Errorf("write response: %w", werr)
				}
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

func readLine(rd *bufio.Reader) ([]byte, error) {
	var buf []byte
	for {
		chunk, err := rd.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > maxLine {
			return nil, fmt.Errorf("request line exceeds %d bytes", maxLine)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return buf, err
	}
}

func (s *Server) write(out io.Writer, resp rpcResp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.NewEncoder(out).Encode(resp)
}

func errorResp(id json.RawMessage, code int, msg string) rpcResp {
	return rpcResp{JSONRPC: "2.0", ID: nullID(id), Error: &rpcError{Code: code, Message: msg}}
}

func nullID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// handle processes one frame; ok is false for notifications.
func (s *Server) handle(ctx context.Context, line []byte) (rpcResp, bool) {
	var req rpcReq
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Printf("parse error: %v", err)
		return errorResp(nil, codeParseError, "parse error: "+err.Error()), true
	}
	notification := len(req.ID) == 0
	if req.JSONRPC != "2.0" || req.Method == "" {
		if notification {
			return rpcResp{}, false
		}
		return errorResp(req.ID, codeInvalidRequest, "invalid request"), true
	}

	result, rerr := s.dispatch(ctx, req)
	if notification {
		return rpcResp{}, false
	}
	if rerr != nil {
		return rpcResp{JSONRPC: "2.0", ID: req.ID, Error: rerr}, true
	}
	return rpcResp{JSONRPC: "2.0", ID: req.ID, Result: result}, true
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (s *Server) dispatch(ctx context.Context, req rpcReq) (any, *rpcError) {
	switch req.Method {
	case "initialize":
		return map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{"listChanged": false}},
			"serverInfo":      map[string]any{"name": s.name, "version": s.version},
		}, nil

	case "notifications/initialized", "notifications/cancelled":
		return map[string]any{}, nil

	case "ping":
		return map[string]any{}, nil

	case "tools/list":
		return map[string]any{"tools": s.tools.Tools()}, nil

	case "tools/call":
		var p callParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &p); err != nil {
				return nil, &rpcError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}
			}
		}
		if p.Name == "" {
			return nil, &rpcError{Code: codeInvalidParams, Message: "invalid params: name is required"}
		}
		return s.tools.Call(ctx, p.Name, p.Arguments), nil

	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
}
