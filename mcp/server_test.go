package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/legalmcp/internal/capability"
	"github.com/mohammad-safakhou/legalmcp/internal/dispatch"
)

type fakeTools struct {
	calls []string
}

func (f *fakeTools) Tools() []capability.ToolCard {
	return []capability.ToolCard{{Name: "search_uk_legislation", Description: "UK", InputSchema: map[string]any{"type": "object"}}}
}

func (f *fakeTools) Call(_ context.Context, name string, args map[string]any) dispatch.Envelope {
	f.calls = append(f.calls, name)
	if name != "search_uk_legislation" {
		return dispatch.UnknownTool(name)
	}
	return dispatch.Envelope{Content: []dispatch.Content{{Type: "text", Text: `[{"identifier":"` + args["query"].(string) + `"}]`}}}
}

type frame struct {
	ID     json.RawMessage `json:"id"`
	Result map[string]any  `json:"result"`
	Error  *rpcError       `json:"error"`
}

func run(t *testing.T, tools Caller, input string) []frame {
	t.Helper()
	srv := NewServer(tools, "legalmcp", "test")
	srv.SetLogger(log.New(io.Discard, "", 0))
	var out bytes.Buffer
	if err := srv.Serve(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	var frames []frame
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var f frame
		if err := json.Unmarshal(sc.Bytes(), &f); err != nil {
			t.Fatalf("bad frame %q: %v", sc.Text(), err)
		}
		frames = append(frames, f)
	}
	return frames
}

func TestServeProtocolFlow(t *testing.T) {
	tools := &fakeTools{}
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":"c3","method":"tools/call","params":{"name":"search_uk_legislation","arguments":{"query":"data protection"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"ping"}`,
	}, "\n")
	frames := run(t, tools, input)
	if len(frames) != 4 {
		t.Fatalf("expected 4 responses (notification unanswered), got %d", len(frames))
	}

	if frames[0].Result["protocolVersion"] != ProtocolVersion {
		t.Fatalf("unexpected initialize result: %v", frames[0].Result)
	}
	list, _ := frames[1].Result["tools"].([]any)
	if len(list) != 1 {
		t.Fatalf("expected one tool, got %v", frames[1].Result)
	}
	if string(frames[2].ID) != `"c3"` {
		t.Fatalf("expected id to be echoed, got %s", frames[2].ID)
	}
	content, _ := frames[2].Result["content"].([]any)
	if len(content) != 1 || !strings.Contains(content[0].(map[string]any)["text"].(string), "data protection") {
		t.Fatalf("unexpected call result: %v", frames[2].Result)
	}
	if frames[3].Error != nil {
		t.Fatalf("ping failed: %v", frames[3].Error)
	}
}

func TestServeErrors(t *testing.T) {
	tools := &fakeTools{}
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`,
		`{not json`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"nope"}}`,
	}, "\n") + "\n"
	frames := run(t, tools, input)
	if len(frames) != 4 {
		t.Fatalf("expected 4 responses, got %d", len(frames))
	}
	if frames[0].Error == nil || frames[0].Error.Code != -32601 {
		t.Fatalf("expected -32601, got %+v", frames[0].Error)
	}
	if frames[1].Error == nil || frames[1].Error.Code != -32700 || string(frames[1].ID) != "null" {
		t.Fatalf("expected parse error with null id, got %+v", frames[1])
	}
	if frames[2].Error == nil || frames[2].Error.Code != -32602 {
		t.Fatalf("expected invalid params, got %+v", frames[2].Error)
	}
	if frames[3].Error != nil || frames[3].Result["isError"] != true {
		t.Fatalf("unknown tool should be an isError envelope, got %+v", frames[3])
	}
	if len(tools.calls) != 1 || tools.calls[0] != "nope" {
		t.Fatalf("unexpected dispatch calls: %v", tools.calls)
	}
}
