package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/legalmcp/internal/dispatch"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
)

func newTestRegistry(t *testing.T) *dispatch.Registry {
	t.Helper()
	reg := dispatch.Registration{
		Name:        "search_data_gov",
		Description: "Search datasets",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []string{"query"},
		},
		Factory: func(dispatch.Deps) (dispatch.Handler, error) {
			return func(_ context.Context, raw json.RawMessage) ([]legal.Document, error) {
				var args struct{ Query string }
				_ = json.Unmarshal(raw, &args)
				return []legal.Document{{
					Identifier: "ds-1", Title: args.Query, SourceKind: legal.KindDataset,
					Jurisdiction: legal.JurisdictionUS, SourceURL: "https://catalog.data.gov/dataset/ds-1",
				}}, nil
			}, nil
		},
	}
	r, err := dispatch.NewRegistry([]dispatch.Registration{reg}, dispatch.Deps{}, dispatch.WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func serve(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthzAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "tool_calls_total 1\n") })
	e := New(newTestRegistry(t), metrics)

	if rec := serve(t, e, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
	if rec := serve(t, e, http.MethodGet, "/metrics", "", nil); !strings.Contains(rec.Body.String(), "tool_calls_total") {
		t.Fatalf("metrics: %q", rec.Body.String())
	}
}

func TestToolsListETag(t *testing.T) {
	reg := newTestRegistry(t)
	e := New(reg, nil)

	rec := serve(t, e, http.MethodGet, "/tools", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	etag := rec.Header().Get("ETag")
	if etag != `"`+reg.Catalogue().Checksum()+`"` {
		t.Fatalf("unexpected etag %q", etag)
	}
	var payload listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(payload.Tools) != 1 || payload.Tools[0].Name != "search_data_gov" || payload.Tools[0].Checksum == "" {
		t.Fatalf("unexpected tools: %+v", payload.Tools)
	}

	rec = serve(t, e, http.MethodGet, "/tools", "", map[string]string{"If-None-Match": etag})
	if rec.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", rec.Code)
	}
	rec = serve(t, e, http.MethodGet, "/tools", "", map[string]string{"If-None-Match": `"stale"`})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for stale etag, got %d", rec.Code)
	}
}

func TestToolsCall(t *testing.T) {
	e := New(newTestRegistry(t), nil)

	rec := serve(t, e, http.MethodPost, "/tools/call", `{"name":"search_data_gov","arguments":{"query":"air quality"}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var env dispatch.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.IsError || !strings.Contains(env.Text(), "air quality") {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	rec = serve(t, e, http.MethodPost, "/tools/call", `{"name":"search_data_gov","arguments":{}}`, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"isError":true`) {
		t.Fatalf("invalid args should be an isError envelope: %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(t, e, http.MethodPost, "/tools/call", `{"name":"drop_tables"}`, nil)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "unknown tool: drop_tables") {
		t.Fatalf("unknown tool: %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(t, e, http.MethodPost, "/tools/call", `{"arguments":{}}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name: expected 400, got %d", rec.Code)
	}
}
