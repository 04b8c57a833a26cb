package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/legalmcp/internal/cache"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/sourcetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = WithLogger(log.New(io.Discard, "", 0))

type fakeTool struct {
	factories atomic.Int32
	calls     atomic.Int32
	fn        func(ctx context.Context, q legal.Query) ([]legal.Document, error)
}

func (f *fakeTool) registration(name, credential string) Registration {
	return Registration{
		Name:        name,
		Description: "fake " + name,
		Schema:      object([]string{"query"}, map[string]any{"query": str("keywords"), "limit": integer("limit", 1, 5)}),
		Credential:  credential,
		Factory: func(Deps) (Handler, error) {
			f.factories.Add(1)
			return bind[keywordArgs](func(ctx context.Context, q legal.Query) ([]legal.Document, error) {
				f.calls.Add(1)
				if f.fn != nil {
					return f.fn(ctx, q)
				}
				return []legal.Document{{Identifier: q.Keyword, Title: "T", SourceKind: legal.KindStatute, Jurisdiction: "US", SourceURL: "https://example.gov/" + q.Keyword}}, nil
			}), nil
		},
	}
}

func decodeError(t *testing.T, env Envelope) errorBody {
	t.Helper()
	require.True(t, env.IsError, "expected error envelope, got %s", env.Text())
	var body errorBody
	require.NoError(t, json.Unmarshal([]byte(env.Text()), &body))
	return body
}

func decodeDocs(t *testing.T, env Envelope) []legal.Document {
	t.Helper()
	require.False(t, env.IsError, "unexpected error envelope: %s", env.Text())
	require.Len(t, env.Content, 1)
	assert.Equal(t, "text", env.Content[0].Type)
	var docs []legal.Document
	require.NoError(t, json.Unmarshal([]byte(env.Text()), &docs))
	return docs
}

func TestUnknownToolNeverReachesAdapter(t *testing.T) {
	f := &fakeTool{}
	reg, err := NewRegistry([]Registration{f.registration("search_fake", "")}, Deps{}, quiet)
	require.NoError(t, err)

	body := decodeError(t, reg.Call(context.Background(), "search_nothing", map[string]any{"query": "x"}))
	assert.Equal(t, "unknown tool: search_nothing", body.Error)
	assert.Equal(t, CodeMethodNotFound, body.Code)
	assert.Zero(t, f.calls.Load())
}

func TestCredentialGating(t *testing.T) {
	open, gated := &fakeTool{}, &fakeTool{}
	regs := []Registration{open.registration("search_open", ""), gated.registration("search_gated", "FAKE_API_KEY")}

	reg, err := NewRegistry(regs, Deps{}, quiet)
	require.NoError(t, err)
	assert.Equal(t, []string{"search_open"}, reg.Catalogue().Names())
	assert.Zero(t, gated.factories.Load())
	assert.True(t, reg.Call(context.Background(), "search_gated", map[string]any{"query": "x"}).IsError)

	reg, err = NewRegistry(regs, Deps{Credentials: map[string]string{"FAKE_API_KEY": "k"}}, quiet)
	require.NoError(t, err)
	assert.Equal(t, []string{"search_open", "search_gated"}, reg.Catalogue().Names())
	assert.EqualValues(t, 1, gated.factories.Load())

	for i := 0; i < 3; i++ {
		decodeDocs(t, reg.Call(context.Background(), "search_gated", map[string]any{"query": "x"}))
	}
	assert.EqualValues(t, 1, gated.factories.Load(), "factory must run once per registry")
	assert.EqualValues(t, 3, gated.calls.Load())
}

func TestSchemaValidation(t *testing.T) {
	f := &fakeTool{}
	reg, err := NewRegistry([]Registration{f.registration("search_fake", "")}, Deps{}, quiet)
	require.NoError(t, err)

	cases := map[string]map[string]any{
		"missing query":    {},
		"wrong type":       {"query": 12},
		"out of bounds":    {"query": "x", "limit": 9},
		"unknown argument": {"query": "x", "colour": "red"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			body := decodeError(t, reg.Call(context.Background(), "search_fake", args))
			assert.Equal(t, CodeInvalidParams, body.Code)
		})
	}
	assert.Zero(t, f.calls.Load())
}

func TestAdapterErrorsAndPanicsBecomeEnvelopes(t *testing.T) {
	f := &fakeTool{fn: func(context.Context, legal.Query) ([]legal.Document, error) {
		return nil, &legal.Error{Kind: legal.KindUnauthorized, Source: "courtlistener", Msg: "authentication failed", Remedy: "Get a free API key"}
	}}
	p := &fakeTool{fn: func(context.Context, legal.Query) ([]legal.Document, error) { panic("boom") }}
	reg, err := NewRegistry([]Registration{f.registration("search_err", ""), p.registration("search_panic", "")}, Deps{}, quiet)
	require.NoError(t, err)

	body := decodeError(t, reg.Call(context.Background(), "search_err", map[string]any{"query": "x"}))
	assert.Equal(t, string(legal.KindUnauthorized), body.Code)
	assert.Equal(t, "courtlistener", body.Source)
	assert.Equal(t, "Get a free API key", body.Remedy)

	body = decodeError(t, reg.Call(context.Background(), "search_panic", map[string]any{"query": "x"}))
	assert.Contains(t, body.Error, "boom")
}

func TestCallTimeout(t *testing.T) {
	f := &fakeTool{fn: func(ctx context.Context, q legal.Query) ([]legal.Document, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	reg, err := NewRegistry([]Registration{f.registration("search_slow", "")}, Deps{}, quiet, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	body := decodeError(t, reg.Call(context.Background(), "search_slow", map[string]any{"query": "x"}))
	assert.Contains(t, body.Error, "timed out")
}

func TestCacheServesRepeatedCalls(t *testing.T) {
	f := &fakeTool{}
	reg, err := NewRegistry([]Registration{f.registration("search_fake", "")}, Deps{}, quiet, WithCache(cache.NewMemory(16, time.Minute)))
	require.NoError(t, err)

	first := reg.Call(context.Background(), "search_fake", map[string]any{"query": "privacy"})
	second := reg.Call(context.Background(), "search_fake", map[string]any{"query": "privacy"})
	assert.Equal(t, first.Text(), second.Text())
	assert.EqualValues(t, 1, f.calls.Load())

	reg.Call(context.Background(), "search_fake", map[string]any{"query": "biometric"})
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestDegradedResultsAreNotCached(t *testing.T) {
	f := &fakeTool{}
	f.fn = func(ctx context.Context, q legal.Query) ([]legal.Document, error) {
		d := legal.Document{Identifier: q.Keyword, Title: "T", SourceKind: legal.KindBill, Jurisdiction: "US-TX", SourceURL: "https://example.gov/" + q.Keyword}
		if f.calls.Load() == 1 {
			d.Metadata = map[string]string{"error": "rate limited"}
		}
		return []legal.Document{d}, nil
	}
	reg, err := NewRegistry([]Registration{f.registration("search_fake", "")}, Deps{}, quiet, WithCache(cache.NewMemory(16, time.Minute)))
	require.NoError(t, err)

	args := map[string]any{"query": "privacy"}
	first := decodeDocs(t, reg.Call(context.Background(), "search_fake", args))
	assert.True(t, first[0].Degraded())
	second := decodeDocs(t, reg.Call(context.Background(), "search_fake", args))
	assert.False(t, second[0].Degraded())
	reg.Call(context.Background(), "search_fake", args)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestScrapingErrorIsRetriedAfterRecovery(t *testing.T) {
	var down atomic.Bool
	down.Store(true)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if down.Load() {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`<html><body><h1>Illinois Compiled Statutes</h1><p>` + strings.Repeat("Chapters of the ILCS. ", 40) + `</p>
			<a href="ilcs3.asp?ActID=3004">Biometric Information Privacy Act</a></body></html>`))
	}))
	defer srv.Close()

	deps := Deps{
		Credentials: allCredentials(),
		Transport:   sourcetest.Options(""),
		BaseURLs:    map[string]string{"state_scraper_il": srv.URL},
	}
	reg, err := NewRegistry(Registrations(), deps, quiet, WithCache(cache.NewMemory(16, time.Minute)))
	require.NoError(t, err)
	args := map[string]any{"state": "IL", "query": "privacy"}

	docs := decodeDocs(t, reg.Call(context.Background(), "search_state_law", args))
	require.Len(t, docs, 1)
	assert.Equal(t, "Scraping Error", docs[0].Title)

	down.Store(false)
	docs = decodeDocs(t, reg.Call(context.Background(), "search_state_law", args))
	require.Len(t, docs, 1)
	assert.Equal(t, "Biometric Information Privacy Act", docs[0].Title)

	served := hits.Load()
	reg.Call(context.Background(), "search_state_law", args)
	assert.Equal(t, served, hits.Load(), "recovered result should be served from cache")
}

func allCredentials() map[string]string {
	return map[string]string{
		CredGovInfo: "gov", CredCourtListener: "cl", CredCongress: "cg", CredOpenStates: "os", CredCanLII: "cn",
	}
}

func TestFullCatalogue(t *testing.T) {
	reg, err := NewRegistry(Registrations(), Deps{Credentials: allCredentials()}, quiet)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"search_us_code", "search_cfr", "search_case_law", "search_eu_regulations",
		"search_state_law", "search_congress_bills", "search_federal_register",
		"get_sec_filings", "search_open_states", "get_bill_text", "sweep_state_legislation",
		"search_uk_legislation", "search_canlii_cases", "search_fda_events",
		"search_data_gov", "search_global",
	}, reg.Catalogue().Names())

	reg, err = NewRegistry(Registrations(), Deps{Credentials: map[string]string{CredGovInfo: "gov"}}, quiet)
	require.NoError(t, err)
	for _, name := range []string{"search_case_law", "search_congress_bills", "search_open_states", "get_bill_text", "sweep_state_legislation", "search_canlii_cases"} {
		assert.False(t, reg.Has(name), name)
	}
	assert.True(t, reg.Has("search_global"))
}

func TestBlankQueriesReturnEmptyList(t *testing.T) {
	reg, err := NewRegistry(Registrations(), Deps{Credentials: allCredentials()}, quiet)
	require.NoError(t, err)
	for _, name := range []string{"search_us_code", "search_case_law", "search_federal_register", "search_global", "sweep_state_legislation", "search_data_gov"} {
		docs := decodeDocs(t, reg.Call(context.Background(), name, map[string]any{"query": "  "}))
		assert.Empty(t, docs, name)
	}
}

func TestStateLawUnsupportedState(t *testing.T) {
	reg, err := NewRegistry(Registrations(), Deps{Credentials: allCredentials()}, quiet)
	require.NoError(t, err)

	body := decodeError(t, reg.Call(context.Background(), "search_state_law", map[string]any{"state": "tx", "query": "privacy"}))
	assert.Equal(t, string(legal.KindUnsupported), body.Code)
	assert.Contains(t, body.Error, "Supported states: CA, NY, IL")
}

func TestEURegulationsNeedQueryOrID(t *testing.T) {
	reg, err := NewRegistry(Registrations(), Deps{Credentials: allCredentials()}, quiet)
	require.NoError(t, err)
	body := decodeError(t, reg.Call(context.Background(), "search_eu_regulations", map[string]any{"language": "de"}))
	assert.Equal(t, CodeInvalidParams, body.Code)
}

func TestFederalRegisterThroughDispatch(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.URL.Query())
		sourcetest.JSON(w, map[string]any{"results": []map[string]any{{
			"document_number":  "2024-01234",
			"title":            "Privacy Rule",
			"abstract":         "Final rule on data privacy.",
			"html_url":         "https://www.federalregister.gov/d/2024-01234",
			"publication_date": "2024-03-01",
			"type":             "Rule",
		}}})
	}))
	defer srv.Close()

	deps := Deps{
		Credentials: allCredentials(),
		Transport:   sourcetest.Options(""),
		BaseURLs:    map[string]string{"federal_register": srv.URL},
	}
	reg, err := NewRegistry(Registrations(), deps, quiet)
	require.NoError(t, err)

	docs := decodeDocs(t, reg.Call(context.Background(), "search_federal_register", map[string]any{
		"query": "privacy", "order": "newest", "per_page": 5, "date_from": "2024-01-01",
	}))
	require.Len(t, docs, 1)
	assert.Equal(t, "2024-01234", docs[0].Identifier)
	assert.Equal(t, legal.KindNotice, docs[0].SourceKind)

	q := got.Load().(url.Values)
	assert.Equal(t, []string{"newest"}, q["order"])
	assert.Equal(t, []string{"5"}, q["per_page"])
	assert.Equal(t, []string{"2024-01-01"}, q["conditions[publication_date][gte]"])

	body := decodeError(t, reg.Call(context.Background(), "search_federal_register", map[string]any{"query": "privacy", "order": "random"}))
	assert.Equal(t, CodeInvalidParams, body.Code)
}
