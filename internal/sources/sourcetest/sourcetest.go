// Package sourcetest holds helpers shared by adapter tests.
package sourcetest

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

// Options points a transport client at baseURL with no real backoff and no log noise.
func Options(baseURL string) []transport.Option {
	opts := []transport.Option{
		transport.WithSleeper(func(context.Context, time.Duration) error { return nil }),
		transport.WithLogger(log.New(io.Discard, "", 0)),
	}
	if baseURL != "" {
		opts = append(opts, transport.WithBaseURL(baseURL))
	}
	return opts
}

// Client returns a base-less transport client for absolute-URL scraping.
func Client() *transport.Client {
	return transport.New("", Options("")...)
}

// CheckDocuments fails the test when any document violates the output
// guarantees: absolute URL, provenance, text within maxText.
func CheckDocuments(t testing.TB, docs []legal.Document, maxText int) {
	t.Helper()
	for _, d := range docs {
		if err := legal.Check(d, maxText); err != nil {
			t.Fatalf("%v", err)
		}
	}
}

// JSON writes v as a JSON response.
func JSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// CountingHandler wraps H and counts requests.
type CountingHandler struct {
	H http.Handler
	n atomic.Int64
}

func (c *CountingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.n.Add(1)
	c.H.ServeHTTP(w, r)
}

// Count returns the number of requests served.
func (c *CountingHandler) Count() int { return int(c.n.Load()) }
