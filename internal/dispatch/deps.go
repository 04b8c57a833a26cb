package dispatch

import (
	"time"

	"github.com/mohammad-safakhou/legalmcp/internal/browser"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/states"
	"github.com/mohammad-safakhou/legalmcp/internal/sweep"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

// Deps are the shared collaborators handed to every factory.
type Deps struct {
	// Credentials maps environment variable names to values.
	Credentials map[string]string
	// Browser renders dynamic pages; nil disables browser fallbacks.
	Browser browser.Browser
	// Transport options applied to every adapter client.
	Transport []transport.Option
	// BaseURLs overrides adapter base URLs, keyed by adapter source name
	// ("govinfo", "eurlex", "state_scraper_ca", ...).
	BaseURLs map[string]string

	USCodeEdition string
	SECUserAgent  string
	CourtesyDelay time.Duration
	Sweep         sweep.Options
	GlobalLimit   int
}

func (d Deps) credential(env string) string { return d.Credentials[env] }

// opts returns the shared transport options plus the base URL override of source.
func (d Deps) opts(source string) []transport.Option {
	out := append([]transport.Option(nil), d.Transport...)
	if base := d.BaseURLs[source]; base != "" {
		out = append(out, transport.WithBaseURL(base))
	}
	return out
}

func (d Deps) stateBases() states.Bases {
	return states.Bases{
		California: d.BaseURLs[states.Source+"_ca"],
		NewYork:    d.BaseURLs[states.Source+"_ny"],
		Illinois:   d.BaseURLs[states.Source+"_il"],
	}
}
