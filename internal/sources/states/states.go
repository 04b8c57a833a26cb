// Package states retrieves state statutes from legislature websites that offer
// no API: California (curated CCPA table plus code search), New York (Senate
// consolidated laws, browser form) and Illinois (ILCS listing).
package states

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/legalmcp/internal/browser"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	Source = "state_scraper"

	DefaultCaliforniaURL = "https://leginfo.legislature.ca.gov"
	DefaultNewYorkURL    = "https://www.nysenate.gov"
	DefaultIllinoisURL   = "https://www.ilga.gov"

	DefaultCourtesyDelay = 500 * time.Millisecond

	userAgent  = "Mozilla/5.0 (compatible; legalmcp/1.0)"
	navTimeout = 30 * time.Second
)

// Supported lists the accepted state codes.
var Supported = []string{"CA", "NY", "IL"}

// Bases points each state at its legislature site. Empty fields take the defaults.
type Bases struct {
	California string
	NewYork    string
	Illinois   string
}

func (b Bases) withDefaults() Bases {
	if b.California == "" {
		b.California = DefaultCaliforniaURL
	}
	if b.NewYork == "" {
		b.NewYork = DefaultNewYorkURL
	}
	if b.Illinois == "" {
		b.Illinois = DefaultIllinoisURL
	}
	return b
}

// Client scrapes the supported legislature sites.
type Client struct {
	ca, ny, il *transport.Client
	browser    browser.Browser
	logger     *log.Logger

	// CourtesyDelay separates consecutive page fetches against one site.
	CourtesyDelay time.Duration
}

// New returns a scraper. br may be nil; New York then relies on static pages
// only and Illinois falls back to its placeholder.
func New(br browser.Browser, bases Bases, opts ...transport.Option) *Client {
	bases = bases.withDefaults()
	client := func(name, base string) *transport.Client {
		o := []transport.Option{transport.WithName(Source + "_" + name), transport.WithUserAgent(userAgent)}
		return transport.New(base, append(o, opts...)...)
	}
	return &Client{
		ca:            client("ca", bases.California),
		ny:            client("ny", bases.NewYork),
		il:            client("il", bases.Illinois),
		browser:       br,
		logger:        log.New(log.Writer(), "[STATES] ", log.LstdFlags),
		CourtesyDelay: DefaultCourtesyDelay,
	}
}

// State picks the state code from filter "state", falling back to the
// query's jurisdiction hint.
func State(q legal.Query) string {
	s := q.Get("state")
	if s == "" {
		s = q.JurisdictionHint
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "US-")
}

// Search dispatches to the scraper for the query's state.
func (c *Client) Search(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	state := State(q)
	if q.Blank() {
		return []legal.Document{}, nil
	}
	keyword := strings.TrimSpace(q.Keyword)
	switch state {
	case "CA":
		return c.California(ctx, keyword)
	case "NY":
		return c.NewYork(ctx, keyword)
	case "IL":
		return c.Illinois(ctx, keyword)
	}
	return nil, legal.Errorf(legal.KindUnsupported, Source, "State %s not supported. Supported states: %s", state, strings.Join(Supported, ", "))
}

func base(c *transport.Client) string { return strings.TrimRight(c.BaseURL(), "/") }

func (c *Client) pause(ctx context.Context, i int) error {
	if i == 0 {
		return nil
	}
	return legal.Pause(ctx, c.CourtesyDelay)
}

func stateDocument(state, section, title, text, sourceURL string, cap int, confidence float64) legal.Document {
	return legal.Document{
		Identifier:    section,
		Title:         title,
		SourceKind:    legal.KindStatute,
		Jurisdiction:  legal.StateJurisdiction(state),
		SourceURL:     sourceURL,
		ExtractedText: legal.Truncate(text, cap),
		Confidence:    confidence,
		Metadata:      map[string]string{"state": state, "section": section},
	}
}

func statePlaceholder(state, section, title, sourceURL, text string) legal.Document {
	d := legal.Placeholder(legal.KindStatute, legal.StateJurisdiction(state), title, sourceURL, text)
	d.Metadata["state"] = state
	d.Metadata["section"] = section
	return d
}
