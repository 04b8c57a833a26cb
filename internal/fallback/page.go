package fallback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mohammad-safakhou/legalmcp/internal/browser"
	"github.com/mohammad-safakhou/legalmcp/internal/extract"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

// DefaultMinTextLength is the visible-text length below which a static page is
// treated as a block or error page.
const DefaultMinTextLength = 50

// Page is a fetched document.
type Page struct {
	URL      string
	Title    string
	HTML     string
	Text     string
	Rendered bool
}

// PageFetcher fetches pages statically and escalates to the browser when the
// static path fails or yields implausibly little text. Escalation is sticky
// for the fetcher's lifetime, which is one adapter invocation. The browser
// session is opened lazily and released by Close.
type PageFetcher struct {
	source     string
	static     *transport.Client
	browser    browser.Browser
	minText    int
	strip      []string
	navTimeout time.Duration
	plausible  func(Page) bool
	logger     *log.Logger

	mu        sync.Mutex
	escalated bool
	page      browser.Page
}

// PageOption customises a PageFetcher.
type PageOption func(*PageFetcher)

func WithMinTextLength(n int) PageOption {
	return func(f *PageFetcher) {
		if n > 0 {
			f.minText = n
		}
	}
}

func WithStrip(selectors ...string) PageOption {
	return func(f *PageFetcher) { f.strip = selectors }
}

func WithNavigationTimeout(d time.Duration) PageOption {
	return func(f *PageFetcher) {
		if d > 0 {
			f.navTimeout = d
		}
	}
}

// WithPlausible adds a site-specific check on static pages, e.g. rejecting
// WAF challenge pages by title. Pages failing it escalate like short ones.
func WithPlausible(check func(Page) bool) PageOption {
	return func(f *PageFetcher) { f.plausible = check }
}

// StartRendered skips the static path entirely, for sites known to need a browser.
func StartRendered() PageOption {
	return func(f *PageFetcher) { f.escalated = true }
}

// NewPageFetcher builds a fetcher. static may be nil to always render; br may
// be nil to never render.
func NewPageFetcher(source string, static *transport.Client, br browser.Browser, opts ...PageOption) *PageFetcher {
	f := &PageFetcher{
		source:     source,
		static:     static,
		browser:    br,
		minText:    DefaultMinTextLength,
		strip:      browser.DefaultStrip,
		navTimeout: 30 * time.Second,
		logger:     log.New(log.Writer(), "[FALLBACK] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(f)
	}
	if static == nil {
		f.escalated = true
	}
	return f
}

// Escalated reports whether the fetcher has switched to the browser.
func (f *PageFetcher) Escalated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.escalated
}

// Fetch returns the page at url via the current strategy.
func (f *PageFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.escalated {
		page, reason, err := f.fetchStatic(ctx, url)
		if err == nil {
			return page, nil
		}
		if errors.Is(err, context.Canceled) {
			return Page{}, err
		}
		f.escalated = true
		f.logger.Printf("%s: escalating to browser for %s (%s): %v", f.source, url, reason, err)
		recordEscalation(ctx, f.source, reason)
	}
	return f.render(ctx, url)
}

var (
	errShort    = errors.New("static content below plausibility threshold")
	errRejected = errors.New("static page rejected by plausibility check")
)

func (f *PageFetcher) fetchStatic(ctx context.Context, url string) (Page, string, error) {
	resp, err := f.static.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   url,
		Header: http.Header{
			"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			"Accept-Language": {"en-US,en;q=0.9"},
		},
	})
	if err != nil {
		return Page{}, "error", err
	}
	html := resp.Text()
	text, err := extract.BodyText(html, f.strip...)
	if err != nil {
		return Page{}, "parse", err
	}
	if utf8.RuneCountInString(text) < f.minText {
		return Page{}, "short", fmt.Errorf("%w (%d chars)", errShort, utf8.RuneCountInString(text))
	}
	var title string
	if doc, err := extract.Parse(html); err == nil {
		title = legal.CollapseSpace(doc.Find("title").First().Text())
	}
	page := Page{URL: url, Title: title, HTML: html, Text: text}
	if f.plausible != nil && !f.plausible(page) {
		return Page{}, "rejected", errRejected
	}
	return page, "", nil
}

func (f *PageFetcher) render(ctx context.Context, url string) (Page, error) {
	if f.browser == nil {
		return Page{}, &legal.Error{Kind: legal.KindUpstream, Source: f.source, Msg: "page needs rendering but no browser is configured", Err: browser.ErrUnavailable}
	}
	if f.page == nil {
		p, err := f.browser.Open(ctx)
		if err != nil {
			return Page{}, &legal.Error{Kind: legal.KindUpstream, Source: f.source, Msg: "could not start browser", Err: err}
		}
		f.page = p
	}
	nctx, cancel := context.WithTimeout(ctx, f.navTimeout)
	defer cancel()
	if err := f.page.Navigate(nctx, url); err != nil {
		return Page{}, legal.FromTransport(f.source, err)
	}
	title, _ := f.page.Title(nctx)
	location, err := f.page.Location(nctx)
	if err != nil || location == "" {
		location = url
	}
	// HTML first: Text removes nodes from the live DOM.
	html, err := f.page.HTML(nctx)
	if err != nil {
		return Page{}, legal.FromTransport(f.source, err)
	}
	text, err := f.page.Text(nctx, f.strip...)
	if err != nil {
		return Page{}, legal.FromTransport(f.source, err)
	}
	return Page{URL: location, Title: title, HTML: html, Text: legal.CollapseSpace(text), Rendered: true}, nil
}

// Session exposes the underlying browser page for interactive flows (form
// filling, clicks), opening it on first use. The fetcher is switched to the
// rendered strategy.
func (f *PageFetcher) Session(ctx context.Context) (browser.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser == nil {
		return nil, browser.ErrUnavailable
	}
	f.escalated = true
	if f.page == nil {
		p, err := f.browser.Open(ctx)
		if err != nil {
			return nil, err
		}
		f.page = p
	}
	return f.page, nil
}

// Close releases the browser session if one was opened.
func (f *PageFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.page == nil {
		return nil
	}
	err := f.page.Close()
	f.page = nil
	return err
}
