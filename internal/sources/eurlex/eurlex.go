// Package eurlex searches EU legislation on EUR-Lex. The site serves CloudFront
// challenges to plain HTTP clients, so pages go through the static-then-browser
// page fetcher.
package eurlex

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mohammad-safakhou/legalmcp/internal/browser"
	"github.com/mohammad-safakhou/legalmcp/internal/fallback"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	DefaultBaseURL = "https://eur-lex.europa.eu"
	Source         = "eurlex"

	// TextCap bounds ExtractedText per regulation.
	TextCap = 10000

	DefaultCourtesyDelay = time.Second

	maxDetails   = 5
	navTimeout   = 30 * time.Second
	notAvailable = "Regulation text not available. Please visit the source URL for full text."
	userAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

// Aliases maps well-known short names to CELEX numbers.
var Aliases = map[string]string{
	"gdpr":   "32016R0679",
	"ai-act": "32024R1689",
	"mica":   "32023R1114",
}

// Client searches EUR-Lex.
type Client struct {
	static  *transport.Client
	browser browser.Browser
	logger  *log.Logger

	// CourtesyDelay separates consecutive detail page fetches.
	CourtesyDelay time.Duration
	now           func() time.Time
}

// New returns a client. br may be nil, in which case blocked pages are skipped.
func New(br browser.Browser, opts ...transport.Option) *Client {
	base := []transport.Option{
		transport.WithName(Source),
		transport.WithUserAgent(userAgent),
	}
	return &Client{
		static:        transport.New(DefaultBaseURL, append(base, opts...)...),
		browser:       br,
		logger:        log.New(log.Writer(), "[EURLEX] ", log.LstdFlags),
		CourtesyDelay: DefaultCourtesyDelay,
		now:           time.Now,
	}
}

// ResolveCELEX returns the CELEX number for an alias or a literal CELEX
// number, and false for free text.
func ResolveCELEX(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if celex, ok := Aliases[strings.ToLower(s)]; ok {
		return celex, true
	}
	if celexNumber.MatchString(strings.ToUpper(s)) {
		return strings.ToUpper(s), true
	}
	return "", false
}

// Search looks up filter "regulation_id" (alias or CELEX) directly when set,
// or when the keyword itself is an alias or CELEX number; otherwise it runs a
// quick search and reads up to five result pages. Filter "language" picks the
// document language (default EN).
func (c *Client) Search(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	if q.Blank() {
		return []legal.Document{}, nil
	}
	lang := strings.ToUpper(q.Get("language"))
	if lang == "" {
		lang = "EN"
	}
	pages := fallback.NewPageFetcher(Source, c.static, c.browser,
		fallback.WithNavigationTimeout(navTimeout),
		fallback.WithPlausible(func(p fallback.Page) bool { return !blocked(p.Title) }),
	)
	defer func() {
		if err := pages.Close(); err != nil {
			c.logger.Printf("closing browser session: %v", err)
		}
	}()

	id := q.Get("regulation_id")
	if id == "" {
		if _, ok := ResolveCELEX(q.Keyword); ok {
			id = q.Keyword
		}
	}
	if id != "" {
		celex, ok := ResolveCELEX(id)
		if !ok {
			celex = strings.TrimSpace(id)
		}
		doc, ok, err := c.detail(ctx, pages, c.celexURL(lang, celex), legal.ConfidenceExact)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []legal.Document{}, nil
		}
		return []legal.Document{doc}, nil
	}

	searchURL := c.searchURL(q.Keyword, lang)
	page, err := pages.Fetch(ctx, searchURL)
	if err != nil {
		return nil, legal.FromTransport(Source, err)
	}
	results := ParseSearchResults(page.HTML, page.URL)
	c.logger.Printf("found %d potential regulations for %q", len(results), q.Keyword)
	if len(results) > maxDetails {
		results = results[:maxDetails]
	}

	docs := []legal.Document{}
	for i, r := range results {
		if i > 0 {
			if err := legal.Pause(ctx, c.CourtesyDelay); err != nil {
				return nil, err
			}
		}
		doc, ok, err := c.detail(ctx, pages, r.URL, legal.ConfidenceSearchHit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Printf("skipping %s: %v", r.URL, err)
			continue
		}
		if ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (c *Client) searchURL(keyword, lang string) string {
	v := url.Values{
		"scope": {"EURLEX"},
		"text":  {keyword},
		"lang":  {strings.ToLower(lang)},
		"type":  {"quick"},
		"qid":   {fmt.Sprint(c.now().UnixMilli())},
	}
	return strings.TrimRight(c.static.BaseURL(), "/") + "/search.html?" + v.Encode()
}

func (c *Client) celexURL(lang, celex string) string {
	return fmt.Sprintf("%s/legal-content/%s/TXT/?uri=CELEX:%s", strings.TrimRight(c.static.BaseURL(), "/"), url.PathEscape(lang), url.QueryEscape(celex))
}

// detail fetches and parses one regulation page. ok is false for blocked pages.
func (c *Client) detail(ctx context.Context, pages *fallback.PageFetcher, pageURL string, confidence float64) (legal.Document, bool, error) {
	page, err := pages.Fetch(ctx, pageURL)
	if err != nil {
		return legal.Document{}, false, legal.FromTransport(Source, err)
	}
	if blocked(page.Title) {
		c.logger.Printf("blocked by EUR-Lex protection: %s", pageURL)
		return legal.Document{}, false, nil
	}
	d := parseDetail(page.HTML, pageURL, page.Title)
	if blocked(d.Title) {
		return legal.Document{}, false, nil
	}
	id := d.CELEX
	if id == "Unknown" {
		id = pageURL
	}
	return legal.Document{
		Identifier:      id,
		Title:           d.Title,
		SourceKind:      legal.KindRegulation,
		Jurisdiction:    legal.JurisdictionEU,
		PublicationDate: parseEUDate(d.Date),
		SourceURL:       pageURL,
		ExtractedText:   d.Text,
		Confidence:      confidence,
		Metadata: map[string]string{
			"celex":    d.CELEX,
			"type":     "Regulation",
			"date":     d.Date,
			"rendered": fmt.Sprint(page.Rendered),
		},
	}, true, nil
}

// parseEUDate reads dd/mm/yyyy as EUR-Lex prints it, then ISO forms.
func parseEUDate(s string) *time.Time {
	if dateDMY.MatchString(s) {
		if t, err := time.Parse("02/01/2006", dateDMY.FindString(s)); err == nil {
			return &t
		}
	}
	return legal.ParseDate(s)
}
