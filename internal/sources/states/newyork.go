package states

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mohammad-safakhou/legalmcp/internal/browser"
	"github.com/mohammad-safakhou/legalmcp/internal/extract"
	"github.com/mohammad-safakhou/legalmcp/internal/fallback"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	// NewYorkTextCap bounds text of New York law sections.
	NewYorkTextCap = 5000

	nyConsolidatedPath = "/legislation/laws/CONSOLIDATED"
	nySearchPath       = "/legislation/laws/search"
	nyMaxSections      = 5
	nyMinSectionText   = 100

	nyForm   = "form#nys-openleg-search-form"
	nyToggle = nyForm + " h3.search-title"
	nyInput  = "input#edit-search-term"
	nySubmit = nyForm + ` button[type="submit"]`
)

var (
	nyLawHref      = regexp.MustCompile(`/laws/[A-Z]{3,}/`)
	nyResultText   = regexp.MustCompile(`(?i)^[A-Z]{3,}\s+(SECTION|ARTICLE)\s+`)
	nySectionLabel = regexp.MustCompile(`(?i)([A-Z]{3,})\s+(SECTION|ARTICLE)\s+(\S+)`)

	// nyStrip removes site furniture around the law text.
	nyStrip = []string{
		"nav", ".sidebar", "script", "style", ".field--name-field-law-section-source", ".c-tools",
		"form", ".c-site-search", ".search-title", ".breadcrumb", ".law-section-nav", ".prev-next",
	}
	nyContent = []string{".law-section", ".node__content", "article.node--type-law-section", "main"}

	// formWait bounds the wait for the results page after submitting.
	formWait = 15 * time.Second
)

type nyResult struct {
	Title string
	URL   string
	Label string
}

// parseNYResults picks law-section links out of a search results page.
func parseNYResults(html, pageURL, keyword string) []nyResult {
	doc, err := extract.Parse(html)
	if err != nil {
		return nil
	}
	lower := strings.ToLower(keyword)
	seen := map[string]bool{}
	var out []nyResult
	for _, l := range extract.Links(doc, "main", pageURL) {
		if strings.Contains(l.Href, "/CONSOLIDATED") || strings.Contains(l.Href, "/all") || !nyLawHref.MatchString(l.Href) {
			continue
		}
		if !strings.Contains(strings.ToLower(l.Text), lower) && !nyResultText.MatchString(l.Text) {
			continue
		}
		if seen[l.Href] {
			continue
		}
		seen[l.Href] = true
		label := l.Text
		if m := nySectionLabel.FindStringSubmatch(l.Text); m != nil {
			label = m[1] + " " + m[2] + " " + m[3]
		}
		out = append(out, nyResult{Title: l.Text, URL: l.Href, Label: label})
		if len(out) == nyMaxSections {
			break
		}
	}
	return out
}

// nySectionText extracts the law text from a section page.
func nySectionText(html string) string {
	doc, err := extract.Parse(html)
	if err != nil {
		return ""
	}
	extract.Strip(doc, nyStrip...)
	for _, sel := range nyContent {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return legal.CollapseSpace(s.Text())
		}
	}
	return legal.CollapseSpace(doc.Find("body").Text())
}

// NewYork searches the Senate's consolidated laws. The static search page is
// tried first; when it yields nothing the search form is driven in a browser.
func (c *Client) NewYork(ctx context.Context, keyword string) ([]legal.Document, error) {
	pages := fallback.NewPageFetcher(Source+"_ny", c.ny, c.browser,
		fallback.WithStrip(nyStrip...),
		fallback.WithNavigationTimeout(navTimeout),
	)
	defer func() {
		if err := pages.Close(); err != nil {
			c.logger.Printf("closing browser session: %v", err)
		}
	}()

	docs, out, err := fallback.Run(ctx, Source+"_ny",
		fallback.Step{Name: "static", Run: func(ctx context.Context) ([]legal.Document, error) {
			return c.nyStatic(ctx, pages, keyword)
		}},
		fallback.Step{Name: "browser", Run: func(ctx context.Context) ([]legal.Document, error) {
			return c.nyBrowser(ctx, pages, keyword)
		}},
	)
	if err == nil && len(docs) == 0 {
		err = out.Failed["browser"]
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &legal.Error{
			Kind:   legal.KindUpstream,
			Source: Source,
			Msg:    "New York scraper failed: " + err.Error(),
			Remedy: "Website structure may have changed. Visit " + base(c.ny) + nyConsolidatedPath + " for direct access",
			Err:    err,
		}
	}
	if len(docs) == 0 {
		manual := base(c.ny) + nyConsolidatedPath
		return []legal.Document{statePlaceholder("NY", "Search", fmt.Sprintf("New York consolidated laws search for %q", keyword), manual,
			"No results found. Please visit "+manual+" and search manually.")}, nil
	}
	return docs, nil
}

func (c *Client) nySearchURL(keyword string) string {
	return base(c.ny) + nySearchPath + "?" + url.Values{"search_term": {keyword}}.Encode()
}

func (c *Client) nyStatic(ctx context.Context, pages *fallback.PageFetcher, keyword string) ([]legal.Document, error) {
	u := c.nySearchURL(keyword)
	resp, err := c.ny.Do(ctx, transport.Request{Method: http.MethodGet, Path: u, Header: http.Header{"Accept": {"text/html"}}})
	if err != nil {
		return nil, legal.FromTransport(Source, err)
	}
	results := parseNYResults(resp.Text(), u, keyword)
	c.logger.Printf("new york static search found %d results for %q", len(results), keyword)
	return c.nySections(ctx, pages, results)
}

func (c *Client) nyBrowser(ctx context.Context, pages *fallback.PageFetcher, keyword string) ([]legal.Document, error) {
	if c.browser == nil {
		c.logger.Printf("no browser configured, skipping the New York search form")
		return nil, nil
	}
	page, err := pages.Session(ctx)
	if err != nil {
		return nil, err
	}
	navigate := func(u string) error {
		nctx, cancel := context.WithTimeout(ctx, navTimeout)
		defer cancel()
		return page.Navigate(nctx, u)
	}
	if err := navigate(base(c.ny) + nyConsolidatedPath); err != nil {
		return nil, err
	}
	fctx, cancel := context.WithTimeout(ctx, formWait)
	err = c.nySubmitForm(fctx, page, keyword)
	cancel()
	if err != nil {
		c.logger.Printf("form interaction failed: %v, trying direct navigation", err)
		if err := navigate(c.nySearchURL(keyword)); err != nil {
			return nil, err
		}
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	location, err := page.Location(ctx)
	if err != nil || location == "" {
		location = c.nySearchURL(keyword)
	}
	results := parseNYResults(html, location, keyword)
	c.logger.Printf("new york browser search found %d results for %q", len(results), keyword)
	return c.nySections(ctx, pages, results)
}

// nySubmitForm opens the collapsible search form, submits keyword and waits
// for the results page.
func (c *Client) nySubmitForm(ctx context.Context, page browser.Page, keyword string) error {
	if err := page.Click(ctx, nyToggle); err != nil {
		c.logger.Printf("search toggle not clickable, assuming the form is open: %v", err)
	}
	if err := page.WaitVisible(ctx, nyInput); err != nil {
		return err
	}
	if err := page.SendKeys(ctx, nyInput, keyword); err != nil {
		return err
	}
	if err := page.Click(ctx, nySubmit); err != nil {
		if err := page.SendKeys(ctx, nyInput, "\n"); err != nil {
			return err
		}
	}
	return waitForLocation(ctx, page, nySearchPath)
}

func waitForLocation(ctx context.Context, page browser.Page, fragment string) error {
	for {
		if loc, err := page.Location(ctx); err == nil && strings.Contains(loc, fragment) {
			return nil
		}
		if err := legal.Pause(ctx, 250*time.Millisecond); err != nil {
			return errors.New("results page did not load: " + err.Error())
		}
	}
}

func (c *Client) nySections(ctx context.Context, pages *fallback.PageFetcher, results []nyResult) ([]legal.Document, error) {
	docs := make([]legal.Document, 0, len(results))
	for i, r := range results {
		if err := c.pause(ctx, i); err != nil {
			return nil, err
		}
		text := r.Label
		if page, err := pages.Fetch(ctx, r.URL); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Printf("failed to extract text from %s: %v", r.URL, err)
		} else if t := nySectionText(page.HTML); utf8.RuneCountInString(t) > nyMinSectionText {
			text = t
		}
		d := stateDocument("NY", extractSection(r.Title), r.Title, text, r.URL, NewYorkTextCap, legal.ConfidenceKeywordCrawl)
		d.Identifier = r.Label
		docs = append(docs, d)
	}
	return docs, nil
}
