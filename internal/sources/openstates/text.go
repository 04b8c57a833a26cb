package openstates

import (
	"context"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/legalmcp/internal/browser"
	"github.com/mohammad-safakhou/legalmcp/internal/fallback"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	mediaHTML = "text/html"
	mediaPDF  = "application/pdf"

	// Values of the text_source metadata key.
	TextFromHTML     = "html"
	TextFromRendered = "rendered"
	TextFromPDF      = "pdf"
	TextUnavailable  = "unavailable"
	TextFailed       = "failed"
)

// TextLink picks the version link to extract: any HTML link across all
// versions, else any PDF link, else the first link of the first version that
// has one (treated as PDF when its path ends in .pdf).
func TextLink(versions []Version) (link string, isPDF bool) {
	for _, media := range []string{mediaHTML, mediaPDF} {
		for _, v := range versions {
			for _, l := range v.Links {
				if l.MediaType == media && l.URL != "" {
					return l.URL, media == mediaPDF
				}
			}
		}
	}
	for _, v := range versions {
		if len(v.Links) > 0 && v.Links[0].URL != "" {
			u := v.Links[0].URL
			return u, strings.HasSuffix(strings.ToLower(u), ".pdf")
		}
	}
	return "", false
}

// textFetcher extracts bill text for one adapter invocation. Its page fetcher
// escalates to the browser at most once and is closed with the invocation.
type textFetcher struct {
	c     *Client
	pages *fallback.PageFetcher
}

func (c *Client) newTextFetcher() *textFetcher {
	return &textFetcher{
		c: c,
		pages: fallback.NewPageFetcher(Source, c.scraper, c.browser,
			fallback.WithStrip(browser.DefaultStrip...),
			fallback.WithNavigationTimeout(c.RenderTimeout),
		),
	}
}

func (t *textFetcher) close() {
	if err := t.pages.Close(); err != nil {
		t.c.logger.Printf("closing browser session: %v", err)
	}
}

// billText never fails: problems are described in the returned text. The
// second value names where the text came from.
func (t *textFetcher) billText(ctx context.Context, b Bill) (string, string) {
	versions := b.Versions
	if versions == nil && b.ID != "" {
		detail, err := t.c.Bill(ctx, b.ID)
		if err != nil {
			t.c.logger.Printf("could not fetch versions for %s: %v", b.ID, err)
		} else {
			versions = detail.Versions
		}
	}
	if len(versions) == 0 {
		return "No full text versions available from Open States.", TextUnavailable
	}
	link, isPDF := TextLink(versions)
	if link == "" {
		return "No text links available in bill versions.", TextUnavailable
	}
	t.c.logger.Printf("fetching bill text from %s (pdf=%v)", link, isPDF)

	if isPDF {
		return t.pdfText(ctx, link)
	}
	page, err := t.pages.Fetch(ctx, link)
	if err != nil {
		return "Failed to retrieve bill text: " + err.Error(), TextFailed
	}
	if page.Text == "" {
		return "Empty text content from rendered page.", TextFailed
	}
	src := TextFromHTML
	if page.Rendered {
		src = TextFromRendered
	}
	return legal.Truncate(page.Text, TextCap), src
}

func (t *textFetcher) pdfText(ctx context.Context, link string) (string, string) {
	resp, err := t.c.scraper.Do(ctx, transport.Request{
		Method:  http.MethodGet,
		Path:    link,
		Timeout: pdfTimeout,
		Header:  http.Header{"Accept": {"application/pdf,*/*"}},
	})
	if err != nil {
		return "Failed to parse PDF: " + err.Error(), TextFailed
	}
	text, err := t.c.PDF.Text(resp.Body)
	if err != nil {
		return "Failed to parse PDF: " + err.Error(), TextFailed
	}
	return legal.Truncate(legal.CollapseSpace(text), TextCap), TextFromPDF
}
