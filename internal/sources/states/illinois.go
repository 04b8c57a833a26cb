package states

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/legalmcp/internal/browser"
	"github.com/mohammad-safakhou/legalmcp/internal/extract"
	"github.com/mohammad-safakhou/legalmcp/internal/fallback"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
)

const (
	// IllinoisTextCap bounds text of Illinois documents.
	IllinoisTextCap = 2000

	ilBIPAPath    = "/legislation/ilcs/ilcs3.asp?ActID=3004&ChapterID=57"
	ilListingPath = "/legislation/ilcs/ilcs.asp"
	ilSearchPath  = "/search/search.asp"
	ilMaxLinks    = 5
)

var bipaTerms = []string{"bipa", "biometric"}

// Illinois tries the curated BIPA entry, then links on the ILCS listing page,
// then a manual-search placeholder. It never fails: scraping problems are
// reported as a "Scraping Error" document so fan-outs keep other states.
func (c *Client) Illinois(ctx context.Context, keyword string) ([]legal.Document, error) {
	pages := fallback.NewPageFetcher(Source+"_il", c.il, c.browser,
		fallback.WithStrip(browser.DefaultStrip...),
		fallback.WithNavigationTimeout(navTimeout),
	)
	defer func() {
		if err := pages.Close(); err != nil {
			c.logger.Printf("closing browser session: %v", err)
		}
	}()

	docs, out, err := fallback.Run(ctx, Source+"_il",
		fallback.Step{Name: "curated", Run: func(ctx context.Context) ([]legal.Document, error) {
			return c.ilBIPA(ctx, pages, keyword)
		}},
		fallback.Step{Name: "listing", Run: func(ctx context.Context) ([]legal.Document, error) {
			return c.ilListing(ctx, pages, keyword)
		}},
		fallback.Step{Name: "placeholder", Run: func(context.Context) ([]legal.Document, error) {
			return []legal.Document{c.ilPlaceholder(keyword)}, nil
		}},
	)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err == nil {
		err = out.Failed["listing"]
	}
	if err != nil {
		c.logger.Printf("illinois scraper failed: %v", err)
		return []legal.Document{statePlaceholder("IL", "Error", "Scraping Error", base(c.il)+ilListingPath,
			fmt.Sprintf("Failed to scrape Illinois site: %v. Please verify manually.", err))}, nil
	}
	return docs, nil
}

func (c *Client) ilBIPA(ctx context.Context, pages *fallback.PageFetcher, keyword string) ([]legal.Document, error) {
	lower := strings.ToLower(keyword)
	match := false
	for _, t := range bipaTerms {
		if strings.Contains(lower, t) {
			match = true
			break
		}
	}
	if !match {
		return nil, nil
	}
	u := base(c.il) + ilBIPAPath
	page, err := pages.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	d := stateDocument("IL", "740 ILCS 14", "Biometric Information Privacy Act", page.Text, u, IllinoisTextCap, legal.ConfidenceCurated)
	d.Metadata["rendered"] = fmt.Sprint(page.Rendered)
	return []legal.Document{d}, nil
}

func (c *Client) ilListing(ctx context.Context, pages *fallback.PageFetcher, keyword string) ([]legal.Document, error) {
	u := base(c.il) + ilListingPath
	page, err := pages.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	doc, err := extract.Parse(page.HTML)
	if err != nil {
		return nil, &legal.Error{Kind: legal.KindExtraction, Source: Source, Msg: "could not parse ILCS listing", Err: err}
	}
	lower := strings.ToLower(keyword)
	var docs []legal.Document
	for _, l := range extract.Links(doc, "", page.URL) {
		if !strings.Contains(strings.ToLower(l.Text), lower) && !strings.Contains(strings.ToLower(l.Href), lower) {
			continue
		}
		title := l.Text
		if title == "" {
			title = "Unknown Title"
		}
		docs = append(docs, stateDocument("IL", "Unknown", title, caUnavailable, l.Href, IllinoisTextCap, legal.ConfidenceKeywordCrawl))
		if len(docs) == ilMaxLinks {
			break
		}
	}
	return docs, nil
}

func (c *Client) ilPlaceholder(keyword string) legal.Document {
	u := base(c.il) + ilSearchPath + "?" + url.Values{"search_text": {keyword}}.Encode()
	return statePlaceholder("IL", "Search", fmt.Sprintf("Search Results for %q", keyword), u,
		"Automated scraping yielded no direct results. Please visit the Illinois General Assembly website directly.")
}
