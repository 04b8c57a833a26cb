package states

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mohammad-safakhou/legalmcp/internal/extract"
	"github.com/mohammad-safakhou/legalmcp/internal/fallback"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	// CuratedTextCap bounds text of curated California sections.
	CuratedTextCap = 2000
	// ScrapeTextCap bounds text of California code search rows.
	ScrapeTextCap = 1000

	caSectionPath = "/faces/codes_displaySection.xhtml"
	caSearchPath  = "/faces/codes.xhtml"
	caUnavailable = "Content available at source URL"
)

// CCPASection is a curated California Civil Code section.
type CCPASection struct {
	Section string
	Title   string
}

// CCPASections covers the consumer rights chapter of the CCPA/CPRA
// (Civil Code Division 3, Part 4, Title 1.81.5).
var CCPASections = []CCPASection{
	{"1798.100", "Right to Know What Personal Information is Being Collected"},
	{"1798.105", "Right to Delete Personal Information"},
	{"1798.110", "Right to Know What Personal Information is Sold or Disclosed"},
	{"1798.115", "Right to Opt-Out of Sale of Personal Information"},
	{"1798.120", "Right to Non-Discrimination"},
}

var (
	ccpaTerms        = []string{"ccpa", "cpra", "privacy"}
	sectionTextSel   = ".codeSection, .sectionText, #sectionText"
	caResultRowSel   = ".search-result, .code-section, table tr, .result-item"
	sectionInTitleRe = regexp.MustCompile(`(?i)(?:Section|§|§§)\s*(\d+[A-Z]?\.?\d*)`)
)

func extractSection(title string) string {
	if m := sectionInTitleRe.FindStringSubmatch(title); m != nil {
		return m[1]
	}
	return "Unknown"
}

// California tries the curated CCPA table, then the code search page, then a
// manual-search placeholder.
func (c *Client) California(ctx context.Context, keyword string) ([]legal.Document, error) {
	docs, _, err := fallback.Run(ctx, Source+"_ca",
		fallback.Step{Name: "curated", Run: func(ctx context.Context) ([]legal.Document, error) {
			return c.caCurated(ctx, keyword)
		}},
		fallback.Step{Name: "scrape", Run: func(ctx context.Context) ([]legal.Document, error) {
			return c.caScrape(ctx, keyword)
		}},
		fallback.Step{Name: "placeholder", Run: func(context.Context) ([]legal.Document, error) {
			return []legal.Document{c.caPlaceholder(keyword)}, nil
		}},
	)
	return docs, err
}

func (c *Client) caSectionURL(section string) string {
	v := url.Values{"lawCode": {"CIV"}, "sectionNum": {section}}
	return base(c.ca) + caSectionPath + "?" + v.Encode()
}

func (c *Client) caCurated(ctx context.Context, keyword string) ([]legal.Document, error) {
	lower := strings.ToLower(keyword)
	match := false
	for _, t := range ccpaTerms {
		if strings.Contains(lower, t) {
			match = true
			break
		}
	}
	if !match {
		return nil, nil
	}
	docs := make([]legal.Document, 0, len(CCPASections))
	for i, s := range CCPASections {
		if err := c.pause(ctx, i); err != nil {
			return nil, err
		}
		u := c.caSectionURL(s.Section)
		text, err := c.caSectionText(ctx, u, s.Section)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Printf("california section %s: %v", s.Section, err)
			text = caUnavailable
		}
		d := stateDocument("CA", s.Section, s.Title, text, u, CuratedTextCap, legal.ConfidenceCurated)
		d.Metadata["law_code"] = "CIV"
		docs = append(docs, d)
	}
	return docs, nil
}

func (c *Client) caSectionText(ctx context.Context, u, section string) (string, error) {
	resp, err := c.ca.Do(ctx, transport.Request{Method: http.MethodGet, Path: u, Header: http.Header{"Accept": {"text/html"}}})
	if err != nil {
		return "", err
	}
	doc, err := extract.Parse(resp.Text())
	if err != nil {
		return "", err
	}
	if text := extract.FirstText(doc, sectionTextSel); text != "" {
		return text, nil
	}
	// The innermost div mentioning the section number holds its text.
	if text := legal.CollapseSpace(doc.Find(fmt.Sprintf("div:contains(%q)", section)).Last().Text()); text != "" {
		return text, nil
	}
	return "Section text available at source URL", nil
}

func (c *Client) caScrape(ctx context.Context, keyword string) ([]legal.Document, error) {
	searchURL := base(c.ca) + caSearchPath
	resp, err := c.ca.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   searchURL,
		Query:  url.Values{"search": {keyword}},
		Header: http.Header{"Accept": {"text/html"}},
	})
	if err != nil {
		return nil, legal.FromTransport(Source, err)
	}
	doc, err := extract.Parse(resp.Text())
	if err != nil {
		return nil, &legal.Error{Kind: legal.KindExtraction, Source: Source, Msg: "could not parse California search page", Err: err}
	}
	lower := strings.ToLower(keyword)
	var docs []legal.Document
	doc.Find(caResultRowSel).Each(func(_ int, row *goquery.Selection) {
		title := legal.CollapseSpace(row.Find("h3, .title, a").First().Text())
		link, ok := row.Find("a").Attr("href")
		if title == "" || !ok || strings.TrimSpace(link) == "" || !strings.Contains(strings.ToLower(title), lower) {
			return
		}
		text := legal.CollapseSpace(row.Find(".text, .content, td").Text())
		if text == "" {
			text = "Content available at source"
		}
		section := extractSection(title)
		docs = append(docs, stateDocument("CA", section, title, text, legal.AbsoluteURL(searchURL, link), ScrapeTextCap, legal.ConfidenceKeywordCrawl))
	})
	return docs, nil
}

func (c *Client) caPlaceholder(keyword string) legal.Document {
	manual := base(c.ca) + caSearchPath
	return statePlaceholder("CA", "Search", fmt.Sprintf("California code search for %q", keyword), manual,
		"No results found. California Legislative Information uses dynamic content (JSF) which makes automated scraping difficult. Please visit "+manual+" and search manually.")
}
