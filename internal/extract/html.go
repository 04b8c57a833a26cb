// Package extract turns fetched HTML and PDF bodies into plain text.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
)

// Clutter is the default set of non-content nodes stripped before reading text.
var Clutter = []string{"script", "style", "noscript", "nav", "footer", "header"}

// Parse builds a goquery document from raw HTML.
func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Strip removes every node matching the selectors from doc.
func Strip(doc *goquery.Document, selectors ...string) {
	if len(selectors) == 0 {
		return
	}
	doc.Find(strings.Join(selectors, ", ")).Remove()
}

// BodyText strips the given selectors and returns the body text with
// whitespace collapsed.
func BodyText(html string, strip ...string) (string, error) {
	doc, err := Parse(html)
	if err != nil {
		return "", err
	}
	Strip(doc, strip...)
	body := doc.Find("body")
	if body.Length() == 0 {
		return legal.CollapseSpace(doc.Text()), nil
	}
	return legal.CollapseSpace(body.Text()), nil
}

// FirstText returns the collapsed text of the first selector that yields any.
func FirstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := legal.CollapseSpace(doc.Find(sel).Text()); text != "" {
			return text
		}
	}
	return ""
}

// Readable runs readability over html and returns the article title and text.
func Readable(html, pageURL string) (string, string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return "", "", fmt.Errorf("readability: %w", err)
	}
	return strings.TrimSpace(article.Title), legal.CollapseSpace(article.TextContent), nil
}

// Link is an anchor found in a page.
type Link struct {
	Text string
	Href string
}

// Links returns anchors under scope (the whole document when empty) with
// hrefs resolved against base.
func Links(doc *goquery.Document, scope, base string) []Link {
	root := doc.Selection
	if scope != "" {
		if s := doc.Find(scope).First(); s.Length() > 0 {
			root = s
		}
	}
	var out []Link
	root.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || href == "#" || strings.HasPrefix(href, "javascript:") {
			return
		}
		out = append(out, Link{Text: legal.CollapseSpace(a.Text()), Href: legal.AbsoluteURL(base, href)})
	})
	return out
}
