package eurlex

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mohammad-safakhou/legalmcp/internal/extract"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
)

const maxSearchLinks = 10

var (
	resultSelectors    = []string{"h2 a.title", ".SearchResult .title a", "a.title"}
	paragraphSelectors = []string{"p.oj-normal", "div.tabContent p", "#document-content p", ".text p", "#text p"}

	celexInURL  = regexp.MustCompile(`(?i)CELEX(?::|%3A)(\d{5}[A-Z]\d{4})`)
	celexNumber = regexp.MustCompile(`^\d{5}[A-Z]\d{4}$`)
	dateDMY     = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	dateISO     = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// blockedTitles mark CloudFront and WAF error pages served instead of content.
var blockedTitles = []string{"ERROR: The request could not be satisfied", "403 Forbidden"}

// Result is a search result link.
type Result struct {
	URL   string
	Title string
}

// ParseSearchResults extracts result links from a quick-search page. The
// first selector that matches anything is used exclusively. Summary and
// auto-generated links are skipped and duplicates removed.
func ParseSearchResults(html, base string) []Result {
	doc, err := extract.Parse(html)
	if err != nil {
		return nil
	}
	var out []Result
	seen := map[string]bool{}
	for _, sel := range resultSelectors {
		matches := doc.Find(sel)
		if matches.Length() == 0 {
			continue
		}
		matches.EachWithBreak(func(i int, a *goquery.Selection) bool {
			if i >= maxSearchLinks {
				return false
			}
			href, ok := a.Attr("href")
			if !ok || strings.TrimSpace(href) == "" {
				return true
			}
			u := legal.AbsoluteURL(base, href)
			if strings.Contains(u, "summ=") || strings.Contains(u, "AUTO_") || seen[u] {
				return true
			}
			seen[u] = true
			title := legal.CollapseSpace(a.Text())
			if title == "" {
				title = "EU Regulation"
			}
			out = append(out, Result{URL: u, Title: title})
			return true
		})
		break
	}
	return out
}

// detail is what a regulation page yields.
type detail struct {
	Title string
	CELEX string
	Date  string
	Text  string
}

func blocked(title string) bool {
	for _, b := range blockedTitles {
		if strings.Contains(title, b) {
			return true
		}
	}
	return false
}

// parseDetail reads a regulation page. pageTitle is the browser-reported
// title, which may be empty for static fetches.
func parseDetail(html, pageURL, pageTitle string) detail {
	d := detail{CELEX: "Unknown", Date: "Unknown"}
	doc, err := extract.Parse(html)
	if err != nil {
		d.Title = firstNonEmpty(pageTitle, "EU Regulation")
		d.Text = notAvailable
		return d
	}

	d.Title = firstNonEmpty(
		legal.CollapseSpace(doc.Find("title").First().Text()),
		pageTitle,
		legal.CollapseSpace(doc.Find("h1").First().Text()),
		"EU Regulation",
	)

	if m := celexInURL.FindStringSubmatch(pageURL); m != nil {
		d.CELEX = strings.ToUpper(m[1])
	} else if v, ok := doc.Find(`meta[property="eli:id_local"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		d.CELEX = strings.TrimSpace(v)
	}

	if v, ok := doc.Find(`meta[property="eli:date_document"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		d.Date = strings.TrimSpace(v)
	} else {
		dateText := doc.Find(`.date, .publication-date, [class*="date"]`).First().Text()
		if m := dateDMY.FindString(dateText); m != "" {
			d.Date = m
		} else if m := dateISO.FindString(dateText); m != "" {
			d.Date = m
		}
	}

	var paras []string
	for _, sel := range paragraphSelectors {
		doc.Find(sel).Each(func(_ int, p *goquery.Selection) {
			text := legal.CollapseSpace(p.Text())
			if len(text) > 20 && !strings.Contains(strings.ToLower(text), "cookie") {
				paras = append(paras, text)
			}
		})
		if len(paras) > 0 {
			break
		}
	}
	d.Text = strings.Join(paras, "\n\n")
	if d.Text == "" {
		if _, text, err := extract.Readable(html, pageURL); err == nil {
			d.Text = text
		}
	}
	if d.Text == "" {
		d.Text = notAvailable
	}
	d.Text = legal.Truncate(d.Text, TextCap)
	return d
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
