// Package govinfo searches the US Code and the Code of Federal Regulations
// through the GovInfo API. The upstream search index does not reliably scope
// results to USCODE, so US Code searches fall back to a keyword-selected crawl
// of individual titles.
package govinfo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/mohammad-safakhou/legalmcp/internal/extract"
	"github.com/mohammad-safakhou/legalmcp/internal/fallback"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	DefaultBaseURL = "https://api.govinfo.gov"
	DefaultEdition = "2021"
	Source         = "govinfo"

	// TextCap bounds ExtractedText for US Code and CFR documents.
	TextCap = 5000

	maxResults      = 20
	maxTitles       = 5
	granulePageSize = 100
	keepFetching    = 5
	notAvailable    = "Text content not available"
	collectionUSC   = "USCODE"
	collectionCFR   = "CFR"
	publicDetails   = "https://www.govinfo.gov/app/details/"
	uscodeBrowseURL = "https://www.govinfo.gov/app/collection/uscode"
)

// stripSelectors removes editorial apparatus from granule HTML.
var stripSelectors = []string{"script", "style", "noscript", ".analysis", ".note-head", ".miscellaneous-note"}

var (
	titleNumRe = regexp.MustCompile(`title(\d+)`)
	partNumRe  = regexp.MustCompile(`part(\d+)`)
	nonDigitRe = regexp.MustCompile(`[^0-9]`)
)

var errCollectionMismatch = errors.New("search returned results from other collections only")

// Client talks to the GovInfo API.
type Client struct {
	http    *transport.Client
	edition string
	logger  *log.Logger
}

// New returns a GovInfo client. The API key is mandatory.
func New(apiKey, edition string, opts ...transport.Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &legal.Error{Kind: legal.KindConfig, Source: Source, Msg: "GovInfo API key is required", Remedy: "Set GOVINFO_API_KEY (free key at https://api.data.gov/signup/)"}
	}
	if edition == "" {
		edition = DefaultEdition
	}
	base := []transport.Option{
		transport.WithName(Source),
		transport.WithQueryParam("api_key", apiKey),
	}
	return &Client{
		http:    transport.New(DefaultBaseURL, append(base, opts...)...),
		edition: edition,
		logger:  log.New(log.Writer(), "[GOVINFO] ", log.LstdFlags),
	}, nil
}

type searchRequest struct {
	Collection string `json:"collection"`
	Query      string `json:"q"`
	PageSize   int    `json:"pageSize"`
	OffsetMark string `json:"offsetMark"`
}

type searchResponse struct {
	Count   int            `json:"count"`
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title          string `json:"title"`
	PackageID      string `json:"packageId"`
	GranuleID      string `json:"granuleId"`
	CollectionCode string `json:"collectionCode"`
	ResultLink     string `json:"resultLink"`
	LastModified   string `json:"lastModified"`
	DateIssued     string `json:"dateIssued"`
}

type packageSummary struct {
	Title        string `json:"title"`
	DetailsLink  string `json:"detailsLink"`
	LastModified string `json:"lastModified"`
	DateIssued   string `json:"dateIssued"`
}

type granuleSummary struct {
	Title        string `json:"title"`
	DetailsLink  string `json:"detailsLink"`
	LastModified string `json:"lastModified"`
	DateIssued   string `json:"dateIssued"`
	Text         string `json:"text"`
	Summary      string `json:"summary"`
	Description  string `json:"description"`
}

func (g granuleSummary) fallbackText() string {
	switch {
	case strings.TrimSpace(g.Text) != "":
		return g.Text
	case strings.TrimSpace(g.Summary) != "":
		return g.Summary
	case strings.TrimSpace(g.Description) != "":
		return g.Description
	}
	return notAvailable
}

type granuleList struct {
	Granules []struct {
		Title     string `json:"title"`
		GranuleID string `json:"granuleId"`
	} `json:"granules"`
}

// SearchUSCode searches the US Code. Filter "title" restricts to one title.
func (c *Client) SearchUSCode(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	if q.Blank() {
		return []legal.Document{}, nil
	}
	title := titleNumber(q.Get("title"))
	docs, out, err := fallback.Run(ctx, Source,
		fallback.Step{Name: "search", Run: func(ctx context.Context) ([]legal.Document, error) {
			return c.searchUSCodeIndex(ctx, q.Keyword, title)
		}},
		fallback.Step{Name: "keyword_crawl", Run: func(ctx context.Context) ([]legal.Document, error) {
			return c.crawlUSCode(ctx, q.Keyword, title)
		}},
	)
	if err != nil {
		return nil, legal.FromTransport(Source, err)
	}
	if out.Served != "" {
		c.logger.Printf("us code %q served by %s (%d documents)", q.Keyword, out.Served, len(docs))
	}
	return docs, nil
}

func titleNumber(raw string) string { return nonDigitRe.ReplaceAllString(raw, "") }

func scopedQuery(keyword, title string) string {
	if title == "" {
		return keyword
	}
	return fmt.Sprintf("%s title:%s", keyword, title)
}

func (c *Client) search(ctx context.Context, collection, query string) (searchResponse, error) {
	var resp searchResponse
	err := c.http.PostJSON(ctx, "/search", nil, searchRequest{
		Collection: collection,
		Query:      query,
		PageSize:   maxResults,
		OffsetMark: "*",
	}, &resp)
	return resp, err
}

func (c *Client) searchUSCodeIndex(ctx context.Context, keyword, title string) ([]legal.Document, error) {
	resp, err := c.search(ctx, collectionUSC, scopedQuery(keyword, title))
	if err != nil {
		lerr := legal.FromTransport(Source, err)
		if legal.KindOf(lerr) == legal.KindUnauthorized {
			return nil, legal.FromStatus(Source, 401, err).WithRemedy("Invalid GovInfo API key; check GOVINFO_API_KEY")
		}
		return nil, lerr
	}
	var hits []searchResult
	for _, r := range resp.Results {
		if r.CollectionCode == collectionUSC {
			hits = append(hits, r)
		}
	}
	if len(resp.Results) > 0 && len(hits) == 0 {
		return nil, errCollectionMismatch
	}

	docs := make([]legal.Document, 0, len(hits))
	for _, r := range hits {
		if r.PackageID == "" || r.GranuleID == "" {
			continue
		}
		gs, err := c.granuleSummary(ctx, r.PackageID, r.GranuleID)
		if err != nil {
			continue
		}
		titleName := "Unknown Title"
		if m := titleNumRe.FindStringSubmatch(r.PackageID); m != nil {
			titleName = "Title " + m[1]
		}
		if ps, err := c.packageSummary(ctx, r.PackageID); err == nil && ps.Title != "" {
			titleName = ps.Title
		}
		text := c.granuleText(ctx, r.PackageID, r.GranuleID, gs)
		doc := c.usCodeDocument(r.PackageID, r.GranuleID, titleName, gs, text, legal.ConfidenceSearchHit)
		if doc.SourceURL == "" {
			doc.SourceURL = absoluteOr(r.ResultLink, publicDetails+r.PackageID+"/"+r.GranuleID)
		}
		if doc.PublicationDate == nil {
			doc.PublicationDate = legal.ParseDate(r.LastModified)
		}
		docs = append(docs, doc)
		if len(docs) >= maxResults {
			break
		}
	}
	return docs, nil
}

func (c *Client) crawlUSCode(ctx context.Context, keyword, title string) ([]legal.Document, error) {
	if title != "" {
		return c.searchTitle(ctx, keyword, title)
	}
	titles := relevantTitles(keyword)
	if len(titles) == 0 {
		return []legal.Document{legal.Placeholder(legal.KindStatute, legal.JurisdictionUS,
			fmt.Sprintf("No relevant US Code titles for %q", keyword),
			uscodeBrowseURL,
			"No relevant US Code titles found for the query. The search query does not match any known US Code title keywords or content areas. Browse the collection manually.",
		)}, nil
	}
	if len(titles) > maxTitles {
		titles = titles[:maxTitles]
	}
	var docs []legal.Document
	for _, t := range titles {
		found, err := c.searchTitle(ctx, keyword, t.Num)
		if err != nil {
			if legal.IsTerminal(err) {
				return nil, err
			}
			c.logger.Printf("title %s skipped: %v", t.Num, err)
			continue
		}
		docs = append(docs, found...)
		if len(docs) >= maxResults {
			docs = docs[:maxResults]
			break
		}
	}
	return docs, nil
}

func (c *Client) searchTitle(ctx context.Context, keyword, num string) ([]legal.Document, error) {
	packageID := fmt.Sprintf("USCODE-%s-title%s", c.edition, num)
	ps, err := c.packageSummary(ctx, packageID)
	if err != nil {
		lerr := legal.FromTransport(Source, err)
		if legal.KindOf(lerr) == legal.KindNotFound {
			return nil, &legal.Error{Kind: legal.KindNotFound, Source: Source, Msg: fmt.Sprintf("Title %s not found in US Code", num), Err: err}
		}
		return nil, lerr
	}
	var list granuleList
	if err := c.http.GetJSON(ctx, "/packages/"+url.PathEscape(packageID)+"/granules", url.Values{
		"offsetMark": {"*"},
		"pageSize":   {fmt.Sprint(granulePageSize)},
	}, &list); err != nil {
		return nil, legal.FromTransport(Source, err)
	}

	kw := strings.ToLower(keyword)
	type ref struct{ title, id string }
	var candidates, all []ref
	for _, g := range list.Granules {
		name := g.Title
		if name == "" {
			name = g.GranuleID
		}
		r := ref{name, g.GranuleID}
		all = append(all, r)
		if strings.Contains(strings.ToLower(name), kw) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		candidates = all
	}
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	titleName := ps.Title
	if titleName == "" {
		titleName = "Unknown"
	}
	var docs []legal.Document
	for _, g := range candidates {
		gs, err := c.granuleSummary(ctx, packageID, g.id)
		if err != nil {
			continue
		}
		section := gs.Title
		if section == "" {
			section = g.id
		}
		titleHit := strings.Contains(strings.ToLower(section), kw)
		if !titleHit && len(docs) >= keepFetching {
			continue
		}
		text := c.granuleText(ctx, packageID, g.id, gs)
		if !titleHit && !strings.Contains(strings.ToLower(text), kw) {
			continue
		}
		gs.Title = section
		doc := c.usCodeDocument(packageID, g.id, titleName, gs, text, legal.ConfidenceKeywordCrawl)
		if doc.SourceURL == "" {
			doc.SourceURL = absoluteOr(ps.DetailsLink, publicDetails+packageID+"/"+g.id)
		}
		if doc.PublicationDate == nil {
			doc.PublicationDate = legal.ParseDate(ps.LastModified)
		}
		docs = append(docs, doc)
		if len(docs) >= maxResults {
			break
		}
	}
	return docs, nil
}

func (c *Client) usCodeDocument(packageID, granuleID, titleName string, gs granuleSummary, text string, confidence float64) legal.Document {
	section := gs.Title
	if section == "" {
		section = granuleID
	}
	src := ""
	if legal.IsAbsoluteURL(gs.DetailsLink) {
		src = gs.DetailsLink
	}
	return legal.Document{
		Identifier:      granuleID,
		Title:           section,
		SourceKind:      legal.KindStatute,
		Jurisdiction:    legal.JurisdictionUS,
		PublicationDate: legal.ParseDate(firstNonEmpty(gs.LastModified, gs.DateIssued)),
		SourceURL:       src,
		ExtractedText:   legal.Truncate(text, TextCap),
		Confidence:      confidence,
		Metadata: map[string]string{
			"collection": collectionUSC,
			"title":      titleName,
			"section":    section,
			"package_id": packageID,
		},
	}
}

func (c *Client) packageSummary(ctx context.Context, packageID string) (packageSummary, error) {
	var ps packageSummary
	err := c.http.GetJSON(ctx, "/packages/"+url.PathEscape(packageID)+"/summary", nil, &ps)
	return ps, err
}

func (c *Client) granuleSummary(ctx context.Context, packageID, granuleID string) (granuleSummary, error) {
	var gs granuleSummary
	err := c.http.GetJSON(ctx, "/packages/"+url.PathEscape(packageID)+"/granules/"+url.PathEscape(granuleID)+"/summary", nil, &gs)
	return gs, err
}

// granuleText renders the granule's HTML rendition to text, falling back to
// the summary fields.
func (c *Client) granuleText(ctx context.Context, packageID, granuleID string, gs granuleSummary) string {
	resp, err := c.http.Get(ctx, "/packages/"+url.PathEscape(packageID)+"/granules/"+url.PathEscape(granuleID)+"/htm", nil)
	if err != nil {
		return legal.Truncate(gs.fallbackText(), TextCap)
	}
	text, err := extract.BodyText(resp.Text(), stripSelectors...)
	if err != nil {
		return legal.Truncate(gs.fallbackText(), TextCap)
	}
	if text == "" {
		return notAvailable
	}
	return legal.Truncate(text, TextCap)
}

// SearchCFR searches the Code of Federal Regulations. Filter "title"
// restricts to one CFR title.
func (c *Client) SearchCFR(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	if q.Blank() {
		return []legal.Document{}, nil
	}
	resp, err := c.search(ctx, collectionCFR, scopedQuery(q.Keyword, titleNumber(q.Get("title"))))
	if err != nil {
		lerr := legal.FromTransport(Source, err)
		if legal.KindOf(lerr) == legal.KindUnauthorized {
			return nil, legal.FromStatus(Source, 401, err).WithRemedy("Invalid GovInfo API key; check GOVINFO_API_KEY")
		}
		var le *legal.Error
		if errors.As(lerr, &le) {
			cp := *le
			cp.Msg = "failed to search CFR: " + le.Msg
			return nil, &cp
		}
		return nil, lerr
	}

	docs := []legal.Document{}
	for _, r := range resp.Results {
		if r.CollectionCode != collectionCFR || r.PackageID == "" || r.GranuleID == "" {
			continue
		}
		gs, err := c.granuleSummary(ctx, r.PackageID, r.GranuleID)
		if err != nil {
			continue
		}
		part := ""
		if m := partNumRe.FindStringSubmatch(r.PackageID); m != nil {
			part = m[1]
		}
		titleName := "Unknown"
		if ps, err := c.packageSummary(ctx, r.PackageID); err == nil && ps.Title != "" {
			titleName = ps.Title
		}
		section := firstNonEmpty(gs.Title, r.GranuleID)
		docs = append(docs, legal.Document{
			Identifier:      r.GranuleID,
			Title:           section,
			SourceKind:      legal.KindRegulation,
			Jurisdiction:    legal.JurisdictionUS,
			PublicationDate: legal.ParseDate(firstNonEmpty(gs.LastModified, r.LastModified)),
			SourceURL:       absoluteOr(gs.DetailsLink, absoluteOr(r.ResultLink, publicDetails+r.PackageID+"/"+r.GranuleID)),
			ExtractedText:   legal.Truncate(gs.fallbackText(), TextCap),
			Confidence:      legal.ConfidenceSearchHit,
			Metadata: map[string]string{
				"collection": collectionCFR,
				"title":      titleName,
				"part":       part,
				"section":    section,
				"package_id": r.PackageID,
			},
		})
		if len(docs) >= maxResults {
			break
		}
	}
	return docs, nil
}

func absoluteOr(candidate, fallback string) string {
	if legal.IsAbsoluteURL(candidate) {
		return candidate
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
