// Package courtlistener searches US case law through the CourtListener v4 REST API.
package courtlistener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	DefaultBaseURL = "https://www.courtlistener.com/api/rest/v4"
	Source         = "courtlistener"
	SiteURL        = "https://www.courtlistener.com"

	// TextCap bounds the opinion snippet kept per case.
	TextCap = 500

	pageSize   = 10
	keyRemedy  = "Get a free API key at https://www.courtlistener.com/api/ and set COURTLISTENER_API_KEY"
	noSummary  = "No summary available"
	noCitation = "No citation available"
)

// Client queries CourtListener's search endpoint.
type Client struct {
	http *transport.Client
}

// New returns a client authenticated with apiKey.
func New(apiKey string, opts ...transport.Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &legal.Error{Kind: legal.KindConfig, Source: Source, Msg: "CourtListener API key is required", Remedy: keyRemedy}
	}
	base := []transport.Option{
		transport.WithName(Source),
		transport.WithHeader("Authorization", "Token "+apiKey),
	}
	return &Client{http: transport.New(DefaultBaseURL, append(base, opts...)...)}, nil
}

type searchResponse struct {
	Count   int          `json:"count"`
	Results []caseResult `json:"results"`
}

type caseResult struct {
	ClusterID         int64           `json:"cluster_id"`
	ID                int64           `json:"id"`
	CaseName          string          `json:"caseName"`
	CaseNameAlt       string          `json:"case_name"`
	Court             string          `json:"court"`
	CourtID           string          `json:"court_id"`
	DateFiled         string          `json:"dateFiled"`
	DateFiledAlt      string          `json:"date_filed"`
	Citation          json.RawMessage `json:"citation"`
	CiteCount         int             `json:"citeCount"`
	CitationCount     int             `json:"citation_count"`
	Snippet           string          `json:"snippet"`
	AbsoluteURL       string          `json:"absolute_url"`
	Status            string          `json:"status"`
	PrecedentialState string          `json:"precedential_status"`
	DocketNumber      string          `json:"docketNumber"`
	Opinions          []struct {
		Snippet string `json:"snippet"`
	} `json:"opinions"`
}

// Search runs a full-text case search, newest first. Filter "court" limits
// results to one court identifier (e.g. "scotus").
func (c *Client) Search(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	if q.Blank() {
		return []legal.Document{}, nil
	}
	params := url.Values{
		"q":         {q.Keyword},
		"ordering":  {"-date_filed"},
		"page_size": {strconv.Itoa(pageSize)},
	}
	if court := q.Get("court"); court != "" {
		params.Set("court", court)
	}
	var resp searchResponse
	if err := c.http.GetJSON(ctx, "/search/", params, &resp); err != nil {
		return nil, translate(err)
	}

	docs := make([]legal.Document, 0, len(resp.Results))
	for _, r := range resp.Results {
		docs = append(docs, r.document())
	}
	return docs, nil
}

func translate(err error) error {
	lerr := legal.FromTransport(Source, err)
	switch legal.KindOf(lerr) {
	case legal.KindUnauthorized:
		return legal.FromStatus(Source, 401, err).WithRemedy("Verify COURTLISTENER_API_KEY. " + keyRemedy)
	case legal.KindRateLimited:
		return legal.FromStatus(Source, 429, err).WithRemedy("Wait before making another CourtListener request")
	}
	return lerr
}

func (r caseResult) document() legal.Document {
	id := r.ClusterID
	if id == 0 {
		id = r.ID
	}
	title := firstNonEmpty(r.CaseName, r.CaseNameAlt, "Unknown Case")
	summary := ""
	if len(r.Opinions) > 0 {
		summary = r.Opinions[0].Snippet
	}
	summary = firstNonEmpty(legal.CollapseSpace(summary), legal.CollapseSpace(r.Snippet), noSummary)

	return legal.Document{
		Identifier:      strconv.FormatInt(id, 10),
		Title:           title,
		SourceKind:      legal.KindCaseLaw,
		Jurisdiction:    legal.JurisdictionUS,
		PublicationDate: legal.ParseDate(firstNonEmpty(r.DateFiled, r.DateFiledAlt)),
		SourceURL:       legal.AbsoluteURL(SiteURL, r.AbsoluteURL),
		ExtractedText:   legal.Truncate(summary, TextCap),
		Confidence:      legal.ConfidenceSearchHit,
		Metadata: map[string]string{
			"court":               firstNonEmpty(r.Court, r.CourtID, "Unknown Court"),
			"citation":            formatCitation(r),
			"precedential_status": firstNonEmpty(r.Status, r.PrecedentialState, "Unknown"),
			"docket_number":       r.DocketNumber,
		},
	}
}

// formatCitation accepts the v4 array form, the legacy string form, or falls
// back to the citation count.
func formatCitation(r caseResult) string {
	if len(r.Citation) > 0 {
		var list []string
		if err := json.Unmarshal(r.Citation, &list); err == nil && len(list) > 0 {
			return strings.Join(list, ", ")
		}
		var single string
		if err := json.Unmarshal(r.Citation, &single); err == nil && single != "" {
			return single
		}
	}
	switch {
	case r.CiteCount > 0:
		return fmt.Sprintf("%d citations", r.CiteCount)
	case r.CitationCount > 0:
		return fmt.Sprintf("%d citations", r.CitationCount)
	}
	return noCitation
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
