// Package fedreg searches Federal Register documents (rules, proposed rules,
// notices) through the federalregister.gov v1 API.
package fedreg

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	DefaultBaseURL = "https://www.federalregister.gov/api/v1"
	Source         = "federal_register"

	// TextCap bounds ExtractedText per document.
	TextCap = 2000

	DefaultPerPage = 20
	MaxPerPage     = 1000
)

// Orders accepted by the "order" filter.
var Orders = []string{"relevance", "newest", "oldest"}

// Client queries the Federal Register. No credential is needed.
type Client struct {
	http *transport.Client
}

func New(opts ...transport.Option) *Client {
	base := []transport.Option{transport.WithName(Source)}
	return &Client{http: transport.New(DefaultBaseURL, append(base, opts...)...)}
}

type searchResponse struct {
	Count      int        `json:"count"`
	TotalPages int        `json:"total_pages"`
	Results    []document `json:"results"`
}

type document struct {
	DocumentNumber  string `json:"document_number"`
	Title           string `json:"title"`
	Abstract        string `json:"abstract"`
	HTMLURL         string `json:"html_url"`
	PDFURL          string `json:"pdf_url"`
	PublicationDate string `json:"publication_date"`
	Type            string `json:"type"`
	Excerpts        string `json:"excerpts"`
	Agencies        []struct {
		Name string `json:"name"`
	} `json:"agencies"`
}

// Search runs a term search. Filters: "per_page" (1..1000, default 20),
// "order" (relevance|newest|oldest), "date_from"/"date_to" (YYYY-MM-DD)
// bounding the publication date.
func (c *Client) Search(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	if q.Blank() {
		return []legal.Document{}, nil
	}
	params, err := searchParams(q)
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := c.http.GetJSON(ctx, "/documents.json", params, &resp); err != nil {
		return nil, legal.FromTransport(Source, err)
	}
	docs := make([]legal.Document, 0, len(resp.Results))
	for _, d := range resp.Results {
		if !legal.IsAbsoluteURL(d.HTMLURL) {
			continue
		}
		docs = append(docs, d.document())
	}
	return docs, nil
}

func searchParams(q legal.Query) (url.Values, error) {
	perPage := DefaultPerPage
	if raw := q.Get("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxPerPage {
			return nil, legal.Errorf(legal.KindUnsupported, Source, "per_page must be between 1 and %d, got %q", MaxPerPage, raw)
		}
		perPage = n
	}
	order := "relevance"
	if raw := strings.ToLower(q.Get("order")); raw != "" {
		valid := false
		for _, o := range Orders {
			valid = valid || o == raw
		}
		if !valid {
			return nil, legal.Errorf(legal.KindUnsupported, Source, "order must be one of %s, got %q", strings.Join(Orders, ", "), raw)
		}
		order = raw
	}
	params := url.Values{
		"conditions[term]": {q.Keyword},
		"per_page":         {strconv.Itoa(perPage)},
		"order":            {order},
	}
	for filter, param := range map[string]string{
		"date_from": "conditions[publication_date][gte]",
		"date_to":   "conditions[publication_date][lte]",
	} {
		raw := q.Get(filter)
		if raw == "" {
			continue
		}
		if legal.ParseDate(raw) == nil {
			return nil, legal.Errorf(legal.KindUnsupported, Source, "%s must be a date (YYYY-MM-DD), got %q", filter, raw)
		}
		params.Set(param, raw)
	}
	return params, nil
}

func (d document) document() legal.Document {
	agencies := make([]string, 0, len(d.Agencies))
	for _, a := range d.Agencies {
		if a.Name != "" {
			agencies = append(agencies, a.Name)
		}
	}
	text := legal.CollapseSpace(d.Abstract)
	if text == "" {
		text = legal.CollapseSpace(d.Excerpts)
	}
	return legal.Document{
		Identifier:      d.DocumentNumber,
		Title:           d.Title,
		SourceKind:      legal.KindNotice,
		Jurisdiction:    legal.JurisdictionUS,
		PublicationDate: legal.ParseDate(d.PublicationDate),
		SourceURL:       d.HTMLURL,
		ExtractedText:   legal.Truncate(text, TextCap),
		Confidence:      legal.ConfidenceSearchHit,
		Metadata: map[string]string{
			"type":     d.Type,
			"agencies": strings.Join(agencies, "; "),
			"pdf_url":  d.PDFURL,
		},
	}
}
