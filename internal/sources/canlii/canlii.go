// Package canlii lists Canadian decisions from the CanLII API. The free tier
// only exposes case browsing, so the keyword filters titles client-side.
package canlii

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	DefaultBaseURL  = "https://api.canlii.org/v1"
	Source          = "canlii"
	SiteURL         = "https://www.canlii.org"
	DefaultDatabase = "csc-scc"

	// TextCap bounds ExtractedText per case.
	TextCap = 500
)

type Client struct {
	http *transport.Client
}

func New(apiKey string, opts ...transport.Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &legal.Error{Kind: legal.KindConfig, Source: Source, Msg: "CanLII API key is required", Remedy: "Set CANLII_API_KEY (request one at https://www.canlii.org/en/feedback/feedback.html)"}
	}
	base := []transport.Option{
		transport.WithName(Source),
		transport.WithQueryParam("api_key", apiKey),
	}
	return &Client{http: transport.New(DefaultBaseURL, append(base, opts...)...)}, nil
}

type browseResponse struct {
	Cases []struct {
		DatabaseID string `json:"databaseId"`
		CaseID     struct {
			En string `json:"en"`
		} `json:"caseId"`
		Title        string `json:"title"`
		Citation     string `json:"citation"`
		DecisionDate string `json:"decisionDate"`
	} `json:"cases"`
}

// Search browses a court database (filter "database", default csc-scc) and
// keeps cases whose title or citation mentions the keyword.
func (c *Client) Search(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	if q.Blank() {
		return []legal.Document{}, nil
	}
	db := q.Get("database")
	if db == "" {
		db = DefaultDatabase
	}
	var resp browseResponse
	err := c.http.GetJSON(ctx, "/caseBrowse/en/"+url.PathEscape(db)+"/", url.Values{
		"offset":      {"0"},
		"resultCount": {"10"},
	}, &resp)
	if err != nil {
		lerr := legal.FromTransport(Source, err)
		if legal.KindOf(lerr) == legal.KindUnauthorized {
			return nil, legal.FromStatus(Source, 401, err).WithRemedy("Invalid CanLII API key; check CANLII_API_KEY")
		}
		return nil, lerr
	}

	kw := strings.ToLower(strings.TrimSpace(q.Keyword))
	docs := []legal.Document{}
	for _, cs := range resp.Cases {
		if !strings.Contains(strings.ToLower(cs.Title), kw) && !strings.Contains(strings.ToLower(cs.Citation), kw) {
			continue
		}
		dbID := cs.DatabaseID
		if dbID == "" {
			dbID = db
		}
		docs = append(docs, legal.Document{
			Identifier:      dbID + "/" + cs.CaseID.En,
			Title:           cs.Title,
			SourceKind:      legal.KindCaseLaw,
			Jurisdiction:    legal.JurisdictionCanada,
			PublicationDate: legal.ParseDate(cs.DecisionDate),
			SourceURL:       fmt.Sprintf("%s/en/%s/doc/%s/doc.html", SiteURL, url.PathEscape(dbID), url.PathEscape(cs.CaseID.En)),
			ExtractedText:   legal.Truncate(strings.TrimSpace(cs.Title+" "+cs.Citation), TextCap),
			Confidence:      legal.ConfidenceListing,
			Metadata: map[string]string{
				"database": dbID,
				"citation": cs.Citation,
				"court":    db,
			},
		})
	}
	return docs, nil
}
