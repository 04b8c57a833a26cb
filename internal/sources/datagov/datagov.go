// Package datagov searches the Data.gov CKAN catalogue.
package datagov

import (
	"context"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	DefaultBaseURL = "https://catalog.data.gov/api/3"
	Source         = "data_gov"
	DatasetURL     = "https://catalog.data.gov/dataset/"

	// TextCap bounds ExtractedText per dataset.
	TextCap = 2000
)

type Client struct {
	http *transport.Client
}

func New(opts ...transport.Option) *Client {
	base := []transport.Option{transport.WithName(Source)}
	return &Client{http: transport.New(DefaultBaseURL, append(base, opts...)...)}
}

type searchResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Count   int       `json:"count"`
		Results []dataset `json:"results"`
	} `json:"result"`
}

type dataset struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Title            string `json:"title"`
	Notes            string `json:"notes"`
	MetadataModified string `json:"metadata_modified"`
	Organization     *struct {
		Title string `json:"title"`
	} `json:"organization"`
	Resources []struct {
		Format string `json:"format"`
	} `json:"resources"`
	Tags []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

// Search runs a CKAN package_search.
func (c *Client) Search(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	if q.Blank() {
		return []legal.Document{}, nil
	}
	var resp searchResponse
	if err := c.http.GetJSON(ctx, "/action/package_search", url.Values{
		"q":    {q.Keyword},
		"rows": {"10"},
	}, &resp); err != nil {
		return nil, legal.FromTransport(Source, err)
	}
	if !resp.Success {
		return nil, legal.Errorf(legal.KindUpstream, Source, "package_search reported failure")
	}
	docs := make([]legal.Document, 0, len(resp.Result.Results))
	for _, d := range resp.Result.Results {
		slug := d.Name
		if slug == "" {
			slug = d.ID
		}
		var tags, formats []string
		for _, t := range d.Tags {
			tags = append(tags, t.Name)
		}
		seen := map[string]bool{}
		for _, r := range d.Resources {
			f := strings.ToUpper(strings.TrimSpace(r.Format))
			if f != "" && !seen[f] {
				seen[f] = true
				formats = append(formats, f)
			}
		}
		org := ""
		if d.Organization != nil {
			org = d.Organization.Title
		}
		docs = append(docs, legal.Document{
			Identifier:      d.ID,
			Title:           d.Title,
			SourceKind:      legal.KindDataset,
			Jurisdiction:    legal.JurisdictionUS,
			PublicationDate: legal.ParseDate(trimFraction(d.MetadataModified)),
			SourceURL:       DatasetURL + url.PathEscape(slug),
			ExtractedText:   legal.Truncate(legal.CollapseSpace(d.Notes), TextCap),
			Confidence:      legal.ConfidenceSearchHit,
			Metadata: map[string]string{
				"organization": org,
				"tags":         strings.Join(tags, ","),
				"formats":      strings.Join(formats, ","),
			},
		})
	}
	return docs, nil
}

// trimFraction drops CKAN's microsecond suffix ("2024-01-02T03:04:05.123456").
func trimFraction(ts string) string {
	if i := strings.IndexByte(ts, '.'); i > 0 {
		return ts[:i]
	}
	return ts
}
