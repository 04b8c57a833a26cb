// Package congress lists bills from the Congress.gov v3 API. The API has no
// full-text search, so the keyword filters bill titles client-side.
package congress

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	DefaultBaseURL = "https://api.congress.gov/v3"
	Source         = "congress"
	SiteURL        = "https://www.congress.gov"

	// TextCap bounds ExtractedText per bill.
	TextCap = 1000

	listLimit = 20
)

var billTypePaths = map[string]string{
	"HR":      "house-bill",
	"S":       "senate-bill",
	"HRES":    "house-resolution",
	"SRES":    "senate-resolution",
	"HJRES":   "house-joint-resolution",
	"SJRES":   "senate-joint-resolution",
	"HCONRES": "house-concurrent-resolution",
	"SCONRES": "senate-concurrent-resolution",
}

// Client queries Congress.gov.
type Client struct {
	http *transport.Client
}

// New returns a client using apiKey as the api_key query parameter.
func New(apiKey string, opts ...transport.Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &legal.Error{Kind: legal.KindConfig, Source: Source, Msg: "Congress.gov API key is required", Remedy: "Set CONGRESS_GOV_API_KEY (free key at https://api.congress.gov/sign-up/)"}
	}
	base := []transport.Option{
		transport.WithName(Source),
		transport.WithQueryParam("api_key", apiKey),
	}
	return &Client{http: transport.New(DefaultBaseURL, append(base, opts...)...)}, nil
}

type billList struct {
	Bills []bill `json:"bills"`
}

type bill struct {
	Congress          int    `json:"congress"`
	Number            string `json:"number"`
	OriginChamber     string `json:"originChamber"`
	OriginChamberCode string `json:"originChamberCode"`
	Title             string `json:"title"`
	Type              string `json:"type"`
	UpdateDate        string `json:"updateDate"`
	URL               string `json:"url"`
	LatestAction      *struct {
		ActionDate string `json:"actionDate"`
		Text       string `json:"text"`
	} `json:"latestAction"`
}

// Search lists recent bills, optionally for one Congress (filter "congress"),
// and keeps those whose title mentions any keyword term.
func (c *Client) Search(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	if q.Blank() {
		return []legal.Document{}, nil
	}
	path := "/bill"
	if n := q.Get("congress"); n != "" {
		if _, err := strconv.Atoi(n); err != nil {
			return nil, legal.Errorf(legal.KindUnsupported, Source, "congress must be a number, got %q", n)
		}
		path += "/" + n
	}
	var list billList
	err := c.http.GetJSON(ctx, path, url.Values{
		"format": {"json"},
		"limit":  {strconv.Itoa(listLimit)},
	}, &list)
	if err != nil {
		lerr := legal.FromTransport(Source, err)
		if legal.KindOf(lerr) == legal.KindUnauthorized {
			return nil, legal.FromStatus(Source, 401, err).WithRemedy("Invalid Congress.gov API key; check CONGRESS_GOV_API_KEY")
		}
		return nil, lerr
	}

	terms := strings.Fields(strings.ToLower(q.Keyword))
	docs := []legal.Document{}
	for _, b := range list.Bills {
		if !mentionsAny(b.Title, terms) {
			continue
		}
		docs = append(docs, b.document())
	}
	return docs, nil
}

func mentionsAny(title string, terms []string) bool {
	t := strings.ToLower(title)
	for _, term := range terms {
		if strings.Contains(t, term) {
			return true
		}
	}
	return false
}

func (b bill) document() legal.Document {
	id := fmt.Sprintf("%d-%s-%s", b.Congress, strings.ToLower(b.Type), b.Number)
	text := b.Title
	meta := map[string]string{
		"congress":       strconv.Itoa(b.Congress),
		"type":           b.Type,
		"number":         b.Number,
		"origin_chamber": b.OriginChamber,
		"api_url":        b.URL,
	}
	date := b.UpdateDate
	if b.LatestAction != nil {
		text += ". Latest action (" + b.LatestAction.ActionDate + "): " + b.LatestAction.Text
		meta["latest_action"] = b.LatestAction.Text
		date = firstNonEmpty(b.LatestAction.ActionDate, date)
	}
	return legal.Document{
		Identifier:      id,
		Title:           b.Title,
		SourceKind:      legal.KindBill,
		Jurisdiction:    legal.JurisdictionUS,
		PublicationDate: legal.ParseDate(date),
		SourceURL:       PublicURL(b.Congress, b.Type, b.Number),
		ExtractedText:   legal.Truncate(legal.CollapseSpace(text), TextCap),
		Confidence:      legal.ConfidenceListing,
		Metadata:        meta,
	}
}

// PublicURL builds the congress.gov page for a bill, e.g.
// https://www.congress.gov/bill/118th-congress/house-bill/1234.
func PublicURL(congress int, billType, number string) string {
	kind, ok := billTypePaths[strings.ToUpper(billType)]
	if !ok || congress <= 0 || number == "" {
		return SiteURL + "/search"
	}
	return fmt.Sprintf("%s/bill/%s-congress/%s/%s", SiteURL, ordinal(congress), kind, number)
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
