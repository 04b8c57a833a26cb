// Package sec lists a company's recent filings from SEC EDGAR.
package sec

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	DefaultBaseURL = "https://data.sec.gov"
	Source         = "sec_edgar"
	ArchiveURL     = "https://www.sec.gov/Archives/edgar/data"

	// DefaultUserAgent follows EDGAR's "<organisation> <contact email>" rule.
	DefaultUserAgent = "legalmcp compliance-research admin@legalmcp.dev"

	// TextCap bounds ExtractedText per filing.
	TextCap = 2000

	maxFilings = 20
)

// Client reads EDGAR submissions. EDGAR rejects requests without a
// descriptive User-Agent.
type Client struct {
	http *transport.Client
}

func New(userAgent string, opts ...transport.Option) *Client {
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	base := []transport.Option{
		transport.WithName(Source),
		transport.WithUserAgent(userAgent),
	}
	return &Client{http: transport.New(DefaultBaseURL, append(base, opts...)...)}
}

type submissions struct {
	CIK            string   `json:"cik"`
	Name           string   `json:"name"`
	SICDescription string   `json:"sicDescription"`
	Tickers        []string `json:"tickers"`
	Filings        struct {
		Recent struct {
			AccessionNumber       []string `json:"accessionNumber"`
			FilingDate            []string `json:"filingDate"`
			ReportDate            []string `json:"reportDate"`
			Form                  []string `json:"form"`
			PrimaryDocument       []string `json:"primaryDocument"`
			PrimaryDocDescription []string `json:"primaryDocDescription"`
		} `json:"recent"`
	} `json:"filings"`
}

// NormalizeCIK strips non-digits and left-pads to EDGAR's ten digits.
func NormalizeCIK(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" || len(digits) > 10 {
		return "", legal.Errorf(legal.KindUnsupported, Source, "CIK must be 1 to 10 digits, got %q", raw)
	}
	return strings.Repeat("0", 10-len(digits)) + digits, nil
}

// Search treats the keyword as a CIK and returns the company's most recent filings.
func (c *Client) Search(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	if q.Blank() {
		return []legal.Document{}, nil
	}
	return c.Filings(ctx, q.Keyword)
}

// Filings returns up to 20 recent filings for cik, newest first as EDGAR lists them.
func (c *Client) Filings(ctx context.Context, cik string) ([]legal.Document, error) {
	padded, err := NormalizeCIK(cik)
	if err != nil {
		return nil, err
	}
	var sub submissions
	if err := c.http.GetJSON(ctx, "/submissions/CIK"+padded+".json", nil, &sub); err != nil {
		lerr := legal.FromTransport(Source, err)
		if legal.KindOf(lerr) == legal.KindNotFound {
			return nil, &legal.Error{Kind: legal.KindNotFound, Source: Source, Msg: fmt.Sprintf("Company with CIK %s not found", cik), Err: err}
		}
		return nil, lerr
	}

	recent := sub.Filings.Recent
	archiveCIK := strings.TrimLeft(padded, "0")
	docs := []legal.Document{}
	for i, acc := range recent.AccessionNumber {
		if len(docs) >= maxFilings {
			break
		}
		form := at(recent.Form, i)
		primary := at(recent.PrimaryDocument, i)
		folder := fmt.Sprintf("%s/%s/%s", ArchiveURL, archiveCIK, strings.ReplaceAll(acc, "-", ""))
		src := folder + "/"
		if primary != "" {
			src = folder + "/" + primary
		}
		desc := at(recent.PrimaryDocDescription, i)
		text := fmt.Sprintf("%s filed %s by %s", form, at(recent.FilingDate, i), sub.Name)
		if desc != "" {
			text += ": " + desc
		}
		docs = append(docs, legal.Document{
			Identifier:      acc,
			Title:           strings.TrimSpace(fmt.Sprintf("%s %s", sub.Name, form)),
			SourceKind:      legal.KindFiling,
			Jurisdiction:    legal.JurisdictionUS,
			PublicationDate: legal.ParseDate(at(recent.FilingDate, i)),
			SourceURL:       src,
			ExtractedText:   legal.Truncate(text, TextCap),
			Confidence:      legal.ConfidenceExact,
			Metadata: map[string]string{
				"cik":         padded,
				"company":     sub.Name,
				"form":        form,
				"report_date": at(recent.ReportDate, i),
				"tickers":     strings.Join(sub.Tickers, ","),
				"sic":         sub.SICDescription,
				"index":       strconv.Itoa(i),
			},
		})
	}
	return docs, nil
}

// at tolerates EDGAR's parallel arrays being of unequal length.
func at(vals []string, i int) string {
	if i < len(vals) {
		return vals[i]
	}
	return ""
}
