package legal

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// SourceKind classifies the upstream record a Document was normalised from.
type SourceKind string

const (
	KindStatute     SourceKind = "statute"
	KindRegulation  SourceKind = "regulation"
	KindCaseLaw     SourceKind = "case_law"
	KindBill        SourceKind = "bill"
	KindNotice      SourceKind = "federal_register_notice"
	KindFiling      SourceKind = "sec_filing"
	KindEnforcement SourceKind = "fda_record"
	KindDataset     SourceKind = "dataset"
)

// Jurisdiction codes attached to every Document.
const (
	JurisdictionUS     = "US"
	JurisdictionEU     = "EU"
	JurisdictionUK     = "UK"
	JurisdictionCanada = "CA"
)

// StateJurisdiction returns the jurisdiction code for a US state, e.g. "US-NY".
func StateJurisdiction(state string) string {
	state = strings.ToUpper(strings.TrimSpace(state))
	if state == "" {
		return JurisdictionUS
	}
	return "US-" + state
}

// Match confidence assigned by adapters.
const (
	ConfidenceExact        = 1.0
	ConfidenceSearchHit    = 0.9
	ConfidenceCurated      = 0.8
	ConfidenceKeywordCrawl = 0.6
	ConfidenceListing      = 0.5
	ConfidencePlaceholder  = 0.0
)

// Query is the normalised input of a single adapter call.
type Query struct {
	Keyword          string            `json:"keyword"`
	JurisdictionHint string            `json:"jurisdiction_hint,omitempty"`
	Filter           map[string]string `json:"filter,omitempty"`
}

// Blank reports whether the keyword carries no search terms.
func (q Query) Blank() bool { return strings.TrimSpace(q.Keyword) == "" }

// Get returns a filter value, trimmed. Missing keys yield "".
func (q Query) Get(key string) string {
	if q.Filter == nil {
		return ""
	}
	return strings.TrimSpace(q.Filter[key])
}

// Document is the normalised search result every adapter produces.
type Document struct {
	Identifier      string            `json:"identifier"`
	Title           string            `json:"title"`
	SourceKind      SourceKind        `json:"source_kind"`
	Jurisdiction    string            `json:"jurisdiction"`
	PublicationDate *time.Time        `json:"publication_date,omitempty"`
	SourceURL       string            `json:"source_url"`
	ExtractedText   string            `json:"extracted_text"`
	Confidence      float64           `json:"confidence"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Searcher is the contract shared by every source adapter. A blank query
// returns an empty slice without touching the network.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Document, error)
}

// SearchFunc adapts a function to Searcher.
type SearchFunc func(ctx context.Context, q Query) ([]Document, error)

func (f SearchFunc) Search(ctx context.Context, q Query) ([]Document, error) { return f(ctx, q) }

// Placeholder builds the synthetic "search manually" result returned when
// nothing could be extracted automatically.
func Placeholder(kind SourceKind, jurisdiction, title, sourceURL, text string) Document {
	return Document{
		Identifier:    "placeholder",
		Title:         title,
		SourceKind:    kind,
		Jurisdiction:  jurisdiction,
		SourceURL:     sourceURL,
		ExtractedText: text,
		Confidence:    ConfidencePlaceholder,
		Metadata:      map[string]string{"placeholder": "true"},
	}
}

// Degraded reports whether d stands in for content that could not be
// retrieved: a placeholder or a document carrying an "error" metadata entry.
func (d Document) Degraded() bool {
	if d.Metadata["placeholder"] == "true" {
		return true
	}
	_, failed := d.Metadata["error"]
	return failed
}

var spaceRun = regexp.MustCompile(`\s+`)

// CollapseSpace folds whitespace runs into single spaces and trims the result.
func CollapseSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// Truncate caps s at max runes.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// AbsoluteURL resolves href against base. Unresolvable input returns base.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	if href == "" {
		return b.String()
	}
	ref, err := url.Parse(href)
	if err != nil {
		return b.String()
	}
	return b.ResolveReference(ref).String()
}

// IsAbsoluteURL reports whether raw has both a scheme and a host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"20060102",
	"January 2, 2006",
}

// ParseDate tries the date formats seen across sources. Unparseable input yields nil.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Check validates the output guarantees of a Document: an absolute source URL
// and extracted text within maxText runes.
func Check(d Document, maxText int) error {
	if !IsAbsoluteURL(d.SourceURL) {
		return fmt.Errorf("document %q: source url %q is not absolute", d.Identifier, d.SourceURL)
	}
	if maxText > 0 && utf8.RuneCountInString(d.ExtractedText) > maxText {
		return fmt.Errorf("document %q: extracted text exceeds %d runes", d.Identifier, maxText)
	}
	if d.SourceKind == "" || d.Jurisdiction == "" {
		return fmt.Errorf("document %q: missing provenance", d.Identifier)
	}
	return nil
}
