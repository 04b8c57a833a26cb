// Package ukleg searches legislation.gov.uk through its Atom title feed.
package ukleg

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed/atom"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	DefaultBaseURL = "https://www.legislation.gov.uk"
	Source         = "uk_legislation"

	// TextCap bounds ExtractedText per entry.
	TextCap = 2000
)

var idRe = regexp.MustCompile(`/id/([a-z]+)/(\d{4})/(\d+)`)

// Client reads the legislation.gov.uk feed.
type Client struct {
	http *transport.Client
}

func New(opts ...transport.Option) *Client {
	base := []transport.Option{transport.WithName(Source)}
	return &Client{http: transport.New(DefaultBaseURL, append(base, opts...)...)}
}

// Search returns legislation whose title matches the keyword.
func (c *Client) Search(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	if q.Blank() {
		return []legal.Document{}, nil
	}
	resp, err := c.http.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/all/data.feed",
		Query:  url.Values{"title": {q.Keyword}},
		Header: http.Header{"Accept": {"application/atom+xml"}},
	})
	if err != nil {
		return nil, legal.FromTransport(Source, err)
	}
	feed, err := (&atom.Parser{}).Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &legal.Error{Kind: legal.KindExtraction, Source: Source, Msg: "malformed Atom feed", Err: err}
	}

	docs := make([]legal.Document, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		docs = append(docs, entryDocument(e, c.http.BaseURL()))
	}
	return docs, nil
}

func entryDocument(e *atom.Entry, base string) legal.Document {
	kind, year, number := "legislation", "0", "0"
	if m := idRe.FindStringSubmatch(e.ID); m != nil {
		kind, year, number = m[1], m[2], m[3]
	}
	link := entryLink(e, "self")
	if link == "" {
		link = entryLink(e, "alternate")
	}
	if link == "" {
		link = e.ID
	}
	if !legal.IsAbsoluteURL(link) {
		link = legal.AbsoluteURL(base, link)
	}
	title := strings.TrimSpace(e.Title)
	if title == "" {
		title = "Untitled legislation"
	}
	identifier := e.ID
	if identifier == "" {
		identifier = strings.Join([]string{kind, year, number}, "/")
	}
	summary := e.Summary
	if summary == "" && e.Content != nil {
		summary = e.Content.Value
	}
	date := e.UpdatedParsed
	if e.PublishedParsed != nil {
		date = e.PublishedParsed
	}
	return legal.Document{
		Identifier:      identifier,
		Title:           title,
		SourceKind:      legal.KindStatute,
		Jurisdiction:    legal.JurisdictionUK,
		PublicationDate: date,
		SourceURL:       link,
		ExtractedText:   legal.Truncate(legal.CollapseSpace(summary), TextCap),
		Confidence:      legal.ConfidenceSearchHit,
		Metadata: map[string]string{
			"type":   kind,
			"year":   year,
			"number": number,
		},
	}
}

func entryLink(e *atom.Entry, rel string) string {
	for _, l := range e.Links {
		if l != nil && l.Rel == rel && l.Href != "" {
			return l.Href
		}
	}
	return ""
}
