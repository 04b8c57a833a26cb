// Package openstates searches state legislation in all 50 states through the
// Open States v3 API and extracts full bill text from the published versions.
package openstates

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/legalmcp/internal/browser"
	"github.com/mohammad-safakhou/legalmcp/internal/extract"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	DefaultBaseURL = "https://v3.openstates.org"
	Source         = "open_states"
	SiteURL        = "https://openstates.org"

	// TextCap bounds bill text and ExtractedText.
	TextCap = 10000

	// DefaultTextBills is how many leading results get full text when
	// include_text is requested.
	DefaultTextBills = 3

	perPage       = 20
	htmlTimeout   = 10 * time.Second
	pdfTimeout    = 20 * time.Second
	renderTimeout = 45 * time.Second
)

var stateRe = regexp.MustCompile(`/state:([a-z]{2})/`)

// Client queries Open States. Bill text is fetched from state legislature
// sites with a separate credential-free client.
type Client struct {
	api     *transport.Client
	scraper *transport.Client
	browser browser.Browser
	logger  *log.Logger

	// PDF extracts text from PDF bill versions.
	PDF extract.PDFExtractor
	// RenderTimeout bounds a browser navigation when static HTML is unusable.
	RenderTimeout time.Duration
}

// New returns a client. br may be nil, in which case short or failed HTML
// fetches are reported instead of rendered.
func New(apiKey string, br browser.Browser, opts ...transport.Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &legal.Error{Kind: legal.KindConfig, Source: Source, Msg: "Open States API key is required", Remedy: "Set OPEN_STATES_API_KEY (free key at https://open.pluralpolicy.com/accounts/profile/)"}
	}
	apiOpts := []transport.Option{
		transport.WithName(Source),
		transport.WithHeader("X-API-KEY", apiKey),
	}
	scraperOpts := []transport.Option{
		transport.WithName(Source + "_text"),
		transport.WithTimeout(htmlTimeout),
		transport.WithUserAgent("Mozilla/5.0 (compatible; legalmcp/1.0)"),
	}
	return &Client{
		api:           transport.New(DefaultBaseURL, append(apiOpts, opts...)...),
		scraper:       transport.New("", append(scraperOpts, opts...)...),
		browser:       br,
		logger:        log.New(log.Writer(), "[OPENSTATES] ", log.LstdFlags),
		PDF:           extract.PDF,
		RenderTimeout: renderTimeout,
	}, nil
}

type searchResponse struct {
	Results    []Bill `json:"results"`
	Pagination struct {
		Page       int `json:"page"`
		MaxPage    int `json:"max_page"`
		TotalItems int `json:"total_items"`
	} `json:"pagination"`
}

// Bill is the subset of an Open States bill the adapter reads.
type Bill struct {
	ID           string `json:"id"`
	Session      string `json:"session"`
	Jurisdiction struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		Classification string `json:"classification"`
	} `json:"jurisdiction"`
	Identifier       string    `json:"identifier"`
	Title            string    `json:"title"`
	Classification   []string  `json:"classification"`
	Subject          []string  `json:"subject"`
	UpdatedAt        string    `json:"updated_at"`
	LatestActionDate string    `json:"latest_action_date"`
	LatestAction     string    `json:"latest_action_description"`
	OpenStatesURL    string    `json:"openstates_url"`
	Versions         []Version `json:"versions"`
}

// Version is a published text version of a bill.
type Version struct {
	Note  string `json:"note"`
	Links []struct {
		URL       string `json:"url"`
		MediaType string `json:"media_type"`
	} `json:"links"`
}

// Search finds bills matching the keyword. Filters: "jurisdiction" (state
// abbreviation or name), "include_text" ("true" fetches full text for the
// leading bills) and "text_limit" (how many, default 3).
func (c *Client) Search(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	if q.Blank() {
		return []legal.Document{}, nil
	}
	params := url.Values{
		"q":        {q.Keyword},
		"sort":     {"updated_desc"},
		"page":     {"1"},
		"per_page": {strconv.Itoa(perPage)},
	}
	if j := q.Get("jurisdiction"); j != "" {
		params.Set("jurisdiction", strings.ToLower(j))
	}
	var resp searchResponse
	if err := c.api.GetJSON(ctx, "/bills", params, &resp); err != nil {
		return nil, c.translate(err)
	}

	withText, _ := strconv.ParseBool(q.Get("include_text"))
	limit := DefaultTextBills
	if n, err := strconv.Atoi(q.Get("text_limit")); err == nil && n >= 0 {
		limit = n
	}
	var tf *textFetcher
	if withText {
		tf = c.newTextFetcher()
		defer tf.close()
	}

	docs := make([]legal.Document, 0, len(resp.Results))
	for i, b := range resp.Results {
		doc := b.document()
		if tf != nil && i < limit {
			text, src := tf.billText(ctx, b)
			doc.ExtractedText = legal.Truncate(text, TextCap)
			doc.Metadata["text_source"] = src
			if src == TextFailed {
				doc.Metadata["error"] = text
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// GetBillText fetches one bill (the keyword is its Open States id, e.g.
// "ocd-bill/…") with its versions and returns it with the extracted full text.
func (c *Client) GetBillText(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	if q.Blank() {
		return []legal.Document{}, nil
	}
	b, err := c.Bill(ctx, strings.TrimSpace(q.Keyword))
	if err != nil {
		return nil, err
	}
	tf := c.newTextFetcher()
	defer tf.close()
	text, src := tf.billText(ctx, b)
	doc := b.document()
	doc.ExtractedText = legal.Truncate(text, TextCap)
	doc.Metadata["text_source"] = src
	if src == TextFailed {
		doc.Metadata["error"] = text
	}
	doc.Confidence = legal.ConfidenceExact
	return []legal.Document{doc}, nil
}

// Bill returns the bill with id including its versions.
func (c *Client) Bill(ctx context.Context, id string) (Bill, error) {
	if id == "" || strings.ContainsAny(id, "?#") {
		return Bill{}, legal.Errorf(legal.KindUnsupported, Source, "invalid bill id %q", id)
	}
	var b Bill
	if err := c.api.GetJSON(ctx, "/bills/"+id, url.Values{"include": {"versions"}}, &b); err != nil {
		lerr := c.translate(err)
		if legal.KindOf(lerr) == legal.KindNotFound {
			return Bill{}, &legal.Error{Kind: legal.KindNotFound, Source: Source, Msg: fmt.Sprintf("bill %s not found", id), Err: err}
		}
		return Bill{}, lerr
	}
	return b, nil
}

func (c *Client) translate(err error) error {
	lerr := legal.FromTransport(Source, err)
	if legal.KindOf(lerr) == legal.KindUnauthorized {
		return legal.FromStatus(Source, 401, err).WithRemedy("Invalid Open States API key; check OPEN_STATES_API_KEY")
	}
	return lerr
}

// State returns the two-letter state code of the bill's jurisdiction, or "".
func (b Bill) State() string {
	if m := stateRe.FindStringSubmatch(b.Jurisdiction.ID + "/"); m != nil {
		return m[1]
	}
	return ""
}

func (b Bill) document() legal.Document {
	src := b.OpenStatesURL
	if !legal.IsAbsoluteURL(src) {
		src = SiteURL + "/"
		if st := b.State(); st != "" {
			src = fmt.Sprintf("%s/%s/bills/", SiteURL, st)
		}
	}
	summary := b.Title
	if len(b.Subject) > 0 {
		summary += ". Subjects: " + strings.Join(b.Subject, ", ")
	}
	if b.LatestAction != "" {
		summary += ". Latest action: " + b.LatestAction
	}
	title := b.Title
	if b.Identifier != "" {
		title = b.Identifier + ": " + b.Title
	}
	return legal.Document{
		Identifier:      b.ID,
		Title:           title,
		SourceKind:      legal.KindBill,
		Jurisdiction:    legal.StateJurisdiction(b.State()),
		PublicationDate: legal.ParseDate(firstNonEmpty(b.LatestActionDate, b.UpdatedAt)),
		SourceURL:       src,
		ExtractedText:   legal.Truncate(legal.CollapseSpace(summary), TextCap),
		Confidence:      legal.ConfidenceSearchHit,
		Metadata: map[string]string{
			"session":        b.Session,
			"bill_number":    b.Identifier,
			"state":          b.Jurisdiction.Name,
			"classification": strings.Join(b.Classification, ","),
		},
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
