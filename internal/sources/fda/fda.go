// Package fda searches openFDA: drug and device adverse events and food
// enforcement reports.
package fda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

const (
	DefaultBaseURL = "https://api.fda.gov"
	Source         = "openfda"

	// TextCap bounds ExtractedText per record.
	TextCap = 2000

	resultLimit = 10
)

// Category selects the openFDA endpoint.
type Category string

const (
	Drug   Category = "drug"
	Device Category = "device"
	Food   Category = "food"
)

// Categories lists the accepted values of the "type" filter.
var Categories = []Category{Drug, Device, Food}

var endpoints = map[Category]string{
	Drug:   "/drug/event.json",
	Device: "/device/event.json",
	Food:   "/food/enforcement.json",
}

type Client struct {
	http *transport.Client
}

func New(opts ...transport.Option) *Client {
	base := []transport.Option{transport.WithName(Source)}
	return &Client{http: transport.New(DefaultBaseURL, append(base, opts...)...)}
}

type response struct {
	Results []json.RawMessage `json:"results"`
}

// Search queries the endpoint named by filter "type" with the keyword as an
// openFDA search expression. openFDA answers 404 when nothing matches; that
// is reported as an empty result.
func (c *Client) Search(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	if q.Blank() {
		return []legal.Document{}, nil
	}
	cat := Category(strings.ToLower(q.Get("type")))
	if cat == "" {
		cat = Drug
	}
	path, ok := endpoints[cat]
	if !ok {
		return nil, legal.Errorf(legal.KindUnsupported, Source, "invalid FDA search type %q (want drug, device or food)", cat)
	}
	var resp response
	if err := c.http.GetJSON(ctx, path, url.Values{
		"search": {q.Keyword},
		"limit":  {fmt.Sprint(resultLimit)},
	}, &resp); err != nil {
		lerr := legal.FromTransport(Source, err)
		if legal.KindOf(lerr) == legal.KindNotFound {
			return []legal.Document{}, nil
		}
		return nil, lerr
	}

	base := c.http.BaseURL()
	docs := make([]legal.Document, 0, len(resp.Results))
	for _, raw := range resp.Results {
		var (
			doc legal.Document
			err error
		)
		switch cat {
		case Drug:
			doc, err = drugDocument(raw)
		case Device:
			doc, err = deviceDocument(raw)
		case Food:
			doc, err = foodDocument(raw)
		}
		if err != nil || doc.Identifier == "" {
			continue
		}
		doc.SourceURL = recordURL(base, path, doc.Metadata["search_field"], doc.Identifier)
		doc.ExtractedText = legal.Truncate(legal.CollapseSpace(doc.ExtractedText), TextCap)
		doc.Jurisdiction = legal.JurisdictionUS
		doc.SourceKind = legal.KindEnforcement
		doc.Confidence = legal.ConfidenceSearchHit
		doc.Metadata["category"] = string(cat)
		docs = append(docs, doc)
	}
	return docs, nil
}

// recordURL addresses a single record through the API, since openFDA has no
// per-record web page.
func recordURL(base, path, field, id string) string {
	return base + path + "?" + url.Values{"search": {fmt.Sprintf(`%s:"%s"`, field, id)}}.Encode()
}

type drugEvent struct {
	SafetyReportID string `json:"safetyreportid"`
	ReceiveDate    string `json:"receivedate"`
	Serious        string `json:"serious"`
	Patient        struct {
		Drug []struct {
			MedicinalProduct string `json:"medicinalproduct"`
		} `json:"drug"`
		Reaction []struct {
			Term string `json:"reactionmeddrapt"`
		} `json:"reaction"`
	} `json:"patient"`
}

func drugDocument(raw json.RawMessage) (legal.Document, error) {
	var e drugEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return legal.Document{}, err
	}
	var drugs, reactions []string
	for _, d := range e.Patient.Drug {
		if d.MedicinalProduct != "" {
			drugs = append(drugs, d.MedicinalProduct)
		}
	}
	for _, r := range e.Patient.Reaction {
		if r.Term != "" {
			reactions = append(reactions, r.Term)
		}
	}
	title := "Drug adverse event " + e.SafetyReportID
	if len(drugs) > 0 {
		title += ": " + drugs[0]
	}
	return legal.Document{
		Identifier:      e.SafetyReportID,
		Title:           title,
		PublicationDate: legal.ParseDate(e.ReceiveDate),
		ExtractedText:   fmt.Sprintf("Drugs: %s. Reactions: %s.", strings.Join(drugs, ", "), strings.Join(reactions, ", ")),
		Metadata: map[string]string{
			"search_field": "safetyreportid",
			"serious":      e.Serious,
		},
	}, nil
}

type deviceEvent struct {
	ReportNumber string `json:"report_number"`
	MDRReportKey string `json:"mdr_report_key"`
	DateReceived string `json:"date_received"`
	EventType    string `json:"event_type"`
	Device       []struct {
		BrandName   string `json:"brand_name"`
		GenericName string `json:"generic_name"`
	} `json:"device"`
	MDRText []struct {
		Text string `json:"text"`
	} `json:"mdr_text"`
}

func deviceDocument(raw json.RawMessage) (legal.Document, error) {
	var e deviceEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return legal.Document{}, err
	}
	id, field := e.MDRReportKey, "mdr_report_key"
	if id == "" {
		id, field = e.ReportNumber, "report_number"
	}
	name := ""
	if len(e.Device) > 0 {
		name = e.Device[0].BrandName
		if name == "" {
			name = e.Device[0].GenericName
		}
	}
	var text []string
	for _, t := range e.MDRText {
		text = append(text, t.Text)
	}
	title := "Device adverse event " + id
	if name != "" {
		title += ": " + name
	}
	return legal.Document{
		Identifier:      id,
		Title:           title,
		PublicationDate: legal.ParseDate(e.DateReceived),
		ExtractedText:   strings.Join(text, " "),
		Metadata: map[string]string{
			"search_field": field,
			"event_type":   e.EventType,
		},
	}, nil
}

type foodRecall struct {
	RecallNumber        string `json:"recall_number"`
	ReportDate          string `json:"report_date"`
	ProductDescription  string `json:"product_description"`
	ReasonForInitiation string `json:"reason_for_initiation"`
	RecallingFirm       string `json:"recalling_firm"`
	Classification      string `json:"classification"`
	Status              string `json:"status"`
}

func foodDocument(raw json.RawMessage) (legal.Document, error) {
	var e foodRecall
	if err := json.Unmarshal(raw, &e); err != nil {
		return legal.Document{}, err
	}
	title := "Food recall " + e.RecallNumber
	if e.RecallingFirm != "" {
		title += ": " + e.RecallingFirm
	}
	return legal.Document{
		Identifier:      e.RecallNumber,
		Title:           title,
		PublicationDate: legal.ParseDate(e.ReportDate),
		ExtractedText:   e.ProductDescription + ". Reason: " + e.ReasonForInitiation,
		Metadata: map[string]string{
			"search_field":   "recall_number",
			"classification": e.Classification,
			"status":         e.Status,
			"firm":           e.RecallingFirm,
		},
	}, nil
}
