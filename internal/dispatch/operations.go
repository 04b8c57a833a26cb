package dispatch

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/canlii"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/congress"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/courtlistener"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/datagov"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/eurlex"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/fda"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/fedreg"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/govinfo"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/openstates"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/sec"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/states"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/ukleg"
	"github.com/mohammad-safakhou/legalmcp/internal/sweep"
)

// Credential environment variables.
const (
	CredGovInfo       = "GOVINFO_API_KEY"
	CredCourtListener = "COURTLISTENER_API_KEY"
	CredCongress      = "CONGRESS_GOV_API_KEY"
	CredOpenStates    = "OPEN_STATES_API_KEY"
	CredCanLII        = "CANLII_API_KEY"
)

// query builds the adapter input from a typed argument struct.
type query interface{ query() legal.Query }

// bind decodes arguments into A and runs search on the resulting query.
func bind[A query](search legal.SearchFunc) Handler {
	return func(ctx context.Context, raw json.RawMessage) ([]legal.Document, error) {
		var a A
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, legal.Errorf(legal.KindUnsupported, "dispatch", "decode arguments: %v", err)
		}
		return search(ctx, a.query())
	}
}

func filter(pairs ...string) map[string]string {
	out := map[string]string{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if v := strings.TrimSpace(pairs[i+1]); v != "" {
			out[pairs[i]] = v
		}
	}
	return out
}

func itoa(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

type titleArgs struct {
	Query string `json:"query"`
	Title int    `json:"title"`
}

func (a titleArgs) query() legal.Query {
	return legal.Query{Keyword: a.Query, JurisdictionHint: legal.JurisdictionUS, Filter: filter("title", itoa(a.Title))}
}

type caseLawArgs struct {
	Query string `json:"query"`
	Court string `json:"court"`
}

func (a caseLawArgs) query() legal.Query {
	return legal.Query{Keyword: a.Query, JurisdictionHint: legal.JurisdictionUS, Filter: filter("court", a.Court)}
}

type euArgs struct {
	Query        string `json:"query"`
	RegulationID string `json:"regulation_id"`
	Language     string `json:"language"`
}

func (a euArgs) query() legal.Query {
	kw := a.Query
	if strings.TrimSpace(kw) == "" {
		kw = a.RegulationID
	}
	return legal.Query{Keyword: kw, JurisdictionHint: legal.JurisdictionEU, Filter: filter("regulation_id", a.RegulationID, "language", a.Language)}
}

type stateArgs struct {
	State string `json:"state"`
	Query string `json:"query"`
}

func (a stateArgs) query() legal.Query {
	return legal.Query{Keyword: a.Query, JurisdictionHint: legal.StateJurisdiction(a.State), Filter: filter("state", a.State)}
}

type congressArgs struct {
	Query    string `json:"query"`
	Congress int    `json:"congress"`
}

func (a congressArgs) query() legal.Query {
	return legal.Query{Keyword: a.Query, JurisdictionHint: legal.JurisdictionUS, Filter: filter("congress", itoa(a.Congress))}
}

type federalRegisterArgs struct {
	Query    string `json:"query"`
	PerPage  int    `json:"per_page"`
	Order    string `json:"order"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

func (a federalRegisterArgs) query() legal.Query {
	return legal.Query{Keyword: a.Query, JurisdictionHint: legal.JurisdictionUS, Filter: filter(
		"per_page", itoa(a.PerPage), "order", a.Order, "date_from", a.DateFrom, "date_to", a.DateTo)}
}

type secArgs struct {
	CIK string `json:"cik"`
}

func (a secArgs) query() legal.Query {
	return legal.Query{Keyword: a.CIK, JurisdictionHint: legal.JurisdictionUS}
}

type openStatesArgs struct {
	Query        string `json:"query"`
	Jurisdiction string `json:"jurisdiction"`
	IncludeText  bool   `json:"include_text"`
	TextLimit    *int   `json:"text_limit"`
}

func (a openStatesArgs) query() legal.Query {
	f := filter("jurisdiction", a.Jurisdiction)
	if a.IncludeText {
		f["include_text"] = "true"
	}
	if a.TextLimit != nil {
		f["text_limit"] = strconv.Itoa(*a.TextLimit)
	}
	return legal.Query{Keyword: a.Query, JurisdictionHint: legal.JurisdictionUS, Filter: f}
}

type billTextArgs struct {
	BillID string `json:"bill_id"`
}

func (a billTextArgs) query() legal.Query {
	return legal.Query{Keyword: a.BillID, JurisdictionHint: legal.JurisdictionUS}
}

type sweepArgs struct {
	Query  string   `json:"query"`
	States []string `json:"states"`
}

type keywordArgs struct {
	Query string `json:"query"`
}

func (a keywordArgs) query() legal.Query { return legal.Query{Keyword: a.Query} }

type canliiArgs struct {
	Query    string `json:"query"`
	Database string `json:"database"`
}

func (a canliiArgs) query() legal.Query {
	return legal.Query{Keyword: a.Query, JurisdictionHint: legal.JurisdictionCanada, Filter: filter("database", a.Database)}
}

type fdaArgs struct {
	Query string `json:"query"`
	Type  string `json:"type"`
}

func (a fdaArgs) query() legal.Query {
	return legal.Query{Keyword: a.Query, JurisdictionHint: legal.JurisdictionUS, Filter: filter("type", a.Type)}
}

// Registrations is the full operation catalogue.
func Registrations() []Registration {
	queryProp := str("Search keywords")
	return []Registration{
		{
			Name:        "search_us_code",
			Description: "Search the United States Code via GovInfo. Falls back to crawling the most relevant titles when full-text search returns nothing usable.",
			Schema: object([]string{"query"}, map[string]any{
				"query": queryProp,
				"title": integer("Restrict to one US Code title (1-54)", 1, 54),
			}),
			Credential: CredGovInfo,
			Factory: func(d Deps) (Handler, error) {
				c, err := govinfo.New(d.credential(CredGovInfo), d.USCodeEdition, d.opts(govinfo.Source)...)
				if err != nil {
					return nil, err
				}
				return bind[titleArgs](c.SearchUSCode), nil
			},
		},
		{
			Name:        "search_cfr",
			Description: "Search the Code of Federal Regulations via GovInfo.",
			Schema: object([]string{"query"}, map[string]any{
				"query": queryProp,
				"title": integer("Restrict to one CFR title (1-50)", 1, 50),
			}),
			Credential: CredGovInfo,
			Factory: func(d Deps) (Handler, error) {
				c, err := govinfo.New(d.credential(CredGovInfo), d.USCodeEdition, d.opts(govinfo.Source)...)
				if err != nil {
					return nil, err
				}
				return bind[titleArgs](c.SearchCFR), nil
			},
		},
		{
			Name:        "search_case_law",
			Description: "Search US court opinions on CourtListener, newest first.",
			Schema: object([]string{"query"}, map[string]any{
				"query": queryProp,
				"court": str("CourtListener court id, e.g. scotus or ca9"),
			}),
			Credential: CredCourtListener,
			Factory: func(d Deps) (Handler, error) {
				c, err := courtlistener.New(d.credential(CredCourtListener), d.opts(courtlistener.Source)...)
				if err != nil {
					return nil, err
				}
				return bind[caseLawArgs](c.Search), nil
			},
		},
		{
			Name:        "search_eu_regulations",
			Description: "Search EUR-Lex, or look up one act by alias (gdpr, ai-act, mica) or CELEX number.",
			Schema: anyOf(object(nil, map[string]any{
				"query":         queryProp,
				"regulation_id": str("Alias (gdpr, ai-act, mica) or CELEX number, e.g. 32016R0679"),
				"language":      pattern("Two-letter document language (default EN)", `^[A-Za-z]{2}$`),
			}), []string{"query"}, []string{"regulation_id"}),
			Factory: func(d Deps) (Handler, error) {
				c := eurlex.New(d.Browser, d.opts(eurlex.Source)...)
				c.CourtesyDelay = d.CourtesyDelay
				return bind[euArgs](c.Search), nil
			},
		},
		{
			Name:        "search_state_law",
			Description: "Search state statutes. Supported states: CA, NY, IL.",
			Schema: object([]string{"state", "query"}, map[string]any{
				"state": str("Two-letter state code (CA, NY or IL)"),
				"query": queryProp,
			}),
			Factory: func(d Deps) (Handler, error) {
				c := states.New(d.Browser, d.stateBases(), d.Transport...)
				c.CourtesyDelay = d.CourtesyDelay
				return bind[stateArgs](c.Search), nil
			},
		},
		{
			Name:        "search_congress_bills",
			Description: "List recent Congress.gov bills whose titles match the keywords.",
			Schema: object([]string{"query"}, map[string]any{
				"query":    queryProp,
				"congress": integer("Congress number, e.g. 118", 1, 200),
			}),
			Credential: CredCongress,
			Factory: func(d Deps) (Handler, error) {
				c, err := congress.New(d.credential(CredCongress), d.opts(congress.Source)...)
				if err != nil {
					return nil, err
				}
				return bind[congressArgs](c.Search), nil
			},
		},
		{
			Name:        "search_federal_register",
			Description: "Search Federal Register documents.",
			Schema: object([]string{"query"}, map[string]any{
				"query":     queryProp,
				"per_page":  integer("Results per page (default 20)", 1, fedreg.MaxPerPage),
				"order":     enum("Result order", fedreg.Orders...),
				"date_from": pattern("Earliest publication date (YYYY-MM-DD)", datePattern),
				"date_to":   pattern("Latest publication date (YYYY-MM-DD)", datePattern),
			}),
			Factory: func(d Deps) (Handler, error) {
				return bind[federalRegisterArgs](fedreg.New(d.opts(fedreg.Source)...).Search), nil
			},
		},
		{
			Name:        "get_sec_filings",
			Description: "List a company's recent SEC EDGAR filings by CIK.",
			Schema: object([]string{"cik"}, map[string]any{
				"cik": pattern("Central Index Key, e.g. 320193", `^(CIK)?[0-9]{1,10}$`),
			}),
			Factory: func(d Deps) (Handler, error) {
				return bind[secArgs](sec.New(d.SECUserAgent, d.opts(sec.Source)...).Search), nil
			},
		},
		{
			Name:        "search_open_states",
			Description: "Search state bills on Open States, optionally fetching full text for the leading results.",
			Schema: object([]string{"query"}, map[string]any{
				"query":        queryProp,
				"jurisdiction": str("State name or abbreviation"),
				"include_text": boolean("Fetch bill text for the first results"),
				"text_limit":   integer("How many bills get full text (default 3)", 0, 20),
			}),
			Credential: CredOpenStates,
			Factory: func(d Deps) (Handler, error) {
				c, err := openstates.New(d.credential(CredOpenStates), d.Browser, d.opts(openstates.Source)...)
				if err != nil {
					return nil, err
				}
				return bind[openStatesArgs](c.Search), nil
			},
		},
		{
			Name:        "get_bill_text",
			Description: "Fetch one Open States bill with its extracted full text (HTML preferred, PDF fallback).",
			Schema: object([]string{"bill_id"}, map[string]any{
				"bill_id": str("Open States bill id, e.g. ocd-bill/…"),
			}),
			Credential: CredOpenStates,
			Factory: func(d Deps) (Handler, error) {
				c, err := openstates.New(d.credential(CredOpenStates), d.Browser, d.opts(openstates.Source)...)
				if err != nil {
					return nil, err
				}
				return bind[billTextArgs](c.GetBillText), nil
			},
		},
		{
			Name:        "sweep_state_legislation",
			Description: "Search Open States across all fifty states (or the listed ones) sequentially, retrying rate limits.",
			Schema: object([]string{"query"}, map[string]any{
				"query": queryProp,
				"states": map[string]any{
					"type":        "array",
					"description": "Two-letter state codes (default: all fifty)",
					"items":       map[string]any{"type": "string", "pattern": `^[A-Za-z]{2}$`},
					"maxItems":    len(sweep.AllStates),
				},
			}),
			Credential: CredOpenStates,
			Factory: func(d Deps) (Handler, error) {
				c, err := openstates.New(d.credential(CredOpenStates), d.Browser, d.opts(openstates.Source)...)
				if err != nil {
					return nil, err
				}
				sw := sweep.New(c, d.Sweep)
				return func(ctx context.Context, raw json.RawMessage) ([]legal.Document, error) {
					var a sweepArgs
					if err := json.Unmarshal(raw, &a); err != nil {
						return nil, legal.Errorf(legal.KindUnsupported, "dispatch", "decode arguments: %v", err)
					}
					if strings.TrimSpace(a.Query) == "" {
						return []legal.Document{}, nil
					}
					rep, err := sw.Run(ctx, a.Query, a.States)
					if err != nil {
						return nil, err
					}
					return rep.Documents, nil
				}, nil
			},
		},
		{
			Name:        "search_uk_legislation",
			Description: "Search UK legislation via the legislation.gov.uk Atom feed.",
			Schema:      object([]string{"query"}, map[string]any{"query": queryProp}),
			Factory: func(d Deps) (Handler, error) {
				return bind[keywordArgs](ukleg.New(d.opts(ukleg.Source)...).Search), nil
			},
		},
		{
			Name:        "search_canlii_cases",
			Description: "Browse a CanLII court database for Canadian cases matching the keywords.",
			Schema: object([]string{"query"}, map[string]any{
				"query":    queryProp,
				"database": str("CanLII database id (default csc-scc)"),
			}),
			Credential: CredCanLII,
			Factory: func(d Deps) (Handler, error) {
				c, err := canlii.New(d.credential(CredCanLII), d.opts(canlii.Source)...)
				if err != nil {
					return nil, err
				}
				return bind[canliiArgs](c.Search), nil
			},
		},
		{
			Name:        "search_fda_events",
			Description: "Search openFDA drug adverse events, device events or food enforcement reports.",
			Schema: object([]string{"query"}, map[string]any{
				"query": str("openFDA search expression"),
				"type":  enum("Endpoint (default drug)", string(fda.Drug), string(fda.Device), string(fda.Food)),
			}),
			Factory: func(d Deps) (Handler, error) {
				return bind[fdaArgs](fda.New(d.opts(fda.Source)...).Search), nil
			},
		},
		{
			Name:        "search_data_gov",
			Description: "Search the Data.gov dataset catalogue.",
			Schema:      object([]string{"query"}, map[string]any{"query": queryProp}),
			Factory: func(d Deps) (Handler, error) {
				return bind[keywordArgs](datagov.New(d.opts(datagov.Source)...).Search), nil
			},
		},
		{
			Name:        "search_global",
			Description: "Search the EU, the US Code and the CA, NY and IL statutes in parallel. Failing sources become placeholders.",
			Schema:      object([]string{"query"}, map[string]any{"query": queryProp}),
			Credential:  CredGovInfo,
			Factory: func(d Deps) (Handler, error) {
				gov, err := govinfo.New(d.credential(CredGovInfo), d.USCodeEdition, d.opts(govinfo.Source)...)
				if err != nil {
					return nil, err
				}
				eu := eurlex.New(d.Browser, d.opts(eurlex.Source)...)
				eu.CourtesyDelay = d.CourtesyDelay
				st := states.New(d.Browser, d.stateBases(), d.Transport...)
				st.CourtesyDelay = d.CourtesyDelay
				g := sweep.Global{
					EU:     eu,
					USCode: legal.SearchFunc(gov.SearchUSCode),
					States: st,
					Limit:  d.GlobalLimit,
				}
				return bind[keywordArgs](g.Search), nil
			},
		},
	}
}
