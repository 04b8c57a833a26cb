package sweep

import (
	"context"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
)

// Manual search pages named by global search placeholders.
const (
	ManualEU         = "https://eur-lex.europa.eu/advanced-search-form.html"
	ManualUSCode     = "https://www.govinfo.gov/app/collection/uscode"
	ManualCalifornia = "https://leginfo.legislature.ca.gov/faces/codes.xhtml"
	ManualNewYork    = "https://www.nysenate.gov/legislation/laws/CONSOLIDATED"
	ManualIllinois   = "https://www.ilga.gov/legislation/ilcs/ilcs.asp"
)

// Global searches the EU, the US Code and the deep-scraped states for one
// keyword concurrently. Failing legs become placeholders.
type Global struct {
	EU     legal.Searcher
	USCode legal.Searcher
	States legal.Searcher
	Limit  int
}

// Targets builds the fan-out legs for keyword.
func (g Global) Targets(keyword string) []Target {
	stateQuery := func(st string) legal.Query {
		return legal.Query{Keyword: keyword, JurisdictionHint: legal.StateJurisdiction(st), Filter: map[string]string{"state": st}}
	}
	return []Target{
		{Name: "EU", Searcher: g.EU, Query: legal.Query{Keyword: keyword, JurisdictionHint: legal.JurisdictionEU},
			Kind: legal.KindRegulation, Jurisdiction: legal.JurisdictionEU, ManualURL: ManualEU},
		{Name: "US Code", Searcher: g.USCode, Query: legal.Query{Keyword: keyword, JurisdictionHint: legal.JurisdictionUS},
			Kind: legal.KindStatute, Jurisdiction: legal.JurisdictionUS, ManualURL: ManualUSCode},
		{Name: "CA", Searcher: g.States, Query: stateQuery("CA"), Kind: legal.KindStatute, Jurisdiction: "US-CA", ManualURL: ManualCalifornia},
		{Name: "NY", Searcher: g.States, Query: stateQuery("NY"), Kind: legal.KindStatute, Jurisdiction: "US-NY", ManualURL: ManualNewYork},
		{Name: "IL", Searcher: g.States, Query: stateQuery("IL"), Kind: legal.KindStatute, Jurisdiction: "US-IL", ManualURL: ManualIllinois},
	}
}

// Search implements legal.Searcher.
func (g Global) Search(ctx context.Context, q legal.Query) ([]legal.Document, error) {
	if q.Blank() {
		return []legal.Document{}, nil
	}
	results, err := FanOut(ctx, g.Limit, g.Targets(q.Keyword))
	if err != nil {
		return nil, err
	}
	return Flatten(results), nil
}
