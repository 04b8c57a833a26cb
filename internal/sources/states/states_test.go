package states

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/legalmcp/internal/browser/browsertest"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/sourcetest"
)

func newTestClient(t *testing.T, h http.Handler, br *browsertest.Browser) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	bases := Bases{California: srv.URL, NewYork: srv.URL, Illinois: srv.URL}
	var c *Client
	if br == nil {
		c = New(nil, bases, sourcetest.Options("")...)
	} else {
		c = New(br, bases, sourcetest.Options("")...)
	}
	c.CourtesyDelay = 0
	c.logger = log.New(io.Discard, "", 0)
	return c, srv
}

func lawText(s string) string {
	return strings.Repeat(s+" ", 40)
}

func TestUnsupportedStateAndBlankQuery(t *testing.T) {
	counter := &sourcetest.CountingHandler{H: http.NotFoundHandler()}
	c, _ := newTestClient(t, counter, nil)

	_, err := c.Search(context.Background(), legal.Query{Keyword: "privacy", Filter: map[string]string{"state": "tx"}})
	assert.Equal(t, legal.KindUnsupported, legal.KindOf(err))
	assert.Contains(t, err.Error(), "Supported states: CA, NY, IL")

	docs, err := c.Search(context.Background(), legal.Query{Keyword: "  ", Filter: map[string]string{"state": "ca"}})
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, 0, counter.Count())
}

func TestCaliforniaPrivacyReturnsCuratedSections(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /faces/codes_displaySection.xhtml", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CIV", r.URL.Query().Get("lawCode"))
		switch sec := r.URL.Query().Get("sectionNum"); sec {
		case "1798.105":
			http.NotFound(w, r)
		case "1798.110":
			_, _ = w.Write([]byte(`<html><body><div id="wrap"><div>1798.110. A consumer shall have the right to request disclosure.</div></div></body></html>`))
		case "1798.120":
			_, _ = w.Write([]byte(`<html><body><div class="sectionText">` + strings.Repeat("x", 3000) + `</div></body></html>`))
		default:
			_, _ = w.Write([]byte(`<html><body><div class="sectionText">` + sec + ` text of the section.</div></body></html>`))
		}
	})
	c, srv := newTestClient(t, mux, nil)

	docs, err := c.Search(context.Background(), legal.Query{Keyword: "privacy", JurisdictionHint: "US-CA"})
	require.NoError(t, err)
	require.Len(t, docs, 5)
	sourcetest.CheckDocuments(t, docs, CuratedTextCap)

	sectionRe := regexp.MustCompile(`^\d{4}\.\d{3}$`)
	for _, d := range docs {
		assert.Regexp(t, sectionRe, d.Identifier)
		assert.Equal(t, d.Identifier, d.Metadata["section"])
		assert.Equal(t, "US-CA", d.Jurisdiction)
		assert.Equal(t, legal.ConfidenceCurated, d.Confidence)
	}
	assert.Equal(t, "1798.100 text of the section.", docs[0].ExtractedText)
	assert.Equal(t, srv.URL+"/faces/codes_displaySection.xhtml?lawCode=CIV&sectionNum=1798.100", docs[0].SourceURL)
	assert.Equal(t, "Content available at source URL", docs[1].ExtractedText)
	assert.Equal(t, "1798.110. A consumer shall have the right to request disclosure.", docs[2].ExtractedText)
	assert.Len(t, docs[4].ExtractedText, CuratedTextCap)
}

func TestCaliforniaSearchScrapeAndPlaceholder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /faces/codes.xhtml", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search") != "arbitration" {
			_, _ = w.Write([]byte(`<html><body><p>No matches</p></body></html>`))
			return
		}
		_, _ = w.Write([]byte(`<html><body><table>
			<tr><td><a href="/faces/codes_displaySection.xhtml?lawCode=CCP&sectionNum=1281">Section 1281 Arbitration agreements</a></td></tr>
			<tr><td><a href="/faces/other">Unrelated</a></td></tr>
		</table></body></html>`))
	})
	c, srv := newTestClient(t, mux, nil)

	docs, err := c.California(context.Background(), "arbitration")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	sourcetest.CheckDocuments(t, docs, ScrapeTextCap)
	assert.Equal(t, "1281", docs[0].Identifier)
	assert.Equal(t, srv.URL+"/faces/codes_displaySection.xhtml?lawCode=CCP&sectionNum=1281", docs[0].SourceURL)
	assert.Equal(t, legal.ConfidenceKeywordCrawl, docs[0].Confidence)

	docs, err = c.California(context.Background(), "zoning")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, legal.ConfidencePlaceholder, docs[0].Confidence)
	assert.Equal(t, srv.URL+"/faces/codes.xhtml", docs[0].SourceURL)
	assert.Contains(t, docs[0].ExtractedText, "search manually")
}

func TestParseNYResults(t *testing.T) {
	html := `<html><body><header><a href="/legislation/laws/ABC/1">ABC SECTION 1 header link</a></header><main>
		<a href="/legislation/laws/MDW/179">MDW SECTION 179 Privacy 1 instance</a>
		<a href="/legislation/laws/CONSOLIDATED">All privacy laws</a>
		<a href="/legislation/laws/GBS/899-AA">GBS SECTION 899-AA</a>
		<a href="/legislation/laws/MDW/179">MDW SECTION 179 again</a>
		<a href="/about">Privacy policy</a>
		<a href="/legislation/laws/all">all</a>
	</main></body></html>`
	results := parseNYResults(html, "https://www.nysenate.gov/legislation/laws/search?search_term=privacy", "privacy")
	require.Len(t, results, 2)
	assert.Equal(t, "https://www.nysenate.gov/legislation/laws/MDW/179", results[0].URL)
	assert.Equal(t, "MDW SECTION 179", results[0].Label)
	assert.Equal(t, "GBS SECTION 899-AA", results[1].Label)
}

func TestNewYorkStaticSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /legislation/laws/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "privacy", r.URL.Query().Get("search_term"))
		_, _ = w.Write([]byte(`<html><body><main>
			<a href="/legislation/laws/MDW/179">MDW SECTION 179 Privacy 1 instance</a>
			<a href="/legislation/laws/GBS/899-AA">GBS SECTION 899-AA</a>
		</main></body></html>`))
	})
	mux.HandleFunc("GET /legislation/laws/MDW/179", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><main><nav>Site menu</nav><div class="law-section">` + lawText("Every owner of a multiple dwelling shall protect tenant privacy.") + `</div></main></body></html>`))
	})
	c, _ := newTestClient(t, mux, nil)

	docs, err := c.Search(context.Background(), legal.Query{Keyword: "privacy", Filter: map[string]string{"state": "NY"}})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	sourcetest.CheckDocuments(t, docs, NewYorkTextCap)

	assert.Equal(t, "MDW SECTION 179", docs[0].Identifier)
	assert.Equal(t, "179", docs[0].Metadata["section"])
	assert.True(t, strings.HasPrefix(docs[0].ExtractedText, "Every owner of a multiple dwelling"))
	assert.NotContains(t, docs[0].ExtractedText, "Site menu")

	// The section page is missing and no browser is configured: the label stands in.
	assert.Equal(t, "GBS SECTION 899-AA", docs[1].ExtractedText)
}

func nyBrowserFixture(t *testing.T, resultsHTML string) (*Client, *browsertest.Browser, string) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /legislation/laws/search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><main><p>Loading results...</p></main></body></html>`))
	})
	br := browsertest.New()
	c, srv := newTestClient(t, mux, br)
	br.Pages[srv.URL+"/legislation/laws/CONSOLIDATED"] = browsertest.Page{Title: "Consolidated Laws", HTML: `<html><body><form id="nys-openleg-search-form"><h3 class="search-title">Search</h3><input id="edit-search-term"></form></body></html>`}
	br.Pages[srv.URL+"/legislation/laws/search"] = browsertest.Page{Title: "Search", HTML: resultsHTML}
	br.Pages[srv.URL+"/legislation/laws/CVR/50"] = browsertest.Page{Title: "CVR 50", HTML: `<html><body><main><div class="law-section">` + lawText("A person may not use the name of any living person for advertising.") + `</div></main></body></html>`}
	br.OnClick = func(current, selector string) string {
		if selector == nySubmit {
			return srv.URL + "/legislation/laws/search?search_term=privacy"
		}
		return ""
	}
	return c, br, srv.URL
}

const nyResultsHTML = `<html><body><main><a href="/legislation/laws/CVR/50">CVR SECTION 50 Right of privacy</a></main></body></html>`

func TestNewYorkBrowserFormSearch(t *testing.T) {
	c, br, base := nyBrowserFixture(t, nyResultsHTML)

	docs, err := c.NewYork(context.Background(), "privacy")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "CVR SECTION 50", docs[0].Identifier)
	assert.Equal(t, base+"/legislation/laws/CVR/50", docs[0].SourceURL)
	assert.Contains(t, docs[0].ExtractedText, "advertising")
	assert.Equal(t, 1, br.Opens())
	assert.Equal(t, 1, br.Closes())
	assert.Contains(t, br.Navigated(), base+"/legislation/laws/CONSOLIDATED")
}

func TestNewYorkFormFailureNavigatesDirectly(t *testing.T) {
	c, br, base := nyBrowserFixture(t, nyResultsHTML)
	br.Hidden[nyInput] = true

	docs, err := c.NewYork(context.Background(), "privacy")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, br.Navigated(), base+"/legislation/laws/search?search_term=privacy")
	assert.Equal(t, 1, br.Closes())
}

func TestNewYorkNothingFoundIsPlaceholder(t *testing.T) {
	c, br, base := nyBrowserFixture(t, `<html><body><main><p>No results</p></main></body></html>`)

	docs, err := c.NewYork(context.Background(), "privacy")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, legal.ConfidencePlaceholder, docs[0].Confidence)
	assert.Equal(t, base+"/legislation/laws/CONSOLIDATED", docs[0].SourceURL)
	assert.Equal(t, 1, br.Closes())
}

func TestNewYorkBrowserFailureNamesManualURL(t *testing.T) {
	c, br, base := nyBrowserFixture(t, nyResultsHTML)
	br.OpenErr = errors.New("chrome not installed")

	_, err := c.NewYork(context.Background(), "privacy")
	require.Error(t, err)
	assert.Equal(t, legal.KindUpstream, legal.KindOf(err))
	assert.Contains(t, err.Error(), base+"/legislation/laws/CONSOLIDATED")
	assert.Equal(t, 0, br.Closes())
}

func TestIllinois(t *testing.T) {
	listing := `<html><body><h1>Illinois Compiled Statutes</h1><p>` + lawText("Chapters of the ILCS.") + `</p>
		<a href="ilcs3.asp?ActID=2702">Personal Information Protection Act</a>
		<a href="ilcs3.asp?ActID=3004">Biometric Information Privacy Act</a>
		<a href="/privacy-notice">Notice</a>
	</body></html>`
	mux := http.NewServeMux()
	mux.HandleFunc("GET /legislation/ilcs/ilcs3.asp", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3004", r.URL.Query().Get("ActID"))
		_, _ = w.Write([]byte(`<html><body><nav>menu</nav><p>` + strings.Repeat("Biometric identifiers are unlike other unique identifiers. ", 60) + `</p></body></html>`))
	})
	mux.HandleFunc("GET /legislation/ilcs/ilcs.asp", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listing))
	})
	c, srv := newTestClient(t, mux, nil)

	t.Run("curated bipa", func(t *testing.T) {
		docs, err := c.Illinois(context.Background(), "biometric privacy")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		sourcetest.CheckDocuments(t, docs, IllinoisTextCap)
		assert.Equal(t, "740 ILCS 14", docs[0].Identifier)
		assert.Equal(t, legal.ConfidenceCurated, docs[0].Confidence)
		assert.Len(t, docs[0].ExtractedText, IllinoisTextCap)
		assert.NotContains(t, docs[0].ExtractedText, "menu")
	})

	t.Run("listing links", func(t *testing.T) {
		docs, err := c.Illinois(context.Background(), "privacy")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "Biometric Information Privacy Act", docs[0].Title)
		assert.Equal(t, srv.URL+"/legislation/ilcs/ilcs3.asp?ActID=3004", docs[0].SourceURL)
		assert.Equal(t, srv.URL+"/privacy-notice", docs[1].SourceURL)
	})

	t.Run("placeholder", func(t *testing.T) {
		docs, err := c.Illinois(context.Background(), "zoning")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, `Search Results for "zoning"`, docs[0].Title)
		assert.Equal(t, srv.URL+"/search/search.asp?search_text=zoning", docs[0].SourceURL)
	})
}

func TestIllinoisFailureBecomesScrapingErrorDocument(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}), nil)

	docs, err := c.Search(context.Background(), legal.Query{Keyword: "privacy", Filter: map[string]string{"state": "il"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Scraping Error", docs[0].Title)
	assert.Equal(t, "Error", docs[0].Metadata["section"])
	assert.Equal(t, srv.URL+"/legislation/ilcs/ilcs.asp", docs[0].SourceURL)
	assert.Contains(t, docs[0].ExtractedText, "Please verify manually")
}
