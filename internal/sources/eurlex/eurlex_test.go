package eurlex

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/legalmcp/internal/browser/browsertest"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/sourcetest"
)

const searchPage = `<html><body>
<div class="SearchResult"><h2><a class="title" href="./legal-content/EN/TXT/?uri=CELEX:32016R0679&amp;qid=1">Regulation (EU) 2016/679</a></h2></div>
<div class="SearchResult"><h2><a class="title" href="./legal-content/EN/TXT/?uri=CELEX:32016R0679&amp;qid=1">duplicate</a></h2></div>
<div class="SearchResult"><h2><a class="title" href="./legal-content/EN/TXT/?uri=CELEX:32016R0679&amp;summ=1">summary</a></h2></div>
<div class="SearchResult"><h2><a class="title" href="./legal-content/EN/AUTO_/?uri=x">auto</a></h2></div>
<div class="SearchResult"><h2><a class="title" href="https://eur-lex.example/legal-content/EN/TXT/?uri=CELEX:32024R1689">AI Act</a></h2></div>
<p>` + `Lots of search chrome to make the page look plausible to the static fetcher.` + `</p>
<a class="title" href="/ignored">ignored because h2 a.title matched first</a>
</body></html>`

func gdprPage() string {
	return `<html><head><title>Regulation (EU) 2016/679 - General Data Protection Regulation</title>
<meta property="eli:date_document" content="2016-04-27"></head><body>
<p class="oj-normal">This Regulation lays down rules relating to the protection of natural persons.</p>
<p class="oj-normal">short</p>
<p class="oj-normal">We use cookies to improve the experience on this website, accept all cookies.</p>
<p class="oj-normal">` + strings.Repeat("This Regulation protects fundamental rights and freedoms. ", 300) + `</p>
</body></html>`
}

func newTestClient(t *testing.T, srvURL string, br *browsertest.Browser) *Client {
	t.Helper()
	var c *Client
	if br == nil {
		c = New(nil, sourcetest.Options(srvURL)...)
	} else {
		c = New(br, sourcetest.Options(srvURL)...)
	}
	c.CourtesyDelay = 0
	c.logger = log.New(io.Discard, "", 0)
	return c
}

func TestParseSearchResults(t *testing.T) {
	results := ParseSearchResults(searchPage, "https://eur-lex.europa.eu/search.html?text=gdpr")
	require.Len(t, results, 2)
	assert.Equal(t, "https://eur-lex.europa.eu/legal-content/EN/TXT/?uri=CELEX:32016R0679&qid=1", results[0].URL)
	assert.Equal(t, "Regulation (EU) 2016/679", results[0].Title)
	assert.Equal(t, "https://eur-lex.example/legal-content/EN/TXT/?uri=CELEX:32024R1689", results[1].URL)
}

func TestParseDetail(t *testing.T) {
	d := parseDetail(gdprPage(), "https://eur-lex.europa.eu/legal-content/EN/TXT/?uri=CELEX:32016R0679", "")
	assert.Equal(t, "32016R0679", d.CELEX)
	assert.Equal(t, "2016-04-27", d.Date)
	assert.Equal(t, "Regulation (EU) 2016/679 - General Data Protection Regulation", d.Title)
	assert.True(t, strings.HasPrefix(d.Text, "This Regulation lays down rules"))
	assert.NotContains(t, d.Text, "cookies")
	assert.NotContains(t, d.Text, "short")
	assert.Len(t, []rune(d.Text), TextCap)

	d = parseDetail(`<html><head><meta property="eli:id_local" content="32023R1114"></head><body><h1>MiCA</h1><span class="doc-date">Date: 31/05/2023</span></body></html>`, "https://eur-lex.europa.eu/eli/reg/2023/1114", "")
	assert.Equal(t, "32023R1114", d.CELEX)
	assert.Equal(t, "31/05/2023", d.Date)
	assert.Equal(t, "MiCA", d.Title)
	assert.NotEmpty(t, d.Text)
}

func TestResolveCELEX(t *testing.T) {
	for in, want := range map[string]string{"GDPR": "32016R0679", "ai-act": "32024R1689", "mica": "32023R1114", "32019l0790": "32019L0790"} {
		got, ok := ResolveCELEX(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ResolveCELEX("data protection")
	assert.False(t, ok)
}

func TestSearchEscalatesBlockedDetailToBrowser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search.html", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "privacy", r.URL.Query().Get("text"))
		assert.Equal(t, "quick", r.URL.Query().Get("type"))
		_, _ = w.Write([]byte(strings.ReplaceAll(searchPage, "https://eur-lex.example", "")))
	})
	mux.HandleFunc("GET /legal-content/EN/TXT/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("uri") == "CELEX:32024R1689" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(gdprPage()))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	br := browsertest.New()
	br.Pages[srv.URL+"/legal-content/EN/TXT/?uri=CELEX:32024R1689"] = browsertest.Page{
		Title: "Regulation (EU) 2024/1689",
		HTML:  `<html><head><title>Regulation (EU) 2024/1689 (Artificial Intelligence Act)</title></head><body><div class="date">12/07/2024</div><div id="document-content"><p>Harmonised rules on artificial intelligence are laid down.</p></div></body></html>`,
	}

	c := newTestClient(t, srv.URL, br)
	docs, err := c.Search(context.Background(), legal.Query{Keyword: "privacy"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	sourcetest.CheckDocuments(t, docs, TextCap)

	assert.Equal(t, "32016R0679", docs[0].Identifier)
	assert.Equal(t, "false", docs[0].Metadata["rendered"])
	assert.Equal(t, legal.ConfidenceSearchHit, docs[0].Confidence)

	assert.Equal(t, "32024R1689", docs[1].Identifier)
	assert.Equal(t, "true", docs[1].Metadata["rendered"])
	assert.Equal(t, "Harmonised rules on artificial intelligence are laid down.", docs[1].ExtractedText)
	require.NotNil(t, docs[1].PublicationDate)
	assert.Equal(t, "2024-07-12", docs[1].PublicationDate.Format("2006-01-02"))

	assert.Equal(t, 1, br.Opens())
	assert.Equal(t, 1, br.Closes())
}

func TestAliasLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/legal-content/EN/TXT/", r.URL.Path)
		assert.Equal(t, "CELEX:32016R0679", r.URL.Query().Get("uri"))
		_, _ = w.Write([]byte(gdprPage()))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	docs, err := c.Search(context.Background(), legal.Query{Keyword: "GDPR"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, legal.ConfidenceExact, docs[0].Confidence)
	assert.Equal(t, legal.JurisdictionEU, docs[0].Jurisdiction)

	docs, err = c.Search(context.Background(), legal.Query{Keyword: "data protection", Filter: map[string]string{"regulation_id": "gdpr"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestBlockedPagesWithoutBrowserAreSkipped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search.html", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.ReplaceAll(searchPage, "https://eur-lex.example", "")))
	})
	mux.HandleFunc("GET /legal-content/EN/TXT/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>ERROR: The request could not be satisfied</title></head><body>` + strings.Repeat("Request blocked. ", 20) + `</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	docs, err := newTestClient(t, srv.URL, nil).Search(context.Background(), legal.Query{Keyword: "privacy"})
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}
