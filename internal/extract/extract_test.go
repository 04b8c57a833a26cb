package extract

import (
	"strings"
	"testing"
)

const samplePage = `<html><head><title>Title 15</title><script>var x = 1;</script></head>
<body><nav>Home | About</nav>
<div class="analysis">editorial notes</div>
<p>§ 6501.   Definitions</p>
<p>In this chapter the term  "child" means an individual under 13.</p>
<a href="/laws/GBS/899-AA">GBS SECTION 899-AA Data breach</a>
<a href="#">skip</a>
<footer>contact</footer></body></html>`

func TestBodyTextStripsSelectors(t *testing.T) {
	t.Parallel()
	text, err := BodyText(samplePage, "script", "style", "nav", "footer", ".analysis")
	if err != nil {
		t.Fatalf("BodyText() error = %v", err)
	}
	for _, banned := range []string{"Home", "editorial", "contact", "var x"} {
		if strings.Contains(text, banned) {
			t.Fatalf("text still contains %q: %q", banned, text)
		}
	}
	if !strings.Contains(text, `§ 6501. Definitions In this chapter the term "child"`) {
		t.Fatalf("whitespace not collapsed: %q", text)
	}
}

func TestFirstText(t *testing.T) {
	t.Parallel()
	doc, err := Parse(`<div class="sectionText"> body </div><div id="other">x</div>`)
	if err != nil {
		t.Fatal(err)
	}
	if got := FirstText(doc, ".codeSection", ".sectionText", "#other"); got != "body" {
		t.Fatalf("FirstText() = %q", got)
	}
	if got := FirstText(doc, ".missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestLinksResolveAgainstBase(t *testing.T) {
	t.Parallel()
	doc, err := Parse(samplePage)
	if err != nil {
		t.Fatal(err)
	}
	links := Links(doc, "", "https://www.nysenate.gov/legislation/laws/search")
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %#v", links)
	}
	if links[0].Href != "https://www.nysenate.gov/laws/GBS/899-AA" {
		t.Fatalf("href = %q", links[0].Href)
	}
}

func TestPDFTextRejectsGarbage(t *testing.T) {
	t.Parallel()
	if _, err := PDFText(nil); err == nil {
		t.Fatalf("expected error for empty body")
	}
	if _, err := PDFText([]byte("<html>not a pdf</html>")); err == nil {
		t.Fatalf("expected error for non-pdf body")
	}
	if _, err := PDFText([]byte("%PDF-1.4 truncated garbage")); err == nil {
		t.Fatalf("expected error for malformed pdf")
	}
}
