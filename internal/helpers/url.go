// Package helpers holds small utilities shared by the sweep and cache layers.
package helpers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/mohammad-safakhou/legalmcp/internal/legal"
)

// volatileQueryParams vary between requests for the same document: tracking
// tags, EUR-Lex query ids and servlet session ids.
var volatileQueryParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"qid":          {},
	"jsessionid":   {},
}

// CanonicalURL normalises a URL for comparison: lower-case scheme and host,
// default ports and fragments dropped, path cleaned, volatile query
// parameters removed and the rest sorted. A missing scheme defaults to https.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	u, err := parseLenient(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Scheme = strings.ToLower(u.Scheme)

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", errors.New("url missing host")
	}
	if port := u.Port(); port != "" && !(u.Scheme == "http" && port == "80") && !(u.Scheme == "https" && port == "443") {
		host += ":" + port
	}
	u.Host = host

	// Matrix parameters such as ;jsessionid=... are not part of the resource.
	if i := strings.Index(strings.ToLower(u.Path), ";jsessionid="); i >= 0 {
		u.Path = u.Path[:i]
	}
	clean := path.Clean("/" + u.Path)
	if clean != "/" && strings.HasSuffix(u.Path, "/") {
		clean += "/"
	}
	u.Path = clean
	u.RawPath = ""
	u.Fragment = ""

	q := u.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		if _, drop := volatileQueryParams[strings.ToLower(k)]; drop {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		vals := append([]string(nil), q[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			if v != "" {
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
	}
	u.RawQuery = b.String()
	return u.String(), nil
}

// URLFingerprint returns the SHA-256 hex digest of the canonical URL.
func URLFingerprint(raw string) (string, error) {
	canonical, err := CanonicalURL(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

// DocumentKey identifies a document across fan-out results. Several records
// can share a listing URL, so the identifier and provenance take part.
func DocumentKey(d legal.Document) string {
	u, err := CanonicalURL(d.SourceURL)
	if err != nil {
		u = d.SourceURL
	}
	sum := sha256.Sum256([]byte(string(d.SourceKind) + "\x00" + d.Jurisdiction + "\x00" + d.Identifier + "\x00" + u))
	return hex.EncodeToString(sum[:])
}

// Dedupe drops documents whose DocumentKey was already seen, keeping order.
func Dedupe(docs []legal.Document) []legal.Document {
	seen := make(map[string]struct{}, len(docs))
	out := make([]legal.Document, 0, len(docs))
	for _, d := range docs {
		k := DocumentKey(d)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, d)
	}
	return out
}

func parseLenient(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" && u.Host == "" {
		if strings.HasPrefix(raw, "//") {
			return url.Parse("https:" + raw)
		}
		return url.Parse("https://" + raw)
	}
	return u, nil
}
