package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// SourcesConfig overrides upstream base URLs (mirrors, proxies, test servers)
// and source-specific knobs.
type SourcesConfig struct {
	BaseURLs      map[string]string `mapstructure:"base_urls"`
	USCodeEdition string            `mapstructure:"uscode_edition"`
	SECUserAgent  string            `mapstructure:"sec_user_agent"`
}

// Normalize lower-cases source names, trims URLs and drops empty entries.
func (s SourcesConfig) Normalize() SourcesConfig {
	norm := s
	norm.USCodeEdition = strings.TrimSpace(norm.USCodeEdition)
	if norm.USCodeEdition == "" {
		norm.USCodeEdition = "2021"
	}
	norm.SECUserAgent = strings.TrimSpace(norm.SECUserAgent)
	if len(norm.BaseURLs) == 0 {
		norm.BaseURLs = map[string]string{}
		return norm
	}
	urls := make(map[string]string, len(norm.BaseURLs))
	for name, raw := range norm.BaseURLs {
		key := strings.ToLower(strings.TrimSpace(name))
		val := strings.TrimRight(strings.TrimSpace(raw), "/")
		if key == "" || val == "" {
			continue
		}
		urls[key] = val
	}
	norm.BaseURLs = urls
	return norm
}

// Validate requires every override to be an absolute http(s) URL.
func (s SourcesConfig) Validate() error {
	names := make([]string, 0, len(s.BaseURLs))
	for name := range s.BaseURLs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		u, err := url.Parse(s.BaseURLs[name])
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("sources.base_urls.%s must be an absolute http(s) URL, got %q", name, s.BaseURLs[name])
		}
	}
	if len(s.USCodeEdition) != 4 {
		return fmt.Errorf("sources.uscode_edition must be a year, got %q", s.USCodeEdition)
	}
	return nil
}

// BaseURL returns the override for source, or "".
func (s SourcesConfig) BaseURL(source string) string {
	return s.BaseURLs[strings.ToLower(source)]
}
