package main

import (
	"context"
	"errors"
	"testing"

	"github.com/mohammad-safakhou/legalmcp/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withCredentials(t *testing.T, creds map[string]string) {
	t.Helper()
	for _, env := range []string{"GOVINFO_API_KEY", "COURTLISTENER_API_KEY", "CONGRESS_GOV_API_KEY", "OPEN_STATES_API_KEY", "CANLII_API_KEY"} {
		t.Setenv(env, creds[env])
	}
	t.Chdir(t.TempDir())
}

func TestLoadConfigMissingKeyDiagnostic(t *testing.T) {
	withCredentials(t, nil)

	_, err := loadConfig("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrMissingCredential))
	assert.Contains(t, err.Error(), "api.data.gov")
}

func TestBootstrapGatesToolsByCredential(t *testing.T) {
	withCredentials(t, map[string]string{"GOVINFO_API_KEY": "gov", "CANLII_API_KEY": "cn"})

	a, err := bootstrap(context.Background(), "")
	require.NoError(t, err)
	defer a.close()

	for _, name := range []string{"search_us_code", "search_cfr", "search_canlii_cases", "search_federal_register", "search_state_law"} {
		assert.True(t, a.registry.Has(name), name)
	}
	for _, name := range []string{"search_case_law", "search_congress_bills", "search_open_states", "get_bill_text"} {
		assert.False(t, a.registry.Has(name), name)
	}
	assert.Len(t, a.registry.Tools(), len(a.registry.Catalogue().Cards()))
}

func TestBuildDepsFromConfig(t *testing.T) {
	withCredentials(t, map[string]string{"GOVINFO_API_KEY": "gov"})
	t.Setenv("LEGALMCP_TRANSPORT_USER_AGENT", "proxy-agent/1.0")
	t.Setenv("LEGALMCP_BROWSER_ENABLED", "false")

	cfg, err := loadConfig("")
	require.NoError(t, err)

	d := buildDeps(cfg)
	assert.Nil(t, d.Browser)
	assert.Len(t, d.Transport, 4)
	assert.Equal(t, "gov", d.Credentials["GOVINFO_API_KEY"])
	assert.Equal(t, cfg.Sources.USCodeEdition, d.USCodeEdition)
	assert.Equal(t, cfg.Sweep.Pause, d.Sweep.Pause)
	assert.Equal(t, cfg.Scraping.CourtesyDelay, d.CourtesyDelay)
}
