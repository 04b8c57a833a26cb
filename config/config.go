package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingCredential is returned by LoadConfig when the mandatory GovInfo key is absent.
var ErrMissingCredential = errors.New("GOVINFO_API_KEY environment variable is required")

// Config holds all configuration for the legal research server
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Transport   TransportConfig   `mapstructure:"transport"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Scraping    ScrapingConfig    `mapstructure:"scraping"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Server      ServerConfig      `mapstructure:"server"`
	Sweep       SweepConfig       `mapstructure:"sweep"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	ServiceName string        `mapstructure:"service_name"`
	ToolTimeout time.Duration `mapstructure:"tool_timeout"`
	Debug       bool          `mapstructure:"debug"`
}

func (g GeneralConfig) Normalize() GeneralConfig {
	if strings.TrimSpace(g.ServiceName) == "" {
		g.ServiceName = "legalmcp"
	}
	if g.ToolTimeout <= 0 {
		g.ToolTimeout = 60 * time.Second
	}
	return g
}

// CredentialsConfig holds upstream API keys. Only GovInfo is mandatory; the
// others gate the operations that need them.
type CredentialsConfig struct {
	GovInfo       string `mapstructure:"govinfo_api_key"`
	CourtListener string `mapstructure:"courtlistener_api_key"`
	Congress      string `mapstructure:"congress_gov_api_key"`
	OpenStates    string `mapstructure:"open_states_api_key"`
	CanLII        string `mapstructure:"canlii_api_key"`
}

// credentialEnv maps config keys to the bare environment variables operators set.
var credentialEnv = map[string]string{
	"credentials.govinfo_api_key":       "GOVINFO_API_KEY",
	"credentials.courtlistener_api_key": "COURTLISTENER_API_KEY",
	"credentials.congress_gov_api_key":  "CONGRESS_GOV_API_KEY",
	"credentials.open_states_api_key":   "OPEN_STATES_API_KEY",
	"credentials.canlii_api_key":        "CANLII_API_KEY",
}

// Env returns the credentials keyed by environment variable name.
func (c CredentialsConfig) Env() map[string]string {
	out := map[string]string{
		"GOVINFO_API_KEY":       c.GovInfo,
		"COURTLISTENER_API_KEY": c.CourtListener,
		"CONGRESS_GOV_API_KEY":  c.Congress,
		"OPEN_STATES_API_KEY":   c.OpenStates,
		"CANLII_API_KEY":        c.CanLII,
	}
	for k, v := range out {
		v = strings.TrimSpace(v)
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

func (c CredentialsConfig) Validate() error {
	if strings.TrimSpace(c.GovInfo) == "" {
		return ErrMissingCredential
	}
	return nil
}

// TransportConfig tunes the shared HTTP client used by every adapter.
type TransportConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
	UserAgent    string        `mapstructure:"user_agent"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

func (t TransportConfig) Normalize() TransportConfig {
	if t.Timeout <= 0 {
		t.Timeout = 30 * time.Second
	}
	if t.MaxRetries < 0 {
		t.MaxRetries = 0
	}
	if t.BaseDelay <= 0 {
		t.BaseDelay = time.Second
	}
	if t.MaxBodyBytes <= 0 {
		t.MaxBodyBytes = 32 << 20
	}
	t.UserAgent = strings.TrimSpace(t.UserAgent)
	return t
}

func (t TransportConfig) Validate() error {
	if t.Timeout < 10*time.Second || t.Timeout > 45*time.Second {
		return fmt.Errorf("transport.timeout must be between 10s and 45s, got %s", t.Timeout)
	}
	if t.MaxRetries > 10 {
		return fmt.Errorf("transport.max_retries must be <= 10, got %d", t.MaxRetries)
	}
	return nil
}

// BrowserConfig controls the headless Chrome used by scraping adapters.
type BrowserConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ExecPath          string        `mapstructure:"exec_path"`
	Headless          bool          `mapstructure:"headless"`
	NoSandbox         bool          `mapstructure:"no_sandbox"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
}

func (b BrowserConfig) Normalize() BrowserConfig {
	if b.NavigationTimeout <= 0 {
		b.NavigationTimeout = 30 * time.Second
	}
	b.ExecPath = strings.TrimSpace(b.ExecPath)
	return b
}

func (b BrowserConfig) Validate() error {
	if b.NavigationTimeout > 45*time.Second {
		return fmt.Errorf("browser.navigation_timeout must be <= 45s, got %s", b.NavigationTimeout)
	}
	if b.ExecPath != "" {
		if _, err := os.Stat(b.ExecPath); err != nil {
			return fmt.Errorf("browser.exec_path: %w", err)
		}
	}
	return nil
}

// ScrapingConfig holds politeness settings for HTML scraping.
type ScrapingConfig struct {
	CourtesyDelay    time.Duration `mapstructure:"courtesy_delay"`
	MinContentLength int           `mapstructure:"min_content_length"`
}

func (s ScrapingConfig) Normalize() ScrapingConfig {
	if s.CourtesyDelay < 0 {
		s.CourtesyDelay = 0
	}
	if s.MinContentLength <= 0 {
		s.MinContentLength = 50
	}
	return s
}

// CacheConfig selects the tool response cache backend.
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Size    int           `mapstructure:"size"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

func (c CacheConfig) Normalize() CacheConfig {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = "none"
	}
	if c.TTL <= 0 {
		c.TTL = 15 * time.Minute
	}
	if c.Size <= 0 {
		c.Size = 512
	}
	return c
}

func (c CacheConfig) Validate() error {
	switch c.Backend {
	case "none", "memory":
		return nil
	case "redis":
		return c.Redis.Validate()
	}
	return fmt.Errorf("cache.backend must be none, memory or redis, got %q", c.Backend)
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("cache.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("cache.redis.port required")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MetricsPort  int    `mapstructure:"metrics_port"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort < 0 {
		return fmt.Errorf("telemetry.metrics_port must be >= 0 when telemetry is enabled")
	}
	return nil
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

func (s ServerConfig) Normalize() ServerConfig {
	s.Address = strings.TrimSpace(s.Address)
	if s.Address == "" {
		s.Address = ":10001"
	}
	if s.Address[0] != ':' && !strings.Contains(s.Address, ":") {
		s.Address = ":" + s.Address
	}
	return s
}

// SweepConfig tunes the 50-state bulk sweep.
type SweepConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	Pause          time.Duration `mapstructure:"pause"`
	GlobalLimit    int           `mapstructure:"global_limit"`
}

func (s SweepConfig) Normalize() SweepConfig {
	if s.MaxRetries <= 0 {
		s.MaxRetries = 3
	}
	if s.InitialBackoff <= 0 {
		s.InitialBackoff = 2 * time.Second
	}
	if s.Pause < 0 {
		s.Pause = 0
	}
	if s.GlobalLimit <= 0 {
		s.GlobalLimit = 4
	}
	return s
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.service_name", "legalmcp")
	v.SetDefault("general.tool_timeout", "60s")
	v.SetDefault("transport.timeout", "30s")
	v.SetDefault("transport.max_retries", 3)
	v.SetDefault("transport.base_delay", "1s")
	v.SetDefault("transport.user_agent", "")
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("scraping.courtesy_delay", "500ms")
	v.SetDefault("scraping.min_content_length", 50)
	v.SetDefault("sources.uscode_edition", "2021")
	v.SetDefault("sources.sec_user_agent", "legalmcp research contact@example.com")
	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.ttl", "15m")
	v.SetDefault("cache.size", 512)
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", "6379")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.metrics_port", 0)
	v.SetDefault("server.address", ":10001")
	v.SetDefault("sweep.max_retries", 3)
	v.SetDefault("sweep.initial_backoff", "2s")
	v.SetDefault("sweep.pause", "1500ms")
	v.SetDefault("sweep.global_limit", 4)
}

// LoadConfig reads an optional config file (JSON unless path names another
// format) and overlays LEGALMCP_* environment variables. Credentials are read
// from their bare names (GOVINFO_API_KEY, ...).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("LEGALMCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range credentialEnv {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize applies defaults and clamps to every section.
func (c *Config) Normalize() {
	c.General = c.General.Normalize()
	c.Transport = c.Transport.Normalize()
	c.Browser = c.Browser.Normalize()
	c.Scraping = c.Scraping.Normalize()
	c.Sources = c.Sources.Normalize()
	c.Cache = c.Cache.Normalize()
	c.Server = c.Server.Normalize()
	c.Sweep = c.Sweep.Normalize()
}

// Validate checks every section; the first failure wins.
func (c *Config) Validate() error {
	if err := c.Credentials.Validate(); err != nil {
		return err
	}
	for _, check := range []func() error{
		c.Transport.Validate,
		c.Browser.Validate,
		c.Sources.Validate,
		c.Cache.Validate,
		c.Telemetry.Validate,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}
