package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/legalmcp/config"
	"github.com/mohammad-safakhou/legalmcp/internal/browser"
	"github.com/mohammad-safakhou/legalmcp/internal/cache"
	"github.com/mohammad-safakhou/legalmcp/internal/dispatch"
	"github.com/mohammad-safakhou/legalmcp/internal/sweep"
	"github.com/mohammad-safakhou/legalmcp/internal/telemetry"
	"github.com/mohammad-safakhou/legalmcp/internal/transport"
)

// app holds the process-wide collaborators shared by every subcommand.
type app struct {
	cfg      *config.Config
	tel      *telemetry.Telemetry
	cache    cache.Cache
	deps     dispatch.Deps
	registry *dispatch.Registry
	logger   *log.Logger
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if errors.Is(err, config.ErrMissingCredential) {
		return nil, fmt.Errorf("%w (get a free key at https://api.data.gov/signup/)", err)
	}
	return cfg, err
}

// bootstrap loads configuration and wires telemetry, the response cache, the
// browser and the tool registry.
func bootstrap(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: log.New(log.Writer(), "[APP] ", log.LstdFlags)}

	a.tel, err = telemetry.Setup(ctx, cfg.Telemetry, telemetry.Options{ServiceName: cfg.General.ServiceName, ServiceVersion: version})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	a.cache, err = cache.New(ctx, cache.Options{
		Backend:       cfg.Cache.Backend,
		TTL:           cfg.Cache.TTL,
		Size:          cfg.Cache.Size,
		RedisAddr:     cfg.Cache.Redis.Addr(),
		RedisPassword: cfg.Cache.Redis.Password,
		RedisDB:       cfg.Cache.Redis.DB,
		DialTimeout:   cfg.Cache.Redis.Timeout,
	})
	if err != nil {
		_ = a.tel.Shutdown(ctx)
		return nil, fmt.Errorf("cache: %w", err)
	}

	a.deps = buildDeps(cfg)
	a.registry, err = dispatch.NewRegistry(dispatch.Registrations(), a.deps,
		dispatch.WithCache(a.cache),
		dispatch.WithTimeout(cfg.General.ToolTimeout),
		dispatch.WithTracer(a.tel.Tracer()),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func buildDeps(cfg *config.Config) dispatch.Deps {
	opts := []transport.Option{
		transport.WithTimeout(cfg.Transport.Timeout),
		transport.WithRetryPolicy(transport.RetryPolicy{MaxRetries: cfg.Transport.MaxRetries, BaseDelay: cfg.Transport.BaseDelay}),
		transport.WithMaxBodyBytes(cfg.Transport.MaxBodyBytes),
	}
	// Applied after each adapter's own agent, so it overrides them all,
	// including SEC's mandated one. Leave unset unless a proxy requires it.
	if cfg.Transport.UserAgent != "" {
		opts = append(opts, transport.WithUserAgent(cfg.Transport.UserAgent))
	}

	var br browser.Browser
	if cfg.Browser.Enabled {
		br = browser.NewChrome(browser.Options{
			ExecPath:          cfg.Browser.ExecPath,
			Headless:          cfg.Browser.Headless,
			NoSandbox:         cfg.Browser.NoSandbox,
			UserAgent:         cfg.Browser.UserAgent,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
		})
	}

	return dispatch.Deps{
		Credentials:   cfg.Credentials.Env(),
		Browser:       br,
		Transport:     opts,
		BaseURLs:      cfg.Sources.BaseURLs,
		USCodeEdition: cfg.Sources.USCodeEdition,
		SECUserAgent:  cfg.Sources.SECUserAgent,
		CourtesyDelay: cfg.Scraping.CourtesyDelay,
		Sweep: sweep.Options{
			MaxRetries:     cfg.Sweep.MaxRetries,
			InitialBackoff: cfg.Sweep.InitialBackoff,
			Pause:          cfg.Sweep.Pause,
		},
		GlobalLimit: cfg.Sweep.GlobalLimit,
	}
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Printf("closing cache: %v", err)
		}
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Printf("telemetry shutdown: %v", err)
	}
}
