package cmd

import (
	"fmt"

	"github.com/fluent/fluent-logger-golang/fluent"

	"propscout/config"
	"propscout/scraper"
	"propscout/scraper/browser"
	"propscout/scraper/rightmove"
	"propscout/scraper/zoopla"
	"propscout/services"
	"propscout/storage"
	"propscout/utils"
)

// app is the composition root: every long-lived resource is created here
// and released by Close.
type app struct {
	cfg     *config.Config
	logger  *utils.Logger
	fluent  *fluent.Fluent
	cache   storage.Cache
	store   *services.PropertyStore
	limiter *utils.RateLimiter
	session *browser.Session
	scraper *scraper.Scraper
	images  *services.ImageFetcher
}

func loadConfig() *config.Config {
	if Flags.EnvFile != "" {
		return config.LoadFile(Flags.EnvFile)
	}
	return config.Load()
}

func newApp() (*app, error) {
	cfg := loadConfig()
	a := &app{cfg: cfg}

	opts := utils.LoggerOptions{
		Level: cfg.LogLevel,
		JSON:  cfg.LogFormat == "json",
	}
	if Flags.Verbose {
		opts.Level = "debug"
	}
	if cfg.FluentEnabled {
		f, err := fluent.New(fluent.Config{
			FluentHost: cfg.FluentHost,
			FluentPort: cfg.FluentPort,
			Async:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to fluent: %w", err)
		}
		a.fluent = f
		opts.Fluent = f
		opts.FluentTag = appName
	}
	a.logger = utils.NewLoggerWithOptions(opts)

	switch cfg.CacheBackend {
	case "postgres":
		pc, err := storage.NewPostgresCache(cfg.DSN(), cfg.CacheTTL, cfg.CacheSweepInterval, a.logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("postgres cache: %w", err)
		}
		a.cache = pc
	case "memory", "":
		a.cache = storage.NewMemoryCache(cfg.CacheTTL, cfg.CacheSweepInterval, a.logger)
	default:
		a.Close()
		return nil, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
	}
	a.store = services.NewPropertyStore(a.cache, a.logger)

	a.limiter = utils.NewRateLimiter(cfg.RateLimitMaxRequests, cfg.RateLimitWindow, cfg.RateLimitDelay, a.logger)
	a.session = browser.NewSession(browser.Options{
		ChromeBin:   cfg.ChromeBin,
		Headless:    cfg.Headless,
		UserAgent:   cfg.UserAgent,
		NavTimeout:  cfg.NavTimeout,
		SettleDelay: cfg.SettleDelay,
	}, a.logger)
	a.scraper = scraper.New(a.session, a.limiter, a.logger, scraper.Options{
		DefaultSource:   rightmove.Name,
		DefaultMaxPages: cfg.DefaultMaxPages,
		MaxRetries:      cfg.MaxRetries,
	}, rightmove.New(), zoopla.New())
	a.images = services.NewImageFetcher(cfg.UserAgent, cfg.ImageFetchRPS, cfg.ImageFetchTimeout, a.logger)

	a.logger.Info("[app] Cache: %s (ttl %v) | rate limit: %d per %v, %v apart | pages: %d",
		cfg.CacheBackend, cfg.CacheTTL, cfg.RateLimitMaxRequests, cfg.RateLimitWindow,
		cfg.RateLimitDelay, cfg.DefaultMaxPages)
	return a, nil
}

// Close releases resources in reverse order of creation.
func (a *app) Close() {
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.session != nil {
		a.session.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("[app] Closing cache: %v", err)
		}
	}
	if a.fluent != nil {
		_ = a.fluent.Close()
	}
}
