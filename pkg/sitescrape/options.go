package sitescrape

import (
	"context"
	"net/http"

	"github.com/jmylchreest/sitescrape/pkg/export"
	"github.com/jmylchreest/sitescrape/pkg/extract"
	"github.com/jmylchreest/sitescrape/pkg/fetcher"
	"github.com/jmylchreest/sitescrape/pkg/page"
	"github.com/jmylchreest/sitescrape/pkg/scope"
	"github.com/jmylchreest/sitescrape/pkg/search"
)

// Exporter renders the crawled pages.
type Exporter interface {
	Export(ctx context.Context, pages []page.Page) export.Export
}

// Config holds all pipeline configuration. It is copied into the
// Pipeline and never modified afterwards.
type Config struct {
	UserAgent string
	Scope     scope.Policy
	TextMode  extract.Mode

	MaxBodyBytes int64
	MaxRedirects int
	// Transport replaces the round tripper of every fetch strategy.
	Transport http.RoundTripper

	Search search.Config
	Export export.Config

	// Injected components; nil selects the default cascades.
	Fetcher  fetcher.Fetcher
	Searcher search.Searcher
	Exporter Exporter
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	fc := fetcher.DefaultConfig()
	return Config{
		UserAgent:    fc.UserAgent,
		Scope:        scope.DefaultPolicy,
		TextMode:     extract.ModeVisible,
		MaxBodyBytes: fc.MaxBodyBytes,
		MaxRedirects: fc.MaxRedirects,
		Search:       search.DefaultConfig(),
	}
}

// Option configures a Pipeline.
type Option func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithFetcher injects the page fetcher.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *Config) {
		c.Fetcher = f
	}
}

// WithSearcher injects seed discovery.
func WithSearcher(s search.Searcher) Option {
	return func(c *Config) {
		c.Searcher = s
	}
}

// WithExporter injects the renderer.
func WithExporter(e Exporter) Option {
	return func(c *Config) {
		c.Exporter = e
	}
}

// WithUserAgent sets the default user agent.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// WithScope sets the domain containment policy.
func WithScope(p scope.Policy) Option {
	return func(c *Config) {
		c.Scope = p
	}
}

// WithTextMode sets how page text is extracted.
func WithTextMode(m extract.Mode) Option {
	return func(c *Config) {
		c.TextMode = m
	}
}

// WithTransport routes every request through rt.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Config) {
		c.Transport = rt
	}
}
