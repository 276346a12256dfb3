package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// StdlibFetcher is the last resort: a plain net/http client with no
// tuning, kept deliberately minimal so it works wherever Go does.
type StdlibFetcher struct {
	client *http.Client
	config Config
}

// NewStdlib creates the minimal fetch strategy.
func NewStdlib(cfg Config) *StdlibFetcher {
	cfg = cfg.withDefaults()
	return &StdlibFetcher{
		client: &http.Client{
			Transport:     cfg.Transport,
			CheckRedirect: redirectPolicy(cfg.MaxRedirects),
		},
		config: cfg,
	}
}

// Fetch downloads a single URL.
func (f *StdlibFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Result, error) {
	start := time.Now()
	result := Result{
		URL:       targetURL,
		FinalURL:  targetURL,
		Strategy:  StrategyStdlib,
		FetchedAt: start,
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOr(opts.Timeout, f.config.Timeout))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return result, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", coalesce(opts.UserAgent, f.config.UserAgent))

	resp, err := f.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	result.ContentType = resp.Header.Get("Content-Type")
	if resp.Request != nil && resp.Request.URL != nil {
		result.FinalURL = resp.Request.URL.String()
	}
	if err := checkStatus(targetURL, resp.StatusCode); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	body, err := readLimited(resp.Body, f.config.MaxBodyBytes)
	result.Duration = time.Since(start)
	if err != nil {
		return result, err
	}
	result.Body = body
	return result, nil
}

// Strategy returns the fetcher identity.
func (f *StdlibFetcher) Strategy() Strategy {
	return StrategyStdlib
}

var _ Fetcher = (*StdlibFetcher)(nil)
