package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/sitescrape/internal/logger"
)

// CollyFetcher uses Colly, the primary and most complete HTTP stack.
type CollyFetcher struct {
	config Config
}

// NewColly creates the primary fetch strategy.
func NewColly(cfg Config) *CollyFetcher {
	return &CollyFetcher{config: cfg.withDefaults()}
}

// Fetch retrieves a page using a fresh collector.
func (f *CollyFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Result, error) {
	start := time.Now()
	result := Result{
		URL:       targetURL,
		FinalURL:  targetURL,
		Strategy:  StrategyColly,
		FetchedAt: start,
	}

	// Create a new collector for each request
	userAgent := coalesce(opts.UserAgent, f.config.UserAgent)
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
		colly.MaxBodySize(int(f.config.MaxBodyBytes)+1),
		colly.AllowURLRevisit(),
	)
	// Bodies stay in their declared charset; the extractor decodes them.
	c.DetectCharset = false
	rt := &rawCharsetTransport{base: f.config.Transport}
	if rt.base == nil {
		rt.base = http.DefaultTransport
	}
	c.WithTransport(rt)
	c.SetRequestTimeout(timeoutOr(opts.Timeout, f.config.Timeout))
	c.SetRedirectHandler(redirectPolicy(f.config.MaxRedirects))

	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		if int64(len(r.Body)) > f.config.MaxBodyBytes {
			fetchErr = fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, f.config.MaxBodyBytes)
			return
		}
		result.Body = r.Body
		result.ContentType = rt.contentType
		if r.Request != nil && r.Request.URL != nil {
			result.FinalURL = r.Request.URL.String()
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result.StatusCode = r.StatusCode
			fetchErr = &StatusError{URL: targetURL, StatusCode: r.StatusCode}
			return
		}
		fetchErr = fmt.Errorf("colly: %w", err)
	})

	logger.Debug("colly fetch", "url", targetURL, "user_agent", userAgent)
	visitErr := c.Visit(targetURL)
	result.Duration = time.Since(start)

	if fetchErr != nil {
		return result, fetchErr
	}
	if visitErr != nil {
		return result, fmt.Errorf("colly visit: %w", visitErr)
	}
	if err := checkStatus(targetURL, result.StatusCode); err != nil {
		return result, err
	}
	return result, nil
}

// Strategy returns the fetcher identity.
func (f *CollyFetcher) Strategy() Strategy {
	return StrategyColly
}

var _ Fetcher = (*CollyFetcher)(nil)

// rawCharsetTransport hides the charset parameter from colly, which would
// otherwise transcode the body to UTF-8 while the header still names the
// source charset. The declared Content-Type of the last response is kept.
type rawCharsetTransport struct {
	base        http.RoundTripper
	contentType string
}

func (t *rawCharsetTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	ct := resp.Header.Get("Content-Type")
	t.contentType = ct
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		resp.Header.Set("Content-Type", strings.TrimSpace(ct[:i]))
	}
	return resp, nil
}
