// Package fetcher retrieves single web pages over HTTP.
//
// Several interchangeable Fetcher strategies are provided. A Cascade tries
// them in priority order and returns the first successful response, so a
// crawl keeps working when one HTTP stack misbehaves for a given site.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Strategy identifies the HTTP client that produced a Result.
type Strategy string

const (
	// StrategyColly is the primary, full-featured client (gocolly).
	StrategyColly Strategy = "colly"
	// StrategyTransport is the secondary client with a tuned transport.
	StrategyTransport Strategy = "transport"
	// StrategyStdlib is the minimal net/http last resort.
	StrategyStdlib Strategy = "stdlib"
)

// Fetcher abstracts a single page retrieval strategy.
type Fetcher interface {
	// Fetch performs one GET request. Implementations follow redirects
	// themselves and report non-2xx responses as *StatusError.
	Fetch(ctx context.Context, url string, opts Options) (Result, error)

	// Strategy returns the identity recorded on results.
	Strategy() Strategy
}

// Options controls a single fetch.
type Options struct {
	UserAgent string
	Timeout   time.Duration
}

// Config is shared by all built-in strategies.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodyBytes caps the decompressed body; larger responses fail with ErrBodyTooLarge.
	MaxBodyBytes int64
	MaxRedirects int
	// Transport overrides the round tripper of every strategy when set.
	Transport http.RoundTripper
}

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:    DefaultUserAgent,
		Timeout:      15 * time.Second,
		MaxBodyBytes: 10 << 20,
		MaxRedirects: 10,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = def.MaxRedirects
	}
	return c
}

// Result is an immutable HTTP response snapshot.
type Result struct {
	URL         string
	FinalURL    string
	StatusCode  int
	Body        []byte
	ContentType string
	Strategy    Strategy
	FetchedAt   time.Time
	Duration    time.Duration
}

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

var (
	// ErrTooManyRedirects is returned when a redirect chain exceeds the limit.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrBodyTooLarge is returned when a response body exceeds the size cap.
	ErrBodyTooLarge = errors.New("response body too large")
)

// AttemptError records the failure of one strategy.
type AttemptError struct {
	Strategy Strategy
	Err      error
}

// FetchError is returned when every strategy failed for a URL.
type FetchError struct {
	URL      string
	Attempts []AttemptError
}

func (e *FetchError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return fmt.Sprintf("all fetch strategies failed for %s (%s)", e.URL, strings.Join(parts, "; "))
}

// Unwrap exposes every attempt's cause to errors.Is and errors.As.
func (e *FetchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// StatusCode returns the HTTP status of the last attempt that got a
// response, or 0 when no strategy reached the server.
func (e *FetchError) StatusCode() int {
	for i := len(e.Attempts) - 1; i >= 0; i-- {
		var se *StatusError
		if errors.As(e.Attempts[i].Err, &se) {
			return se.StatusCode
		}
	}
	return 0
}

func checkStatus(url string, code int) error {
	if code < 200 || code > 299 {
		return &StatusError{URL: url, StatusCode: code}
	}
	return nil
}

func redirectPolicy(max int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return fmt.Errorf("%w: stopped after %d hops", ErrTooManyRedirects, len(via))
		}
		return nil
	}
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func timeoutOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
