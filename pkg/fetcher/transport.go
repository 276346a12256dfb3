package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// TransportFetcher is the secondary strategy: a net/http client on a tuned
// transport that negotiates compression and decodes bodies itself.
type TransportFetcher struct {
	client *http.Client
	config Config
}

// NewTransport creates the secondary fetch strategy.
func NewTransport(cfg Config) *TransportFetcher {
	cfg = cfg.withDefaults()

	var rt http.RoundTripper = cfg.Transport
	if rt == nil {
		rt = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		}
	}

	return &TransportFetcher{
		client: &http.Client{
			Transport:     rt,
			CheckRedirect: redirectPolicy(cfg.MaxRedirects),
		},
		config: cfg,
	}
}

// Fetch downloads a single URL.
func (f *TransportFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Result, error) {
	start := time.Now()
	result := Result{
		URL:       targetURL,
		FinalURL:  targetURL,
		Strategy:  StrategyTransport,
		FetchedAt: start,
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOr(opts.Timeout, f.config.Timeout))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return result, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", coalesce(opts.UserAgent, f.config.UserAgent))
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("http fetch failed: %w", err)
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

	body, err := f.readBody(resp)
	result.Duration = time.Since(start)
	if err != nil {
		return result, err
	}
	result.Body = body
	return result, nil
}

func (f *TransportFetcher) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer func() { _ = fl.Close() }()
		reader = fl
	}

	return readLimited(reader, f.config.MaxBodyBytes)
}

// Strategy returns the fetcher identity.
func (f *TransportFetcher) Strategy() Strategy {
	return StrategyTransport
}

var _ Fetcher = (*TransportFetcher)(nil)

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, limit)
	}
	return body, nil
}
