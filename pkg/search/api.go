package search

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/jmylchreest/sitescrape/pkg/fetcher"
	"github.com/jmylchreest/sitescrape/pkg/page"
	"github.com/jmylchreest/sitescrape/pkg/scope"
)

var (
	vqdPattern     = regexp.MustCompile(`vqd=["']?([0-9-]+)["'&]?`)
	payloadPattern = regexp.MustCompile(`(?s)DDG\.pageLayout\.load\('d',\s*(\[.*?\])\s*\);`)
)

// APIProvider queries DuckDuckGo's structured result endpoint. It first
// obtains a vqd session token, then reads the JSON result list.
type APIProvider struct {
	fetcher fetcher.Fetcher
	config  Config
}

// NewAPIProvider creates the structured search strategy.
func NewAPIProvider(f fetcher.Fetcher, cfg Config) *APIProvider {
	return &APIProvider{fetcher: f, config: cfg}
}

// Name returns the provider name.
func (p *APIProvider) Name() string { return "ddg-api" }

// Search returns hits from the d.js payload.
func (p *APIProvider) Search(ctx context.Context, target scope.Scope, maxResults int) ([]page.SearchHit, error) {
	query := Query(target.Domain())

	tokenRes, err := fetchPage(ctx, p.fetcher, withQuery(p.config.TokenEndpoint, url.Values{"q": {query}}), p.config.Options)
	if err != nil {
		return nil, fmt.Errorf("vqd token: %w", err)
	}
	m := vqdPattern.FindSubmatch(tokenRes.Body)
	if m == nil {
		return nil, fmt.Errorf("vqd token not found")
	}

	params := url.Values{
		"q":   {query},
		"vqd": {string(m[1])},
		"kl":  {p.config.Region},
		"l":   {"us-en"},
		"p":   {"1"},
		"s":   {"0"},
		"df":  {""},
		"ex":  {"-1"},
	}
	res, err := fetchPage(ctx, p.fetcher, withQuery(p.config.APIEndpoint, params), p.config.Options)
	if err != nil {
		return nil, err
	}

	hits, err := ParseAPIPayload(res.Body)
	if err != nil {
		return nil, err
	}
	return Dedupe(target, hits, maxResults), nil
}

// ParseAPIPayload reads result entries from a d.js response. The payload
// is either the raw JSON array or the JavaScript call wrapping it.
func ParseAPIPayload(body []byte) ([]page.SearchHit, error) {
	raw := body
	if m := payloadPattern.FindSubmatch(body); m != nil {
		raw = m[1]
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: malformed payload", ErrNoResults)
	}

	parsed := gjson.ParseBytes(raw)
	if parsed.Get("results").Exists() {
		parsed = parsed.Get("results")
	}
	if !parsed.IsArray() {
		return nil, fmt.Errorf("%w: payload is not a list", ErrNoResults)
	}

	var hits []page.SearchHit
	parsed.ForEach(func(_, entry gjson.Result) bool {
		// Entries without "u" are navigation markers.
		u := CleanResultURL(entry.Get("u").String())
		if u == "" {
			return true
		}
		hits = append(hits, page.SearchHit{URL: u, Title: entry.Get("t").String()})
		return true
	})
	if len(hits) == 0 {
		return nil, ErrNoResults
	}
	return hits, nil
}
