package search

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/sitescrape/pkg/fetcher"
	"github.com/jmylchreest/sitescrape/pkg/page"
	"github.com/jmylchreest/sitescrape/pkg/scope"
)

// HTMLProvider scrapes DuckDuckGo's HTML result page.
type HTMLProvider struct {
	fetcher fetcher.Fetcher
	config  Config
}

// NewHTMLProvider creates the HTML page strategy.
func NewHTMLProvider(f fetcher.Fetcher, cfg Config) *HTMLProvider {
	return &HTMLProvider{fetcher: f, config: cfg}
}

// Name returns the provider name.
func (p *HTMLProvider) Name() string { return "ddg-html" }

// Search returns the result links of the first page.
func (p *HTMLProvider) Search(ctx context.Context, target scope.Scope, maxResults int) ([]page.SearchHit, error) {
	params := url.Values{"q": {Query(target.Domain())}, "kl": {p.config.Region}}
	res, err := fetchPage(ctx, p.fetcher, withQuery(p.config.HTMLEndpoint, params), p.config.Options)
	if err != nil {
		return nil, err
	}
	hits, err := parseResultLinks(res.Body, "a.result__a")
	if err != nil {
		return nil, err
	}
	return Dedupe(target, hits, maxResults), nil
}

// LiteProvider scrapes DuckDuckGo's lightweight, text-only result page.
type LiteProvider struct {
	fetcher fetcher.Fetcher
	config  Config
}

// NewLiteProvider creates the lite page strategy.
func NewLiteProvider(f fetcher.Fetcher, cfg Config) *LiteProvider {
	return &LiteProvider{fetcher: f, config: cfg}
}

// Name returns the provider name.
func (p *LiteProvider) Name() string { return "ddg-lite" }

// Search returns the result links of the lite page.
func (p *LiteProvider) Search(ctx context.Context, target scope.Scope, maxResults int) ([]page.SearchHit, error) {
	params := url.Values{"q": {Query(target.Domain())}, "kl": {p.config.Region}}
	res, err := fetchPage(ctx, p.fetcher, withQuery(p.config.LiteEndpoint, params), p.config.Options)
	if err != nil {
		return nil, err
	}
	hits, err := parseResultLinks(res.Body, "a.result-link")
	if err == nil && len(hits) > 0 {
		return Dedupe(target, hits, maxResults), nil
	}
	// Older lite layouts carry no classes on result anchors.
	hits, err = parseResultLinks(res.Body, "a[href]")
	if err != nil {
		return nil, err
	}
	return Dedupe(target, hits, maxResults), nil
}

func parseResultLinks(body []byte, selector string) ([]page.SearchHit, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	var hits []page.SearchHit
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		u := CleanResultURL(href)
		if u == "" {
			return
		}
		hits = append(hits, page.SearchHit{
			URL:   u,
			Title: strings.Join(strings.Fields(s.Text()), " "),
		})
	})
	if len(hits) == 0 {
		return nil, ErrNoResults
	}
	return hits, nil
}
