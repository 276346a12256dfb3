// Package sitescrape is the entry point of the scraping pipeline.
//
// A Pipeline validates a Request, discovers seeds through web search,
// crawls the target domain breadth first and renders the pages as text
// and PDF. Only invalid requests fail; network and rendering problems
// degrade the Result instead.
package sitescrape

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/sitescrape/internal/crawler"
	"github.com/jmylchreest/sitescrape/internal/logger"
	"github.com/jmylchreest/sitescrape/pkg/export"
	"github.com/jmylchreest/sitescrape/pkg/extract"
	"github.com/jmylchreest/sitescrape/pkg/fetcher"
	"github.com/jmylchreest/sitescrape/pkg/page"
	"github.com/jmylchreest/sitescrape/pkg/scope"
	"github.com/jmylchreest/sitescrape/pkg/search"
)

// Skip describes a URL that did not produce a page.
type Skip = crawler.Skip

// Result is the outcome of one scrape.
type Result struct {
	// ID identifies the run in logs, manifests and API responses.
	ID          string
	BaseURL     string
	Domain      string
	PageCount   int
	PDFStrategy export.PDFStrategy
	Pages       []page.Page
	Text        string
	// PDF is nil when no renderer succeeded.
	PDF      []byte
	Skipped  []Skip
	Duration time.Duration
	// Partial is set when cancellation cut the crawl short.
	Partial bool
}

// Pipeline runs scrapes. It is safe for concurrent use; every Run gets
// its own crawl state.
type Pipeline struct {
	config    Config
	fetcher   fetcher.Fetcher
	extractor *extract.Extractor
	exporter  Exporter
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	f := cfg.Fetcher
	if f == nil {
		f = fetcher.NewDefault(fetcher.Config{
			UserAgent:    cfg.UserAgent,
			MaxBodyBytes: cfg.MaxBodyBytes,
			MaxRedirects: cfg.MaxRedirects,
			Transport:    cfg.Transport,
		})
	}

	var exp Exporter = cfg.Exporter
	if exp == nil {
		exp = export.NewDefault(cfg.Export)
	}

	return &Pipeline{
		config:    cfg,
		fetcher:   f,
		extractor: extract.New(cfg.TextMode),
		exporter:  exp,
	}
}

// Run executes one scrape. The only error is *InvalidRequestError, returned
// before any network access. Cancelling ctx stops the crawl at its next
// suspension point; the pages gathered so far are still exported.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	pl, err := p.prepare(req)
	if err != nil {
		return nil, err
	}
	req, baseURL, target := pl.req, pl.baseURL, pl.target
	id := uuid.NewString()

	logger.Info("scrape starting",
		"scrape_id", id,
		"base_url", baseURL,
		"domain", target.Domain(),
		"max_pages", req.MaxPages,
		"max_search_results", req.MaxSearchResults)

	opts := fetcher.Options{UserAgent: req.UserAgent, Timeout: req.Timeout}
	c := crawler.New(p.fetcher, p.searcher(opts), p.extractor, crawler.Config{
		BaseURL:          baseURL,
		Scope:            target,
		MaxPages:         req.MaxPages,
		MaxSearchResults: req.MaxSearchResults,
		Pause:            req.Pause,
		Filter:           pl.filter,
		Fetch:            opts,
	})
	outcome := c.Crawl(ctx)

	// Export runs even after cancellation so partial crawls are kept.
	exported := p.exporter.Export(context.WithoutCancel(ctx), outcome.Pages)

	result := &Result{
		ID:          id,
		BaseURL:     baseURL,
		Domain:      target.Domain(),
		PageCount:   len(outcome.Pages),
		PDFStrategy: exported.PDFStrategy,
		Pages:       outcome.Pages,
		Text:        exported.Text,
		PDF:         exported.PDF,
		Skipped:     outcome.Skipped,
		Duration:    time.Since(start),
		Partial:     outcome.Cancelled,
	}

	logger.Info("scrape complete",
		"scrape_id", id,
		"domain", result.Domain,
		"pages", result.PageCount,
		"skipped", len(result.Skipped),
		"pdf_strategy", result.PDFStrategy,
		"duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

// RunMany executes independent requests with at most concurrency scrapes in
// flight. Results keep the order of reqs. All requests are validated before
// any of them starts.
func (p *Pipeline) RunMany(ctx context.Context, reqs []Request, concurrency int) ([]*Result, error) {
	for i, r := range reqs {
		if _, err := p.prepare(r); err != nil {
			return nil, fmt.Errorf("request %d (%s): %w", i+1, r.URL, err)
		}
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]*Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, r := range reqs {
		g.Go(func() error {
			res, err := p.Run(gctx, r)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// plan is a validated request with everything derived from it.
type plan struct {
	req     Request
	baseURL string
	target  scope.Scope
	filter  *crawler.LinkFilter
}

// prepare validates the request and derives the base URL, scope and
// link filter.
func (p *Pipeline) prepare(req Request) (plan, error) {
	if err := req.Validate(); err != nil {
		return plan{}, err
	}
	if req.UserAgent == "" {
		req.UserAgent = p.config.UserAgent
	}

	baseURL, err := scope.BaseURL(req.URL)
	if err != nil {
		return plan{}, &InvalidRequestError{Field: "URL", Message: err.Error(), Err: err}
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return plan{}, &InvalidRequestError{Field: "URL", Message: err.Error(), Err: err}
	}
	filter, err := crawler.NewLinkFilter(req.Include, req.Exclude)
	if err != nil {
		return plan{}, &InvalidRequestError{Field: "Pattern", Message: err.Error(), Err: err}
	}

	return plan{
		req:     req,
		baseURL: baseURL,
		target:  scope.New(scope.TargetDomain(u.Host), p.config.Scope),
		filter:  filter,
	}, nil
}

func (p *Pipeline) searcher(opts fetcher.Options) search.Searcher {
	if p.config.Searcher != nil {
		return p.config.Searcher
	}
	cfg := p.config.Search
	cfg.Options = opts
	return search.NewDefault(p.fetcher, cfg)
}
