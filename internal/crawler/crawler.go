package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/jmylchreest/sitescrape/internal/logger"
	"github.com/jmylchreest/sitescrape/pkg/extract"
	"github.com/jmylchreest/sitescrape/pkg/fetcher"
	"github.com/jmylchreest/sitescrape/pkg/page"
	"github.com/jmylchreest/sitescrape/pkg/scope"
	"github.com/jmylchreest/sitescrape/pkg/search"
)

// SkipReason classifies a URL that did not produce a page.
type SkipReason string

const (
	SkipFetchFailed SkipReason = "fetch-failed"
	SkipParseFailed SkipReason = "parse-failed"
	SkipOutOfScope  SkipReason = "out-of-scope"
	// SkipDuplicate marks a URL that redirected to one already crawled.
	SkipDuplicate SkipReason = "duplicate"
)

// Skip is the outcome of a URL that was dropped. Skips are recorded,
// never returned as errors.
type Skip struct {
	URL    string     `json:"url" yaml:"url"`
	Reason SkipReason `json:"reason" yaml:"reason"`
	Err    error      `json:"-" yaml:"-"`
}

func (s Skip) String() string {
	if s.Err == nil {
		return fmt.Sprintf("%s: %s", s.Reason, s.URL)
	}
	return fmt.Sprintf("%s: %s: %v", s.Reason, s.URL, s.Err)
}

// Outcome is everything a crawl produced.
type Outcome struct {
	Pages   []page.Page
	Skipped []Skip
	// Cancelled is set when the context ended the crawl early.
	Cancelled bool
}

// Extractor turns a fetched body into text and links.
type Extractor interface {
	Extract(body []byte, contentType, baseURL string) (extract.Document, error)
}

// Config holds crawler configuration.
type Config struct {
	// BaseURL is the normalized first seed.
	BaseURL string
	Scope   scope.Scope

	MaxPages         int
	MaxSearchResults int

	// Pause is the minimum spacing between the starts of two fetches.
	Pause time.Duration

	// Filter narrows the followed URLs; nil follows everything in scope.
	Filter *LinkFilter

	Fetch fetcher.Options
}

// Crawler runs one breadth-first crawl per Crawl call.
type Crawler struct {
	fetcher   fetcher.Fetcher
	searcher  search.Searcher
	extractor Extractor
	config    Config
}

// New creates a Crawler. searcher may be nil to crawl from the base URL
// alone.
func New(f fetcher.Fetcher, s search.Searcher, ext Extractor, cfg Config) *Crawler {
	if ext == nil {
		ext = extract.New(extract.ModeVisible)
	}
	return &Crawler{
		fetcher:   f,
		searcher:  s,
		extractor: ext,
		config:    cfg,
	}
}

// Crawl traverses the target domain and returns at most MaxPages pages in
// discovery order. Failures of single URLs are recorded as skips and never
// abort the crawl. Cancellation returns the pages gathered so far.
func (c *Crawler) Crawl(ctx context.Context) Outcome {
	state := NewState()
	var out Outcome

	logger.Debug("crawler starting",
		"base_url", c.config.BaseURL,
		"domain", c.config.Scope.Domain(),
		"scope", c.config.Scope.Policy(),
		"max_pages", c.config.MaxPages,
		"pause", c.config.Pause)

	state.Enqueue(c.config.BaseURL)
	out.Skipped = append(out.Skipped, c.seed(ctx, state)...)

	pacer := newPacer(c.config.Pause)

	for state.PageCount() < c.config.MaxPages {
		current, ok := state.Next()
		if !ok {
			break
		}

		if err := pacer.Wait(ctx); err != nil {
			out.Cancelled = true
			break
		}

		p, skip := c.visit(ctx, state, current)
		if skip == nil {
			state.AddPage(p)
			added := 0
			for _, link := range p.Links {
				if c.follow(link) && state.Enqueue(link) {
					added++
				}
			}
			logger.Info("crawled", "url", p.URL, "strategy", p.FetchStrategy, "links", len(p.Links), "queued", added)
		}
		// A page fetched before cancellation is kept; a failure caused by it is not a skip.
		if ctx.Err() != nil {
			out.Cancelled = true
			break
		}
		if skip != nil {
			out.Skipped = append(out.Skipped, *skip)
		}
	}

	if out.Cancelled {
		logger.Warn("crawl cancelled", "domain", c.config.Scope.Domain(), "pages", state.PageCount(), "error", ctx.Err())
	}
	out.Pages = state.Pages()
	logger.Debug("crawler finished", "pages", len(out.Pages), "skipped", len(out.Skipped), "remaining", state.Len())
	return out
}

// seed enqueues in-scope search hits after the base URL, in result order.
func (c *Crawler) seed(ctx context.Context, state *State) []Skip {
	if c.searcher == nil || c.config.MaxSearchResults <= 0 {
		return nil
	}

	var skipped []Skip
	hits := c.searcher.Discover(ctx, c.config.Scope, c.config.MaxSearchResults)
	added := 0
	for _, h := range hits {
		if !c.config.Scope.Contains(h.URL) {
			skipped = append(skipped, Skip{URL: h.URL, Reason: SkipOutOfScope})
			continue
		}
		if c.config.Filter.Allow(h.URL) && state.Enqueue(h.URL) {
			added++
		}
	}
	logger.Debug("crawler seeded from search", "hits", len(hits), "queued", added)
	return skipped
}

func (c *Crawler) follow(link string) bool {
	return c.config.Scope.Contains(link) && c.config.Filter.Allow(link)
}

// visit fetches and extracts one URL.
func (c *Crawler) visit(ctx context.Context, state *State, current string) (page.Page, *Skip) {
	res, err := c.fetcher.Fetch(ctx, current, c.config.Fetch)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Info("fetch failed", "url", current, "error", err)
		}
		return page.Page{}, &Skip{URL: current, Reason: SkipFetchFailed, Err: err}
	}

	final := current
	if res.FinalURL != "" {
		if normalized, err := scope.Normalize(res.FinalURL); err == nil {
			final = normalized
		}
	}
	if final != current {
		if !c.config.Scope.Contains(final) {
			logger.Info("redirected out of scope", "url", current, "final_url", final)
			return page.Page{}, &Skip{URL: current, Reason: SkipOutOfScope}
		}
		if state.Visited(final) {
			logger.Debug("redirected to a visited url", "url", current, "final_url", final)
			return page.Page{}, &Skip{URL: current, Reason: SkipDuplicate}
		}
		state.MarkVisited(final)
	}

	doc, err := c.extractor.Extract(res.Body, res.ContentType, final)
	if err != nil {
		logger.Info("extract failed", "url", current, "error", err)
		return page.Page{}, &Skip{URL: current, Reason: SkipParseFailed, Err: err}
	}

	return page.Page{
		URL:           current,
		Title:         doc.Title,
		Text:          doc.Text,
		Links:         doc.Links,
		FetchStrategy: res.Strategy,
	}, nil
}

// newPacer returns a limiter that admits one fetch per pause interval.
// The first fetch is never delayed.
func newPacer(pause time.Duration) *rate.Limiter {
	if pause <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(pause), 1)
}
