package fetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/sitescrape/internal/logger"
)

// ErrNoStrategies is returned by a Cascade without strategies.
var ErrNoStrategies = errors.New("no fetch strategies configured")

// Cascade tries each fetcher in order until one succeeds.
// Every attempt gets the full timeout budget; a failing strategy is not
// retried, the next one is tried instead.
type Cascade struct {
	fetchers []Fetcher
	config   Config
}

// NewCascade creates a fallback chain from the given fetchers.
func NewCascade(fetchers ...Fetcher) *Cascade {
	return &Cascade{fetchers: fetchers, config: DefaultConfig()}
}

// NewDefault builds the standard chain: colly, tuned transport, stdlib.
func NewDefault(cfg Config) *Cascade {
	c := NewCascade(NewColly(cfg), NewTransport(cfg), NewStdlib(cfg))
	c.config = cfg.withDefaults()
	return c
}

// Fetch tries each strategy in order and returns the first success.
func (c *Cascade) Fetch(ctx context.Context, url string, opts Options) (Result, error) {
	if len(c.fetchers) == 0 {
		return Result{URL: url}, ErrNoStrategies
	}

	timeout := timeoutOr(opts.Timeout, c.config.Timeout)
	fetchErr := &FetchError{URL: url}

	for _, f := range c.fetchers {
		if err := ctx.Err(); err != nil {
			fetchErr.Attempts = append(fetchErr.Attempts, AttemptError{Strategy: f.Strategy(), Err: err})
			return Result{URL: url}, fetchErr
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := f.Fetch(attemptCtx, url, Options{UserAgent: opts.UserAgent, Timeout: timeout})
		cancel()

		if err == nil {
			result.Strategy = f.Strategy()
			logger.Debug("fetched", "url", url, "strategy", f.Strategy(), "status", result.StatusCode, "duration", result.Duration)
			return result, nil
		}

		logger.Debug("fetch strategy failed", "url", url, "strategy", f.Strategy(), "error", err)
		fetchErr.Attempts = append(fetchErr.Attempts, AttemptError{Strategy: f.Strategy(), Err: err})
	}

	return Result{URL: url}, fetchErr
}

// Strategy reports the first strategy of the chain.
func (c *Cascade) Strategy() Strategy {
	if len(c.fetchers) == 0 {
		return ""
	}
	return c.fetchers[0].Strategy()
}

// Strategies lists the chain in priority order.
func (c *Cascade) Strategies() []Strategy {
	out := make([]Strategy, len(c.fetchers))
	for i, f := range c.fetchers {
		out[i] = f.Strategy()
	}
	return out
}

// String returns a readable description of the chain.
func (c *Cascade) String() string {
	return fmt.Sprintf("cascade%v", c.Strategies())
}

var _ Fetcher = (*Cascade)(nil)
