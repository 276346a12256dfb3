package commands

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/sitescrape/internal/logger"
	"github.com/jmylchreest/sitescrape/internal/output"
	"github.com/jmylchreest/sitescrape/pkg/sitescrape"
)

func init() {
	flags := rootCmd.Flags()

	// Output settings
	flags.StringP("output", "o", "output", "output directory (created if absent)")
	flags.String("manifest", "none", "also write a manifest: none, json, yaml")

	// Crawl limits
	flags.Int("max-pages", sitescrape.DefaultMaxPages, "maximum number of pages to scrape")
	flags.Int("max-search-results", sitescrape.DefaultMaxSearchResults, "maximum number of search results to seed the crawl")
	flags.Float64("timeout", sitescrape.DefaultTimeout.Seconds(), "request timeout in seconds")
	flags.Float64("pause", sitescrape.DefaultPause.Seconds(), "pause between requests in seconds")
	flags.IntP("concurrency", "c", 2, "sites scraped in parallel when several URLs are given")

	// Fetch and extraction settings
	flags.String("user-agent", "", "User-Agent header (default: desktop Chrome)")
	flags.String("scope", "", "domain scope: subdomains, exact, registrable")
	flags.String("text-mode", "", "text extraction: visible, readability")
	flags.String("include", "", "only follow URLs matching this regex")
	flags.String("exclude", "", "never follow URLs matching this regex")

	// Bind to viper
	_ = viper.BindPFlag("user_agent", flags.Lookup("user-agent"))
	_ = viper.BindPFlag("scope", flags.Lookup("scope"))
	_ = viper.BindPFlag("text_mode", flags.Lookup("text-mode"))
	_ = viper.BindPFlag("concurrency", flags.Lookup("concurrency"))
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	flags := cmd.Flags()
	outDir, _ := flags.GetString("output")
	manifestStr, _ := flags.GetString("manifest")
	manifest, err := output.ParseFormat(manifestStr)
	if err != nil {
		return err
	}

	maxPages, _ := flags.GetInt("max-pages")
	maxResults, _ := flags.GetInt("max-search-results")
	timeout, _ := flags.GetFloat64("timeout")
	pause, _ := flags.GetFloat64("pause")
	include, _ := flags.GetString("include")
	exclude, _ := flags.GetString("exclude")

	reqs := make([]sitescrape.Request, len(args))
	for i, u := range args {
		reqs[i] = sitescrape.Request{
			URL:              u,
			MaxPages:         maxPages,
			MaxSearchResults: maxResults,
			Timeout:          seconds(timeout),
			Pause:            seconds(pause),
			Include:          include,
			Exclude:          exclude,
		}
	}

	for _, r := range reqs {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	// Past argument checks, usage output only adds noise.
	cmd.SilenceUsage = true

	logger.Debug("scrape command starting", "urls", args, "max_pages", maxPages, "scope", cfg.Scope, "text_mode", cfg.TextMode)

	p := sitescrape.New(cfg.PipelineOptions()...)

	var results []*sitescrape.Result
	if len(reqs) == 1 {
		res, err := p.Run(ctx, reqs[0])
		if err != nil {
			return err
		}
		results = []*sitescrape.Result{res}
	} else {
		results, err = p.RunMany(ctx, reqs, cfg.Concurrency)
		if err != nil {
			return err
		}
	}

	dirs := outputDirs(outDir, results)
	for i, res := range results {
		if res.PageCount == 0 {
			logger.Warn("no pages could be scraped", "url", res.BaseURL)
			continue
		}
		if res.Partial {
			logger.Warn("scrape interrupted, writing partial results", "domain", res.Domain, "pages", res.PageCount)
		}

		files, err := output.NewWriter(dirs[i], manifest).Write(res)
		if err != nil {
			logger.Error("failed to write output", "dir", dirs[i], "error", err)
			return err
		}
		logInfo("Scraped %d pages from %s in %s (pdf: %s, text: %s) -> %s",
			res.PageCount, res.Domain, res.Duration.Round(time.Millisecond),
			res.PDFStrategy, humanize.Bytes(uint64(len(res.Text))), dirs[i])
		logger.Debug("artifacts written", "files", files)
	}
	return nil
}

// outputDirs returns one directory per result: dir itself for a single
// site, otherwise a sub-directory per domain with a numeric suffix for
// repeated domains.
func outputDirs(dir string, results []*sitescrape.Result) []string {
	dirs := make([]string, len(results))
	if len(results) == 1 {
		dirs[0] = dir
		return dirs
	}
	used := make(map[string]int)
	for i, res := range results {
		name := res.Domain
		used[name]++
		if n := used[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		dirs[i] = filepath.Join(dir, name)
	}
	return dirs
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
