// Package config loads the process configuration from defaults, an
// optional YAML file and SITESCRAPE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/jmylchreest/sitescrape/pkg/export"
	"github.com/jmylchreest/sitescrape/pkg/extract"
	"github.com/jmylchreest/sitescrape/pkg/fetcher"
	"github.com/jmylchreest/sitescrape/pkg/scope"
	"github.com/jmylchreest/sitescrape/pkg/search"
	"github.com/jmylchreest/sitescrape/pkg/sitescrape"
)

const (
	// AppName names the XDG configuration directory.
	AppName = "sitescrape"
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "SITESCRAPE"
)

// Config is the immutable process configuration.
type Config struct {
	UserAgent string
	// ListenAddr is the address of the HTTP API.
	ListenAddr string
	// PublicURL is the externally visible API base URL, if it differs
	// from ListenAddr (reverse proxies, containers).
	PublicURL string
	// Metrics exposes Prometheus metrics on the API's /metrics route.
	Metrics bool

	Scope        scope.Policy
	TextMode     extract.Mode
	MaxBodyBytes int64
	MaxRedirects int
	// Concurrency bounds parallel scrapes when several URLs are given.
	Concurrency int

	RendererTimeout time.Duration
	ChromePath      string
	DisableChrome   bool

	Search search.Config
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		UserAgent:       fetcher.DefaultUserAgent,
		ListenAddr:      ":8006",
		Metrics:         true,
		Scope:           scope.DefaultPolicy,
		TextMode:        extract.ModeVisible,
		MaxBodyBytes:    10 << 20,
		MaxRedirects:    10,
		Concurrency:     2,
		RendererTimeout: 60 * time.Second,
		Search:          search.DefaultConfig(),
	}
}

// SetDefaults registers every key with its default so that environment
// variables are picked up for all of them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("public_url", "")
	v.SetDefault("metrics", d.Metrics)
	v.SetDefault("scope", string(d.Scope))
	v.SetDefault("text_mode", string(d.TextMode))
	v.SetDefault("max_body_size", humanize.IBytes(uint64(d.MaxBodyBytes)))
	v.SetDefault("max_redirects", d.MaxRedirects)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("renderer_timeout", d.RendererTimeout)
	v.SetDefault("chrome_path", "")
	v.SetDefault("disable_chrome", false)
	v.SetDefault("search.region", d.Search.Region)
	v.SetDefault("search.token_endpoint", d.Search.TokenEndpoint)
	v.SetDefault("search.api_endpoint", d.Search.APIEndpoint)
	v.SetDefault("search.html_endpoint", d.Search.HTMLEndpoint)
	v.SetDefault("search.lite_endpoint", d.Search.LiteEndpoint)
}

// Init prepares v to read cfgFile, or .sitescrape.yaml from the working
// directory, the home directory or the XDG config directory when cfgFile
// is empty, plus the environment. A missing default file is not an error;
// a missing explicit file is.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(ConfigDir())
		v.SetConfigName(".sitescrape")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// ConfigDir returns the XDG configuration directory of sitescrape.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Load builds a Config from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	policy, err := scope.ParsePolicy(v.GetString("scope"))
	if err != nil {
		return cfg, err
	}
	mode, err := extract.ParseMode(v.GetString("text_mode"))
	if err != nil {
		return cfg, err
	}
	size, err := humanize.ParseBytes(v.GetString("max_body_size"))
	if err != nil {
		return cfg, fmt.Errorf("invalid max_body_size %q: %w", v.GetString("max_body_size"), err)
	}
	if size == 0 {
		return cfg, fmt.Errorf("max_body_size must be greater than zero")
	}

	cfg.UserAgent = v.GetString("user_agent")
	cfg.ListenAddr = v.GetString("listen_addr")
	cfg.PublicURL = strings.TrimRight(v.GetString("public_url"), "/")
	cfg.Metrics = v.GetBool("metrics")
	cfg.Scope = policy
	cfg.TextMode = mode
	cfg.MaxBodyBytes = int64(size)
	cfg.MaxRedirects = v.GetInt("max_redirects")
	cfg.Concurrency = max(1, v.GetInt("concurrency"))
	cfg.RendererTimeout = v.GetDuration("renderer_timeout")
	cfg.ChromePath = v.GetString("chrome_path")
	cfg.DisableChrome = v.GetBool("disable_chrome")
	cfg.Search.Region = v.GetString("search.region")
	cfg.Search.TokenEndpoint = v.GetString("search.token_endpoint")
	cfg.Search.APIEndpoint = v.GetString("search.api_endpoint")
	cfg.Search.HTMLEndpoint = v.GetString("search.html_endpoint")
	cfg.Search.LiteEndpoint = v.GetString("search.lite_endpoint")
	return cfg, nil
}

// PipelineOptions translates the configuration for sitescrape.New.
func (c Config) PipelineOptions() []sitescrape.Option {
	pc := sitescrape.DefaultConfig()
	pc.UserAgent = c.UserAgent
	pc.Scope = c.Scope
	pc.TextMode = c.TextMode
	pc.MaxBodyBytes = c.MaxBodyBytes
	pc.MaxRedirects = c.MaxRedirects
	pc.Search = c.Search
	pc.Export = export.Config{
		ChromePath:    c.ChromePath,
		Timeout:       c.RendererTimeout,
		DisableChrome: c.DisableChrome,
	}
	return []sitescrape.Option{sitescrape.WithConfig(pc)}
}
