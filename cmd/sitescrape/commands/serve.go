package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/sitescrape/internal/api"
	"github.com/jmylchreest/sitescrape/internal/logger"
	"github.com/jmylchreest/sitescrape/pkg/sitescrape"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scraping HTTP API",
	Long: `Serve exposes the scraper over HTTP.

Endpoints:
  GET  /             liveness message
  GET  /api/health   health check
  POST /api/scrape   scrape a site, returns text and a base64 PDF
  GET  /metrics      Prometheus metrics (unless --metrics=false)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8006", "listen address")
	serveCmd.Flags().Bool("metrics", true, "serve Prometheus metrics on /metrics")
	_ = viper.BindPFlag("listen_addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("metrics", serveCmd.Flags().Lookup("metrics"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []api.ServerOption
	if cfg.Metrics {
		opts = append(opts, api.WithMetrics(prom.NewRegistry()))
	}
	srv := api.NewServer(cfg.ListenAddr, sitescrape.New(cfg.PipelineOptions()...), opts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = "http://localhost" + cfg.ListenAddr
	}
	logger.Info("api listening", "addr", cfg.ListenAddr, "url", publicURL)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("api server failed", "error", err)
		return err
	case <-ctx.Done():
		logger.Info("shutting down api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
