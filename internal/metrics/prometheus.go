package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitescrape"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	scrapeDuration  prom.Histogram
	scrapePages     prom.Histogram
	scrapeOutcomes  *prom.CounterVec
	pdfStrategies   *prom.CounterVec
	requestDuration *prom.HistogramVec
}

// NewPrometheusRecorder constructs the metrics and registers them, plus
// the Go runtime and process collectors, on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	pr := &PrometheusRecorder{
		scrapeDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "scrape_duration_seconds",
			Help:      "Duration of complete scrapes",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		scrapePages: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "scrape_pages",
			Help:      "Pages collected per scrape",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
		scrapeOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_outcomes_total",
			Help:      "Scrapes by outcome",
		}, []string{"outcome"}),
		pdfStrategies: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_renders_total",
			Help:      "PDF exports by renderer",
		}, []string{"strategy"}),
		requestDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request duration",
			Buckets:   prom.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(pr.scrapeDuration, pr.scrapePages, pr.scrapeOutcomes, pr.pdfStrategies, pr.requestDuration)
	reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	return pr
}

func (p *PrometheusRecorder) ObserveScrape(d time.Duration, pages int, pdfStrategy string, outcome Outcome) {
	p.scrapeOutcomes.WithLabelValues(string(outcome)).Inc()
	if outcome == OutcomeInvalid {
		return
	}
	p.scrapeDuration.Observe(d.Seconds())
	p.scrapePages.Observe(float64(pages))
	if pdfStrategy != "" {
		p.pdfStrategies.WithLabelValues(pdfStrategy).Inc()
	}
}

func (p *PrometheusRecorder) ObserveRequest(method, route string, status int, d time.Duration) {
	p.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// HTTPHandler returns an http.Handler that serves the metrics of reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
