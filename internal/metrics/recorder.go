// Package metrics records scrape and HTTP API observations.
package metrics

import "time"

// Outcome labels a finished scrape.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeEmpty   Outcome = "empty"
	OutcomePartial Outcome = "partial"
	OutcomeInvalid Outcome = "invalid"
	OutcomeFailed  Outcome = "failed"
)

// Recorder receives observations. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveScrape(d time.Duration, pages int, pdfStrategy string, outcome Outcome)
	ObserveRequest(method, route string, status int, d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are disabled).
type NoopRecorder struct{}

func (NoopRecorder) ObserveScrape(time.Duration, int, string, Outcome) {}
func (NoopRecorder) ObserveRequest(string, string, int, time.Duration) {}
