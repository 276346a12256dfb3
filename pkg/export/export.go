// Package export turns crawled pages into a text document and a PDF.
//
// The text rendering is pure string formatting and cannot fail. PDF
// rendering goes through a cascade of renderers; when all of them fail the
// export is still returned, without a PDF and with strategy "none".
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/sitescrape/internal/logger"
	"github.com/jmylchreest/sitescrape/pkg/page"
)

// PDFStrategy identifies the renderer that produced a PDF.
type PDFStrategy string

const (
	// PDFStrategyFPDF is the primary, pure Go renderer.
	PDFStrategyFPDF PDFStrategy = "fpdf"
	// PDFStrategyChrome prints an HTML layout through headless Chrome.
	PDFStrategyChrome PDFStrategy = "chromedp"
	// PDFStrategyNone means no PDF was produced.
	PDFStrategyNone PDFStrategy = "none"
)

// Renderer produces a PDF document from pages.
type Renderer interface {
	Render(ctx context.Context, pages []page.Page) ([]byte, error)
	Strategy() PDFStrategy
}

// Export is the rendered artifact bundle.
type Export struct {
	Text        string
	PDF         []byte
	PDFStrategy PDFStrategy
}

// AttemptError records the failure of one renderer.
type AttemptError struct {
	Strategy PDFStrategy
	Err      error
}

// ExportError is returned when every renderer failed.
type ExportError struct {
	Attempts []AttemptError
}

func (e *ExportError) Error() string {
	if len(e.Attempts) == 0 {
		return "no pdf renderers configured"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return "all pdf renderers failed (" + strings.Join(parts, "; ") + ")"
}

func (e *ExportError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Config controls the default renderer chain.
type Config struct {
	// ChromePath overrides the browser executable; empty searches PATH.
	ChromePath string
	// Timeout bounds the browser renderer.
	Timeout time.Duration
	// DisableChrome drops the browser renderer from the chain.
	DisableChrome bool
}

// Exporter renders text and runs the PDF renderer cascade.
type Exporter struct {
	renderers []Renderer
}

// New creates an Exporter trying renderers in order.
func New(renderers ...Renderer) *Exporter {
	return &Exporter{renderers: renderers}
}

// NewDefault builds the standard chain: fpdf, then headless Chrome.
func NewDefault(cfg Config) *Exporter {
	renderers := []Renderer{NewFPDF()}
	if !cfg.DisableChrome {
		renderers = append(renderers, NewChrome(cfg.ChromePath, cfg.Timeout))
	}
	return New(renderers...)
}

// Strategies lists the renderer chain in priority order.
func (e *Exporter) Strategies() []PDFStrategy {
	out := make([]PDFStrategy, len(e.renderers))
	for i, r := range e.renderers {
		out[i] = r.Strategy()
	}
	return out
}

// Export renders the text document and, when there are pages, a PDF.
// Renderer failures are logged and reported as PDFStrategyNone.
func (e *Exporter) Export(ctx context.Context, pages []page.Page) Export {
	out := Export{Text: RenderText(pages), PDFStrategy: PDFStrategyNone}
	if len(pages) == 0 {
		return out
	}

	pdf, strategy, err := e.RenderPDF(ctx, pages)
	if err != nil {
		logger.Warn("pdf export unavailable", "error", err)
		return out
	}
	out.PDF = pdf
	out.PDFStrategy = strategy
	return out
}

// RenderPDF tries each renderer in order and returns the first document.
func (e *Exporter) RenderPDF(ctx context.Context, pages []page.Page) ([]byte, PDFStrategy, error) {
	exportErr := &ExportError{}
	for _, r := range e.renderers {
		if err := ctx.Err(); err != nil {
			exportErr.Attempts = append(exportErr.Attempts, AttemptError{Strategy: r.Strategy(), Err: err})
			break
		}

		start := time.Now()
		pdf, err := safeRender(ctx, r, pages)
		if err == nil && len(pdf) == 0 {
			err = fmt.Errorf("empty document")
		}
		if err != nil {
			logger.Debug("pdf renderer failed", "strategy", r.Strategy(), "error", err)
			exportErr.Attempts = append(exportErr.Attempts, AttemptError{Strategy: r.Strategy(), Err: err})
			continue
		}

		logger.Debug("pdf rendered", "strategy", r.Strategy(), "pages", len(pages), "bytes", len(pdf), "duration", time.Since(start))
		return pdf, r.Strategy(), nil
	}
	return nil, PDFStrategyNone, exportErr
}

// safeRender converts a renderer panic into an error.
func safeRender(ctx context.Context, r Renderer, pages []page.Page) (pdf []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			pdf = nil
			err = fmt.Errorf("renderer panic: %v", p)
		}
	}()
	return r.Render(ctx, pages)
}
