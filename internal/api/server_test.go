package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/jmylchreest/sitescrape/pkg/export"
	"github.com/jmylchreest/sitescrape/pkg/fetcher"
	"github.com/jmylchreest/sitescrape/pkg/page"
	"github.com/jmylchreest/sitescrape/pkg/sitescrape"
)

type fakeScraper struct {
	result *sitescrape.Result
	err    error
	got    []sitescrape.Request
}

func (f *fakeScraper) Run(_ context.Context, req sitescrape.Request) (*sitescrape.Result, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func twoPageResult() *sitescrape.Result {
	return &sitescrape.Result{
		BaseURL:     "https://example.com",
		Domain:      "example.com",
		PageCount:   2,
		PDFStrategy: export.PDFStrategyFPDF,
		Pages: []page.Page{
			{URL: "https://example.com/", Title: "Home", FetchStrategy: fetcher.StrategyColly},
			{URL: "https://example.com/about", Title: "About", FetchStrategy: fetcher.StrategyStdlib},
		},
		Text: "# Home\n",
		PDF:  []byte("%PDF-1.3 test"),
	}
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Detail
}

func TestRootAndHealth(t *testing.T) {
	s := NewServer(":0", &fakeScraper{})

	w := do(t, s, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Website scraper API is running.") {
		t.Errorf("unexpected root body %q", w.Body.String())
	}

	w = do(t, s, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var health map[string]string
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "ok" {
		t.Errorf("expected status ok, got %v", health)
	}
}

func TestScrape_Success(t *testing.T) {
	scraper := &fakeScraper{result: twoPageResult()}
	s := NewServer(":0", scraper)

	w := do(t, s, http.MethodPost, "/api/scrape", `{"url":"example.com","max_pages":2,"pause":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ScrapeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.PageCount != 2 || len(resp.Pages) != 2 {
		t.Errorf("expected 2 pages, got %d/%d", resp.PageCount, len(resp.Pages))
	}
	if resp.Pages[1].FetchStrategy != "stdlib" {
		t.Errorf("unexpected fetch strategy %q", resp.Pages[1].FetchStrategy)
	}
	if resp.PDFStrategy != "fpdf" {
		t.Errorf("unexpected pdf strategy %q", resp.PDFStrategy)
	}
	pdf, err := base64.StdEncoding.DecodeString(resp.PDFBase64)
	if err != nil || !strings.HasPrefix(string(pdf), "%PDF-") {
		t.Errorf("pdf_base64 does not decode to a PDF: %v", err)
	}

	got := scraper.got[0]
	if got.MaxPages != 2 || got.Pause != 0 {
		t.Errorf("explicit values not passed through: %+v", got)
	}
	if got.MaxSearchResults != 100 || got.Timeout != 15*time.Second {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestScrape_PDFOmitted(t *testing.T) {
	res := twoPageResult()
	res.PDF = nil
	res.PDFStrategy = export.PDFStrategyNone
	s := NewServer(":0", &fakeScraper{result: res})

	w := do(t, s, http.MethodPost, "/api/scrape", `{"url":"https://example.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "pdf_base64") {
		t.Error("pdf_base64 should be omitted when no PDF was rendered")
	}
}

func TestScrape_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		result *sitescrape.Result
		err    error
		code   int
		detail string
	}{
		{name: "malformed json", body: `{"url":`, code: http.StatusBadRequest, detail: "malformed JSON"},
		{name: "empty body", body: ``, code: http.StatusBadRequest, detail: "empty"},
		{name: "wrong type", body: `{"url":"example.com","max_pages":"ten"}`, code: http.StatusUnprocessableEntity, detail: "max_pages"},
		{name: "missing url", body: `{}`, code: http.StatusUnprocessableEntity, detail: "url is required"},
		{name: "max pages zero", body: `{"url":"example.com","max_pages":0}`, code: http.StatusUnprocessableEntity, detail: "max_pages must be at least 1"},
		{name: "max pages too high", body: `{"url":"example.com","max_pages":501}`, code: http.StatusUnprocessableEntity, detail: "max_pages must be at most 500"},
		{name: "search results too high", body: `{"url":"example.com","max_search_results":201}`, code: http.StatusUnprocessableEntity, detail: "max_search_results"},
		{name: "zero timeout", body: `{"url":"example.com","timeout":0}`, code: http.StatusUnprocessableEntity, detail: "timeout must be greater than 0"},
		{name: "negative pause", body: `{"url":"example.com","pause":-1}`, code: http.StatusUnprocessableEntity, detail: "pause"},
		{
			name: "pipeline rejects",
			body: `{"url":"ftp://"}`,
			err:  &sitescrape.InvalidRequestError{Field: "URL", Message: "is not a valid URL"},
			code: http.StatusUnprocessableEntity, detail: "invalid request",
		},
		{
			name:   "no pages",
			body:   `{"url":"example.com"}`,
			result: &sitescrape.Result{Domain: "example.com"},
			code:   http.StatusNotFound, detail: "No pages could be scraped for the provided URL",
		},
		{
			name: "unexpected failure",
			body: `{"url":"example.com"}`,
			err:  context.DeadlineExceeded,
			code: http.StatusInternalServerError, detail: "scrape failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(":0", &fakeScraper{result: tt.result, err: tt.err})
			w := do(t, s, http.MethodPost, "/api/scrape", tt.body)
			if w.Code != tt.code {
				t.Fatalf("expected status %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
			if got := detail(t, w); !strings.Contains(got, tt.detail) {
				t.Errorf("detail %q does not contain %q", got, tt.detail)
			}
		})
	}
}

func TestScrape_ValidationSkipsScraper(t *testing.T) {
	scraper := &fakeScraper{result: twoPageResult()}
	s := NewServer(":0", scraper)

	do(t, s, http.MethodPost, "/api/scrape", `{"url":"example.com","max_pages":0}`)
	if len(scraper.got) != 0 {
		t.Errorf("scraper called %d times for an invalid request", len(scraper.got))
	}
}

func TestMetrics(t *testing.T) {
	s := NewServer(":0", &fakeScraper{result: twoPageResult()}, WithMetrics(prom.NewRegistry()))

	do(t, s, http.MethodPost, "/api/scrape", `{"url":"example.com"}`)
	do(t, s, http.MethodPost, "/api/scrape", `{"url":"example.com","max_pages":0}`)

	w := do(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`sitescrape_scrape_outcomes_total{outcome="success"} 1`,
		`sitescrape_scrape_outcomes_total{outcome="invalid"} 1`,
		`route="/api/scrape"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestMetrics_DisabledByDefault(t *testing.T) {
	s := NewServer(":0", &fakeScraper{})
	if w := do(t, s, http.MethodGet, "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 without metrics, got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	s := NewServer(":0", &fakeScraper{})

	req := httptest.NewRequest(http.MethodOptions, "/api/scrape", nil)
	req.Header.Set("Origin", "https://app.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected permissive CORS origin, got %q", got)
	}
}
