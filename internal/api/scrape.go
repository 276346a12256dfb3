package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jmylchreest/sitescrape/internal/metrics"
	"github.com/jmylchreest/sitescrape/pkg/sitescrape"
)

// maxRequestBytes caps the size of a scrape request body.
const maxRequestBytes = 1 << 20

// ScrapeRequest is the POST /api/scrape payload. Omitted fields take
// their defaults; timeout and pause are seconds.
type ScrapeRequest struct {
	URL              string   `json:"url"`
	MaxPages         *int     `json:"max_pages,omitempty"`
	MaxSearchResults *int     `json:"max_search_results,omitempty"`
	Timeout          *float64 `json:"timeout,omitempty"`
	Pause            *float64 `json:"pause,omitempty"`
	UserAgent        string   `json:"user_agent,omitempty"`
	Include          string   `json:"include,omitempty"`
	Exclude          string   `json:"exclude,omitempty"`
}

// scrapeParams is a ScrapeRequest with defaults applied. The API caps
// the limits more tightly than the library does.
type scrapeParams struct {
	URL              string  `validate:"required"`
	MaxPages         int     `validate:"gte=1,lte=500"`
	MaxSearchResults int     `validate:"gte=1,lte=200"`
	Timeout          float64 `validate:"gt=0"`
	Pause            float64 `validate:"gte=0"`
	UserAgent        string
	Include          string
	Exclude          string
}

// PageSummary lists one scraped page.
type PageSummary struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	FetchStrategy string `json:"fetch_strategy"`
}

// ScrapeResponse is the successful POST /api/scrape answer.
type ScrapeResponse struct {
	ID          string        `json:"id,omitempty"`
	BaseURL     string        `json:"base_url"`
	Domain      string        `json:"domain"`
	PageCount   int           `json:"page_count"`
	PDFStrategy string        `json:"pdf_strategy"`
	Pages       []PageSummary `json:"pages"`
	TextContent string        `json:"text_content"`
	PDFBase64   string        `json:"pdf_base64,omitempty"`
}

var validate = validator.New()

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var payload ScrapeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&payload); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type))
			return
		}
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "request body is empty")
			return
		}
		writeError(w, http.StatusBadRequest, "malformed JSON: "+err.Error())
		return
	}

	params := payload.withDefaults()
	if err := validate.Struct(params); err != nil {
		s.recorder.ObserveScrape(0, 0, "", metrics.OutcomeInvalid)
		writeError(w, http.StatusUnprocessableEntity, describeValidation(err))
		return
	}

	result, err := s.scraper.Run(r.Context(), params.request())
	if err != nil {
		var invalid *sitescrape.InvalidRequestError
		if errors.As(err, &invalid) {
			s.recorder.ObserveScrape(0, 0, "", metrics.OutcomeInvalid)
			writeError(w, http.StatusUnprocessableEntity, invalid.Error())
			return
		}
		s.recorder.ObserveScrape(0, 0, "", metrics.OutcomeFailed)
		s.log.Error("scrape failed", "url", params.URL, "error", err)
		writeError(w, http.StatusInternalServerError, "scrape failed: "+err.Error())
		return
	}
	s.recorder.ObserveScrape(result.Duration, result.PageCount, string(result.PDFStrategy), outcomeOf(result))
	if result.PageCount == 0 {
		writeError(w, http.StatusNotFound, "No pages could be scraped for the provided URL")
		return
	}

	writeJSON(w, http.StatusOK, newScrapeResponse(result))
}

func outcomeOf(res *sitescrape.Result) metrics.Outcome {
	switch {
	case res.PageCount == 0:
		return metrics.OutcomeEmpty
	case res.Partial:
		return metrics.OutcomePartial
	default:
		return metrics.OutcomeSuccess
	}
}

func (p ScrapeRequest) withDefaults() scrapeParams {
	params := scrapeParams{
		URL:              strings.TrimSpace(p.URL),
		MaxPages:         sitescrape.DefaultMaxPages,
		MaxSearchResults: sitescrape.DefaultMaxSearchResults,
		Timeout:          sitescrape.DefaultTimeout.Seconds(),
		Pause:            sitescrape.DefaultPause.Seconds(),
		UserAgent:        p.UserAgent,
		Include:          p.Include,
		Exclude:          p.Exclude,
	}
	if p.MaxPages != nil {
		params.MaxPages = *p.MaxPages
	}
	if p.MaxSearchResults != nil {
		params.MaxSearchResults = *p.MaxSearchResults
	}
	if p.Timeout != nil {
		params.Timeout = *p.Timeout
	}
	if p.Pause != nil {
		params.Pause = *p.Pause
	}
	return params
}

func (p scrapeParams) request() sitescrape.Request {
	return sitescrape.Request{
		URL:              p.URL,
		MaxPages:         p.MaxPages,
		MaxSearchResults: p.MaxSearchResults,
		Timeout:          seconds(p.Timeout),
		Pause:            seconds(p.Pause),
		UserAgent:        p.UserAgent,
		Include:          p.Include,
		Exclude:          p.Exclude,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

var jsonNames = map[string]string{
	"URL":              "url",
	"MaxPages":         "max_pages",
	"MaxSearchResults": "max_search_results",
	"Timeout":          "timeout",
	"Pause":            "pause",
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := jsonNames[fe.Field()]
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation '%s'", field, fe.Tag())
	}
}

func newScrapeResponse(res *sitescrape.Result) ScrapeResponse {
	resp := ScrapeResponse{
		ID:          res.ID,
		BaseURL:     res.BaseURL,
		Domain:      res.Domain,
		PageCount:   res.PageCount,
		PDFStrategy: string(res.PDFStrategy),
		Pages:       make([]PageSummary, 0, len(res.Pages)),
		TextContent: res.Text,
	}
	for _, p := range res.Pages {
		resp.Pages = append(resp.Pages, PageSummary{
			URL:           p.URL,
			Title:         p.Title,
			FetchStrategy: string(p.FetchStrategy),
		})
	}
	if len(res.PDF) > 0 {
		resp.PDFBase64 = base64.StdEncoding.EncodeToString(res.PDF)
	}
	return resp
}
