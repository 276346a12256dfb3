package sitescrape

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jmylchreest/sitescrape/pkg/fetcher"
)

// Request describes one scrape. A zero MaxPages is invalid, not unlimited.
type Request struct {
	// URL is a full URL or a bare domain name.
	URL              string        `validate:"required"`
	MaxPages         int           `validate:"gte=1"`
	MaxSearchResults int           `validate:"gte=1"`
	Timeout          time.Duration `validate:"gt=0"`
	Pause            time.Duration `validate:"gte=0"`
	// UserAgent defaults to the pipeline's configured agent when empty.
	UserAgent string
	// Include and Exclude are optional regular expressions matched
	// against discovered URLs; the base URL is always crawled.
	Include string
	Exclude string
}

// Request defaults.
const (
	DefaultMaxPages         = 50
	DefaultMaxSearchResults = 100
	DefaultTimeout          = 15 * time.Second
	DefaultPause            = time.Second
)

// NewRequest returns a request for url with every limit at its default.
func NewRequest(url string) Request {
	return Request{
		URL:              url,
		MaxPages:         DefaultMaxPages,
		MaxSearchResults: DefaultMaxSearchResults,
		Timeout:          DefaultTimeout,
		Pause:            DefaultPause,
		UserAgent:        fetcher.DefaultUserAgent,
	}
}

// InvalidRequestError reports a request rejected before any I/O.
type InvalidRequestError struct {
	Field   string
	Message string
	Err     error
}

func (e *InvalidRequestError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Message
	}
	return fmt.Sprintf("invalid request: %s %s", strings.ToLower(e.Field), e.Message)
}

func (e *InvalidRequestError) Unwrap() error { return e.Err }

var validate = validator.New()

// Validate checks the request limits.
func (r Request) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return &InvalidRequestError{Field: "URL", Message: "is required"}
	}
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &InvalidRequestError{Field: verrs[0].Field(), Message: formatValidationError(verrs[0]), Err: err}
	}
	return &InvalidRequestError{Message: err.Error(), Err: err}
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
