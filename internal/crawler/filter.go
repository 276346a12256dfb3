package crawler

import (
	"fmt"
	"regexp"
)

// LinkFilter restricts which in-scope URLs are followed. The base URL is
// always crawled; the filter applies to search hits and discovered links.
type LinkFilter struct {
	Include *regexp.Regexp // URL must match, when set
	Exclude *regexp.Regexp // URL must not match, when set
}

// NewLinkFilter compiles the patterns. Empty patterns are ignored; when
// both are empty the returned filter is nil and allows everything.
func NewLinkFilter(include, exclude string) (*LinkFilter, error) {
	if include == "" && exclude == "" {
		return nil, nil
	}

	f := &LinkFilter{}
	if include != "" {
		re, err := regexp.Compile(include)
		if err != nil {
			return nil, fmt.Errorf("include pattern: %w", err)
		}
		f.Include = re
	}
	if exclude != "" {
		re, err := regexp.Compile(exclude)
		if err != nil {
			return nil, fmt.Errorf("exclude pattern: %w", err)
		}
		f.Exclude = re
	}
	return f, nil
}

// Allow reports whether url may be queued. A nil filter allows all URLs.
func (f *LinkFilter) Allow(url string) bool {
	if f == nil {
		return true
	}
	if f.Include != nil && !f.Include.MatchString(url) {
		return false
	}
	if f.Exclude != nil && f.Exclude.MatchString(url) {
		return false
	}
	return true
}
