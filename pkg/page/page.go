// Package page holds the value types shared by the crawl pipeline.
package page

import "github.com/jmylchreest/sitescrape/pkg/fetcher"

// Page is one successfully retrieved and extracted URL.
// Pages are created by the crawler and never mutated afterwards.
type Page struct {
	URL           string           `json:"url" yaml:"url"`
	Title         string           `json:"title" yaml:"title"`
	Text          string           `json:"-" yaml:"-"`
	Links         []string         `json:"-" yaml:"-"`
	FetchStrategy fetcher.Strategy `json:"fetch_strategy" yaml:"fetch_strategy"`
}

// SearchHit is a seed candidate returned by a search provider.
// Title is empty when the provider does not report one.
type SearchHit struct {
	URL   string `json:"url" yaml:"url"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}
