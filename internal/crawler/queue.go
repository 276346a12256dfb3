// Package crawler performs the domain-bounded breadth-first traversal.
package crawler

import (
	"github.com/jmylchreest/sitescrape/pkg/page"
	"github.com/jmylchreest/sitescrape/pkg/scope"
)

// State is the frontier and result set of one crawl. URLs are stored in
// normalized form. A URL enters the queue at most once and pages never
// repeat a URL. State is not safe for concurrent use; it belongs to the
// single control flow of one crawl.
type State struct {
	visited map[string]bool
	queued  map[string]bool
	queue   []string
	pages   []page.Page
}

// NewState creates an empty crawl state.
func NewState() *State {
	return &State{
		visited: make(map[string]bool),
		queued:  make(map[string]bool),
	}
}

// Enqueue appends a URL to the frontier unless it is invalid, already
// visited or already queued. It reports whether the URL was added.
func (s *State) Enqueue(rawURL string) bool {
	normalized, err := scope.Normalize(rawURL)
	if err != nil {
		return false
	}
	if s.visited[normalized] || s.queued[normalized] {
		return false
	}
	s.queued[normalized] = true
	s.queue = append(s.queue, normalized)
	return true
}

// Next pops the oldest unvisited URL and marks it visited.
func (s *State) Next() (string, bool) {
	for len(s.queue) > 0 {
		u := s.queue[0]
		s.queue = s.queue[1:]
		if s.visited[u] {
			continue
		}
		s.visited[u] = true
		return u, true
	}
	return "", false
}

// MarkVisited records a URL as visited without queueing it.
func (s *State) MarkVisited(rawURL string) {
	if normalized, err := scope.Normalize(rawURL); err == nil {
		s.visited[normalized] = true
	}
}

// Visited reports whether a URL has been visited.
func (s *State) Visited(rawURL string) bool {
	normalized, err := scope.Normalize(rawURL)
	if err != nil {
		return false
	}
	return s.visited[normalized]
}

// AddPage appends a page unless one with the same URL exists.
func (s *State) AddPage(p page.Page) bool {
	for _, existing := range s.pages {
		if existing.URL == p.URL {
			return false
		}
	}
	s.pages = append(s.pages, p)
	return true
}

// Pages returns the pages in discovery order.
func (s *State) Pages() []page.Page {
	out := make([]page.Page, len(s.pages))
	copy(out, s.pages)
	return out
}

// PageCount returns the number of pages collected.
func (s *State) PageCount() int { return len(s.pages) }

// Len returns the number of queued URLs, including ones that will be
// skipped as visited when popped.
func (s *State) Len() int { return len(s.queue) }
