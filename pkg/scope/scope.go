// Package scope decides which URLs belong to a crawl target.
//
// A Scope pairs a target domain with a containment Policy. The crawler and
// the search providers share it so that every enqueued URL and every seed
// candidate is judged by the same rule.
package scope

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Policy selects how a host is matched against the target domain.
type Policy string

const (
	// PolicySubdomains accepts the domain itself and any subdomain of it.
	PolicySubdomains Policy = "subdomains"
	// PolicyExact accepts the domain and its "www." twin only.
	PolicyExact Policy = "exact"
	// PolicyRegistrable accepts any host sharing the domain's eTLD+1.
	PolicyRegistrable Policy = "registrable"
)

// DefaultPolicy is used when no policy is configured.
const DefaultPolicy = PolicySubdomains

// ErrInvalidURL is returned for URLs that cannot be crawled.
var ErrInvalidURL = errors.New("invalid url")

// ParsePolicy converts a configuration string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicySubdomains:
		return PolicySubdomains, nil
	case PolicyExact:
		return PolicyExact, nil
	case PolicyRegistrable:
		return PolicyRegistrable, nil
	default:
		return "", fmt.Errorf("unknown scope policy %q (use subdomains, exact or registrable)", s)
	}
}

// Scope is an immutable domain containment rule.
type Scope struct {
	domain      string
	policy      Policy
	registrable string
}

// New creates a Scope for the given target domain.
func New(domain string, policy Policy) Scope {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if policy == "" {
		policy = DefaultPolicy
	}
	s := Scope{domain: domain, policy: policy}
	if policy == PolicyRegistrable {
		if etld1, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
			s.registrable = etld1
		} else {
			// IPs and single-label hosts have no eTLD+1.
			s.registrable = domain
		}
	}
	return s
}

// Domain returns the target domain.
func (s Scope) Domain() string { return s.domain }

// Policy returns the containment policy.
func (s Scope) Policy() Policy { return s.policy }

// ContainsHost reports whether host (without port) is in scope.
func (s Scope) ContainsHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" || s.domain == "" {
		return false
	}
	switch s.policy {
	case PolicyExact:
		return host == s.domain || host == "www."+s.domain
	case PolicyRegistrable:
		if host == s.registrable || strings.HasSuffix(host, "."+s.registrable) {
			return true
		}
		return host == s.domain
	default:
		return host == s.domain || strings.HasSuffix(host, "."+s.domain)
	}
}

// Contains reports whether rawURL is an http(s) URL whose host is in scope.
func (s Scope) Contains(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return s.ContainsHost(u.Hostname())
}

// TargetDomain derives the crawl domain from a host: lower-cased, without
// port and without a leading "www.".
func TargetDomain(host string) string {
	host = strings.ToLower(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

// Normalize canonicalizes an absolute http(s) URL for deduplication.
// The scheme and host are lower-cased, default ports and fragments are
// dropped and an empty path becomes "/".
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	u.Host = host
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return u.String(), nil
}

// BaseURL turns user input (a URL or a bare domain) into a normalized base
// URL. Input without a scheme is upgraded to https.
func BaseURL(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidURL)
	}
	if !strings.Contains(input, "://") {
		input = "https://" + strings.TrimPrefix(input, "//")
	}
	normalized, err := Normalize(input)
	if err != nil {
		return "", err
	}
	u, _ := url.Parse(normalized)
	if host := u.Hostname(); host != "localhost" && !strings.ContainsAny(host, ".:") {
		return "", fmt.Errorf("%w: %q is not a domain", ErrInvalidURL, u.Hostname())
	}
	return normalized, nil
}
