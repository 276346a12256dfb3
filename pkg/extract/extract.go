// Package extract turns raw HTML into a page title, visible text and
// outbound links. It performs no I/O.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Mode selects how the text of a page is produced.
type Mode string

const (
	// ModeVisible collects every visible text node.
	ModeVisible Mode = "visible"
	// ModeReadability keeps the main article only, falling back to
	// ModeVisible when no article can be identified.
	ModeReadability Mode = "readability"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeVisible:
		return ModeVisible, nil
	case ModeReadability:
		return ModeReadability, nil
	default:
		return "", fmt.Errorf("unknown text mode %q (use visible or readability)", s)
	}
}

// Document is the result of extracting one page.
type Document struct {
	Title string
	Text  string
	// Links holds absolute http(s) URLs in document order, without
	// fragments and without duplicates.
	Links []string
}

// ErrUnsupportedContent is wrapped by ParseError for non-HTML responses.
var ErrUnsupportedContent = errors.New("unsupported content type")

// ParseError reports a page that could not be turned into a Document.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Extractor extracts documents using a fixed Mode.
type Extractor struct {
	mode Mode
}

// New creates an Extractor. An empty mode means ModeVisible.
func New(mode Mode) *Extractor {
	if mode == "" {
		mode = ModeVisible
	}
	return &Extractor{mode: mode}
}

// Mode returns the configured text mode.
func (e *Extractor) Mode() Mode { return e.mode }

// Extract parses body as HTML. contentType is the response header value
// (may be empty) and baseURL is used to resolve relative links and as the
// fallback title.
func (e *Extractor) Extract(body []byte, contentType, baseURL string) (Document, error) {
	if !isHTML(contentType) {
		return Document{}, &ParseError{URL: baseURL, Err: fmt.Errorf("%w: %s", ErrUnsupportedContent, contentType)}
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		// Unknown charsets are read as-is.
		reader = bytes.NewReader(body)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return Document{}, &ParseError{URL: baseURL, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decoded))
	if err != nil {
		return Document{}, &ParseError{URL: baseURL, Err: err}
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return Document{}, &ParseError{URL: baseURL, Err: err}
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	out := Document{
		Title: collapse(doc.Find("title").First().Text()),
		Links: extractLinks(doc, base),
	}
	if out.Title == "" {
		out.Title = baseURL
	}

	if e.mode == ModeReadability {
		if text, ok := readableText(decoded, base); ok {
			out.Text = text
			return out, nil
		}
	}
	out.Text = visibleText(doc)
	return out, nil
}

// Extract parses body with a ModeVisible extractor.
func Extract(body []byte, contentType, baseURL string) (Document, error) {
	return New(ModeVisible).Extract(body, contentType, baseURL)
}

func isHTML(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml", "text/plain", "application/xml", "text/xml":
		return true
	}
	return false
}

var hiddenElements = "script, style, noscript, template, svg, iframe, head, object, canvas"

// blockElements start a new line in the extracted text.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "td": true, "th": true, "tr": true, "ul": true, "option": true,
}

func visibleText(doc *goquery.Document) string {
	doc.Find(hiddenElements).Remove()

	var lines []string
	var current strings.Builder
	flush := func() {
		if line := collapse(current.String()); line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			current.WriteString(n.Data)
			current.WriteByte(' ')
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			if blockElements[n.Data] {
				flush()
				defer flush()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	flush()

	return strings.Join(lines, "\n")
}

func extractLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if abs.Host == "" {
			return
		}
		abs.Fragment = ""
		abs.RawFragment = ""
		link := abs.String()
		if seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})

	return links
}

// collapse normalizes whitespace in text.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
