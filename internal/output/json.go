package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/jmylchreest/sitescrape/pkg/sitescrape"
)

// Manifest summarizes a scrape for machines.
type Manifest struct {
	ID          string         `json:"id,omitempty" yaml:"id,omitempty"`
	BaseURL     string         `json:"base_url" yaml:"base_url"`
	Domain      string         `json:"domain" yaml:"domain"`
	PageCount   int            `json:"page_count" yaml:"page_count"`
	PDFStrategy string         `json:"pdf_strategy" yaml:"pdf_strategy"`
	Partial     bool           `json:"partial,omitempty" yaml:"partial,omitempty"`
	Duration    string         `json:"duration" yaml:"duration"`
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
	Files       []string       `json:"files" yaml:"files"`
	Pages       []ManifestPage `json:"pages" yaml:"pages"`
	Skipped     []ManifestSkip `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// ManifestPage is one crawled page.
type ManifestPage struct {
	URL           string `json:"url" yaml:"url"`
	Title         string `json:"title" yaml:"title"`
	FetchStrategy string `json:"fetch_strategy" yaml:"fetch_strategy"`
}

// ManifestSkip is one URL that produced no page.
type ManifestSkip struct {
	URL    string `json:"url" yaml:"url"`
	Reason string `json:"reason" yaml:"reason"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewManifest builds the manifest of a result. Files are stored by base
// name so the manifest stays valid when the directory moves.
func NewManifest(res *sitescrape.Result, files []string) Manifest {
	m := Manifest{
		ID:          res.ID,
		BaseURL:     res.BaseURL,
		Domain:      res.Domain,
		PageCount:   res.PageCount,
		PDFStrategy: string(res.PDFStrategy),
		Partial:     res.Partial,
		Duration:    res.Duration.Round(time.Millisecond).String(),
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Pages:       make([]ManifestPage, 0, len(res.Pages)),
	}
	for _, f := range files {
		m.Files = append(m.Files, filepath.Base(f))
	}
	for _, p := range res.Pages {
		m.Pages = append(m.Pages, ManifestPage{URL: p.URL, Title: p.Title, FetchStrategy: string(p.FetchStrategy)})
	}
	for _, s := range res.Skipped {
		entry := ManifestSkip{URL: s.URL, Reason: string(s.Reason)}
		if s.Err != nil {
			entry.Error = s.Err.Error()
		}
		m.Skipped = append(m.Skipped, entry)
	}
	return m
}

// Encode writes v to w in the given format.
func Encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		return encodeJSON(w, v)
	case FormatYAML:
		return encodeYAML(w, v)
	default:
		return fmt.Errorf("unsupported manifest format: %s", format)
	}
}

func encodeJSON(w io.Writer, v any) error {
	bw := bufio.NewWriter(w)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if _, err := bw.Write(data); err != nil {
		return err
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}
	return bw.Flush()
}
