// Package output persists scrape results as files.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/sitescrape/internal/logger"
	"github.com/jmylchreest/sitescrape/pkg/sitescrape"
)

// Artifact file names inside the output directory.
const (
	TextFile = "scraped_content.txt"
	PDFFile  = "scraped_content.pdf"
)

// Format selects the page manifest encoding.
type Format string

const (
	FormatNone Format = "none"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatNone:
		return FormatNone, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported manifest format: %s (use none, json or yaml)", s)
	}
}

// ManifestFile returns the manifest file name for the format.
func (f Format) ManifestFile() string {
	switch f {
	case FormatJSON:
		return "manifest.json"
	case FormatYAML:
		return "manifest.yaml"
	default:
		return ""
	}
}

// Writer stores the artifacts of a scrape in one directory.
type Writer struct {
	dir      string
	manifest Format
}

// NewWriter creates a writer for dir. The directory is created on the
// first write.
func NewWriter(dir string, manifest Format) *Writer {
	if manifest == "" {
		manifest = FormatNone
	}
	return &Writer{dir: dir, manifest: manifest}
}

// Dir returns the target directory.
func (w *Writer) Dir() string { return w.dir }

// Write stores the text export, the PDF when one was rendered and the
// manifest when enabled. It returns the paths written.
func (w *Writer) Write(res *sitescrape.Result) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var written []string
	textPath := filepath.Join(w.dir, TextFile)
	if err := os.WriteFile(textPath, []byte(res.Text), 0o644); err != nil {
		return written, fmt.Errorf("write text export: %w", err)
	}
	written = append(written, textPath)
	logger.Info("saved text export", "path", textPath, "size", humanize.Bytes(uint64(len(res.Text))))

	if len(res.PDF) > 0 {
		pdfPath := filepath.Join(w.dir, PDFFile)
		if err := os.WriteFile(pdfPath, res.PDF, 0o644); err != nil {
			return written, fmt.Errorf("write pdf export: %w", err)
		}
		written = append(written, pdfPath)
		logger.Info("saved pdf export", "path", pdfPath, "strategy", res.PDFStrategy, "size", humanize.Bytes(uint64(len(res.PDF))))
	} else {
		logger.Warn("no pdf export produced", "domain", res.Domain)
	}

	if name := w.manifest.ManifestFile(); name != "" {
		path := filepath.Join(w.dir, name)
		if err := w.writeManifest(path, NewManifest(res, written)); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func (w *Writer) writeManifest(path string, m Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	if err := Encode(f, w.manifest, m); err != nil {
		_ = f.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	return f.Close()
}
