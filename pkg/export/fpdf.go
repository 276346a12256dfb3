package export

import (
	"bytes"
	"context"
	"strings"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/jmylchreest/sitescrape/pkg/page"
)

// FPDFRenderer lays pages out with the core PDF fonts. One document page
// is started per crawled page.
type FPDFRenderer struct {
	font string
}

// NewFPDF creates the primary renderer.
func NewFPDF() *FPDFRenderer {
	return &FPDFRenderer{font: "Helvetica"}
}

// Strategy returns PDFStrategyFPDF.
func (r *FPDFRenderer) Strategy() PDFStrategy { return PDFStrategyFPDF }

// Render builds an A4 document with 15mm margins.
func (r *FPDFRenderer) Render(ctx context.Context, pages []page.Page) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(latin1(pages[0].Title), false)
	pdf.SetCreator("sitescrape", false)

	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pdf.AddPage()

		pdf.SetFont(r.font, "B", 14)
		pdf.MultiCell(0, 10, latin1(p.Title), "", "L", false)
		pdf.SetFont(r.font, "", 10)
		pdf.MultiCell(0, 8, latin1(p.URL), "", "L", false)
		pdf.Ln(4)

		pdf.SetFont(r.font, "", 12)
		for _, paragraph := range strings.Split(p.Text, "\n") {
			paragraph = strings.TrimSpace(paragraph)
			if paragraph == "" {
				pdf.Ln(7)
				continue
			}
			pdf.MultiCell(0, 7, latin1(paragraph), "", "L", false)
			pdf.Ln(1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// latin1 converts text to the Windows-1252 byte string expected by the
// core fonts. Characters without a mapping become '?'.
func latin1(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t':
			b.WriteString("    ")
			continue
		case r == '\n':
			b.WriteByte('\n')
			continue
		case r < 0x20 || r == 0x7f:
			continue
		}
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}
