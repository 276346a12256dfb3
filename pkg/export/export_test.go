package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jmylchreest/sitescrape/pkg/fetcher"
	"github.com/jmylchreest/sitescrape/pkg/page"
)

func samplePages() []page.Page {
	return []page.Page{
		{URL: "https://example.com/", Title: "Home", Text: "Welcome home.\nSecond line.", FetchStrategy: fetcher.StrategyColly},
		{URL: "https://example.com/about", Title: "About – Café ☕ 日本", Text: "About us\twith tab", FetchStrategy: fetcher.StrategyStdlib},
	}
}

func TestRenderText_Format(t *testing.T) {
	got := RenderText(samplePages()[:1])
	want := "# Home\nURL: https://example.com/\nFetched via: colly\n\nWelcome home.\nSecond line.\n\n" +
		strings.Repeat("=", 80) + "\n\n"
	if got != want {
		t.Errorf("RenderText() =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderText_Deterministic(t *testing.T) {
	pages := samplePages()
	first := RenderText(pages)
	second := RenderText(pages)
	if first != second {
		t.Error("RenderText() is not deterministic")
	}
	if strings.Index(first, "# Home") > strings.Index(first, "# About") {
		t.Error("pages must keep discovery order")
	}
}

func TestRenderText_Empty(t *testing.T) {
	if got := RenderText(nil); got != "" {
		t.Errorf("RenderText(nil) = %q, want empty", got)
	}
}

func TestFPDFRenderer_Render(t *testing.T) {
	pdf, err := NewFPDF().Render(context.Background(), samplePages())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Errorf("output does not look like a PDF: %q", pdf[:min(len(pdf), 16)])
	}
}

func TestFPDFRenderer_LongText(t *testing.T) {
	long := strings.Repeat("word ", 20000)
	pages := []page.Page{{URL: "https://example.com/", Title: "Long", Text: long}}
	pdf, err := NewFPDF().Render(context.Background(), pages)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	// Matches every page object plus the page tree.
	if bytes.Count(pdf, []byte("/Type /Page")) < 3 {
		t.Error("long text should paginate onto several pages")
	}
}

func TestLatin1(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"Café", "Caf\xe9"},
		{"Cafe\u0301", "Caf\xe9"},
		{"a – b", "a \x96 b"},
		{"€5", "\x805"},
		{"日本", "??"},
		{"☕", "?"},
		{"a\tb", "a    b"},
		{"bell\x07", "bell"},
	}
	for _, tt := range tests {
		if got := latin1(tt.in); got != tt.want {
			t.Errorf("latin1(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderHTML_Escapes(t *testing.T) {
	pages := []page.Page{{URL: "https://example.com/?a=1&b=2", Title: "<script>x</script>", Text: "one\n\ntwo"}}
	doc, err := renderHTML(pages)
	if err != nil {
		t.Fatalf("renderHTML() error = %v", err)
	}
	if strings.Contains(doc, "<script>x</script>") {
		t.Error("title must be escaped")
	}
	if strings.Count(doc, "<p>") != 2 {
		t.Errorf("expected two paragraphs, got:\n%s", doc)
	}
	if _, err := renderHTML(nil); err == nil {
		t.Error("renderHTML(nil) should fail")
	}
}

type stubRenderer struct {
	strategy PDFStrategy
	out      []byte
	err      error
	panics   bool
	calls    int
}

func (s *stubRenderer) Render(ctx context.Context, pages []page.Page) ([]byte, error) {
	s.calls++
	if s.panics {
		panic("boom")
	}
	return s.out, s.err
}

func (s *stubRenderer) Strategy() PDFStrategy { return s.strategy }

func TestExporter_FirstRendererWins(t *testing.T) {
	primary := &stubRenderer{strategy: PDFStrategyFPDF, out: []byte("%PDF-primary")}
	secondary := &stubRenderer{strategy: PDFStrategyChrome, out: []byte("%PDF-secondary")}

	out := New(primary, secondary).Export(context.Background(), samplePages())

	if out.PDFStrategy != PDFStrategyFPDF || string(out.PDF) != "%PDF-primary" {
		t.Errorf("got %s %q", out.PDFStrategy, out.PDF)
	}
	if secondary.calls != 0 {
		t.Error("secondary renderer should not run")
	}
	if out.Text != RenderText(samplePages()) {
		t.Error("text should match RenderText")
	}
}

func TestExporter_FallsBack(t *testing.T) {
	primary := &stubRenderer{strategy: PDFStrategyFPDF, panics: true}
	secondary := &stubRenderer{strategy: PDFStrategyChrome, out: []byte("%PDF-secondary")}

	out := New(primary, secondary).Export(context.Background(), samplePages())

	if out.PDFStrategy != PDFStrategyChrome {
		t.Errorf("strategy = %s, want chromedp", out.PDFStrategy)
	}
}

func TestExporter_AllFail(t *testing.T) {
	primary := &stubRenderer{strategy: PDFStrategyFPDF, err: errors.New("font missing")}
	secondary := &stubRenderer{strategy: PDFStrategyChrome}

	e := New(primary, secondary)
	out := e.Export(context.Background(), samplePages())
	if out.PDFStrategy != PDFStrategyNone || out.PDF != nil {
		t.Errorf("got %s with %d bytes, want none", out.PDFStrategy, len(out.PDF))
	}
	if out.Text == "" {
		t.Error("text export must survive pdf failure")
	}

	_, _, err := e.RenderPDF(context.Background(), samplePages())
	var exportErr *ExportError
	if !errors.As(err, &exportErr) || len(exportErr.Attempts) != 2 {
		t.Fatalf("RenderPDF() error = %v, want ExportError with 2 attempts", err)
	}
	if !strings.Contains(err.Error(), "font missing") {
		t.Errorf("error should mention causes: %v", err)
	}
}

func TestExporter_EmptyPages(t *testing.T) {
	r := &stubRenderer{strategy: PDFStrategyFPDF, out: []byte("%PDF")}
	out := New(r).Export(context.Background(), nil)

	if out.Text != "" || out.PDF != nil || out.PDFStrategy != PDFStrategyNone {
		t.Errorf("empty export = %+v", out)
	}
	if r.calls != 0 {
		t.Error("renderer must not run without pages")
	}
}

func TestExporter_CancelledContext(t *testing.T) {
	r := &stubRenderer{strategy: PDFStrategyFPDF, out: []byte("%PDF")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := New(r).Export(ctx, samplePages())
	if out.PDFStrategy != PDFStrategyNone {
		t.Errorf("strategy = %s, want none", out.PDFStrategy)
	}
}

func TestNewDefault_Order(t *testing.T) {
	got := NewDefault(Config{}).Strategies()
	if len(got) != 2 || got[0] != PDFStrategyFPDF || got[1] != PDFStrategyChrome {
		t.Errorf("Strategies() = %v", got)
	}
	if got := NewDefault(Config{DisableChrome: true}).Strategies(); len(got) != 1 {
		t.Errorf("Strategies() = %v, want fpdf only", got)
	}
}
