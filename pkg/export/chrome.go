package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/sitescrape/internal/logger"
	"github.com/jmylchreest/sitescrape/pkg/page"
)

const defaultChromeTimeout = 60 * time.Second

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"paragraphs": paragraphs,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ with index . 0 }}{{ .Title }}{{ end }}</title>
<style>
  @page { size: A4; margin: 15mm; }
  body { font-family: sans-serif; font-size: 12pt; line-height: 1.4; }
  section { page-break-after: always; }
  section:last-child { page-break-after: auto; }
  h1 { font-size: 14pt; margin: 0 0 4pt 0; }
  .url { font-size: 10pt; color: #444; margin-bottom: 12pt; word-break: break-all; }
  p { margin: 0 0 6pt 0; white-space: pre-wrap; }
</style>
</head>
<body>
{{ range . }}<section>
<h1>{{ .Title }}</h1>
<div class="url">{{ .URL }}</div>
{{ range paragraphs .Text }}<p>{{ . }}</p>
{{ end }}</section>
{{ end }}</body>
</html>
`))

// ChromeRenderer prints an HTML rendition of the pages with headless
// Chrome. It handles any Unicode text the browser has fonts for.
type ChromeRenderer struct {
	execPath string
	timeout  time.Duration
}

// NewChrome creates the fallback renderer. An empty execPath lets
// chromedp locate the browser.
func NewChrome(execPath string, timeout time.Duration) *ChromeRenderer {
	if timeout <= 0 {
		timeout = defaultChromeTimeout
	}
	return &ChromeRenderer{execPath: execPath, timeout: timeout}
}

// Strategy returns PDFStrategyChrome.
func (r *ChromeRenderer) Strategy() PDFStrategy { return PDFStrategyChrome }

// Render starts a browser, loads the document and prints it to PDF.
func (r *ChromeRenderer) Render(ctx context.Context, pages []page.Page) ([]byte, error) {
	doc, err := renderHTML(pages)
	if err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, r.timeout)
	defer cancelTimeout()

	logger.Debug("chrome renderer printing", "pages", len(pages), "html_size", len(doc))

	var pdf []byte
	err = chromedp.Run(timeoutCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := cdppage.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return cdppage.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := cdppage.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("browser print failed: %w", err)
	}
	return pdf, nil
}

func renderHTML(pages []page.Page) (string, error) {
	if len(pages) == 0 {
		return "", fmt.Errorf("no pages to render")
	}
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, pages); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// paragraphs splits page text into its non-blank lines.
func paragraphs(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
