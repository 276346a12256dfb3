package extract

import (
	"bytes"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
)

// minReadableChars is the smallest article worth preferring over the
// full visible text.
const minReadableChars = 200

// readableText extracts the main article text using go-readability.
// ok is false when no usable article was found.
func readableText(htmlContent []byte, base *url.URL) (string, bool) {
	parser := readability.NewParser()

	article, err := parser.Parse(bytes.NewReader(htmlContent), base)
	if err != nil || article.Node == nil {
		return "", false
	}

	var buf bytes.Buffer
	if err := article.RenderText(&buf); err != nil {
		return "", false
	}

	var lines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if line = collapse(line); line != "" {
			lines = append(lines, line)
		}
	}
	text := strings.Join(lines, "\n")
	if len(text) < minReadableChars {
		return "", false
	}
	return text, true
}
