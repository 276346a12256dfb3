package export

import (
	"strings"

	"github.com/jmylchreest/sitescrape/pkg/page"
)

// Separator closes every page section of the text document.
var Separator = strings.Repeat("=", 80)

// RenderText concatenates the pages in order, each behind a header with
// its title, URL and fetch strategy. The output is deterministic.
func RenderText(pages []page.Page) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString("# ")
		b.WriteString(p.Title)
		b.WriteString("\nURL: ")
		b.WriteString(p.URL)
		b.WriteString("\nFetched via: ")
		b.WriteString(string(p.FetchStrategy))
		b.WriteString("\n\n")
		b.WriteString(p.Text)
		b.WriteString("\n\n")
		b.WriteString(Separator)
		b.WriteString("\n\n")
	}
	return b.String()
}
