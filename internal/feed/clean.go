package feed

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanHTML reduces an HTML fragment to its visible text with collapsed
// whitespace. Entities are decoded; script and style bodies are dropped.
func CleanHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
