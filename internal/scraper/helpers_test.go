package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

// mustSelection parses an HTML snippet and returns the first match of the
// selector, failing the test when nothing matches.
func mustSelection(t *testing.T, html, selector string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse snippet: %v", err)
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		t.Fatalf("selector %q matched nothing in %q", selector, html)
	}
	return sel
}
