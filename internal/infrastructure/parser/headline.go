package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanHeadline strips markup and entities that upstream feeds leave in
// story headlines and collapses whitespace.
func CleanHeadline(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return strings.Join(strings.Fields(raw), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.Join(strings.Fields(raw), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
