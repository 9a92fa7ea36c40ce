package htmlutil

import (
	"github.com/PuerkitoBio/goquery"
)

// MetaContent returns the content attribute of the first <meta> tag
// whose `attr` attribute equals `value`, e.g. ("property", "og:title").
func MetaContent(doc *goquery.Document, attr, value string) string {
	content := ""
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.AttrOr(attr, "") == value {
			content = s.AttrOr("content", "")
			return false
		}
		return true
	})
	return content
}
