package listing

import (
	"strings"
	"tuoitre-crawler/lib/scrapers/tuoitre/core"

	"github.com/PuerkitoBio/goquery"
)

// selector strategies for post links on tuoitre category pages, the
// markup varies between featured boxes and plain lists
var linkSelectors = []string{
	"h3.box-title-text a",
	"h2.box-title-text a",
	"a.box-category-link-title",
	".box-focus-title a",
	"article a[href*='.htm']",
	".name-news a",
}

var containerSelectors = ".box-category-item, .box-focus-item, article, .news-item"

// ExtractPostLinks pulls post links out of a rendered category page,
// in document order, skipping links already present in `seen`. It is a
// pure function of the markup, so repeated scans of a static page are
// idempotent.
func ExtractPostLinks(pageHtml, baseUrl, category string, seen map[string]bool) ([]PostURL, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHtml))
	if err != nil {
		return nil, err
	}

	var posts []PostURL
	add := func(href string) {
		if href == "" || !core.IsPostURL(href) {
			return
		}
		absolute := core.AbsoluteURL(baseUrl, href)
		if seen[absolute] {
			return
		}
		seen[absolute] = true
		posts = append(posts, PostURL{URL: absolute, Category: category})
	}

	for _, selector := range linkSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			add(s.AttrOr("href", ""))
		})
	}

	// catch layouts where the title anchor carries no class at all
	doc.Find(containerSelectors).Each(func(_ int, container *goquery.Selection) {
		link := container.Find("a[href]").First()
		add(link.AttrOr("href", ""))
	})

	return posts, nil
}
