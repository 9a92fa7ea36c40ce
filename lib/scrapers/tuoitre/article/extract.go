package article

import (
	"strconv"
	"strings"
	"tuoitre-crawler/lib/htmlutil"
	"tuoitre-crawler/lib/scrapers/tuoitre/core"
	"tuoitre-crawler/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

const defaultAuthor = "Tuổi Trẻ"

var titleSelectors = []string{
	"h1.detail-title",
	"h1.article-title",
	`h1[data-role="title"]`,
	".detail-title h1",
	"article h1",
	"h1",
}

var sapoSelectors = []string{
	"h2.detail-sapo",
	".detail-sapo",
	".article-sapo",
	".sapo",
	"p.lead",
}

var contentSelectors = []string{
	".detail-content",
	".detail-content-body",
	"#main-detail-body",
	".article-content",
	"article .content",
	`[data-role="content"]`,
}

var authorSelectors = []string{
	".detail-author",
	".author-name",
	".article-author",
	`[data-role="author"]`,
	".author",
	".detail-content-author",
}

var dateSelectors = []string{
	".detail-time",
	".date-time",
	".article-date",
	"time",
	`[data-role="publishdate"]`,
	".detail-content-info .date",
}

// Extract maps a parsed post page into an Article. Pure function of
// the document, absent fields become empty defaults.
func Extract(doc *goquery.Document, postUrl, category string) Article {
	return Article{
		PostID:    core.PostID(postUrl),
		URL:       postUrl,
		Title:     extractTitle(doc),
		Content:   extractContent(doc),
		Author:    extractAuthor(doc),
		Date:      extractDate(doc),
		Category:  category,
		Images:    extractImages(doc, postUrl),
		Audio:     extractAudio(doc, postUrl),
		Reactions: extractReactions(doc),
	}
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 {
			return textutil.Clean(sel.Text())
		}
	}
	return ""
}

func extractTitle(doc *goquery.Document) string {
	title := firstText(doc, titleSelectors)
	if title != "" {
		return title
	}
	return textutil.Clean(htmlutil.MetaContent(doc, "property", "og:title"))
}

func extractContent(doc *goquery.Document) string {
	var parts []string

	sapo := firstText(doc, sapoSelectors)
	if sapo != "" {
		parts = append(parts, sapo)
	}

	for _, selector := range contentSelectors {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}

		bodyStart := len(parts)
		container.ChildrenFiltered("p, div").Each(func(_ int, p *goquery.Selection) {
			if !isContentElement(p) {
				return
			}
			text := textutil.Clean(p.Text())
			if len(text) > 20 {
				parts = append(parts, text)
			}
		})

		// flat article bodies have no paragraph children at all
		if len(parts) == bodyStart {
			text := textutil.Clean(container.Text())
			if text != "" {
				parts = append(parts, text)
			}
		}
		break
	}

	return strings.Join(parts, "\n\n")
}

var skipContentClasses = []string{"caption", "ad", "relate", "author", "source", "tag", "widget"}

func isContentElement(sel *goquery.Selection) bool {
	class := strings.ToLower(sel.AttrOr("class", ""))
	for _, skip := range skipContentClasses {
		if strings.Contains(class, skip) {
			return false
		}
	}
	return true
}

func extractAuthor(doc *goquery.Document) string {
	author := firstText(doc, authorSelectors)
	if author != "" {
		return author
	}
	author = textutil.Clean(htmlutil.MetaContent(doc, "name", "author"))
	if author != "" {
		return author
	}
	return defaultAuthor
}

func extractDate(doc *goquery.Document) string {
	for _, selector := range dateSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if datetime := sel.AttrOr("datetime", ""); datetime != "" {
			return textutil.Clean(datetime)
		}
		return textutil.Clean(sel.Text())
	}
	return textutil.Clean(htmlutil.MetaContent(doc, "property", "article:published_time"))
}

var skipImagePatterns = []string{
	"icon", "logo", "avatar", "placeholder", "lazy", "pixel",
	"transparent", "1x1", "data:image", "base64",
}

func isContentImage(src string) bool {
	if src == "" {
		return false
	}
	lower := strings.ToLower(src)
	for _, pattern := range skipImagePatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	return true
}

func extractImages(doc *goquery.Document, postUrl string) []string {
	var images []string
	seen := map[string]bool{}

	add := func(src string) {
		if !isContentImage(src) {
			return
		}
		absolute := core.AbsoluteURL(postUrl, src)
		if seen[absolute] {
			return
		}
		seen[absolute] = true
		images = append(images, absolute)
	}

	doc.Find(".detail-content img, .article-content img, article img").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("data-src", "")
		if src == "" {
			src = img.AttrOr("src", "")
		}
		if src == "" {
			src = img.AttrOr("data-original", "")
		}
		add(src)
	})

	doc.Find(".detail-content picture source, article picture source").Each(func(_ int, source *goquery.Selection) {
		srcset := source.AttrOr("srcset", "")
		if srcset == "" {
			return
		}
		add(strings.Fields(srcset)[0])
	})

	return images
}

func extractAudio(doc *goquery.Document, postUrl string) string {
	audio := doc.Find("audio").First()
	if audio.Length() > 0 {
		if src := audio.Find("source").First().AttrOr("src", ""); src != "" {
			return core.AbsoluteURL(postUrl, src)
		}
		if src := audio.AttrOr("src", ""); src != "" {
			return core.AbsoluteURL(postUrl, src)
		}
	}

	podcastSelectors := []string{
		".podcast-player audio source",
		".audio-player source",
		"[data-audio-src]",
		`a[href$=".mp3"]`,
	}
	for _, selector := range podcastSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		src := sel.AttrOr("src", "")
		if src == "" {
			src = sel.AttrOr("data-audio-src", "")
		}
		if src == "" {
			src = sel.AttrOr("href", "")
		}
		if src != "" {
			return core.AbsoluteURL(postUrl, src)
		}
	}

	return ""
}

var reactionClasses = []string{"like", "love", "angry", "sad", "wow", "haha"}

func extractReactions(doc *goquery.Document) map[string]int {
	reactions := map[string]int{}

	selector := ".emotion-bar .emotion-item, .reactions .reaction-item, .vote-item, [data-reaction]"
	doc.Find(selector).Each(func(_ int, item *goquery.Selection) {
		kind := item.AttrOr("data-reaction", "")
		if kind == "" {
			kind = item.AttrOr("data-type", "")
		}
		if kind == "" {
			for _, cls := range strings.Fields(item.AttrOr("class", "")) {
				lower := strings.ToLower(cls)
				for _, known := range reactionClasses {
					if strings.Contains(lower, known) {
						kind = cls
						break
					}
				}
				if kind != "" {
					break
				}
			}
		}
		if kind == "" {
			return
		}

		count := 0
		countText := item.Find(".count").First().Text()
		if countText == "" {
			countText = item.Find("span").First().Text()
		}
		if digits := textutil.DigitsOnly(countText); digits != "" {
			count, _ = strconv.Atoi(digits)
		}
		reactions[kind] = count
	})

	return reactions
}
