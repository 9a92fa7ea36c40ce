package listing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tuoitre-crawler/lib/scrapers/tuoitre/core"
)

// collectPaged walks a category's static pagination: page 1 is the
// category URL itself, page N swaps the trailing ".htm" for "-pN.htm".
// tuoitre prerenders these pages, so this path needs no javascript and
// serves as the fallback when no browser can be launched. Returns an
// error only when the first page is unfetchable, later failures just
// end the walk.
func (l Lister) collectPaged(ctx context.Context, categoryUrl string, target int) ([]PostURL, error) {
	ctx, span := tracer.Start(ctx, "lister:collectPaged")
	defer span.End()

	category := core.CategoryName(categoryUrl)
	seen := map[string]bool{}
	var posts []PostURL

	for page := 1; len(posts) < target; page++ {
		if err := ctx.Err(); err != nil {
			return posts, err
		}

		pageUrl := categoryUrl
		if page > 1 {
			pageUrl = strings.TrimSuffix(categoryUrl, ".htm") + fmt.Sprintf("-p%d.htm", page)
		}

		_, body, err := l.http.GetDocument(ctx, pageUrl)
		if err != nil {
			if page == 1 {
				span.RecordError(err)
				return nil, fmt.Errorf("fetch category page: %w", err)
			}
			slog.DebugContext(ctx, "pagination ended on unfetchable page",
				"category", category, "page", page, "err", err)
			break
		}

		newPosts, err := ExtractPostLinks(string(body), categoryUrl, category, seen)
		if err != nil {
			slog.WarnContext(ctx, "failed to parse category page",
				"category", category, "page", page, "err", err)
			break
		}
		if len(newPosts) == 0 {
			slog.DebugContext(ctx, "pagination stopped producing new posts",
				"category", category, "page", page)
			break
		}

		posts = append(posts, newPosts...)
		slog.DebugContext(ctx, "scanned paginated category page",
			"category", category, "page", page, "new", len(newPosts), "total", len(posts))
	}

	if len(posts) > target {
		posts = posts[:target]
	}
	return posts, nil
}
