// Package comments collects reader comments for a post, preferring the
// paginated comment API and falling back to scraping the post page when
// the API yields nothing.
package comments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"tuoitre-crawler/lib/scrapers/tuoitre/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("scrapers/tuoitre/comments")

type Comment struct {
	CommentID string
	Author    string
	Text      string
	Date      string
	Reactions map[string]int
	Replies   []Comment
}

type Options struct {
	// base url of the comment API host
	ApiBaseUrl string
	// base url of the older standalone comment host, probed when the
	// main API has nothing for a post
	AltApiBaseUrl string
	PageSize      int
	// upper bound on top-level comments collected per post
	MaxComments int
}

func (o *Options) fillDefaults() {
	if o.ApiBaseUrl == "" {
		o.ApiBaseUrl = "https://id.tuoitre.vn"
	}
	if o.AltApiBaseUrl == "" {
		o.AltApiBaseUrl = "https://comment.tuoitre.vn"
	}
	if o.PageSize == 0 {
		o.PageSize = 20
	}
	if o.MaxComments == 0 {
		o.MaxComments = 100
	}
}

type Client struct {
	Core *core.Client
	opts Options
}

func NewClient(coreClient *core.Client, opts Options) Client {
	opts.fillDefaults()
	return Client{Core: coreClient, opts: opts}
}

// Fetch returns the comment tree for a post. A post with no comments
// yields an empty slice; pages that fail mid-pagination truncate the
// result. An error means neither the comment API nor the post page
// could be read at all.
func (c Client) Fetch(ctx context.Context, postId, postUrl string) ([]Comment, error) {
	ctx, span := tracer.Start(ctx, "client:Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("post_id", postId))

	comments, apiErr := c.fromApi(ctx, postId)
	if apiErr != nil {
		slog.Debug("comment api unavailable, falling back to page scrape",
			"postId", postId, "err", apiErr)
	}
	if len(comments) == 0 {
		var htmlErr error
		comments, htmlErr = c.fromHtml(ctx, postUrl)
		if htmlErr != nil {
			if apiErr != nil {
				return nil, fmt.Errorf("comment api and post page both unreadable: %w",
					errors.Join(apiErr, htmlErr))
			}
			slog.Warn("could not scrape comments from post page",
				"postId", postId, "err", htmlErr)
			return nil, nil
		}
	}

	span.SetAttributes(attribute.Int("comments", len(comments)))
	return comments, nil
}
