// Package article fetches individual tuoitre posts and extracts their
// fields with a fixed selector schema. Extraction never fails: a
// selector that matches nothing produces the field's empty default.
package article

import (
	"context"
	"tuoitre-crawler/lib/scrapers/tuoitre/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/tuoitre/article")

type Article struct {
	PostID   string
	URL      string
	Title    string
	Content  string
	Author   string
	Date     string
	Category string
	// content image URLs in document order
	Images []string
	// podcast/audio URL, empty when the post has none
	Audio     string
	Reactions map[string]int
}

type Client struct {
	Core *core.Client
}

func NewClient(coreClient *core.Client) Client {
	return Client{Core: coreClient}
}

// Fetch downloads a post page and extracts it. The returned error is a
// *core.FetchError once the client's retry budget is exhausted.
func (c Client) Fetch(ctx context.Context, postUrl, category string) (Article, error) {
	ctx, span := tracer.Start(ctx, "client:Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", postUrl))

	doc, _, err := c.Core.GetDocumentCached(ctx, postUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch post")
		return Article{}, err
	}

	a := Extract(doc, postUrl, category)
	span.SetAttributes(
		attribute.String("post_id", a.PostID),
		attribute.Int("images", len(a.Images)),
	)
	return a, nil
}
