// Package crawler orchestrates a full crawl run: listing category
// pages, fetching posts and their comments, downloading media and
// serializing one record per post.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"tuoitre-crawler/lib/scrapers/tuoitre/article"
	"tuoitre-crawler/lib/scrapers/tuoitre/comments"
	"tuoitre-crawler/lib/scrapers/tuoitre/listing"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/crawler")

type PostLister interface {
	PostURLs(ctx context.Context, categoryUrl string, target int) ([]listing.PostURL, error)
}

type ArticleFetcher interface {
	Fetch(ctx context.Context, postUrl, category string) (article.Article, error)
}

type CommentFetcher interface {
	Fetch(ctx context.Context, postId, postUrl string) ([]comments.Comment, error)
}

type MediaStore interface {
	DownloadImages(ctx context.Context, postId string, urls []string) []string
	DownloadAudio(ctx context.Context, postId, audioUrl string) (string, error)
}

type Options struct {
	Categories       []string
	PostsPerCategory int
	OutputDir        string
	Format           Format
}

type Service struct {
	lister   PostLister
	articles ArticleFetcher
	comments CommentFetcher
	media    MediaStore
	config   Options
}

func NewService(lister PostLister, articles ArticleFetcher, commentFetcher CommentFetcher, media MediaStore, options Options) Service {
	if options.PostsPerCategory == 0 {
		options.PostsPerCategory = 35
	}
	if options.OutputDir == "" {
		options.OutputDir = "output"
	}
	if options.Format == "" {
		options.Format = FormatJson
	}
	return Service{
		lister:   lister,
		articles: articles,
		comments: commentFetcher,
		media:    media,
		config:   options,
	}
}

type Stats struct {
	TotalPosts      int
	SuccessfulPosts int
	FailedPosts     int
	TotalImages     int
	TotalAudio      int
	TotalComments   int
	// post carrying the largest comment tree seen this run
	MaxCommentsPost  string
	MaxCommentsCount int
}

func (s Service) DataDir() string {
	return filepath.Join(s.config.OutputDir, "data")
}

// Run executes the crawl. A category that fails to list or a post that
// fails to fetch is skipped and counted, never aborts the run. The one
// exception is every category failing with a listing.SessionError,
// which means the site was never reached and the run must report
// failure.
func (s Service) Run(ctx context.Context) (Stats, error) {
	ctx, span := tracer.Start(ctx, "service:Run")
	defer span.End()

	if err := os.MkdirAll(s.DataDir(), 0755); err != nil {
		return Stats{}, err
	}

	var queue []listing.PostURL
	sessionFailures := 0
	for _, categoryUrl := range s.config.Categories {
		posts, err := s.lister.PostURLs(ctx, categoryUrl, s.config.PostsPerCategory)
		if err != nil {
			var sessionErr *listing.SessionError
			if errors.As(err, &sessionErr) {
				sessionFailures++
			}
			slog.Error("could not list category, skipping it",
				"category", categoryUrl, "err", err)
			span.RecordError(err)
			continue
		}
		slog.Info("collected category", "category", categoryUrl, "posts", len(posts))
		queue = append(queue, posts...)
	}
	if len(s.config.Categories) > 0 && sessionFailures == len(s.config.Categories) {
		span.SetStatus(codes.Error, "no category reachable")
		return Stats{}, fmt.Errorf("no category could be listed: all %d browser sessions failed", sessionFailures)
	}

	stats := Stats{TotalPosts: len(queue)}
	span.SetAttributes(attribute.Int("posts", len(queue)))

	for _, post := range queue {
		if ctx.Err() != nil {
			span.SetStatus(codes.Error, "run cancelled")
			return stats, ctx.Err()
		}
		if err := s.processPost(ctx, post, &stats); err != nil {
			slog.Error("post failed, skipping it", "url", post.URL, "err", err)
			stats.FailedPosts++
			continue
		}
		stats.SuccessfulPosts++
	}

	return stats, nil
}

func (s Service) processPost(ctx context.Context, post listing.PostURL, stats *Stats) error {
	ctx, span := tracer.Start(ctx, "service:processPost")
	defer span.End()
	span.SetAttributes(attribute.String("url", post.URL))

	a, err := s.articles.Fetch(ctx, post.URL, post.Category)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "article fetch failed")
		return err
	}

	imagePaths := s.media.DownloadImages(ctx, a.PostID, a.Images)
	for _, localPath := range imagePaths {
		if localPath != "" {
			stats.TotalImages++
		}
	}

	audioPath := ""
	if a.Audio != "" {
		audioPath, err = s.media.DownloadAudio(ctx, a.PostID, a.Audio)
		if err != nil {
			// the record keeps the audio url, just without a local copy
			slog.Warn("audio download failed", "postId", a.PostID, "err", err)
			audioPath = ""
		} else if audioPath != "" {
			stats.TotalAudio++
		}
	}

	commentTree, err := s.comments.Fetch(ctx, a.PostID, a.URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "comment fetch failed")
		return err
	}
	stats.TotalComments += len(commentTree)
	if len(commentTree) > stats.MaxCommentsCount {
		stats.MaxCommentsCount = len(commentTree)
		stats.MaxCommentsPost = a.PostID
	}

	record := NewRecord(a, commentTree, imagePaths, audioPath)
	dest, err := SaveRecord(record, s.DataDir(), s.config.Format)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "serialization failed")
		return err
	}

	slog.Info("saved post", "postId", a.PostID, "file", dest,
		"images", len(record.Images.URLs), "comments", len(record.Comments))
	return nil
}

// RenderSummary formats the run statistics as a table for the end of
// the CLI output.
func RenderSummary(stats Stats) string {
	t := table.NewWriter()
	t.AppendRows([]table.Row{
		{"posts attempted", stats.TotalPosts},
		{"posts succeeded", stats.SuccessfulPosts},
		{"posts failed", stats.FailedPosts},
		{"images downloaded", stats.TotalImages},
		{"audio files downloaded", stats.TotalAudio},
		{"comments collected", stats.TotalComments},
	})
	if stats.MaxCommentsPost != "" {
		t.AppendRow(table.Row{"most commented post", stats.MaxCommentsPost})
		t.AppendRow(table.Row{"most comments", stats.MaxCommentsCount})
	}
	return t.Render()
}
