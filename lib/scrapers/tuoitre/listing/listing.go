// Package listing collects post URLs from tuoitre category pages.
// Category pages render only a first batch of posts statically, the
// rest appear through a javascript "load more" control, so listing
// drives a headless browser session. When no browser can be launched
// it falls back to the site's static -pN.htm pagination over plain
// HTTP, which yields fewer posts per category but keeps a run alive.
package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"tuoitre-crawler/lib/scrapers/tuoitre/core"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/tuoitre/listing")

type PostURL struct {
	URL      string
	Category string
}

type Options struct {
	Headless  bool
	UserAgent string
	// consecutive scans with no new links before giving up
	StallLimit int
	// cap on "load more" activations per category
	MaxClicks int
	// settle time after the initial page load
	InitialWait time.Duration
	// settle time after each "load more" activation
	ClickWait time.Duration
}

func (o *Options) fillDefaults() {
	if o.StallLimit == 0 {
		o.StallLimit = 2
	}
	if o.MaxClicks == 0 {
		o.MaxClicks = 10
	}
	if o.InitialWait == 0 {
		o.InitialWait = 2 * time.Second
	}
	if o.ClickWait == 0 {
		o.ClickWait = 1500 * time.Millisecond
	}
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
}

type Lister struct {
	opts Options
	// used by the plain-HTTP pagination fallback, nil disables it
	http *core.Client
}

func NewLister(httpClient *core.Client, opts Options) Lister {
	opts.fillDefaults()
	return Lister{opts: opts, http: httpClient}
}

// session is the contract the collect loop needs from a browser tab.
type session interface {
	Navigate(ctx context.Context, pageUrl string) error
	HTML(ctx context.Context) (string, error)
	ClickLoadMore(ctx context.Context) (bool, error)
	Close()
}

// SessionError means the category could not be listed at all: no
// browser session could be driven and, when an HTTP client is
// configured, the static pagination fallback was unreachable too. The
// category is skipped, other categories still run.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("browser session: %s", e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// PostURLs loads a category page and accumulates post links until
// `target` distinct URLs are collected or the page stops producing new
// ones. A short result is returned as a success, the caller decides
// whether to warn.
func (l Lister) PostURLs(ctx context.Context, categoryUrl string, target int) ([]PostURL, error) {
	ctx, span := tracer.Start(ctx, "lister:PostURLs")
	defer span.End()
	span.SetAttributes(
		attribute.String("category_url", categoryUrl),
		attribute.Int("target", target),
	)

	sess, err := newBrowserSession(ctx, l.opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start browser")
		return l.fallback(ctx, categoryUrl, target, err)
	}
	defer sess.Close()

	err = sess.Navigate(ctx, categoryUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to navigate")
		return l.fallback(ctx, categoryUrl, target, err)
	}

	return l.collect(ctx, sess, categoryUrl, target)
}

func (l Lister) fallback(ctx context.Context, categoryUrl string, target int, cause error) ([]PostURL, error) {
	if l.http == nil {
		return nil, &SessionError{Err: cause}
	}
	slog.WarnContext(ctx, "browser unavailable, walking static pagination instead",
		"category", core.CategoryName(categoryUrl), "err", cause)
	posts, err := l.collectPaged(ctx, categoryUrl, target)
	if err != nil {
		return nil, &SessionError{Err: errors.Join(cause, err)}
	}
	return posts, nil
}

func (l Lister) collect(ctx context.Context, sess session, categoryUrl string, target int) ([]PostURL, error) {
	category := core.CategoryName(categoryUrl)
	seen := map[string]bool{}
	var posts []PostURL
	clicks := 0
	stalls := 0

	for {
		if err := ctx.Err(); err != nil {
			return posts, err
		}

		pageHtml, err := sess.HTML(ctx)
		if err != nil {
			slog.WarnContext(ctx, "lost browser session mid-listing", "category", category, "err", err)
			return posts, nil
		}

		newPosts, err := ExtractPostLinks(pageHtml, categoryUrl, category, seen)
		if err != nil {
			slog.WarnContext(ctx, "failed to parse category page", "category", category, "err", err)
			return posts, nil
		}
		posts = append(posts, newPosts...)
		slog.DebugContext(ctx, "scanned category page",
			"category", category, "new", len(newPosts), "total", len(posts))

		if len(newPosts) == 0 {
			stalls++
		} else {
			stalls = 0
		}

		if len(posts) >= target {
			return posts[:target], nil
		}
		if stalls >= l.opts.StallLimit {
			slog.WarnContext(ctx, "category stalled before reaching target",
				"category", category, "collected", len(posts), "target", target)
			return posts, nil
		}
		if clicks >= l.opts.MaxClicks {
			slog.WarnContext(ctx, "hit load-more cap before reaching target",
				"category", category, "collected", len(posts), "target", target)
			return posts, nil
		}

		clicked, err := sess.ClickLoadMore(ctx)
		if err != nil {
			slog.WarnContext(ctx, "failed to activate load more", "category", category, "err", err)
			return posts, nil
		}
		if !clicked {
			slog.DebugContext(ctx, "no load more control left", "category", category)
			return posts, nil
		}
		clicks++
		time.Sleep(l.opts.ClickWait)
	}
}
