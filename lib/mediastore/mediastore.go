// Package mediastore downloads post media into the run's output tree.
// Images land under images/<postId>/, audio under audio/. Files are
// written to a temp name and renamed into place so an interrupted
// download never leaves a truncated file behind.
package mediastore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"tuoitre-crawler/lib/textutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("mediastore")

type Store struct {
	root string
	http *resty.Client
}

type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("could not download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// New creates a store rooted at dir. httpClient carries the caller's
// retry and politeness configuration.
func New(dir string, httpClient *resty.Client) *Store {
	return &Store{root: dir, http: httpClient}
}

func (s *Store) ImagesDir() string { return filepath.Join(s.root, "images") }
func (s *Store) AudioDir() string  { return filepath.Join(s.root, "audio") }

// DownloadImages fetches every image of a post. The returned slice is
// index-aligned with urls: a failed download leaves an empty string at
// its position instead of shifting later entries.
func (s *Store) DownloadImages(ctx context.Context, postId string, urls []string) []string {
	ctx, span := tracer.Start(ctx, "store:DownloadImages")
	defer span.End()
	span.SetAttributes(
		attribute.String("post_id", postId),
		attribute.Int("images", len(urls)),
	)

	paths := make([]string, len(urls))
	failed := 0
	for i, imageUrl := range urls {
		if imageUrl == "" {
			continue
		}
		localPath, err := s.downloadImage(ctx, postId, imageUrl, i)
		if err != nil {
			slog.Warn("image download failed", "postId", postId, "url", imageUrl, "err", err)
			failed++
			continue
		}
		paths[i] = localPath
	}

	if failed > 0 {
		span.SetAttributes(attribute.Int("failed", failed))
	}
	return paths
}

func (s *Store) downloadImage(ctx context.Context, postId, imageUrl string, index int) (string, error) {
	dir := filepath.Join(s.ImagesDir(), textutil.SanitizeFilename(postId))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &DownloadError{URL: imageUrl, Err: err}
	}

	body, contentType, err := s.fetch(ctx, imageUrl)
	if err != nil {
		return "", err
	}

	filename := path.Base(urlPath(imageUrl))
	if filename == "" || !strings.Contains(filename, ".") {
		filename = fmt.Sprintf("image_%d.%s", index+1, fileExt(imageUrl, contentType))
	}
	dest := filepath.Join(dir, textutil.SanitizeFilename(filename))

	if err := writeAtomic(dest, body); err != nil {
		return "", &DownloadError{URL: imageUrl, Err: err}
	}
	return dest, nil
}

// DownloadAudio fetches a post's audio track, returning the empty
// string when the post has none.
func (s *Store) DownloadAudio(ctx context.Context, postId, audioUrl string) (string, error) {
	if audioUrl == "" {
		return "", nil
	}

	ctx, span := tracer.Start(ctx, "store:DownloadAudio")
	defer span.End()
	span.SetAttributes(attribute.String("post_id", postId))

	if err := os.MkdirAll(s.AudioDir(), 0755); err != nil {
		return "", &DownloadError{URL: audioUrl, Err: err}
	}

	body, contentType, err := s.fetch(ctx, audioUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audio download failed")
		return "", err
	}

	ext := fileExt(audioUrl, contentType)
	if ext == "bin" {
		ext = "mp3"
	}
	dest := filepath.Join(s.AudioDir(), textutil.SanitizeFilename(postId)+"."+ext)

	if err := writeAtomic(dest, body); err != nil {
		return "", &DownloadError{URL: audioUrl, Err: err}
	}
	return dest, nil
}

func (s *Store) fetch(ctx context.Context, fileUrl string) ([]byte, string, error) {
	res, err := s.http.R().SetContext(ctx).Get(fileUrl)
	if err != nil {
		return nil, "", &DownloadError{URL: fileUrl, Err: err}
	}
	if res.StatusCode() != 200 {
		return nil, "", &DownloadError{
			URL: fileUrl,
			Err: fmt.Errorf("server returned status %d", res.StatusCode()),
		}
	}
	return res.Body(), res.Header().Get("Content-Type"), nil
}

func writeAtomic(dest string, contents []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(contents); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

var knownExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true,
	"mp3": true, "mp4": true, "wav": true, "ogg": true,
}

var contentTypeExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
	"audio/mpeg": "mp3",
	"audio/mp3":  "mp3",
	"audio/wav":  "wav",
	"audio/ogg":  "ogg",
}

func urlPath(fileUrl string) string {
	parsed, err := url.Parse(fileUrl)
	if err != nil {
		return ""
	}
	return parsed.Path
}

func fileExt(fileUrl, contentType string) string {
	if p := urlPath(fileUrl); strings.Contains(p, ".") {
		ext := strings.ToLower(p[strings.LastIndex(p, ".")+1:])
		if knownExtensions[ext] {
			return ext
		}
	}

	mediaType, _, _ := strings.Cut(contentType, ";")
	if ext, ok := contentTypeExtensions[strings.TrimSpace(mediaType)]; ok {
		return ext
	}
	return "bin"
}
