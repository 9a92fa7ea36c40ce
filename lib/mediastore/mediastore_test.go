package mediastore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestDownloadImagesAlignment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo-1.jpg":
			w.Write([]byte("first image"))
		case "/broken.jpg":
			w.WriteHeader(http.StatusInternalServerError)
		case "/photo-3.png":
			w.Write([]byte("third image"))
		default:
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	store := New(t.TempDir(), resty.New())
	paths := store.DownloadImages(context.Background(), "41231", []string{
		srv.URL + "/photo-1.jpg",
		srv.URL + "/broken.jpg",
		srv.URL + "/photo-3.png",
	})

	require.Len(t, paths, 3)
	require.Equal(t, "", paths[1])

	require.Equal(t, filepath.Join(store.ImagesDir(), "41231", "photo-1.jpg"), paths[0])
	require.Equal(t, filepath.Join(store.ImagesDir(), "41231", "photo-3.png"), paths[2])

	contents, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	require.Equal(t, "first image", string(contents))

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Join(store.ImagesDir(), "41231"))
	require.NoError(t, err)
	for _, entry := range entries {
		require.False(t, strings.HasPrefix(entry.Name(), ".download-"))
	}
}

func TestDownloadImageWithoutExtensionInUrl(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		w.Write([]byte("webp bytes"))
	}))
	defer srv.Close()

	store := New(t.TempDir(), resty.New())
	paths := store.DownloadImages(context.Background(), "41231", []string{srv.URL + "/photo"})

	require.Len(t, paths, 1)
	require.Equal(t, "image_1.webp", filepath.Base(paths[0]))
}

func TestDownloadAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("audio bytes"))
	}))
	defer srv.Close()

	store := New(t.TempDir(), resty.New())

	// unknown content type defaults the audio extension to mp3
	localPath, err := store.DownloadAudio(context.Background(), "41231", srv.URL+"/episode")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(store.AudioDir(), "41231.mp3"), localPath)

	contents, err := os.ReadFile(localPath)
	require.NoError(t, err)
	require.Equal(t, "audio bytes", string(contents))
}

func TestDownloadAudioEmptyUrl(t *testing.T) {
	store := New(t.TempDir(), resty.New())
	localPath, err := store.DownloadAudio(context.Background(), "41231", "")
	require.NoError(t, err)
	require.Equal(t, "", localPath)
}

func TestDownloadAudioFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := New(t.TempDir(), resty.New())
	_, err := store.DownloadAudio(context.Background(), "41231", srv.URL+"/gone.mp3")

	var downloadErr *DownloadError
	require.ErrorAs(t, err, &downloadErr)
	require.Equal(t, srv.URL+"/gone.mp3", downloadErr.URL)
}

func TestFileExt(t *testing.T) {
	require.Equal(t, "jpg", fileExt("https://cdn.tuoitre.vn/a/b.jpg?w=100", ""))
	require.Equal(t, "mp3", fileExt("https://tuoitre.vn/ep.mp3", "application/octet-stream"))
	require.Equal(t, "png", fileExt("https://tuoitre.vn/photo", "image/png; charset=binary"))
	require.Equal(t, "bin", fileExt("https://tuoitre.vn/photo.xyz", "application/octet-stream"))
	require.Equal(t, "bin", fileExt("https://tuoitre.vn/photo", ""))
}
