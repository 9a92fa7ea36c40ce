package article

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"tuoitre-crawler/lib/scrapers/tuoitre/core"
	"tuoitre-crawler/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

const fullPostPage = `<html>
<head>
	<meta property="og:title" content="fallback title">
</head>
<body>
	<h1 class="detail-title">Giá vàng tăng mạnh</h1>
	<h2 class="detail-sapo">Sapo mở đầu bài viết.</h2>
	<div class="detail-content">
		<p>Đoạn nội dung thứ nhất của bài viết, đủ dài để được giữ lại.</p>
		<p class="VCSortableInPreviewMode caption">chú thích ảnh bị bỏ qua</p>
		<p>Đoạn nội dung thứ hai của bài viết, cũng đủ dài để giữ lại.</p>
		<img data-src="https://cdn.tuoitre.vn/photo-1.jpg">
		<img src="/photo-2.png">
		<img src="https://cdn.tuoitre.vn/logo-site.png">
	</div>
	<div class="detail-author">Nguyễn Văn A</div>
	<div class="detail-time">01/12/2023 10:30</div>
	<audio><source src="/podcast/episode.mp3"></audio>
	<div class="emotion-bar">
		<div class="emotion-item" data-reaction="like"><span>1,234</span></div>
		<div class="emotion-item" data-reaction="love"><span>56</span></div>
	</div>
</body>
</html>`

func parse(t *testing.T, page string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestExtractFullPost(t *testing.T) {
	doc := parse(t, fullPostPage)
	a := Extract(doc, "https://tuoitre.vn/gia-vang-tang-manh-41231.htm", "kinh-doanh")

	require.Equal(t, "41231", a.PostID)
	require.Equal(t, "Giá vàng tăng mạnh", a.Title)
	require.Equal(t, "Nguyễn Văn A", a.Author)
	require.Equal(t, "01/12/2023 10:30", a.Date)
	require.Equal(t, "kinh-doanh", a.Category)

	require.True(t, strings.HasPrefix(a.Content, "Sapo mở đầu bài viết."))
	require.Contains(t, a.Content, "Đoạn nội dung thứ nhất")
	require.Contains(t, a.Content, "Đoạn nội dung thứ hai")
	require.NotContains(t, a.Content, "chú thích ảnh")

	// logo filtered out, relative url resolved
	require.Equal(t, []string{
		"https://cdn.tuoitre.vn/photo-1.jpg",
		"https://tuoitre.vn/photo-2.png",
	}, a.Images)

	require.Equal(t, "https://tuoitre.vn/podcast/episode.mp3", a.Audio)
	require.Equal(t, map[string]int{"like": 1234, "love": 56}, a.Reactions)
}

func TestExtractEmptyDefaults(t *testing.T) {
	doc := parse(t, `<html><body><p>nothing recognizable</p></body></html>`)
	a := Extract(doc, "https://tuoitre.vn/bai-1.htm", "thoi-su")

	require.Equal(t, "", a.Title)
	require.Equal(t, "", a.Content)
	require.Equal(t, defaultAuthor, a.Author)
	require.Equal(t, "", a.Date)
	require.Empty(t, a.Images)
	require.Equal(t, "", a.Audio)
	require.Empty(t, a.Reactions)
}

func TestExtractMetaFallbacks(t *testing.T) {
	page := `<html><head>
		<meta property="og:title" content="Tiêu đề từ og">
		<meta name="author" content="Phóng viên B">
		<meta property="article:published_time" content="2023-12-01T10:30:00+07:00">
	</head><body></body></html>`

	a := Extract(parse(t, page), "https://tuoitre.vn/bai-2.htm", "thoi-su")
	require.Equal(t, "Tiêu đề từ og", a.Title)
	require.Equal(t, "Phóng viên B", a.Author)
	require.Equal(t, "2023-12-01T10:30:00+07:00", a.Date)
}

func TestFetchUsesPageCache(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:tuoitre-article")
	defer cleanup()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(fullPostPage))
	}))
	defer srv.Close()

	coreClient, err := core.NewClient(context.Background(), core.ClientOptions{
		BaseUrl:      srv.URL,
		RetryCount:   1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	})
	require.NoError(t, err)

	cacheDb, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	defer cacheDb.Close()
	coreClient.SetPageCache(cacheDb, time.Hour)

	client := NewClient(coreClient)
	postUrl := srv.URL + "/gia-vang-tang-manh-41231.htm"

	first, err := client.Fetch(context.Background(), postUrl, "kinh-doanh")
	require.NoError(t, err)
	second, err := client.Fetch(context.Background(), postUrl, "kinh-doanh")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, int64(1), hits.Load())
}
