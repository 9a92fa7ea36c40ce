package listing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"tuoitre-crawler/lib/scrapers/tuoitre/core"
	"tuoitre-crawler/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func categoryPage(linkCount int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < linkCount; i++ {
		fmt.Fprintf(&b,
			`<h3 class="box-title-text"><a href="/bai-viet-%d.htm">Bài %d</a></h3>`,
			10000+i, i)
	}
	b.WriteString(`<a class="view-more" href="#">Xem thêm</a></body></html>`)
	return b.String()
}

// fakeSession serves a growing page, one growth step per load-more
// click, and fails the test if clicked beyond its script.
type fakeSession struct {
	t          *testing.T
	pages      []string
	pageIdx    int
	clicks     int
	maxClicks  int
	htmlErr    error
	clickFails bool
}

func (s *fakeSession) Navigate(ctx context.Context, pageUrl string) error { return nil }

func (s *fakeSession) HTML(ctx context.Context) (string, error) {
	if s.htmlErr != nil {
		return "", s.htmlErr
	}
	return s.pages[s.pageIdx], nil
}

func (s *fakeSession) ClickLoadMore(ctx context.Context) (bool, error) {
	if s.clickFails {
		return false, fmt.Errorf("tab crashed")
	}
	s.clicks++
	if s.clicks > s.maxClicks {
		s.t.Fatalf("load more clicked %d times, expected at most %d", s.clicks, s.maxClicks)
	}
	if s.pageIdx < len(s.pages)-1 {
		s.pageIdx++
		return true, nil
	}
	return false, nil
}

func (s *fakeSession) Close() {}

func testLister() Lister {
	return NewLister(nil, Options{
		StallLimit:  2,
		MaxClicks:   10,
		InitialWait: 1,
		ClickWait:   1,
	})
}

func pagedLister(t *testing.T, serverUrl string) Lister {
	t.Helper()
	coreClient, err := core.NewClient(context.Background(), core.ClientOptions{
		BaseUrl:      serverUrl,
		RetryCount:   1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	})
	require.NoError(t, err)
	return NewLister(coreClient, Options{
		StallLimit:  2,
		MaxClicks:   10,
		InitialWait: 1,
		ClickWait:   1,
	})
}

func TestCollectStopsAtTarget(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:tuoitre-listing")
	defer cleanup()

	// 40 links revealed over 3 clicks: 15, 25, 33, 40
	sess := &fakeSession{
		t: t,
		pages: []string{
			categoryPage(15),
			categoryPage(25),
			categoryPage(33),
			categoryPage(40),
		},
		maxClicks: 3,
	}

	posts, err := testLister().collect(
		context.Background(), sess, "https://tuoitre.vn/thoi-su.htm", 35)
	require.NoError(t, err)
	require.Len(t, posts, 35)
	require.Equal(t, 3, sess.clicks)

	for _, p := range posts {
		require.Equal(t, "thoi-su", p.Category)
		require.Contains(t, p.URL, "https://tuoitre.vn/bai-viet-")
	}
}

func TestCollectShortResultIsSuccess(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:tuoitre-listing")
	defer cleanup()

	// page never grows, load more disappears after the first click
	sess := &fakeSession{
		t:         t,
		pages:     []string{categoryPage(8)},
		maxClicks: 10,
	}

	posts, err := testLister().collect(
		context.Background(), sess, "https://tuoitre.vn/the-gioi.htm", 35)
	require.NoError(t, err)
	require.Len(t, posts, 8)
}

func TestCollectSessionLossKeepsPartial(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:tuoitre-listing")
	defer cleanup()

	sess := &fakeSession{
		t:          t,
		pages:      []string{categoryPage(12), categoryPage(12)},
		clickFails: true,
	}

	posts, err := testLister().collect(
		context.Background(), sess, "https://tuoitre.vn/phap-luat.htm", 35)
	require.NoError(t, err)
	require.Len(t, posts, 12)
}

func TestExtractPostLinksIdempotent(t *testing.T) {
	page := categoryPage(10)

	first, err := ExtractPostLinks(page, "https://tuoitre.vn/thoi-su.htm", "thoi-su", map[string]bool{})
	require.NoError(t, err)
	second, err := ExtractPostLinks(page, "https://tuoitre.vn/thoi-su.htm", "thoi-su", map[string]bool{})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first, 10)

	// a shared seen set dedupes the rescan completely
	seen := map[string]bool{}
	_, err = ExtractPostLinks(page, "https://tuoitre.vn/thoi-su.htm", "thoi-su", seen)
	require.NoError(t, err)
	again, err := ExtractPostLinks(page, "https://tuoitre.vn/thoi-su.htm", "thoi-su", seen)
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestExtractPostLinksSkipsListingPages(t *testing.T) {
	page := `<html><body>
		<h3 class="box-title-text"><a href="/bai-viet-123.htm">bài</a></h3>
		<h3 class="box-title-text"><a href="/thoi-su-p2.htm">trang 2</a></h3>
		<h3 class="box-title-text"><a href="/tin/trang-3.htm">trang 3</a></h3>
	</body></html>`

	posts, err := ExtractPostLinks(page, "https://tuoitre.vn/thoi-su.htm", "thoi-su", map[string]bool{})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, "https://tuoitre.vn/bai-viet-123.htm", posts[0].URL)
}

// pagedServer serves numbered category pages where page N reveals
// `reveals[N-1]` cumulative links. Paths outside the script 404.
func pagedServer(t *testing.T, reveals []int) (*httptest.Server, *[]string) {
	t.Helper()
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		switch {
		case r.URL.Path == "/thoi-su.htm":
			fmt.Fprint(w, categoryPage(reveals[0]))
		case strings.HasPrefix(r.URL.Path, "/thoi-su-p"):
			var page int
			_, err := fmt.Sscanf(r.URL.Path, "/thoi-su-p%d.htm", &page)
			require.NoError(t, err)
			if page < 1 || page > len(reveals) {
				http.NotFound(w, r)
				return
			}
			fmt.Fprint(w, categoryPage(reveals[page-1]))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &requested
}

func TestCollectPagedStopsWhenPagesRepeat(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:tuoitre-listing")
	defer cleanup()

	// page 3 repeats page 2, so the walk ends short of the target
	srv, _ := pagedServer(t, []int{15, 25, 25})

	lister := pagedLister(t, srv.URL)
	posts, err := lister.collectPaged(
		context.Background(), srv.URL+"/thoi-su.htm", 35)
	require.NoError(t, err)
	require.Len(t, posts, 25)

	for _, p := range posts {
		require.Equal(t, "thoi-su", p.Category)
	}
}

func TestCollectPagedStopsAtTarget(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:tuoitre-listing")
	defer cleanup()

	srv, requested := pagedServer(t, []int{15, 40, 60})

	lister := pagedLister(t, srv.URL)
	posts, err := lister.collectPaged(
		context.Background(), srv.URL+"/thoi-su.htm", 35)
	require.NoError(t, err)
	require.Len(t, posts, 35)
	require.Equal(t, []string{"/thoi-su.htm", "/thoi-su-p2.htm"}, *requested)
}

func TestFallbackWithoutHttpClient(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:tuoitre-listing")
	defer cleanup()

	cause := fmt.Errorf("chrome executable not found")
	_, err := testLister().fallback(
		context.Background(), "https://tuoitre.vn/thoi-su.htm", 35, cause)

	var sessionErr *SessionError
	require.ErrorAs(t, err, &sessionErr)
	require.ErrorIs(t, err, cause)
}

func TestFallbackUsesStaticPagination(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:tuoitre-listing")
	defer cleanup()

	srv, _ := pagedServer(t, []int{15, 25, 25})

	lister := pagedLister(t, srv.URL)
	posts, err := lister.fallback(
		context.Background(), srv.URL+"/thoi-su.htm", 35,
		fmt.Errorf("chrome executable not found"))
	require.NoError(t, err)
	require.Len(t, posts, 25)
}

func TestFallbackCategoryUnreachable(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:tuoitre-listing")
	defer cleanup()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	lister := pagedLister(t, srv.URL)
	_, err := lister.fallback(
		context.Background(), srv.URL+"/thoi-su.htm", 35,
		fmt.Errorf("chrome executable not found"))

	var sessionErr *SessionError
	require.ErrorAs(t, err, &sessionErr)
}
