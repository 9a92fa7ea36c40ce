package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	"tuoitre-crawler/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, baseUrl string, retries int) *Client {
	client, err := NewClient(context.Background(), ClientOptions{
		BaseUrl:      baseUrl,
		RetryCount:   retries,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestRetryBound(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:tuoitre-core")
	defer cleanup()

	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	retries := 2
	client := testClient(t, srv.URL, retries)

	_, _, err := client.GetDocument(context.Background(), srv.URL+"/always-fails")
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, srv.URL+"/always-fails", fetchErr.URL)

	// one initial attempt plus exactly `retries` retries
	require.Equal(t, int64(retries+1), attempts.Load())
}

func TestRecoveryWithinRetryBudget(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:tuoitre-core")
	defer cleanup()

	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`<html><body><h1>ok</h1></body></html>`))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, 3)

	doc, _, err := client.GetDocument(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "ok", doc.Find("h1").Text())
	require.Equal(t, int64(3), attempts.Load())
}

func TestPostID(t *testing.T) {
	testCases := []struct {
		url      string
		expected string
	}{
		{
			url:      "https://tuoitre.vn/vi-sao-gia-vang-tang-20231201123456789.htm",
			expected: "20231201123456789",
		},
		{
			url:      "https://tuoitre.vn/mot-bai-viet-41231.htm",
			expected: "41231",
		},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, PostID(test.url))
	}

	// no numeric id falls back to a stable hash
	a := PostID("https://tuoitre.vn/weird-url.html")
	b := PostID("https://tuoitre.vn/weird-url.html")
	require.Equal(t, a, b)
	require.Len(t, a, 12)
}

func TestIsPostURL(t *testing.T) {
	require.True(t, IsPostURL("/mot-bai-viet-41231.htm"))
	require.False(t, IsPostURL("/thoi-su-p2.htm"))
	require.False(t, IsPostURL("/tin-moi/trang-3.htm"))
	require.False(t, IsPostURL("/thoi-su.htm"))
	require.False(t, IsPostURL("/mot-bai-viet-41231.html"))
}

func TestCategoryName(t *testing.T) {
	require.Equal(t, "thoi-su", CategoryName("https://tuoitre.vn/thoi-su.htm"))
	require.Equal(t, "unknown", CategoryName("https://tuoitre.vn/"))
}

func TestAbsoluteURL(t *testing.T) {
	require.Equal(
		t,
		"https://tuoitre.vn/mot-bai-viet-41231.htm",
		AbsoluteURL("https://tuoitre.vn/thoi-su.htm", "/mot-bai-viet-41231.htm"),
	)
	require.Equal(
		t,
		"https://cdn.tuoitre.vn/a.jpg",
		AbsoluteURL("https://tuoitre.vn/thoi-su.htm", "https://cdn.tuoitre.vn/a.jpg"),
	)
}
