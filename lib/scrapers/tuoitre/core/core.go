package core

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"time"
	"tuoitre-crawler/lib/restyutil"
	"tuoitre-crawler/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	browser "github.com/EDDYCJY/fake-useragent"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/tuoitre/core")

// fallback pool used when live user agent rotation is disabled or fails
var staticUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	opts  ClientOptions
	cache pageCache
}

type ClientOptions struct {
	BaseUrl string
	// total attempts = RetryCount + 1
	RetryCount   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// politeness delay bounds applied before every outbound request,
	// zero max disables the delay entirely
	RequestDelayMin time.Duration
	RequestDelayMax time.Duration
	RequestTimeout  time.Duration
	// rotate user agents through a live pool instead of the static list
	LiveUserAgents bool
}

func (o *ClientOptions) fillDefaults() {
	if o.RetryCount == 0 {
		o.RetryCount = 3
	}
	if o.RetryWaitMin == 0 {
		o.RetryWaitMin = 1500 * time.Millisecond
	}
	if o.RetryWaitMax == 0 {
		o.RetryWaitMax = 3 * time.Second
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = 30 * time.Second
	}
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	opts.fillDefaults()

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	client.SetHeader("Accept-Language", "vi-VN,vi;q=0.9,en-US;q=0.8,en;q=0.7")
	client.SetTimeout(opts.RequestTimeout)

	client.SetRetryCount(opts.RetryCount)
	client.SetRetryWaitTime(opts.RetryWaitMin)
	client.SetRetryMaxWaitTime(opts.RetryWaitMax)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return res.StatusCode() >= 500
	})

	c := &Client{
		BaseUrl: baseUrl,
		Http:    client,
		opts:    opts,
	}
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		req.SetHeader("User-Agent", c.userAgent())
		c.politenessDelay()
		return nil
	})

	telemetry.InstrumentResty(client, "scrapers/tuoitre/http")

	return c, nil
}

func (c *Client) SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyutil.InstrumentClient(c.Http, output)
}

func (c *Client) userAgent() string {
	if c.opts.LiveUserAgents {
		if ua := browser.Random(); ua != "" {
			return ua
		}
	}
	i, err := random.IntRange(0, len(staticUserAgents))
	if err != nil {
		return staticUserAgents[0]
	}
	return staticUserAgents[i]
}

func (c *Client) politenessDelay() {
	if c.opts.RequestDelayMax <= 0 {
		return
	}
	min := int(c.opts.RequestDelayMin / time.Millisecond)
	max := int(c.opts.RequestDelayMax / time.Millisecond)
	ms, err := random.IntRange(min, max+1)
	if err != nil {
		ms = min
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// GetDocument fetches a page and parses it, retrying transient failures
// per the client's retry policy. The returned error is a *FetchError
// once retries are exhausted.
func (c *Client) GetDocument(ctx context.Context, pageUrl string) (*goquery.Document, []byte, error) {
	ctx, span := tracer.Start(ctx, "client:GetDocument")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(pageUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, nil, &FetchError{URL: pageUrl, Err: err}
	}
	if res.StatusCode() != 200 {
		err := fmt.Errorf("unexpected status %d", res.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, &FetchError{URL: pageUrl, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, nil, &FetchError{URL: pageUrl, Err: err}
	}
	return doc, res.Body(), nil
}

type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

var postIdRegex = regexp.MustCompile(`-(\d+)\.htm`)
var listingPageRegex = regexp.MustCompile(`-p\d+\.htm$`)
var listingTrangRegex = regexp.MustCompile(`trang-\d+\.htm$`)
var postUrlRegex = regexp.MustCompile(`-\d+\.htm$`)
var categoryNameRegex = regexp.MustCompile(`/([^/]+)\.htm$`)

// PostID extracts the numeric post id embedded in a tuoitre article
// URL, falling back to a short content hash for unusual URLs.
func PostID(postUrl string) string {
	groups := postIdRegex.FindStringSubmatch(postUrl)
	if len(groups) >= 2 {
		return groups[1]
	}
	sum := md5.Sum([]byte(postUrl))
	return hex.EncodeToString(sum[:])[:12]
}

// IsPostURL reports whether a link points at an article rather than a
// category or paginated listing page.
func IsPostURL(href string) bool {
	if listingPageRegex.MatchString(href) || listingTrangRegex.MatchString(href) {
		return false
	}
	return postUrlRegex.MatchString(href)
}

// CategoryName extracts the category slug from a category URL,
// e.g. "https://tuoitre.vn/thoi-su.htm" -> "thoi-su".
func CategoryName(categoryUrl string) string {
	groups := categoryNameRegex.FindStringSubmatch(categoryUrl)
	if len(groups) >= 2 {
		return groups[1]
	}
	return "unknown"
}

// AbsoluteURL resolves href against base, leaving already-absolute
// links untouched.
func AbsoluteURL(base, href string) string {
	baseUrl, err := url.Parse(base)
	if err != nil {
		return href
	}
	hrefUrl, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseUrl.ResolveReference(hrefUrl).String()
}
