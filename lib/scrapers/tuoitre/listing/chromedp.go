package listing

import (
	"context"

	"github.com/chromedp/chromedp"
)

// finds a visible "load more" control, scrolls it into view and clicks
// it, reporting whether anything was clicked
const clickLoadMoreScript = `(() => {
	window.scrollTo(0, document.body.scrollHeight);
	const selectors = ['a.view-more', '.box-viewmore a'];
	for (const sel of selectors) {
		const el = document.querySelector(sel);
		if (el && el.offsetParent !== null) {
			el.scrollIntoView({block: 'center'});
			el.click();
			return true;
		}
	}
	for (const el of document.querySelectorAll('a')) {
		if (el.textContent.includes('Xem thêm') && el.offsetParent !== null) {
			el.scrollIntoView({block: 'center'});
			el.click();
			return true;
		}
	}
	return false;
})()`

type browserSession struct {
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	opts        Options
}

// newBrowserSession launches a headless chrome tab scoped to one
// category listing. Close tears down the tab and the browser process.
func newBrowserSession(ctx context.Context, opts Options) (*browserSession, error) {
	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(opts.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// run an empty task list to force the browser to start, so driver
	// problems surface here instead of on first navigation
	err := chromedp.Run(tabCtx)
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, err
	}

	return &browserSession{
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		opts:        opts,
	}, nil
}

func (s *browserSession) Navigate(ctx context.Context, pageUrl string) error {
	return chromedp.Run(s.tabCtx,
		chromedp.Navigate(pageUrl),
		chromedp.Sleep(s.opts.InitialWait),
	)
}

func (s *browserSession) HTML(ctx context.Context) (string, error) {
	var out string
	err := chromedp.Run(s.tabCtx,
		chromedp.OuterHTML("html", &out, chromedp.ByQuery),
	)
	return out, err
}

func (s *browserSession) ClickLoadMore(ctx context.Context) (bool, error) {
	var clicked bool
	err := chromedp.Run(s.tabCtx,
		chromedp.Evaluate(clickLoadMoreScript, &clicked),
	)
	return clicked, err
}

func (s *browserSession) Close() {
	s.cancelTab()
	s.cancelAlloc()
}
