package snapshot

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BrowserProvider renders pages in headless Chrome before capture, for
// storefronts that assemble their product markup client-side.
type BrowserProvider struct {
	timeout   time.Duration
	userAgent string
}

// NewBrowserProvider creates a headless-browser capture provider. A zero
// timeout uses the default.
func NewBrowserProvider(timeout time.Duration) *BrowserProvider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &BrowserProvider{timeout: timeout, userAgent: defaultUserAgent}
}

func (p *BrowserProvider) Name() string { return "browser" }

// Capture navigates to url, waits for the document to settle, and returns
// the rendered DOM. The browser does not expose the response status or
// redirect chain, so HTTPStatus is reported as 200 when rendering
// succeeds and FinalURL is the document location after navigation.
func (p *BrowserProvider) Capture(ctx context.Context, url string) (*CapturedPage, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserAgent(p.userAgent),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1920, 1080),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(zap.S().Debugf))
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, p.timeout)
	defer cancelRun()

	var html, location string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: render %s", url)
	}

	if location == "" {
		location = url
	}

	return &CapturedPage{
		RequestedURL: url,
		FinalURL:     location,
		HTTPStatus:   200,
		Content:      []byte(html),
		ContentType:  "text/html",
		Metadata: map[string]any{
			"rendered":       true,
			"content_length": len(html),
		},
	}, nil
}
