package fetch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserOptions configures headless rendering.
type BrowserOptions struct {
	Timeout time.Duration
	// Settle is how long to wait after the body is ready for scripts to
	// render prices.
	Settle  time.Duration
	Verbose bool
}

// DefaultBrowserOptions returns the options used by the annotate command.
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{Timeout: 45 * time.Second, Settle: 2 * time.Second}
}

// WithBrowser renders a page in a headless browser and returns the rendered HTML.
// Requires Chrome/Chromium to be installed on the system.
func WithBrowser(ctx context.Context, url string, opts BrowserOptions) (string, error) {
	if opts.Verbose {
		log.Printf("[BROWSER] Rendering %s", url)
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if opts.Timeout > 0 {
		browserCtx, cancel = context.WithTimeout(browserCtx, opts.Timeout)
		defer cancel()
	}

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(opts.Settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", &Error{URL: url, Message: "browser rendering failed", Cause: err}
	}

	if opts.Verbose {
		log.Printf("[BROWSER] Rendered HTML: %d bytes", len(html))
	}
	return html, nil
}

// Page fetches url over HTTP and falls back to the browser when the result
// looks script-rendered or when forceBrowser is set.
func Page(ctx context.Context, url string, forceBrowser bool, httpOpts *Options, browserOpts BrowserOptions) (string, error) {
	if !forceBrowser {
		result, err := URL(ctx, url, httpOpts)
		if err != nil {
			return "", err
		}
		html := string(result.Body)
		if !ShouldUseBrowser(html) {
			return html, nil
		}
		if browserOpts.Verbose {
			log.Printf("[BROWSER] %s looks script-rendered, retrying in browser", url)
		}
	}
	html, err := WithBrowser(ctx, url, browserOpts)
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", url, err)
	}
	return html, nil
}
