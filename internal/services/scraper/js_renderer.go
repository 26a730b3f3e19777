package scraper

import (
	"context"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
)

// jsRenderer renders JavaScript-heavy pages in a headless browser before
// extraction. Expensive; only used when enabled and requested per job.
type jsRenderer struct {
	config *common.ScraperConfig
	logger arbor.ILogger
	opts   []chromedp.ExecAllocatorOption
}

func newJSRenderer(config *common.ScraperConfig, logger arbor.ILogger) *jsRenderer {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(config.UserAgent),
	)
	return &jsRenderer{
		config: config,
		logger: logger,
		opts:   opts,
	}
}

// render navigates to the page, waits for scripts to settle and returns
// the rendered DOM
func (r *jsRenderer) render(ctx context.Context, pageURL string) (string, error) {
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, r.opts...)
	defer allocatorCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	defer browserCancel()

	timeoutCtx, timeoutCancel := context.WithTimeout(browserCtx, r.config.RequestTimeout)
	defer timeoutCancel()

	var html string
	err := chromedp.Run(timeoutCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(r.config.JavaScriptWaitTime),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", err
	}

	r.logger.Debug().Str("url", pageURL).Int("bytes", len(html)).Msg("Page rendered with JavaScript")
	return html, nil
}
