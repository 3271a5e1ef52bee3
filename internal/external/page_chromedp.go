package external

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ternarybob/jobscout/internal/common"
)

// ChromedpPage implements platform.Page over a single chromedp tab context,
// handed out by ChromeDPPool.NewPage. Every method runs with its own
// sub-timeout derived from the page's configured default (or the caller's
// explicit timeout for WaitForSelector), mirroring the teacher pool's
// per-call context.WithTimeout usage around chromedp.Run.
type ChromedpPage struct {
	ctx     context.Context
	timeout time.Duration
	url     string
}

func (p *ChromedpPage) Goto(ctx context.Context, url string) error {
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return &common.NetworkError{Op: "chromedp.navigate", Err: err}
	}
	p.url = url
	return nil
}

func (p *ChromedpPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return &common.TimeoutError{Op: "chromedp.wait_for_selector", Timeout: timeout}
	}
	return nil
}

// QuerySelector returns the matched element's outer HTML. A selector that
// matches nothing is reported as (_, false, nil) rather than an error —
// "not on the page" is an expected outcome for adapters probing markup,
// not a failure.
func (p *ChromedpPage) QuerySelector(ctx context.Context, selector string) (string, bool, error) {
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", false, nil
	}
	return html, true, nil
}

func (p *ChromedpPage) QuerySelectorAll(ctx context.Context, selector string) ([]string, error) {
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map(el => el.outerHTML)`, selector)
	var raw []string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &raw)); err != nil {
		return nil, &common.NetworkError{Op: "chromedp.query_selector_all", Err: err}
	}
	return raw, nil
}

func (p *ChromedpPage) Evaluate(ctx context.Context, js string) (interface{}, error) {
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	var result interface{}
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &result)); err != nil {
		return nil, &common.NetworkError{Op: "chromedp.evaluate", Err: err}
	}
	return result, nil
}

func (p *ChromedpPage) Title(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	var title string
	if err := chromedp.Run(runCtx, chromedp.Title(&title)); err != nil {
		return "", &common.NetworkError{Op: "chromedp.title", Err: err}
	}
	return title, nil
}

func (p *ChromedpPage) URL() string { return p.url }

func (p *ChromedpPage) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, &common.NetworkError{Op: "chromedp.screenshot", Err: err}
	}
	return buf, nil
}
