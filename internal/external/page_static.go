package external

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/jobscout/internal/common"
)

// StaticPage implements platform.Page by fetching a URL over HTTP and
// parsing it with goquery, for platforms whose listings don't require JS
// rendering. Grounded on the teacher's link_extractor.go/content_processor.go
// goquery usage (goquery.NewDocumentFromReader, doc.Find/.Each/.Attr), wired
// here to the narrower single-document browsing contract platform.Page
// defines rather than the teacher's link-graph extraction.
type StaticPage struct {
	client    *http.Client
	userAgent string

	url string
	doc *goquery.Document
}

// NewStaticPage constructs a StaticPage. The document is empty until Goto
// is called.
func NewStaticPage(client *http.Client, userAgent string) *StaticPage {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &StaticPage{client: client, userAgent: userAgent}
}

func (p *StaticPage) Goto(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", url, err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &common.NetworkError{Op: "static.get", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &common.RateLimitError{Platform: url, RetryAfter: 30 * time.Second}
	}
	if resp.StatusCode == http.StatusForbidden {
		return &common.BlockedError{Platform: url, Reason: fmt.Sprintf("http %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return &common.NetworkError{Op: "static.get", Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("parsing document from %s: %w", url, err)
	}

	p.doc = doc
	p.url = url
	return nil
}

// WaitForSelector does not wait for a statically-fetched document: everything
// present arrived with the initial response. It checks once that a document
// is loaded and contains selector, and returns a TimeoutError otherwise.
func (p *StaticPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if p.doc == nil {
		return &common.TimeoutError{Op: "static.wait_for_selector", Timeout: timeout}
	}
	if p.doc.Find(selector).Length() == 0 {
		return &common.TimeoutError{Op: "static.wait_for_selector", Timeout: timeout}
	}
	return nil
}

func (p *StaticPage) QuerySelector(ctx context.Context, selector string) (string, bool, error) {
	if p.doc == nil {
		return "", false, nil
	}
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false, nil
	}
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return "", false, fmt.Errorf("serializing matched element: %w", err)
	}
	return html, true, nil
}

func (p *StaticPage) QuerySelectorAll(ctx context.Context, selector string) ([]string, error) {
	if p.doc == nil {
		return nil, nil
	}
	var out []string
	var firstErr error
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		html, err := goquery.OuterHtml(s)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		out = append(out, html)
	})
	return out, firstErr
}

// Evaluate has no meaning without a JS runtime; StaticPage supports a
// narrow subset used by adapters: "text:<selector>" returns that element's
// trimmed text content, everything else is unsupported.
func (p *StaticPage) Evaluate(ctx context.Context, js string) (interface{}, error) {
	if p.doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if selector, ok := strings.CutPrefix(js, "text:"); ok {
		return strings.TrimSpace(p.doc.Find(selector).First().Text()), nil
	}
	return nil, fmt.Errorf("static page does not support arbitrary JS evaluation: %q", js)
}

func (p *StaticPage) Title(ctx context.Context) (string, error) {
	if p.doc == nil {
		return "", fmt.Errorf("no document loaded")
	}
	return strings.TrimSpace(p.doc.Find("title").First().Text()), nil
}

func (p *StaticPage) URL() string { return p.url }

// Screenshot is unsupported for a document fetched without a browser.
func (p *StaticPage) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, fmt.Errorf("static page cannot produce a screenshot")
}
