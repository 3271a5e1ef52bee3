package external

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// ChromeDPPoolConfig configures the browser pool.
type ChromeDPPoolConfig struct {
	MaxInstances   int
	UserAgent      string
	Headless       bool
	DisableGPU     bool
	NoSandbox      bool
	RequestTimeout time.Duration
}

// ChromeDPPool manages a round-robin pool of chromedp browser contexts,
// adapted from the teacher's internal/services/crawler/chromedp_pool.go:
// same allocator-options/startup-probe/round-robin shape, generalized to
// hand out platform.Page values (one tab context per NewPage call) instead
// of raw browser contexts, so adapters never touch chromedp directly.
type ChromeDPPool struct {
	mu               sync.Mutex
	logger           arbor.ILogger
	cfg              ChromeDPPoolConfig
	browsers         []context.Context
	browserCancels   []context.CancelFunc
	allocatorCancels []context.CancelFunc
	currentIndex     int
	initialized      bool
}

// NewChromeDPPool constructs an uninitialized pool; call Init before NewPage.
func NewChromeDPPool(cfg ChromeDPPoolConfig, logger arbor.ILogger) *ChromeDPPool {
	if cfg.MaxInstances <= 0 {
		cfg.MaxInstances = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "jobscout-crawler/1.0"
	}
	return &ChromeDPPool{cfg: cfg, logger: logger}
}

// Init creates cfg.MaxInstances browser instances, each startup-probed with
// a blank navigation before being accepted into the pool. Fails only if
// every instance fails to start.
func (p *ChromeDPPool) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return fmt.Errorf("chromedp pool already initialized")
	}

	p.browsers = make([]context.Context, 0, p.cfg.MaxInstances)
	p.browserCancels = make([]context.CancelFunc, 0, p.cfg.MaxInstances)
	p.allocatorCancels = make([]context.CancelFunc, 0, p.cfg.MaxInstances)

	successCount := 0
	var lastErr error
	for i := 0; i < p.cfg.MaxInstances; i++ {
		if err := p.createInstance(i); err != nil {
			lastErr = err
			p.logger.Warn().Err(err).Int("browser_index", i).Msg("failed to create browser instance")
			continue
		}
		successCount++
	}
	if successCount == 0 {
		p.cleanupLocked()
		return fmt.Errorf("failed to create any browser instances: %w", lastErr)
	}

	p.initialized = true
	p.logger.Info().Int("browsers", successCount).Int("requested", p.cfg.MaxInstances).Msg("chromedp pool initialized")
	return nil
}

func (p *ChromeDPPool) createInstance(index int) error {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.cfg.Headless),
		chromedp.Flag("disable-gpu", p.cfg.DisableGPU),
		chromedp.Flag("no-sandbox", p.cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(p.cfg.UserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	timeout := p.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	testCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("startup probe failed: %w", err)
	}

	p.browsers = append(p.browsers, browserCtx)
	p.browserCancels = append(p.browserCancels, browserCancel)
	p.allocatorCancels = append(p.allocatorCancels, allocatorCancel)
	return nil
}

// NewPage hands out a fresh tab context within a round-robin-selected
// browser instance, wrapped as a platform.Page. The returned release func
// closes that tab (the underlying browser instance stays pooled).
func (p *ChromeDPPool) NewPage(ctx context.Context) (*ChromedpPage, func(), error) {
	p.mu.Lock()
	if !p.initialized || len(p.browsers) == 0 {
		p.mu.Unlock()
		return nil, nil, fmt.Errorf("chromedp pool not initialized")
	}
	index := p.currentIndex % len(p.browsers)
	p.currentIndex = (p.currentIndex + 1) % len(p.browsers)
	browserCtx := p.browsers[index]
	p.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	timeout := p.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromedpPage{ctx: tabCtx, timeout: timeout}, tabCancel, nil
}

// Shutdown cancels every browser and allocator context in the pool.
func (p *ChromeDPPool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleanupLocked()
	p.initialized = false
}

func (p *ChromeDPPool) cleanupLocked() {
	for _, cancel := range p.browserCancels {
		if cancel != nil {
			cancel()
		}
	}
	for _, cancel := range p.allocatorCancels {
		if cancel != nil {
			cancel()
		}
	}
	p.browsers = nil
	p.browserCancels = nil
	p.allocatorCancels = nil
	p.currentIndex = 0
}
