// File: internal/browser/page.go
// Description: One exclusively-owned browser tab behind the schemas.Page
// port. Callers never touch chromedp contexts directly.

package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
	"github.com/xkilldash9x/formscout/internal/config"
)

// Page wraps a single chromedp tab context.
type Page struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.Config
	logger  *zap.Logger
	onClose func()

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

var _ schemas.Page = (*Page)(nil)

// run executes chromedp actions on the tab, honoring the caller's context
// and an optional timeout on top of it.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("page is closed")
	}
	p.mu.Unlock()

	runCtx := p.ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()

	// The tab context drives chromedp; the caller's context only cancels.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Navigate loads the URL, waits for the body, then sleeps the configured
// post-load settle so late scripts can finish wiring the page.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating", zap.String("url", url))
	return p.run(ctx, p.cfg.Network.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(p.cfg.Network.PostLoadWait),
	)
}

// Evaluate runs a JS expression in the top frame and decodes the result
// into out. Promises are awaited.
func (p *Page) Evaluate(ctx context.Context, expr string, out any) error {
	return p.run(ctx, 30*time.Second,
		chromedp.Evaluate(expr, out, func(params *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
			return params.WithAwaitPromise(true)
		}),
	)
}

// AddInitScript installs a script evaluated on every new document before
// page scripts run.
func (p *Page) AddInitScript(ctx context.Context, script string) error {
	return p.run(ctx, 10*time.Second,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}),
	)
}

// Click dispatches a click on the first match of the selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	return p.run(ctx, 10*time.Second,
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

// Content returns the page's rendered text content.
func (p *Page) Content(ctx context.Context) (string, error) {
	var text string
	err := p.run(ctx, 15*time.Second,
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
	)
	return text, err
}

// Screenshot captures the viewport to the given path, creating parent
// directories as needed.
func (p *Page) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, 20*time.Second, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}

// Cookies lists all cookies, including HttpOnly ones, via CDP.
func (p *Page) Cookies(ctx context.Context) ([]schemas.Cookie, error) {
	var raw []*network.Cookie
	err := p.run(ctx, 10*time.Second,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			raw, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	cookies := make([]schemas.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, schemas.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain})
	}
	return cookies, nil
}

// URL reports the page's current location.
func (p *Page) URL(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, 10*time.Second, chromedp.Location(&loc))
	return loc, err
}

// Close releases the tab. Safe to call more than once.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.cancel()
		if p.onClose != nil {
			p.onClose()
		}
	})
	return nil
}
