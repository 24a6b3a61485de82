// File: internal/mocks/fakepage.go
// Description: Scriptable in-memory Page. Behavior is injected per test via
// function fields; unset operations succeed with zero values. Every call is
// recorded so tests can assert ordering.

package mocks

import (
	"context"
	"sync"

	"github.com/xkilldash9x/formscout/api/schemas"
)

// FakePage implements schemas.Page without a browser.
type FakePage struct {
	NavigateFunc      func(ctx context.Context, url string) error
	EvaluateFunc      func(ctx context.Context, expr string, out any) error
	AddInitScriptFunc func(ctx context.Context, script string) error
	ClickFunc         func(ctx context.Context, selector string) error
	ContentFunc       func(ctx context.Context) (string, error)
	ScreenshotFunc    func(ctx context.Context, path string) error
	CookiesFunc       func(ctx context.Context) ([]schemas.Cookie, error)
	URLFunc           func(ctx context.Context) (string, error)

	mu     sync.Mutex
	calls  []string
	closed bool
}

var _ schemas.Page = (*FakePage)(nil)

func (f *FakePage) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

// Calls returns the recorded call log, e.g. "Navigate(http://a)".
func (f *FakePage) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Closed reports whether Close was called.
func (f *FakePage) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakePage) Navigate(ctx context.Context, url string) error {
	f.record("Navigate(" + url + ")")
	if f.NavigateFunc != nil {
		return f.NavigateFunc(ctx, url)
	}
	return nil
}

func (f *FakePage) Evaluate(ctx context.Context, expr string, out any) error {
	f.record("Evaluate")
	if f.EvaluateFunc != nil {
		return f.EvaluateFunc(ctx, expr, out)
	}
	return nil
}

func (f *FakePage) AddInitScript(ctx context.Context, script string) error {
	f.record("AddInitScript")
	if f.AddInitScriptFunc != nil {
		return f.AddInitScriptFunc(ctx, script)
	}
	return nil
}

func (f *FakePage) Click(ctx context.Context, selector string) error {
	f.record("Click(" + selector + ")")
	if f.ClickFunc != nil {
		return f.ClickFunc(ctx, selector)
	}
	return nil
}

func (f *FakePage) Content(ctx context.Context) (string, error) {
	f.record("Content")
	if f.ContentFunc != nil {
		return f.ContentFunc(ctx)
	}
	return "", nil
}

func (f *FakePage) Screenshot(ctx context.Context, path string) error {
	f.record("Screenshot(" + path + ")")
	if f.ScreenshotFunc != nil {
		return f.ScreenshotFunc(ctx, path)
	}
	return nil
}

func (f *FakePage) Cookies(ctx context.Context) ([]schemas.Cookie, error) {
	f.record("Cookies")
	if f.CookiesFunc != nil {
		return f.CookiesFunc(ctx)
	}
	return nil, nil
}

func (f *FakePage) URL(ctx context.Context) (string, error) {
	f.record("URL")
	if f.URLFunc != nil {
		return f.URLFunc(ctx)
	}
	return "", nil
}

func (f *FakePage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
