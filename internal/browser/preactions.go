// File: internal/browser/preactions.go
// Description: Small, safe page preparations run before scanning: accept
// cookie banners, close modals, and detect captcha or login walls.

package browser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
)

// Blocker classifies a page obstacle that keeps automated testing from
// proceeding.
type Blocker string

const (
	BlockerNone    Blocker = ""
	BlockerCaptcha Blocker = "captcha"
	BlockerLogin   Blocker = "login"
)

// cookieButtonTexts are matched case-insensitively against button labels.
var cookieButtonTexts = []string{"accept", "i agree", "agree"}

// cookieSelectors are tried directly, beyond text matching.
var cookieSelectors = []string{
	"button.cookie-accept",
	"[aria-label*='accept']",
}

var popupSelectors = []string{
	"div[role='dialog'] button[aria-label='close']",
	".modal .close",
	".popup .close",
}

var captchaKeywords = []string{"captcha", "recaptcha", "h-captcha"}

var loginHints = []string{"login", "sign in", "register", "password", "email"}

// clickCookieButtonsJS clicks at most one visible button whose label matches
// a known consent text. Returns true if something was clicked.
const clickCookieButtonsJS = `(() => {
	const texts = %s;
	const visible = (el) => {
		const r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0;
	};
	for (const btn of document.querySelectorAll("button, [role='button']")) {
		const label = (btn.innerText || btn.getAttribute("aria-label") || "").trim().toLowerCase();
		if (!label || !visible(btn)) continue;
		if (texts.some((t) => label === t || label.startsWith(t + " "))) {
			btn.click();
			return true;
		}
	}
	return false;
})()`

// AutoPreActions reveals the page UI by accepting cookie banners and closing
// common modals. Every step is best effort; failures are only logged.
func AutoPreActions(ctx context.Context, page schemas.Page, logger *zap.Logger) {
	textsJSON := `["` + strings.Join(cookieButtonTexts, `","`) + `"]`
	var clicked bool
	if err := page.Evaluate(ctx, fmt.Sprintf(clickCookieButtonsJS, textsJSON), &clicked); err != nil {
		logger.Debug("Cookie button sweep failed", zap.Error(err))
	}
	for _, sel := range cookieSelectors {
		if err := page.Click(ctx, sel); err == nil {
			clicked = true
			break
		}
	}
	if clicked {
		sleepCtx(ctx, 400*time.Millisecond)
	}

	for _, sel := range popupSelectors {
		if err := page.Click(ctx, sel); err == nil {
			sleepCtx(ctx, 200*time.Millisecond)
		}
	}
}

// DetectBlocker inspects the page for captcha or login walls. Captcha wins
// over login when both are present. Detection failures report no blocker.
func DetectBlocker(ctx context.Context, page schemas.Page) Blocker {
	content, err := page.Content(ctx)
	if err != nil {
		return BlockerNone
	}
	lowered := strings.ToLower(content)

	for _, kw := range captchaKeywords {
		if strings.Contains(lowered, kw) {
			return BlockerCaptcha
		}
	}

	var hasPassword bool
	if err := page.Evaluate(ctx, `!!document.querySelector("input[type='password']")`, &hasPassword); err == nil && hasPassword {
		return BlockerLogin
	}
	for _, hint := range loginHints {
		if strings.Contains(lowered, hint) {
			return BlockerLogin
		}
	}
	return BlockerNone
}

// Prompter suspends the run and hands control to an operator, returning once
// the operator signals completion.
type Prompter interface {
	Prompt(ctx context.Context, reason string, url string) error
}

// StdinPrompter blocks until the operator presses ENTER on the terminal.
type StdinPrompter struct {
	In  io.Reader
	Out io.Writer
}

func NewStdinPrompter() *StdinPrompter {
	return &StdinPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p *StdinPrompter) Prompt(ctx context.Context, reason string, url string) error {
	fmt.Fprintf(p.Out, "\nManual step required (%s) at %s.\n", reason, url)
	fmt.Fprintf(p.Out, "Complete it in the browser window, then press ENTER here...\n")

	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(p.In).ReadString('\n')
		if err != nil && err != io.EOF {
			done <- err
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
