// File: internal/crawler/crawler.go
// Description: Breadth-first site traversal. Each visited page gets a fresh
// tab, pre-actions, an optional safe-click sweep and one scan. The frontier
// only ever grows with normalized in-scope URLs that were never seen before.

package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/formscout/api/schemas"
	"github.com/xkilldash9x/formscout/internal/browser"
	"github.com/xkilldash9x/formscout/internal/config"
	"github.com/xkilldash9x/formscout/internal/retry"
)

// safeClickHints mark controls that reveal more UI without leaving the page
// flow; anything smelling of authentication is excluded.
const safeClickJS = `(() => {
  const hints = ["next", "more", "load", "continue", "expand", "open", "details", "show", "search", "submit"];
  const avoid = ["login", "sign in", "register", "password", "email"];
  let clicked = 0;
  for (const el of document.querySelectorAll("button, a, [role='button'], [role='link']")) {
    const txt = (el.innerText || "").trim().toLowerCase();
    if (!txt) continue;
    if (avoid.some((k) => txt.includes(k))) continue;
    if (hints.some((h) => txt.includes(h))) {
      try { el.click(); clicked++; } catch (e) {}
      if (clicked >= 3) break;
    }
  }
  return clicked;
})()`

const extractLinksJS = `Array.from(document.querySelectorAll("a")).map((a) => a.href).filter(Boolean)`

// PageScanner is the scanning dependency, satisfied by scanner.Scanner.
type PageScanner interface {
	InstallCanvasHook(ctx context.Context, page schemas.Page)
	Scan(ctx context.Context, page schemas.Page, url string) (schemas.PageScan, error)
}

// Crawler walks one site breadth-first and scans every reachable page.
type Crawler struct {
	cfg      config.CrawlerConfig
	retryCfg config.RetryConfig
	manager  schemas.BrowserManager
	scanner  PageScanner
	prompter browser.Prompter
	limiter  *rate.Limiter
	logger   *zap.Logger
}

func New(
	cfg config.CrawlerConfig,
	retryCfg config.RetryConfig,
	manager schemas.BrowserManager,
	sc PageScanner,
	prompter browser.Prompter,
	logger *zap.Logger,
) *Crawler {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Crawler{
		cfg:      cfg,
		retryCfg: retryCfg,
		manager:  manager,
		scanner:  sc,
		prompter: prompter,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		logger:   logger.Named("crawler"),
	}
}

type frontierItem struct {
	url   string
	depth int
}

// Crawl visits the site rooted at startURL up to the configured depth and
// returns one scan per successfully visited page. Pages that fail to
// navigate or scan are skipped; only an invalid start URL or a cancelled
// context fail the crawl itself.
func (c *Crawler) Crawl(ctx context.Context, startURL string) ([]schemas.PageScan, error) {
	scope, err := NewScope(startURL, c.cfg.IncludeSubdomains)
	if err != nil {
		return nil, err
	}
	seed, ok := scope.Normalize(startURL)
	if !ok {
		return nil, fmt.Errorf("start URL %q is outside its own scope", startURL)
	}

	c.setup(ctx, seed)

	visited := make(map[string]struct{})
	enqueued := map[string]struct{}{seed: {}}
	frontier := []frontierItem{{url: seed, depth: 0}}

	var scans []schemas.PageScan
	for len(frontier) > 0 {
		if ctx.Err() != nil {
			return scans, ctx.Err()
		}

		item := frontier[0]
		frontier = frontier[1:]
		if _, seen := visited[item.url]; seen || item.depth > c.cfg.MaxDepth {
			continue
		}
		visited[item.url] = struct{}{}

		if err := c.limiter.Wait(ctx); err != nil {
			return scans, err
		}

		scan, links, err := c.visit(ctx, item.url, item.depth < c.cfg.MaxDepth)
		if err != nil {
			if ctx.Err() != nil {
				return scans, ctx.Err()
			}
			c.logger.Warn("Skipping page", zap.String("url", item.url), zap.Error(err))
			continue
		}
		scans = append(scans, scan)

		for _, link := range links {
			normalized, ok := scope.Normalize(link)
			if !ok {
				continue
			}
			if _, seen := visited[normalized]; seen {
				continue
			}
			if _, queued := enqueued[normalized]; queued {
				continue
			}
			enqueued[normalized] = struct{}{}
			frontier = append(frontier, frontierItem{url: normalized, depth: item.depth + 1})
		}
	}

	c.logger.Info("Crawl finished", zap.Int("pages", len(scans)))
	return scans, nil
}

// setup opens a throwaway page on the seed and runs the pre-action sweep so
// consent cookies are banked into the shared browser before the traversal
// starts. Best effort: a failed setup only delays the banners to the
// per-page sweep in visit.
func (c *Crawler) setup(ctx context.Context, seed string) {
	page, err := c.manager.NewPage(ctx)
	if err != nil {
		c.logger.Debug("Setup page unavailable", zap.Error(err))
		return
	}
	defer page.Close()

	if err := page.Navigate(ctx, seed); err != nil {
		c.logger.Debug("Setup navigation failed", zap.String("url", seed), zap.Error(err))
		return
	}
	browser.AutoPreActions(ctx, page, c.logger)
}

// visit handles one page end to end: navigate with retries, pre-actions,
// blocker handling, safe clicks, scan, then link extraction when the depth
// budget allows descending further.
func (c *Crawler) visit(ctx context.Context, url string, collectLinks bool) (schemas.PageScan, []string, error) {
	page, err := c.manager.NewPage(ctx)
	if err != nil {
		return schemas.PageScan{}, nil, fmt.Errorf("could not open page: %w", err)
	}
	defer page.Close()

	// Arm the canvas hook before navigation so it sees the initial document.
	c.scanner.InstallCanvasHook(ctx, page)

	err = retry.Do(ctx, c.logger, "navigate", retry.Options{
		Attempts: c.retryCfg.Attempts,
		Delay:    c.retryCfg.Delay,
		Backoff:  c.retryCfg.Backoff,
	}, func(ctx context.Context) error {
		return page.Navigate(ctx, url)
	})
	if err != nil {
		return schemas.PageScan{}, nil, fmt.Errorf("navigation failed: %w", err)
	}

	browser.AutoPreActions(ctx, page, c.logger)

	if blocker := browser.DetectBlocker(ctx, page); blocker != browser.BlockerNone {
		if c.cfg.AllowManualCheck && c.prompter != nil {
			if err := c.prompter.Prompt(ctx, string(blocker), url); err != nil {
				return schemas.PageScan{}, nil, fmt.Errorf("manual intervention aborted: %w", err)
			}
		} else {
			c.logger.Warn("Blocker detected, proceeding without intervention",
				zap.String("url", url), zap.String("blocker", string(blocker)))
		}
	}

	if c.cfg.SafeClicks {
		var clicked int
		if err := page.Evaluate(ctx, safeClickJS, &clicked); err != nil {
			c.logger.Debug("Safe-click sweep failed", zap.Error(err))
		} else if clicked > 0 {
			c.logger.Debug("Safe clicks performed", zap.Int("count", clicked))
		}
	}

	scan, err := c.scanner.Scan(ctx, page, url)
	if err != nil {
		return schemas.PageScan{}, nil, fmt.Errorf("scan failed: %w", err)
	}

	var links []string
	if collectLinks {
		if err := page.Evaluate(ctx, extractLinksJS, &links); err != nil {
			c.logger.Warn("Link extraction failed", zap.String("url", url), zap.Error(err))
		}
	}
	return scan, links, nil
}
