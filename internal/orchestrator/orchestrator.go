// File: internal/orchestrator/orchestrator.go
// Description: Wires the full scan lifecycle: crawl, field aggregation,
// scenario generation, concurrent execution and report emission.

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/formscout/api/schemas"
	"github.com/xkilldash9x/formscout/internal/browser"
	"github.com/xkilldash9x/formscout/internal/config"
	"github.com/xkilldash9x/formscout/internal/crawler"
	"github.com/xkilldash9x/formscout/internal/executor"
	"github.com/xkilldash9x/formscout/internal/knowledge"
	"github.com/xkilldash9x/formscout/internal/llmclient"
	"github.com/xkilldash9x/formscout/internal/reporting"
	"github.com/xkilldash9x/formscout/internal/retry"
	"github.com/xkilldash9x/formscout/internal/scanner"
	"github.com/xkilldash9x/formscout/internal/scenario"
)

const shutdownGrace = 30 * time.Second

// Orchestrator manages the entire lifecycle of a scan. The factories exist so
// tests can substitute fakes for the browser and the store backends; New wires
// the real implementations.
type Orchestrator struct {
	cfg    *config.Config
	logger *zap.Logger

	newManager func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (schemas.BrowserManager, error)
	openStore  func(ctx context.Context, cfg config.KnowledgeConfig, logger *zap.Logger) (schemas.KnowledgeStore, func(), error)
	newLLM     func(cfg config.LLMConfig, logger *zap.Logger) (schemas.TextGenerator, error)
	prompter   browser.Prompter
	now        func() time.Time
	newID      func() string
}

// New creates an Orchestrator backed by the real browser, store and LLM
// implementations.
func New(cfg *config.Config, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		logger: logger.Named("orchestrator"),
		newManager: func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (schemas.BrowserManager, error) {
			return browser.NewManager(ctx, cfg, logger)
		},
		openStore: knowledge.Open,
		newLLM:    llmclient.NewClient,
		prompter:  browser.NewStdinPrompter(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run executes a full scan against startURL and writes the report artifacts
// into the configured output directory. The returned report is populated as
// far as the scan got, even when an error is returned.
func (o *Orchestrator) Run(ctx context.Context, startURL string) (schemas.Report, error) {
	report := schemas.Report{
		ScanID:    o.newID(),
		TargetURL: startURL,
		StartedAt: o.now(),
	}
	log := o.logger.With(zap.String("scan_id", report.ScanID))
	log.Info("Starting scan", zap.String("target", startURL))

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, closeStore, err := o.openStore(scanCtx, o.cfg.Knowledge, o.logger)
	if err != nil {
		return report, fmt.Errorf("open knowledge store: %w", err)
	}
	defer closeStore()

	// Crawl phase. The crawl browser is torn down before execution starts so
	// the execution phase begins from a clean process.
	var pages []schemas.PageScan
	err = o.withBrowser(scanCtx, func(m schemas.BrowserManager) error {
		sc := scanner.New(o.cfg.Scanner, o.cfg.Output.Dir, o.logger)
		cr := crawler.New(o.cfg.Crawler, o.cfg.Retry, m, sc, o.prompter, o.logger)
		var crawlErr error
		pages, crawlErr = cr.Crawl(scanCtx, startURL)
		return crawlErr
	})
	if err != nil {
		return report, fmt.Errorf("crawl phase: %w", err)
	}
	report.Pages = pages

	fields := aggregateFields(pages)
	report.FieldsFound = len(fields)
	log.Info("Crawl complete",
		zap.Int("pages", len(pages)),
		zap.Int("fields", len(fields)))

	scenarios := o.generate(scanCtx, store, fields, log)

	if len(scenarios) > 0 {
		execErr := o.withBrowser(scanCtx, func(m schemas.BrowserManager) error {
			return o.executePages(scanCtx, m, store, pages, scenarios, &report, log)
		})
		if execErr != nil {
			return report, fmt.Errorf("execution phase: %w", execErr)
		}
	}

	report.FinishedAt = o.now()
	if err := reporting.NewWriter(o.cfg.Output.Dir, o.logger).Write(report); err != nil {
		return report, fmt.Errorf("write report: %w", err)
	}
	log.Info("Scan complete",
		zap.Int("pages", len(report.Pages)),
		zap.Int("executed_pages", len(report.Execution)))
	return report, nil
}

// withBrowser runs fn against a freshly launched browser and tears the
// browser down afterwards regardless of fn's outcome.
func (o *Orchestrator) withBrowser(ctx context.Context, fn func(m schemas.BrowserManager) error) error {
	m, err := o.newManager(ctx, o.cfg, o.logger)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := m.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn("Browser shutdown did not finish cleanly", zap.Error(err))
		}
	}()
	return fn(m)
}

// generate produces scenarios for the aggregated fields, preferring the LLM
// source with the deterministic heuristics as fallback. A misconfigured LLM
// backend degrades to heuristics-only instead of failing the scan.
func (o *Orchestrator) generate(ctx context.Context, store schemas.KnowledgeStore, fields []schemas.ElementDescriptor, log *zap.Logger) []schemas.Scenario {
	var sources []scenario.Source
	client, err := o.newLLM(o.cfg.LLM, o.logger)
	if err != nil {
		log.Warn("LLM backend unavailable, generating heuristically only", zap.Error(err))
	} else {
		sources = append(sources, scenario.NewLLMSource(client, o.cfg.LLM.ContextPrompt, o.logger))
	}
	sources = append(sources, scenario.NewHeuristicSource(o.logger))

	gen := scenario.NewGenerator(store, o.logger, sources...)
	scenarios := gen.Generate(ctx, fields)
	log.Info("Scenario generation complete", zap.Int("scenarios", len(scenarios)))
	return scenarios
}

// executePages re-navigates every crawled page and runs its scenarios, with
// up to Executor.Concurrency pages in flight. Each session owns its page
// exclusively; the knowledge store is the only shared state.
func (o *Orchestrator) executePages(
	ctx context.Context,
	m schemas.BrowserManager,
	store schemas.KnowledgeStore,
	pages []schemas.PageScan,
	scenarios []schemas.Scenario,
	report *schemas.Report,
	log *zap.Logger,
) error {
	exec := executor.New(o.cfg.Executor, store, o.logger)

	slots := make([]schemas.PageExecution, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	limit := o.cfg.Executor.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, pg := range pages {
		scs := scenariosFor(pg, scenarios)
		if len(scs) == 0 {
			continue
		}
		g.Go(func() error {
			execution, err := o.executePage(gctx, m, exec, pg, scs)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("Skipping page after execution failure",
					zap.String("url", pg.URL), zap.Error(err))
				return nil
			}
			slots[i] = execution
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, execution := range slots {
		if execution.PageURL != "" {
			report.Execution = append(report.Execution, execution)
		}
	}
	return nil
}

func (o *Orchestrator) executePage(
	ctx context.Context,
	m schemas.BrowserManager,
	exec *executor.Executor,
	pg schemas.PageScan,
	scenarios []schemas.Scenario,
) (schemas.PageExecution, error) {
	page, err := m.NewPage(ctx)
	if err != nil {
		return schemas.PageExecution{}, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	err = retry.Do(ctx, o.logger, "navigate", retry.Options{
		Attempts: o.cfg.Retry.Attempts,
		Delay:    o.cfg.Retry.Delay,
		Backoff:  o.cfg.Retry.Backoff,
	}, func(ctx context.Context) error {
		return page.Navigate(ctx, pg.URL)
	})
	if err != nil {
		return schemas.PageExecution{}, fmt.Errorf("navigate %s: %w", pg.URL, err)
	}
	browser.AutoPreActions(ctx, page, o.logger)

	results := exec.Execute(ctx, page, pg, scenarios)
	return schemas.PageExecution{PageURL: pg.URL, Results: results}, nil
}

// aggregateFields flattens the per-page fields into one generation input,
// dropping repeats of the same logical field at the same selector. Distinct
// selectors survive even when their fingerprints collide, because execution
// matches scenarios back to pages by selector.
func aggregateFields(pages []schemas.PageScan) []schemas.ElementDescriptor {
	type key struct {
		fp       schemas.FieldFingerprint
		selector string
	}
	seen := make(map[key]struct{})
	var out []schemas.ElementDescriptor
	for _, pg := range pages {
		for _, f := range pg.Fields {
			k := key{fp: schemas.FingerprintOf(f), selector: f.Selector}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

// scenariosFor filters the global scenario set down to selectors present on
// the given page.
func scenariosFor(pg schemas.PageScan, all []schemas.Scenario) []schemas.Scenario {
	onPage := make(map[string]struct{}, len(pg.Fields))
	for _, f := range pg.Fields {
		onPage[f.Selector] = struct{}{}
	}
	var out []schemas.Scenario
	for _, s := range all {
		if _, ok := onPage[s.Selector]; ok {
			out = append(out, s)
		}
	}
	return out
}
