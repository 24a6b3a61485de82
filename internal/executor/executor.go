// File: internal/executor/executor.go
// Description: Applies test cases to live page elements, observes validation
// feedback and classifies each outcome. Every result, including misses, is
// folded back into the knowledge store.

package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
	"github.com/xkilldash9x/formscout/internal/config"
)

// Element kinds after classification.
const (
	kindCheckbox = "checkbox"
	kindRadio    = "radio"
	kindSelect   = "select"
	kindText     = "text"
)

// checkboxFalsy are payloads that mean "unchecked" for toggle elements.
var checkboxFalsy = map[string]struct{}{
	"false": {}, "0": {}, "no": {}, "": {}, "off": {}, "none": {},
}

// validationKeywords flag page-level feedback that element scraping misses.
var validationKeywords = []string{
	"invalid", "error", "required", "please enter", "must be", "invalid email", "incorrect",
}

// Executor runs scenarios against one page at a time. One executor may be
// shared across pages; the page itself must not be shared concurrently.
type Executor struct {
	cfg    config.ExecutorConfig
	store  schemas.KnowledgeStore
	logger *zap.Logger

	sleep func(ctx context.Context, d time.Duration)
	newID func() string
	now   func() time.Time
}

func New(cfg config.ExecutorConfig, store schemas.KnowledgeStore, logger *zap.Logger) *Executor {
	return &Executor{
		cfg:    cfg,
		store:  store,
		logger: logger.Named("executor"),
		sleep:  sleepCtx,
		newID:  func() string { return uuid.NewString()[:6] },
		now:    time.Now,
	}
}

// Execute runs every case of every scenario against the page. It returns one
// result per case and never fails as a whole; per-case trouble is encoded in
// the result status.
func (e *Executor) Execute(ctx context.Context, page schemas.Page, scan schemas.PageScan, scenarios []schemas.Scenario) []schemas.ExecutionResult {
	if len(scenarios) == 0 {
		return nil
	}

	fieldsBySelector := make(map[string]schemas.ElementDescriptor, len(scan.Fields))
	for _, f := range scan.Fields {
		fieldsBySelector[f.Selector] = f
	}

	var results []schemas.ExecutionResult
	for _, sc := range scenarios {
		field, known := fieldsBySelector[sc.Selector]
		if !known {
			field = schemas.ElementDescriptor{Selector: sc.Selector, Tag: sc.Tag}
		}
		for _, tc := range sc.Cases {
			if ctx.Err() != nil {
				return results
			}
			res := e.runCase(ctx, page, sc.Selector, tc)
			results = append(results, res)

			if err := e.store.RecordResult(ctx, field, tc, res); err != nil {
				e.logger.Warn("Could not record result",
					zap.String("selector", sc.Selector), zap.Error(err))
			}
		}
	}
	return results
}

func (e *Executor) runCase(ctx context.Context, page schemas.Page, selector string, tc schemas.TestCase) schemas.ExecutionResult {
	res := schemas.ExecutionResult{
		Selector:    selector,
		Payload:     tc.Payload,
		Description: tc.Description,
		Expected:    tc.Expected,
	}
	res.Screenshots.Before = e.screenshot(ctx, page, "before")

	probe, err := e.probe(ctx, page, selector)
	if err != nil {
		res.Status = schemas.StatusError
		res.Error = err.Error()
		res.Screenshots.After = e.screenshot(ctx, page, "after")
		return res
	}
	if !probe.Found {
		res.Status = schemas.StatusElementNotFound
		res.Screenshots.After = e.screenshot(ctx, page, "after")
		return res
	}

	kind := classify(probe)
	applied := e.apply(ctx, page, selector, kind, tc.Payload)
	e.sleep(ctx, e.cfg.SettleDelay)

	e.submit(ctx, page, selector)

	res.ObservedValue = e.observe(ctx, page, selector, kind)
	res.Messages = e.detectFeedback(ctx, page)
	res.Status = classifyOutcome(applied, tc.Expected, res.Messages)
	res.Screenshots.After = e.screenshot(ctx, page, "after")
	return res
}

func (e *Executor) probe(ctx context.Context, page schemas.Page, selector string) (elementProbe, error) {
	var probe elementProbe
	if err := page.Evaluate(ctx, probeJS(selector), &probe); err != nil {
		return elementProbe{}, fmt.Errorf("element probe failed: %w", err)
	}
	return probe, nil
}

// classify maps the probed tag, input type and ARIA role to an apply kind.
func classify(p elementProbe) string {
	switch p.Tag {
	case "input":
		switch p.Type {
		case "checkbox":
			return kindCheckbox
		case "radio":
			return kindRadio
		}
		return kindText
	case "select":
		return kindSelect
	case "textarea":
		return kindText
	}
	if strings.Contains(p.Role, "checkbox") {
		return kindCheckbox
	}
	if strings.Contains(p.Role, "radio") {
		return kindRadio
	}
	return kindText
}

func (e *Executor) apply(ctx context.Context, page schemas.Page, selector, kind, payload string) bool {
	var script string
	switch kind {
	case kindCheckbox:
		_, falsy := checkboxFalsy[strings.ToLower(payload)]
		script = setCheckboxJS(selector, !falsy)
	case kindRadio:
		script = selectRadioJS(selector, payload)
	case kindSelect:
		script = setSelectJS(selector, payload)
	default:
		script = setTextJS(selector, payload)
	}

	var ok bool
	if err := page.Evaluate(ctx, script, &ok); err != nil {
		e.logger.Debug("Apply script failed", zap.String("selector", selector), zap.Error(err))
		return false
	}
	if !ok && kind == kindSelect {
		// The option may not exist; force the value as a last resort.
		if err := page.Evaluate(ctx, setTextJS(selector, payload), &ok); err != nil {
			return false
		}
	}
	return ok
}

// submit clicks the form's submit control if one exists. Best effort; a
// page without a submit button is not an error.
func (e *Executor) submit(ctx context.Context, page schemas.Page, selector string) {
	var clicked bool
	if err := page.Evaluate(ctx, submitJS(selector), &clicked); err != nil {
		e.logger.Debug("Submit sweep failed", zap.String("selector", selector), zap.Error(err))
		return
	}
	if clicked {
		e.sleep(ctx, e.cfg.SettleDelay)
	}
}

func (e *Executor) observe(ctx context.Context, page schemas.Page, selector, kind string) string {
	var value string
	if err := page.Evaluate(ctx, observeJS(selector, kind), &value); err != nil {
		return ""
	}
	return value
}

// detectFeedback waits out the validation delay, then merges element-level
// feedback texts with page-level keyword hits, deduplicated in order.
func (e *Executor) detectFeedback(ctx context.Context, page schemas.Page) []string {
	e.sleep(ctx, e.cfg.ValidationWait)

	var msgs []string
	if err := page.Evaluate(ctx, feedbackTextsJS, &msgs); err != nil {
		e.logger.Debug("Feedback element scrape failed", zap.Error(err))
	}

	if content, err := page.Content(ctx); err == nil {
		lowered := strings.ToLower(content)
		for _, kw := range validationKeywords {
			if strings.Contains(lowered, kw) {
				msgs = append(msgs, "page_contains_keyword:"+kw)
			}
		}
	}

	seen := make(map[string]struct{}, len(msgs))
	out := msgs[:0]
	for _, m := range msgs {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// classifyOutcome folds the apply result, the case expectation and the
// observed feedback into a final status.
func classifyOutcome(applied bool, expected schemas.ExpectedOutcome, msgs []string) schemas.ResultStatus {
	if !applied {
		return schemas.StatusApplyFailed
	}
	if len(msgs) > 0 && expected == schemas.OutcomeValid {
		return schemas.StatusFailedValidation
	}
	if len(msgs) == 0 && expected == schemas.OutcomeInvalid {
		return schemas.StatusNoValidation
	}
	return schemas.StatusApplied
}

func (e *Executor) screenshot(ctx context.Context, page schemas.Page, prefix string) string {
	name := fmt.Sprintf("%s_%s_%s.png", prefix, e.now().Format("2006-01-02_15-04-05"), e.newID())
	path := filepath.Join(e.cfg.ScreenshotDir, name)
	if err := page.Screenshot(ctx, path); err != nil {
		e.logger.Debug("Screenshot failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	return path
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
