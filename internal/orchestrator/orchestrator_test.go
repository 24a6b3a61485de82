package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
	"github.com/xkilldash9x/formscout/internal/config"
	"github.com/xkilldash9x/formscout/internal/knowledge"
	"github.com/xkilldash9x/formscout/internal/mocks"
)

// fakeSite drives both scan phases: page fields and links are keyed by URL,
// and every Evaluate is routed by a snippet of the expression so the real
// scanner, crawler and executor run unmodified on top of it.
type fakeSite struct {
	testT *testing.T

	mu      sync.Mutex
	fields  map[string][]schemas.ElementDescriptor
	links   map[string][]string
	content map[string]string
	// failAfterNav makes every navigation beyond the given number of
	// successful ones fail, which lets a test poison only the
	// execution-phase re-navigation.
	failAfterNav map[string]int
	navOK        map[string]int

	pagesOpened int
	executed    []string // URLs whose elements received payloads
}

// setOut decodes v into the caller-typed out pointer via a JSON round trip,
// which keeps the fake independent of unexported result types.
func setOut(t *testing.T, out, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func (f *fakeSite) NewPage(ctx context.Context) (schemas.Page, error) {
	f.mu.Lock()
	f.pagesOpened++
	f.mu.Unlock()

	var current string
	page := &mocks.FakePage{}
	page.NavigateFunc = func(ctx context.Context, url string) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if limit, ok := f.failAfterNav[url]; ok && f.navOK[url] >= limit {
			return errors.New("net::ERR_CONNECTION_RESET")
		}
		if f.navOK == nil {
			f.navOK = make(map[string]int)
		}
		f.navOK[url]++
		current = url
		return nil
	}
	page.EvaluateFunc = func(ctx context.Context, expr string, out any) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case strings.Contains(expr, "isInteractive"):
			*(out.(*[]schemas.ElementDescriptor)) = f.fields[current]
		case strings.Contains(expr, `querySelectorAll("a")`):
			*(out.(*[]string)) = f.links[current]
		case strings.Contains(expr, "found:"):
			found := len(f.fields[current]) > 0
			setOut(f.t(), out, map[string]any{"found": found, "tag": "input", "type": "text", "role": ""})
		case strings.Contains(expr, "role='alert'"):
			*(out.(*[]string)) = nil
		case strings.Contains(expr, `!== "form"`):
			*(out.(*bool)) = false
		case strings.Contains(expr, "password"):
			*(out.(*bool)) = false
		case strings.Contains(expr, "el.value") || strings.Contains(expr, "el.checked"):
			if s, ok := out.(*string); ok {
				*s = ""
				break
			}
			f.executed = append(f.executed, current)
			*(out.(*bool)) = true
		case strings.Contains(expr, "new Event"):
			*(out.(*bool)) = true
		}
		return nil
	}
	page.ClickFunc = func(ctx context.Context, selector string) error {
		return errors.New("no such element") // keeps pre-action sweeps instant
	}
	page.ContentFunc = func(ctx context.Context) (string, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.content[current], nil
	}
	return page, nil
}

func (f *fakeSite) Shutdown(ctx context.Context) error { return nil }

// t carries the test handle into setOut without widening every signature.
func (f *fakeSite) t() *testing.T { return f.testT }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Crawler:  config.CrawlerConfig{MaxDepth: 2, RequestsPerSecond: 1000},
		Retry:    config.RetryConfig{Attempts: 2},
		Executor: config.ExecutorConfig{Concurrency: 2, ScreenshotDir: t.TempDir()},
		Output:   config.OutputConfig{Dir: t.TempDir()},
	}
}

func newTestOrchestrator(t *testing.T, site *fakeSite, store schemas.KnowledgeStore) *Orchestrator {
	t.Helper()
	site.testT = t
	o := New(testConfig(t), zap.NewNop())
	o.newManager = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (schemas.BrowserManager, error) {
		return site, nil
	}
	o.openStore = func(ctx context.Context, cfg config.KnowledgeConfig, logger *zap.Logger) (schemas.KnowledgeStore, func(), error) {
		return store, func() {}, nil
	}
	o.newLLM = func(cfg config.LLMConfig, logger *zap.Logger) (schemas.TextGenerator, error) {
		return nil, errors.New("no backend configured")
	}
	o.now = func() time.Time { return time.Date(2026, 2, 3, 10, 30, 0, 0, time.UTC) }
	o.newID = func() string { return "scan-1" }
	return o
}

func emailField() schemas.ElementDescriptor {
	return schemas.ElementDescriptor{
		Tag:      "input",
		Type:     "email",
		Name:     "email",
		Selector: "form > input#email",
		Visible:  true,
	}
}

func TestRun_FullPipeline(t *testing.T) {
	site := &fakeSite{
		links: map[string][]string{
			"https://site.test/": {"https://site.test/signup"},
		},
		fields: map[string][]schemas.ElementDescriptor{
			"https://site.test/signup": {emailField()},
		},
		content: map[string]string{
			"https://site.test/":       "Welcome",
			"https://site.test/signup": "Sign up here",
		},
	}
	store := knowledge.NewMemoryStore(zap.NewNop())
	o := newTestOrchestrator(t, site, store)

	report, err := o.Run(context.Background(), "https://site.test/")
	require.NoError(t, err)

	assert.Equal(t, "scan-1", report.ScanID)
	assert.Equal(t, "https://site.test/", report.TargetURL)
	assert.Len(t, report.Pages, 2)
	assert.Equal(t, 1, report.FieldsFound)

	// Only the signup page carries the scenario's selector, so only it is
	// re-navigated for execution.
	require.Len(t, report.Execution, 1)
	assert.Equal(t, "https://site.test/signup", report.Execution[0].PageURL)
	assert.Len(t, report.Execution[0].Results, 5, "one result per heuristic email case")
	for _, res := range report.Execution[0].Results {
		assert.Contains(t, []schemas.ResultStatus{schemas.StatusApplied, schemas.StatusNoValidation}, res.Status)
	}

	site.mu.Lock()
	for _, url := range site.executed {
		assert.Equal(t, "https://site.test/signup", url)
	}
	// The crawl's consent pass, one session per crawled page, and one
	// execution session.
	assert.Equal(t, 4, site.pagesOpened)
	site.mu.Unlock()

	// Generation persisted the fresh cases, execution folded in the outcomes.
	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	entry, ok := snap[schemas.FingerprintOf(emailField())]
	require.True(t, ok)
	assert.Len(t, entry.Cases, 5)
	assert.Equal(t, 5, entry.Stats.Total)

	for _, name := range []string{"report.json", "last_scan_summary.json", "report.md"} {
		_, statErr := os.Stat(filepath.Join(o.cfg.Output.Dir, name))
		assert.NoError(t, statErr, name)
	}
}

func TestRun_PageExecutionFailureIsSkipped(t *testing.T) {
	site := &fakeSite{
		links: map[string][]string{},
		fields: map[string][]schemas.ElementDescriptor{
			"https://site.test/": {emailField()},
		},
		// The consent pass and the crawl visit succeed; the execution-phase
		// re-navigation fails.
		failAfterNav: map[string]int{"https://site.test/": 2},
	}
	store := knowledge.NewMemoryStore(zap.NewNop())
	o := newTestOrchestrator(t, site, store)

	// The execution-phase re-navigation exhausts its retries, so the page
	// is skipped without failing the scan.
	report, err := o.Run(context.Background(), "https://site.test/")
	require.NoError(t, err)
	assert.Equal(t, 1, report.FieldsFound)
	assert.Empty(t, report.Execution)
}

func TestRun_NoFieldsStillWritesReport(t *testing.T) {
	site := &fakeSite{
		links:   map[string][]string{},
		fields:  map[string][]schemas.ElementDescriptor{},
		content: map[string]string{"https://site.test/": "Nothing here"},
	}
	o := newTestOrchestrator(t, site, knowledge.NewMemoryStore(zap.NewNop()))

	report, err := o.Run(context.Background(), "https://site.test/")
	require.NoError(t, err)
	assert.Zero(t, report.FieldsFound)
	assert.Empty(t, report.Execution)
	_, statErr := os.Stat(filepath.Join(o.cfg.Output.Dir, "report.json"))
	assert.NoError(t, statErr)
}

func TestRun_InvalidStartURLFails(t *testing.T) {
	site := &fakeSite{}
	o := newTestOrchestrator(t, site, knowledge.NewMemoryStore(zap.NewNop()))

	_, err := o.Run(context.Background(), "::not-a-url::")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crawl phase")
}

func TestRun_StoreOpenFailureAborts(t *testing.T) {
	site := &fakeSite{}
	o := newTestOrchestrator(t, site, knowledge.NewMemoryStore(zap.NewNop()))
	o.openStore = func(ctx context.Context, cfg config.KnowledgeConfig, logger *zap.Logger) (schemas.KnowledgeStore, func(), error) {
		return nil, nil, errors.New("dial tcp: refused")
	}

	_, err := o.Run(context.Background(), "https://site.test/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open knowledge store")
}

func TestAggregateFields_DropsExactRepeats(t *testing.T) {
	email := emailField()
	other := email
	other.Selector = "div > input:nth-child(2)" // same fingerprint, new selector

	pages := []schemas.PageScan{
		{URL: "https://a", Fields: []schemas.ElementDescriptor{email}},
		{URL: "https://b", Fields: []schemas.ElementDescriptor{email, other}},
	}

	got := aggregateFields(pages)
	require.Len(t, got, 2, "repeat at the same selector collapses, distinct selector survives")
	assert.Equal(t, email.Selector, got[0].Selector)
	assert.Equal(t, other.Selector, got[1].Selector)
}

func TestScenariosFor_FiltersBySelector(t *testing.T) {
	pg := schemas.PageScan{Fields: []schemas.ElementDescriptor{{Selector: "#a"}, {Selector: "#b"}}}
	all := []schemas.Scenario{{Selector: "#a"}, {Selector: "#c"}, {Selector: "#b"}}

	got := scenariosFor(pg, all)
	require.Len(t, got, 2)
	assert.Equal(t, "#a", got[0].Selector)
	assert.Equal(t, "#b", got[1].Selector)
}
