// File: api/schemas/interfaces.go
// Description: Contracts between the pipeline stages. Keeping them here, next
// to the data they exchange, lets the implementations live in internal/
// packages without import cycles.

package schemas

import "context"

// TextGenerator is the consumed text-generation backend. Implementations are
// expected to be resilient (probe, bounded retries) but never to fall back on
// their own; callers own the deterministic fallback.
type TextGenerator interface {
	// Available reports backend liveness. The first probe's outcome is
	// memoized for the client's lifetime.
	Available(ctx context.Context) bool
	// Generate sends one prompt and returns the assembled raw text.
	Generate(ctx context.Context, prompt string) (string, error)
}

// KnowledgeStore is the persistent field-fingerprint-keyed learning cache.
type KnowledgeStore interface {
	// Find returns the entry for a fingerprint, or knowledge.ErrNotFound.
	Find(ctx context.Context, fp FieldFingerprint) (KnowledgeEntry, error)
	// RecordResult folds one execution result into the matching entry,
	// appending the case if its payload is new.
	RecordResult(ctx context.Context, field ElementDescriptor, tc TestCase, res ExecutionResult) error
	// SaveCases replaces the learned case set for a field, independent of
	// execution outcome.
	SaveCases(ctx context.Context, field ElementDescriptor, cases []TestCase) error
	// Snapshot returns the full store keyed by fingerprint.
	Snapshot(ctx context.Context) (map[FieldFingerprint]KnowledgeEntry, error)
	// Clear erases the persisted store entirely.
	Clear(ctx context.Context) error
}

// Page is the automation port for one exclusively-owned page session. All
// operations are ordered with respect to each other; no two concurrent flows
// may share one Page.
type Page interface {
	// Navigate loads the URL and waits for the configured post-load settle.
	Navigate(ctx context.Context, url string) error
	// Evaluate runs a JS expression in the top frame and decodes the result.
	Evaluate(ctx context.Context, expr string, out any) error
	// AddInitScript installs a script evaluated on every new document before
	// page scripts run. Best effort on engines without that primitive.
	AddInitScript(ctx context.Context, script string) error
	// Click dispatches a click on the first match of the selector.
	Click(ctx context.Context, selector string) error
	// Content returns the current full page text content.
	Content(ctx context.Context) (string, error)
	// Screenshot captures the viewport to the given path.
	Screenshot(ctx context.Context, path string) error
	// Cookies lists the cookies visible to the current page.
	Cookies(ctx context.Context) ([]Cookie, error)
	// URL reports the page's current location.
	URL(ctx context.Context) (string, error)
	// Close releases the underlying tab.
	Close() error
}

// Cookie is the subset of cookie attributes the pipeline cares about.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

// BrowserManager owns the browser process and hands out page sessions.
type BrowserManager interface {
	NewPage(ctx context.Context) (Page, error)
	Shutdown(ctx context.Context) error
}
