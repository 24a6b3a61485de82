// File: api/schemas/scenarios.go
package schemas

import "time"

// ExpectedOutcome declares whether a test case's payload should be accepted
// or rejected by the form under test.
type ExpectedOutcome string

const (
	OutcomeValid   ExpectedOutcome = "valid"
	OutcomeInvalid ExpectedOutcome = "invalid"
)

// TestCase is one input to apply against a field. Cases are immutable once
// created; within a knowledge entry they are deduplicated by payload.
type TestCase struct {
	Payload       string          `json:"payload"`
	Description   string          `json:"description"`
	Expected      ExpectedOutcome `json:"type"`
	Justification string          `json:"justification,omitempty"`
}

// Scenario pairs a selector with its candidate test cases. Selectors are
// matched against the live page at execution time, never pre-resolved,
// because pages are re-navigated between generation and execution.
type Scenario struct {
	Selector string     `json:"selector"`
	Tag      string     `json:"tag,omitempty"`
	Cases    []TestCase `json:"cases"`
}

// ResultStatus classifies a single case execution.
type ResultStatus string

const (
	// StatusApplied means the payload went in and the page's reaction matched
	// the case's expectation.
	StatusApplied ResultStatus = "applied"
	// StatusFailedValidation means feedback appeared despite an expected-valid case.
	StatusFailedValidation ResultStatus = "failed_validation"
	// StatusNoValidation means no feedback appeared despite an expected-invalid case.
	StatusNoValidation ResultStatus = "no_validation_detected"
	// StatusApplyFailed means the value could not be applied to the element.
	StatusApplyFailed ResultStatus = "apply_failed"
	// StatusElementNotFound means the selector matched nothing on the live page.
	StatusElementNotFound ResultStatus = "element_not_found"
	// StatusError covers unexpected failures outside the apply/observe path.
	StatusError ResultStatus = "error"
)

// Screenshots holds the capture taken immediately before applying a payload
// and the one taken immediately after classification.
type Screenshots struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// ExecutionResult records the outcome of applying one test case to one page.
type ExecutionResult struct {
	Selector      string          `json:"selector"`
	Payload       string          `json:"payload"`
	Description   string          `json:"description,omitempty"`
	Expected      ExpectedOutcome `json:"expected,omitempty"`
	Status        ResultStatus    `json:"status"`
	ObservedValue string          `json:"observed_value,omitempty"`
	Messages      []string        `json:"messages,omitempty"`
	Screenshots   Screenshots     `json:"screenshots,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// KnowledgeStats are the cumulative counters for a learned field.
type KnowledgeStats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Fail    int `json:"fail"`
}

// FieldMeta is the metadata echo persisted alongside a knowledge entry so the
// store remains interpretable without the descriptor that created it.
type FieldMeta struct {
	Tag         string `json:"tag,omitempty"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// KnowledgeEntry is everything remembered about one logical field.
type KnowledgeEntry struct {
	Meta    FieldMeta      `json:"meta"`
	Cases   []TestCase     `json:"cases"`
	Stats   KnowledgeStats `json:"stats"`
	Updated time.Time      `json:"updated"`
}

// PageExecution groups the results produced on a single page visit.
type PageExecution struct {
	PageURL string            `json:"page"`
	Results []ExecutionResult `json:"results"`
}

// Report is the envelope handed to the reporting sink after a scan.
type Report struct {
	ScanID      string          `json:"scan_id"`
	TargetURL   string          `json:"target_url"`
	Pages       []PageScan      `json:"pages"`
	FieldsFound int             `json:"fields_found"`
	Execution   []PageExecution `json:"execution_results"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}
