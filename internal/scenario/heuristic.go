// File: internal/scenario/heuristic.go
// Description: Deterministic test-case synthesis from field naming hints.
// The last line of defense; it must always produce something.

package scenario

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
)

// HeuristicSource classifies fields by their name, placeholder or role and
// emits a fixed case set per class. It never fails.
type HeuristicSource struct {
	logger *zap.Logger
}

func NewHeuristicSource(logger *zap.Logger) *HeuristicSource {
	return &HeuristicSource{logger: logger.Named("scenario.heuristic")}
}

func (h *HeuristicSource) Name() string { return "heuristic" }

func (h *HeuristicSource) Generate(ctx context.Context, fields []schemas.ElementDescriptor) ([]schemas.Scenario, error) {
	out := make([]schemas.Scenario, 0, len(fields))
	for _, f := range fields {
		out = append(out, schemas.Scenario{
			Selector: f.Selector,
			Tag:      f.Tag,
			Cases:    casesFor(f),
		})
	}
	h.logger.Debug("Heuristic scenarios generated", zap.Int("fields", len(fields)))
	return out, nil
}

func casesFor(f schemas.ElementDescriptor) []schemas.TestCase {
	hint := f.Name
	if hint == "" {
		hint = f.Placeholder
	}
	if hint == "" {
		hint = f.Role
	}
	hint = strings.ToLower(hint)

	var cases []schemas.TestCase
	add := func(payload, desc string, outcome schemas.ExpectedOutcome) {
		cases = append(cases, schemas.TestCase{Payload: payload, Description: desc, Expected: outcome})
	}

	switch {
	case strings.Contains(hint, "email"):
		add("", "Empty", schemas.OutcomeInvalid)
		add("user@", "No domain", schemas.OutcomeInvalid)
		add("user@example.com", "Valid", schemas.OutcomeValid)
		add(strings.Repeat("a", 300)+"@x.com", "Very long", schemas.OutcomeInvalid)
		add("user+tag@example.com", "Plus sign", schemas.OutcomeValid)
	case strings.Contains(hint, "pass"):
		add("", "Empty", schemas.OutcomeInvalid)
		add("123", "Too short", schemas.OutcomeInvalid)
		add("P@ssw0rd!", "Strong", schemas.OutcomeValid)
		add(strings.Repeat("a", 256), "Very long", schemas.OutcomeInvalid)
	case strings.Contains(hint, "name"):
		add("", "Empty", schemas.OutcomeInvalid)
		add("1234", "Numeric", schemas.OutcomeInvalid)
		add("John Doe", "Valid", schemas.OutcomeValid)
	case containsAny(hint, "age", "number", "qty", "phone"):
		add("", "Empty", schemas.OutcomeInvalid)
		add("abc", "Non-numeric", schemas.OutcomeInvalid)
		add("25", "Valid", schemas.OutcomeValid)
	default:
		add("", "Empty", schemas.OutcomeInvalid)
		add("test", "Normal text", schemas.OutcomeValid)
		add("<script>alert(1)</script>", "XSS", schemas.OutcomeInvalid)
	}
	return cases
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
