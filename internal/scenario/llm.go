// File: internal/scenario/llm.go
// Description: LLM-backed scenario source. Builds one prompt for the whole
// field batch and parses the reply under a strict JSON-array contract, with
// a single reinforcement retry on malformed output.

package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedReply signals that the model's output never yielded a usable
// JSON array, even after reinforcement.
var ErrMalformedReply = errors.New("model reply is not a usable scenario array")

const reinforcement = "\n\nYour previous reply was not valid JSON. Respond with ONLY the JSON array described above, no prose, no code fences."

// LLMSource generates scenarios from a text-generation backend.
type LLMSource struct {
	client        schemas.TextGenerator
	contextPrompt string
	logger        *zap.Logger
}

func NewLLMSource(client schemas.TextGenerator, contextPrompt string, logger *zap.Logger) *LLMSource {
	return &LLMSource{
		client:        client,
		contextPrompt: contextPrompt,
		logger:        logger.Named("scenario.llm"),
	}
}

func (s *LLMSource) Name() string { return "llm" }

// Generate asks the backend once, retrying a single time with a sterner
// instruction when the reply does not parse.
func (s *LLMSource) Generate(ctx context.Context, fields []schemas.ElementDescriptor) ([]schemas.Scenario, error) {
	if !s.client.Available(ctx) {
		return nil, fmt.Errorf("backend unavailable")
	}

	prompt := buildPrompt(s.contextPrompt, fields)
	raw, err := s.client.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	scenarios, err := parseScenarioArray(raw)
	if err == nil {
		return validate(scenarios, fields), nil
	}

	s.logger.Warn("Model reply did not parse, reinforcing", zap.Error(err))
	raw, err = s.client.Generate(ctx, prompt+reinforcement)
	if err != nil {
		return nil, fmt.Errorf("reinforcement generation failed: %w", err)
	}
	scenarios, err = parseScenarioArray(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedReply, err)
	}
	return validate(scenarios, fields), nil
}

// buildPrompt lists the detected fields and pins the reply format.
func buildPrompt(contextPrompt string, fields []schemas.ElementDescriptor) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(contextPrompt))
	b.WriteString("\n\nFIELDS DETECTED:\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "- selector:%s tag:%s name:%s placeholder:%s role:%s\n",
			f.Selector, f.Tag, f.Name, f.Placeholder, f.Role)
	}
	b.WriteString("\nReturn a JSON array of objects shaped as ")
	b.WriteString(`{"selector": "...", "tag": "...", "cases": [{"payload": "...", "description": "...", "type": "valid|invalid", "justification": "..."}]}.`)
	b.WriteString(" Cover empty input, boundary values and special characters. Respond with the JSON array only.")
	return b.String()
}

// parseScenarioArray extracts the first JSON array from a possibly noisy
// reply: code fences are stripped, then everything outside the outermost
// brackets is discarded.
func parseScenarioArray(raw string) ([]schemas.Scenario, error) {
	cleaned := stripFences(raw)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array found in reply")
	}

	var scenarios []schemas.Scenario
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &scenarios); err != nil {
		return nil, fmt.Errorf("array does not decode: %w", err)
	}
	return scenarios, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "" || !strings.ContainsAny(first, "[{") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// validate drops scenarios the executor could not act on and normalizes
// unknown outcome labels to invalid. Selectors must refer to a scanned field.
func validate(scenarios []schemas.Scenario, fields []schemas.ElementDescriptor) []schemas.Scenario {
	known := make(map[string]schemas.ElementDescriptor, len(fields))
	for _, f := range fields {
		known[f.Selector] = f
	}

	out := scenarios[:0]
	for _, sc := range scenarios {
		f, ok := known[sc.Selector]
		if !ok || len(sc.Cases) == 0 {
			continue
		}
		if sc.Tag == "" {
			sc.Tag = f.Tag
		}
		for i := range sc.Cases {
			if sc.Cases[i].Expected != schemas.OutcomeValid {
				sc.Cases[i].Expected = schemas.OutcomeInvalid
			}
		}
		out = append(out, sc)
	}
	return out
}
