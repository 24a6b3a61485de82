// File: internal/scenario/generator.go
// Description: Scenario generation pipeline: learned knowledge first, then
// the source chain (LLM, heuristic). Generation itself never fails; at
// worst every field falls through to the heuristic case set.

package scenario

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
	"github.com/xkilldash9x/formscout/internal/knowledge"
)

// Source produces scenarios for a batch of fields. Sources are consulted in
// order; a failing source passes its fields to the next one.
type Source interface {
	Name() string
	Generate(ctx context.Context, fields []schemas.ElementDescriptor) ([]schemas.Scenario, error)
}

// Generator orchestrates knowledge replay and the source chain.
type Generator struct {
	store   schemas.KnowledgeStore
	sources []Source
	logger  *zap.Logger
}

// NewGenerator builds the pipeline. Sources run in the given order; the
// final source should be infallible.
func NewGenerator(store schemas.KnowledgeStore, logger *zap.Logger, sources ...Source) *Generator {
	return &Generator{
		store:   store,
		sources: sources,
		logger:  logger.Named("scenario"),
	}
}

// Generate returns one scenario per testable field. Learned cases are
// replayed verbatim; everything else goes through the source chain, and
// freshly generated cases are persisted for the next run.
func (g *Generator) Generate(ctx context.Context, fields []schemas.ElementDescriptor) []schemas.Scenario {
	if len(fields) == 0 {
		return nil
	}

	var scenarios []schemas.Scenario
	var fresh []schemas.ElementDescriptor

	for _, f := range fields {
		entry, err := g.store.Find(ctx, schemas.FingerprintOf(f))
		if err == nil && len(entry.Cases) > 0 {
			scenarios = append(scenarios, schemas.Scenario{
				Selector: f.Selector,
				Tag:      f.Tag,
				Cases:    entry.Cases,
			})
			continue
		}
		if err != nil && !errors.Is(err, knowledge.ErrNotFound) {
			g.logger.Warn("Knowledge lookup failed", zap.String("selector", f.Selector), zap.Error(err))
		}
		fresh = append(fresh, f)
	}
	g.logger.Info("Scenario generation",
		zap.Int("fields", len(fields)),
		zap.Int("replayed", len(scenarios)),
		zap.Int("fresh", len(fresh)))

	if len(fresh) == 0 {
		return scenarios
	}

	generated := g.runSources(ctx, fresh)
	g.persist(ctx, fresh, generated)
	return append(scenarios, generated...)
}

func (g *Generator) runSources(ctx context.Context, fields []schemas.ElementDescriptor) []schemas.Scenario {
	for _, src := range g.sources {
		scenarios, err := src.Generate(ctx, fields)
		if err != nil {
			g.logger.Warn("Scenario source failed, trying next",
				zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		if len(scenarios) == 0 {
			g.logger.Warn("Scenario source produced nothing, trying next",
				zap.String("source", src.Name()))
			continue
		}
		g.logger.Info("Scenarios generated",
			zap.String("source", src.Name()), zap.Int("count", len(scenarios)))
		return scenarios
	}
	return nil
}

// persist saves generated cases keyed by field so future runs replay them.
// Failures are logged; generation output is unaffected.
func (g *Generator) persist(ctx context.Context, fields []schemas.ElementDescriptor, scenarios []schemas.Scenario) {
	bySelector := make(map[string]schemas.ElementDescriptor, len(fields))
	for _, f := range fields {
		bySelector[f.Selector] = f
	}
	for _, sc := range scenarios {
		f, ok := bySelector[sc.Selector]
		if !ok {
			continue
		}
		if err := g.store.SaveCases(ctx, f, sc.Cases); err != nil {
			g.logger.Warn("Could not persist generated cases",
				zap.String("selector", sc.Selector), zap.Error(err))
		}
	}
}
