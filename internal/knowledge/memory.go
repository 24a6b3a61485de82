// File: internal/knowledge/memory.go
package knowledge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
)

// MemoryStore is a fast, ephemeral implementation of the knowledge store.
// Used by tests and by runs that should not touch disk.
type MemoryStore struct {
	mu     sync.RWMutex
	fields map[schemas.FieldFingerprint]schemas.KnowledgeEntry
	log    *zap.Logger
}

var _ schemas.KnowledgeStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory knowledge store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		fields: make(map[schemas.FieldFingerprint]schemas.KnowledgeEntry),
		log:    logger.Named("knowledge.memory"),
	}
}

func (s *MemoryStore) Find(_ context.Context, fp schemas.FieldFingerprint) (schemas.KnowledgeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.fields[fp]
	if !ok {
		return schemas.KnowledgeEntry{}, ErrNotFound
	}
	return entry, nil
}

func (s *MemoryStore) RecordResult(_ context.Context, field schemas.ElementDescriptor, tc schemas.TestCase, res schemas.ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := schemas.FingerprintOf(field)
	entry, ok := s.fields[fp]
	if !ok {
		entry = schemas.KnowledgeEntry{Meta: metaOf(field)}
	}
	entry.Cases = appendCase(entry.Cases, tc)
	applyResult(&entry, res)
	entry.Updated = time.Now().UTC()
	s.fields[fp] = entry
	return nil
}

func (s *MemoryStore) SaveCases(_ context.Context, field schemas.ElementDescriptor, cases []schemas.TestCase) error {
	if len(cases) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := schemas.FingerprintOf(field)
	entry, ok := s.fields[fp]
	if !ok {
		entry = schemas.KnowledgeEntry{Meta: metaOf(field)}
	}
	entry.Cases = mergeCases(entry.Cases, cases)
	entry.Updated = time.Now().UTC()
	s.fields[fp] = entry
	return nil
}

func (s *MemoryStore) Snapshot(_ context.Context) (map[schemas.FieldFingerprint]schemas.KnowledgeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[schemas.FieldFingerprint]schemas.KnowledgeEntry, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = make(map[schemas.FieldFingerprint]schemas.KnowledgeEntry)
	return nil
}
