// File: internal/knowledge/file.go
package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fileDocument is the on-disk shape. The "fields" envelope is part of the
// stable format; readers must tolerate a missing file as an empty store.
type fileDocument struct {
	Fields map[string]schemas.KnowledgeEntry `json:"fields"`
}

// FileStore persists the knowledge base as a single JSON file, fully
// rewritten on every update. Writers are serialized by a process-local
// mutex; concurrent writers in separate processes may lose updates, which
// is an accepted limitation of the whole-file read-modify-write design.
type FileStore struct {
	path string
	log  *zap.Logger
	mu   sync.Mutex
}

var _ schemas.KnowledgeStore = (*FileStore)(nil)

// NewFileStore creates a store backed by the JSON file at path.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, log: logger.Named("knowledge")}
}

// load reads the whole document. Any failure degrades to an empty view.
func (s *FileStore) load() fileDocument {
	doc := fileDocument{Fields: map[string]schemas.KnowledgeEntry{}}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("Knowledge load failed", zap.String("path", s.path), zap.Error(err))
		}
		return doc
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.log.Warn("Knowledge file is not parseable, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return fileDocument{Fields: map[string]schemas.KnowledgeEntry{}}
	}
	if doc.Fields == nil {
		doc.Fields = map[string]schemas.KnowledgeEntry{}
	}
	return doc
}

// persist rewrites the whole document via a temp file and rename.
func (s *FileStore) persist(doc fileDocument) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Find returns the entry for a fingerprint. Staleness under concurrent
// writers is acceptable; reads do not take the writer lock.
func (s *FileStore) Find(_ context.Context, fp schemas.FieldFingerprint) (schemas.KnowledgeEntry, error) {
	doc := s.load()
	entry, ok := doc.Fields[string(fp)]
	if !ok {
		return schemas.KnowledgeEntry{}, ErrNotFound
	}
	s.log.Debug("Knowledge hit", zap.String("fingerprint", string(fp)),
		zap.Int("cases", len(entry.Cases)))
	return entry, nil
}

// RecordResult folds one execution result into the field's entry. Storage
// failures are logged and swallowed; persistence never blocks the pipeline.
func (s *FileStore) RecordResult(_ context.Context, field schemas.ElementDescriptor, tc schemas.TestCase, res schemas.ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	key := string(schemas.FingerprintOf(field))
	entry, ok := doc.Fields[key]
	if !ok {
		entry = schemas.KnowledgeEntry{Meta: metaOf(field)}
	}
	entry.Cases = appendCase(entry.Cases, tc)
	applyResult(&entry, res)
	entry.Updated = time.Now().UTC()
	doc.Fields[key] = entry

	if err := s.persist(doc); err != nil {
		s.log.Warn("Knowledge save failed", zap.String("path", s.path), zap.Error(err))
	}
	return nil
}

// SaveCases merges a freshly generated case set into the field's entry.
func (s *FileStore) SaveCases(_ context.Context, field schemas.ElementDescriptor, cases []schemas.TestCase) error {
	if len(cases) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	key := string(schemas.FingerprintOf(field))
	entry, ok := doc.Fields[key]
	if !ok {
		entry = schemas.KnowledgeEntry{Meta: metaOf(field)}
	}
	entry.Cases = mergeCases(entry.Cases, cases)
	entry.Updated = time.Now().UTC()
	doc.Fields[key] = entry

	if err := s.persist(doc); err != nil {
		s.log.Warn("Knowledge save failed", zap.String("path", s.path), zap.Error(err))
	}
	return nil
}

// Snapshot returns the full store keyed by fingerprint.
func (s *FileStore) Snapshot(_ context.Context) (map[schemas.FieldFingerprint]schemas.KnowledgeEntry, error) {
	doc := s.load()
	out := make(map[schemas.FieldFingerprint]schemas.KnowledgeEntry, len(doc.Fields))
	for k, v := range doc.Fields {
		out[schemas.FieldFingerprint(k)] = v
	}
	return out, nil
}

// Clear deletes the persisted store entirely.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("Knowledge clear failed", zap.String("path", s.path), zap.Error(err))
		return err
	}
	s.log.Info("Knowledge store cleared", zap.String("path", s.path))
	return nil
}
