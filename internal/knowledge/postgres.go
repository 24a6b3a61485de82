// File: internal/knowledge/postgres.go
// Description: Postgres-backed knowledge store for deployments that share
// one learning cache across machines. Unlike the file backend, storage
// errors here are surfaced: a configured database is expected to work.

package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
)

// PGPool abstracts the pgxpool.Pool so tests can substitute pgxmock.
type PGPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS field_knowledge (
		fingerprint TEXT PRIMARY KEY,
		meta        JSONB NOT NULL DEFAULT '{}',
		cases       JSONB NOT NULL DEFAULT '[]',
		total       INT NOT NULL DEFAULT 0,
		success     INT NOT NULL DEFAULT 0,
		fail        INT NOT NULL DEFAULT 0,
		updated     TIMESTAMPTZ NOT NULL
	);
`

const upsertEntrySQL = `
	INSERT INTO field_knowledge (fingerprint, meta, cases, total, success, fail, updated)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (fingerprint) DO UPDATE SET
		meta    = EXCLUDED.meta,
		cases   = EXCLUDED.cases,
		total   = EXCLUDED.total,
		success = EXCLUDED.success,
		fail    = EXCLUDED.fail,
		updated = EXCLUDED.updated;
`

const selectEntrySQL = `
	SELECT meta, cases, total, success, fail, updated
	FROM field_knowledge WHERE fingerprint = $1;
`

// PGStore implements the knowledge store on PostgreSQL.
type PGStore struct {
	pool PGPool
	log  *zap.Logger
	// The read-modify-write cycle is serialized per process. Cross-process
	// writers still race on the same fingerprint; acceptable for a cache.
	mu sync.Mutex
}

var _ schemas.KnowledgeStore = (*PGStore)(nil)

// NewPGStore verifies connectivity and ensures the schema exists.
func NewPGStore(ctx context.Context, pool PGPool, logger *zap.Logger) (*PGStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to ensure field_knowledge table: %w", err)
	}
	return &PGStore{pool: pool, log: logger.Named("knowledge.pg")}, nil
}

func (s *PGStore) Find(ctx context.Context, fp schemas.FieldFingerprint) (schemas.KnowledgeEntry, error) {
	return s.fetch(ctx, fp)
}

func (s *PGStore) fetch(ctx context.Context, fp schemas.FieldFingerprint) (schemas.KnowledgeEntry, error) {
	var (
		entry     schemas.KnowledgeEntry
		metaRaw   []byte
		casesRaw  []byte
		updatedAt time.Time
	)
	row := s.pool.QueryRow(ctx, selectEntrySQL, string(fp))
	err := row.Scan(&metaRaw, &casesRaw, &entry.Stats.Total, &entry.Stats.Success, &entry.Stats.Fail, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schemas.KnowledgeEntry{}, ErrNotFound
		}
		return schemas.KnowledgeEntry{}, fmt.Errorf("failed to query field knowledge: %w", err)
	}
	if err := json.Unmarshal(metaRaw, &entry.Meta); err != nil {
		return schemas.KnowledgeEntry{}, fmt.Errorf("corrupt meta for %s: %w", fp, err)
	}
	if err := json.Unmarshal(casesRaw, &entry.Cases); err != nil {
		return schemas.KnowledgeEntry{}, fmt.Errorf("corrupt cases for %s: %w", fp, err)
	}
	entry.Updated = updatedAt
	return entry, nil
}

func (s *PGStore) upsert(ctx context.Context, fp schemas.FieldFingerprint, entry schemas.KnowledgeEntry) error {
	metaRaw, err := json.Marshal(entry.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}
	if entry.Cases == nil {
		entry.Cases = []schemas.TestCase{}
	}
	casesRaw, err := json.Marshal(entry.Cases)
	if err != nil {
		return fmt.Errorf("failed to marshal cases: %w", err)
	}
	_, err = s.pool.Exec(ctx, upsertEntrySQL,
		string(fp), metaRaw, casesRaw,
		entry.Stats.Total, entry.Stats.Success, entry.Stats.Fail, entry.Updated)
	if err != nil {
		return fmt.Errorf("failed to upsert field knowledge: %w", err)
	}
	return nil
}

func (s *PGStore) RecordResult(ctx context.Context, field schemas.ElementDescriptor, tc schemas.TestCase, res schemas.ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := schemas.FingerprintOf(field)
	entry, err := s.fetch(ctx, fp)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		entry = schemas.KnowledgeEntry{Meta: metaOf(field)}
	}
	entry.Cases = appendCase(entry.Cases, tc)
	applyResult(&entry, res)
	entry.Updated = time.Now().UTC()
	return s.upsert(ctx, fp, entry)
}

func (s *PGStore) SaveCases(ctx context.Context, field schemas.ElementDescriptor, cases []schemas.TestCase) error {
	if len(cases) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := schemas.FingerprintOf(field)
	entry, err := s.fetch(ctx, fp)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		entry = schemas.KnowledgeEntry{Meta: metaOf(field)}
	}
	entry.Cases = mergeCases(entry.Cases, cases)
	entry.Updated = time.Now().UTC()
	return s.upsert(ctx, fp, entry)
}

func (s *PGStore) Snapshot(ctx context.Context) (map[schemas.FieldFingerprint]schemas.KnowledgeEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT fingerprint, meta, cases, total, success, fail, updated FROM field_knowledge;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query field knowledge: %w", err)
	}
	defer rows.Close()

	out := make(map[schemas.FieldFingerprint]schemas.KnowledgeEntry)
	for rows.Next() {
		var (
			fp       string
			metaRaw  []byte
			casesRaw []byte
			entry    schemas.KnowledgeEntry
		)
		if err := rows.Scan(&fp, &metaRaw, &casesRaw, &entry.Stats.Total, &entry.Stats.Success, &entry.Stats.Fail, &entry.Updated); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge row: %w", err)
		}
		if err := json.Unmarshal(metaRaw, &entry.Meta); err != nil {
			s.log.Warn("Skipping corrupt meta", zap.String("fingerprint", fp), zap.Error(err))
			continue
		}
		if err := json.Unmarshal(casesRaw, &entry.Cases); err != nil {
			s.log.Warn("Skipping corrupt cases", zap.String("fingerprint", fp), zap.Error(err))
			continue
		}
		out[schemas.FieldFingerprint(fp)] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

func (s *PGStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM field_knowledge;`); err != nil {
		return fmt.Errorf("failed to clear field knowledge: %w", err)
	}
	s.log.Info("Knowledge store cleared")
	return nil
}
