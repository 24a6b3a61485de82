// File: internal/knowledge/factory.go
package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
	"github.com/xkilldash9x/formscout/internal/config"
)

// Open builds the knowledge store named by the configuration. The returned
// close function releases backend resources and is safe to call exactly once.
func Open(ctx context.Context, cfg config.KnowledgeConfig, logger *zap.Logger) (schemas.KnowledgeStore, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "file":
		return NewFileStore(cfg.Path, logger), func() {}, nil
	case "memory":
		return NewMemoryStore(logger), func() {}, nil
	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, nil, fmt.Errorf("knowledge backend %q requires a connection URL", cfg.Backend)
		}
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect knowledge database: %w", err)
		}
		store, err := NewPGStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown knowledge backend %q (supported: file, memory, postgres)", cfg.Backend)
	}
}
