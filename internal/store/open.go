package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lostfound/apiserver/config"
)

var (
	_ ItemStore = (*SnapshotStore)(nil)
	_ ItemStore = (*PostgresStore)(nil)
)

// Open constructs and initializes the item store selected by cfg. Any error
// here means the process must not start serving.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (ItemStore, error) {
	switch cfg.Backend() {
	case config.BackendPostgres:
		s, err := OpenPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("postgres backend: %w", err)
		}
		logger.Info("item store ready", zap.String("backend", string(config.BackendPostgres)))
		return s, nil
	default:
		s, err := OpenSnapshotStore(cfg.Database.SnapshotFile, logger)
		if err != nil {
			return nil, fmt.Errorf("snapshot backend: %w", err)
		}
		if err := s.Initialize(ctx); err != nil {
			_ = s.db.Close()
			return nil, fmt.Errorf("snapshot backend: %w", err)
		}
		logger.Info("item store ready",
			zap.String("backend", string(config.BackendSnapshot)),
			zap.String("path", s.Path()),
		)
		return s, nil
	}
}
