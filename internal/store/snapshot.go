package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lostfound/apiserver/internal/db"
	"github.com/lostfound/apiserver/internal/query"
	"github.com/lostfound/apiserver/types"
)

// SnapshotStore keeps the item table in an in-memory SQLite database and
// rewrites the whole database to a single file after every mutation.
//
// Durability is best effort: a crash after a mutation but before its flush
// completes loses that mutation. The file itself is replaced atomically, so
// it always holds some complete earlier state. Only one process may own a
// snapshot file at a time.
type SnapshotStore struct {
	path   string
	db     *sql.DB
	items  *itemRepository
	logger *zap.Logger

	// mu serializes mutate-then-flush so no snapshot is taken between a
	// write and its flush by another writer.
	mu sync.Mutex
}

// OpenSnapshotStore opens an empty in-memory database for the snapshot at
// path. Call Initialize to create the table and load the file.
func OpenSnapshotStore(path string, logger *zap.Logger) (*SnapshotStore, error) {
	conn, err := db.OpenMemory()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotStore{
		path:   path,
		db:     conn,
		items:  &itemRepository{db: conn, dialect: query.DialectSQLite},
		logger: logger,
	}, nil
}

// Path returns the snapshot file location.
func (s *SnapshotStore) Path() string {
	return s.path
}

// Initialize creates the table, loads the snapshot file if one exists and
// otherwise writes a fresh empty snapshot.
func (s *SnapshotStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := db.EnsureSchema(ctx, s.db); err != nil {
		return err
	}

	var existing int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM items`).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	loaded, err := db.LoadSnapshot(ctx, s.db, s.path)
	if err != nil {
		return err
	}
	if loaded {
		s.logger.Info("snapshot loaded", zap.String("path", s.path))
		return nil
	}

	if err := db.WriteSnapshot(ctx, s.db, s.path); err != nil {
		return err
	}
	s.logger.Info("snapshot created", zap.String("path", s.path))
	return nil
}

func (s *SnapshotStore) ListItems(ctx context.Context, filter query.Filter) ([]types.Item, error) {
	return s.items.List(ctx, filter)
}

func (s *SnapshotStore) GetItem(ctx context.Context, id string) (types.Item, error) {
	return s.items.Get(ctx, id)
}

func (s *SnapshotStore) InsertItem(ctx context.Context, item types.Item) error {
	return s.mutate(ctx, "insert", func() error {
		return s.items.Insert(ctx, item)
	})
}

func (s *SnapshotStore) UpdateDescription(ctx context.Context, id, description string, now int64) error {
	return s.mutate(ctx, "update", func() error {
		return s.items.UpdateDescription(ctx, id, description, now)
	})
}

func (s *SnapshotStore) DeleteItem(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete", func() error {
		return s.items.Delete(ctx, id)
	})
}

func (s *SnapshotStore) Count(ctx context.Context) (int, error) {
	return s.items.Count(ctx)
}

func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Flush writes the current in-memory state to the snapshot file.
func (s *SnapshotStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

// Close flushes the database one last time and releases it.
func (s *SnapshotStore) Close() error {
	flushErr := s.Flush(context.Background())
	closeErr := s.db.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// mutate runs op and, when it changed the table, flushes the snapshot. The
// in-memory change is kept even if the flush fails; the next successful
// flush persists it.
func (s *SnapshotStore) mutate(ctx context.Context, op string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(); err != nil {
		return err
	}
	if err := s.flushLocked(ctx); err != nil {
		s.logger.Error("snapshot flush failed", zap.String("op", op), zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("%s: %w: %w", op, ErrNotPersisted, err)
	}
	return nil
}

func (s *SnapshotStore) flushLocked(ctx context.Context) error {
	// The flush must finish even when the request that triggered it has
	// already been cancelled.
	return db.WriteSnapshot(context.WithoutCancel(ctx), s.db, s.path)
}
