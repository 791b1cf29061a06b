package store

import (
	"context"
	"database/sql"

	"github.com/lostfound/apiserver/internal/db"
	"github.com/lostfound/apiserver/internal/query"
	"github.com/lostfound/apiserver/types"
)

// PostgresStore keeps items in Postgres. Durability comes from the server's
// own transaction log, so there is no flush step.
type PostgresStore struct {
	db    *sql.DB
	items *itemRepository
}

func NewPostgresStore(conn *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:    conn,
		items: &itemRepository{db: conn, dialect: query.DialectPostgres},
	}
}

// OpenPostgresStore connects to databaseURL and returns an initialized store.
func OpenPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	s := NewPostgresStore(conn)
	if err := s.Initialize(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Initialize(ctx context.Context) error {
	return db.Migrate(ctx, s.db)
}

func (s *PostgresStore) ListItems(ctx context.Context, filter query.Filter) ([]types.Item, error) {
	return s.items.List(ctx, filter)
}

func (s *PostgresStore) GetItem(ctx context.Context, id string) (types.Item, error) {
	return s.items.Get(ctx, id)
}

func (s *PostgresStore) InsertItem(ctx context.Context, item types.Item) error {
	return s.items.Insert(ctx, item)
}

func (s *PostgresStore) UpdateDescription(ctx context.Context, id, description string, now int64) error {
	return s.items.UpdateDescription(ctx, id, description, now)
}

func (s *PostgresStore) DeleteItem(ctx context.Context, id string) error {
	return s.items.Delete(ctx, id)
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	return s.items.Count(ctx)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
