package store

import (
	"context"

	"github.com/lostfound/apiserver/internal/query"
	"github.com/lostfound/apiserver/types"
)

// ItemStore is the persistence contract shared by both backends. Exactly one
// implementation is constructed per process.
type ItemStore interface {
	// Initialize ensures the item table exists. It is idempotent.
	Initialize(ctx context.Context) error
	ListItems(ctx context.Context, filter query.Filter) ([]types.Item, error)
	GetItem(ctx context.Context, id string) (types.Item, error)
	// InsertItem persists a fully formed record; it assigns no defaults.
	InsertItem(ctx context.Context, item types.Item) error
	UpdateDescription(ctx context.Context, id, description string, now int64) error
	DeleteItem(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}
