package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lostfound/apiserver/internal/mq"
	"github.com/lostfound/apiserver/internal/query"
	"github.com/lostfound/apiserver/internal/store"
	"github.com/lostfound/apiserver/types"
)

// NoFieldsToUpdate is the validation problem reported by Update when the
// request names no mutable field.
const NoFieldsToUpdate = "No fields to update"

// ItemService encapsulates item use-cases on top of the active store.
type ItemService struct {
	store  store.ItemStore
	assets *AssetManager
	events *mq.Publisher
	logger *zap.Logger

	now   func() time.Time
	newID func() (uuid.UUID, error)
}

func NewItemService(st store.ItemStore, assets *AssetManager, events *mq.Publisher, logger *zap.Logger) *ItemService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = mq.NewPublisher(nil, "", logger)
	}
	return &ItemService{
		store:  st,
		assets: assets,
		events: events,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewV7,
	}
}

func (s *ItemService) List(ctx context.Context, filter query.Filter) ([]types.Item, error) {
	items, err := s.store.ListItems(ctx, filter.Normalize())
	if err != nil {
		return nil, &BackendError{Op: "list items", Err: err}
	}
	return items, nil
}

func (s *ItemService) Get(ctx context.Context, id string) (types.Item, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return types.Item{}, s.storeError("get item", err)
	}
	return item, nil
}

// Create validates in, stores the optional image and inserts the record.
// Nothing is persisted when validation or the image check fails, and the
// image is removed again if the insert fails.
func (s *ItemService) Create(ctx context.Context, in types.NewItemInput, upload *Upload) (types.Item, error) {
	if problems := in.Validate(); len(problems) > 0 {
		return types.Item{}, &ValidationError{Problems: problems}
	}
	if upload != nil {
		if _, err := s.assets.Check(*upload); err != nil {
			return types.Item{}, err
		}
	}

	id, err := s.newID()
	if err != nil {
		return types.Item{}, &BackendError{Op: "generate id", Err: err}
	}
	itemType, _ := types.ParseItemType(in.Type)
	now := s.now().UnixMilli()

	item := types.Item{
		ID:          id.String(),
		Type:        itemType,
		ItemName:    in.ItemName,
		Location:    in.Location,
		Description: in.Description,
		Contact:     in.Contact,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if upload != nil {
		url, err := s.assets.Save(ctx, item.ID, *upload)
		if err != nil {
			return types.Item{}, err
		}
		item.ImageURL = &url
	}

	if err := s.store.InsertItem(ctx, item); err != nil {
		// The row is live in memory; its image must stay with it.
		if !errors.Is(err, store.ErrNotPersisted) && item.ImageURL != nil {
			if cleanupErr := s.assets.Delete(context.WithoutCancel(ctx), *item.ImageURL); cleanupErr != nil {
				s.logger.Error("remove orphaned image", zap.String("item_id", item.ID), zap.Error(cleanupErr))
			}
		}
		return types.Item{}, &BackendError{Op: "create item", Err: err}
	}

	s.events.ItemChanged(ctx, mq.EventItemCreated, item, now)
	return item, nil
}

// Update changes the description. A nil description means the request
// carried no updatable field.
func (s *ItemService) Update(ctx context.Context, id string, description *string) error {
	if description == nil {
		return &ValidationError{Problems: []string{NoFieldsToUpdate}}
	}

	now := s.now().UnixMilli()
	if err := s.store.UpdateDescription(ctx, id, *description, now); err != nil {
		return s.storeError("update item", err)
	}

	s.events.ItemChanged(ctx, mq.EventItemUpdated, types.Item{ID: id}, now)
	return nil
}

// Delete removes the item and then its image. A failed image removal is
// logged; the item is already gone.
func (s *ItemService) Delete(ctx context.Context, id string) error {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return s.storeError("delete item", err)
	}
	if err := s.store.DeleteItem(ctx, id); err != nil {
		return s.storeError("delete item", err)
	}

	if item.ImageURL != nil {
		if err := s.assets.Delete(context.WithoutCancel(ctx), *item.ImageURL); err != nil {
			s.logger.Warn("remove item image", zap.String("item_id", id), zap.Error(err))
		}
	}

	s.events.ItemChanged(ctx, mq.EventItemDeleted, item, s.now().UnixMilli())
	return nil
}

// RevealContact returns the unmasked contact of one item.
func (s *ItemService) RevealContact(ctx context.Context, id string) (string, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return item.Contact, nil
}

// Ready reports whether the store answers.
func (s *ItemService) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return &BackendError{Op: "ping store", Err: err}
	}
	return nil
}

func (s *ItemService) storeError(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	return &BackendError{Op: op, Err: err}
}
