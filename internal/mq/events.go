package mq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lostfound/apiserver/types"
)

// EventType names an item lifecycle change.
type EventType string

const (
	EventItemCreated EventType = "item.created"
	EventItemUpdated EventType = "item.updated"
	EventItemDeleted EventType = "item.deleted"
)

// publishTimeout bounds a single publish.
const publishTimeout = 5 * time.Second

// ItemEvent is the JSON body of every published message. Contact details
// never leave the process.
type ItemEvent struct {
	Type     EventType      `json:"type"`
	ItemID   string         `json:"itemId"`
	ItemType types.ItemType `json:"itemType,omitempty"`
	ItemName string         `json:"itemName,omitempty"`
	At       int64          `json:"at"`
}

// Publisher sends item events on a single channel. Sends run in the
// background; failures are logged and swallowed.
type Publisher struct {
	backend Backend
	channel string
	logger  *zap.Logger

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewPublisher wraps backend. A nil backend behaves like NoopBackend.
func NewPublisher(backend Backend, channel string, logger *zap.Logger) *Publisher {
	if backend == nil {
		backend = NoopBackend{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{backend: backend, channel: channel, logger: logger}
}

// ItemChanged queues one event describing item and returns without waiting
// for the broker.
func (p *Publisher) ItemChanged(ctx context.Context, eventType EventType, item types.Item, at int64) {
	event := ItemEvent{
		Type:     eventType,
		ItemID:   item.ID,
		ItemType: item.Type,
		ItemName: item.ItemName,
		At:       at,
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("encode item event", zap.Error(err))
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("publisher closed, dropping item event",
			zap.String("event", string(eventType)),
			zap.String("item_id", item.ID))
		return
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer p.inflight.Done()
		p.publish(ctx, eventType, item.ID, data)
	}()
}

func (p *Publisher) publish(ctx context.Context, eventType EventType, itemID string, data []byte) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	id, err := p.backend.Publish(ctx, p.channel, data, map[string]string{"type": string(eventType)})
	if err != nil {
		p.logger.Warn("publish item event",
			zap.String("event", string(eventType)),
			zap.String("item_id", itemID),
			zap.Error(err))
		return
	}
	p.logger.Debug("published item event",
		zap.String("event", string(eventType)),
		zap.String("item_id", itemID),
		zap.String("message_id", id))
}

// Tail subscribes to the channel and hands each decoded event to fn until
// ctx is cancelled. Undecodable messages are acked and skipped.
func (p *Publisher) Tail(ctx context.Context, fn func(ItemEvent) error) error {
	return p.backend.Subscribe(ctx, p.channel, func(ctx context.Context, msg Message) error {
		var event ItemEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			p.logger.Warn("skip malformed event", zap.String("message_id", msg.ID), zap.Error(err))
			return nil
		}
		return fn(event)
	})
}

// Close stops accepting events, waits for queued sends to finish and
// releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.inflight.Wait()
	return p.backend.Close()
}
