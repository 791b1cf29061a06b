package mq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lostfound/apiserver/config"
	"github.com/lostfound/apiserver/types"
)

type recordingBackend struct {
	mu        sync.Mutex
	published []Message
	channels  []string
	failWith  error
	inbox     []Message
}

func (b *recordingBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return "", b.failWith
	}
	b.channels = append(b.channels, channel)
	b.published = append(b.published, Message{Data: data, Attributes: attrs})
	return "m-1", nil
}

func (b *recordingBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	for _, msg := range b.inbox {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *recordingBackend) Close() error { return nil }

func TestItemChangedPublishesJSON(t *testing.T) {
	backend := &recordingBackend{}
	p := NewPublisher(backend, "lostfound.items", nil)

	item := types.Item{ID: "abc", Type: types.ItemTypeFound, ItemName: "Keys", Contact: "5551234567"}
	p.ItemChanged(context.Background(), EventItemCreated, item, 42)
	require.NoError(t, p.Close())

	require.Len(t, backend.published, 1)
	assert.Equal(t, []string{"lostfound.items"}, backend.channels)
	assert.Equal(t, "item.created", backend.published[0].Attributes["type"])

	var got ItemEvent
	require.NoError(t, json.Unmarshal(backend.published[0].Data, &got))
	assert.Equal(t, ItemEvent{Type: EventItemCreated, ItemID: "abc", ItemType: types.ItemTypeFound, ItemName: "Keys", At: 42}, got)
	assert.NotContains(t, string(backend.published[0].Data), "5551234567")
}

func TestItemChangedSwallowsBrokerErrors(t *testing.T) {
	backend := &recordingBackend{failWith: errors.New("broker down")}
	p := NewPublisher(backend, "c", nil)

	assert.NotPanics(t, func() {
		p.ItemChanged(context.Background(), EventItemDeleted, types.Item{ID: "x"}, 1)
	})
	require.NoError(t, p.Close())
	assert.Empty(t, backend.published)
}

type blockingBackend struct {
	recordingBackend
	release chan struct{}
}

func (b *blockingBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	<-b.release
	return b.recordingBackend.Publish(ctx, channel, data, attrs)
}

func TestItemChangedDoesNotWaitForBroker(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	p := NewPublisher(backend, "c", nil)

	returned := make(chan struct{})
	go func() {
		p.ItemChanged(context.Background(), EventItemUpdated, types.Item{ID: "slow"}, 3)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("ItemChanged blocked on a stalled broker")
	}

	close(backend.release)
	require.NoError(t, p.Close())
	require.Len(t, backend.published, 1)
}

func TestClosedPublisherDropsEvents(t *testing.T) {
	backend := &recordingBackend{}
	p := NewPublisher(backend, "c", nil)
	require.NoError(t, p.Close())

	p.ItemChanged(context.Background(), EventItemCreated, types.Item{ID: "late"}, 1)
	assert.Empty(t, backend.published)
}

func TestTailSkipsMalformed(t *testing.T) {
	good, err := json.Marshal(ItemEvent{Type: EventItemUpdated, ItemID: "a", At: 7})
	require.NoError(t, err)
	backend := &recordingBackend{inbox: []Message{{ID: "1", Data: []byte("{not json")}, {ID: "2", Data: good}}}
	p := NewPublisher(backend, "c", nil)

	var seen []ItemEvent
	require.NoError(t, p.Tail(context.Background(), func(e ItemEvent) error {
		seen = append(seen, e)
		return nil
	}))
	require.Len(t, seen, 1)
	assert.Equal(t, "a", seen[0].ItemID)
}

func TestNewBackend(t *testing.T) {
	ctx := context.Background()

	b, err := NewBackend(ctx, config.EventsConfig{Backend: "none"})
	require.NoError(t, err)
	assert.IsType(t, NoopBackend{}, b)
	assert.ErrorIs(t, b.Subscribe(ctx, "c", nil), ErrNoBroker)

	_, err = NewBackend(ctx, config.EventsConfig{Backend: "kafka"})
	assert.Error(t, err)

	_, err = NewBackend(ctx, config.EventsConfig{Backend: "rabbitmq"})
	assert.Error(t, err)
}

func TestNilBackendPublisher(t *testing.T) {
	p := NewPublisher(nil, "c", nil)
	p.ItemChanged(context.Background(), EventItemCreated, types.Item{ID: "x"}, 1)
	assert.NoError(t, p.Close())
}
