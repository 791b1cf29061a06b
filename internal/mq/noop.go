package mq

import (
	"context"
	"errors"
)

// ErrNoBroker is returned by NoopBackend.Subscribe.
var ErrNoBroker = errors.New("no events backend configured")

// NoopBackend drops published messages.
type NoopBackend struct{}

func (NoopBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return "", nil
}

func (NoopBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return ErrNoBroker
}

func (NoopBackend) Close() error { return nil }
