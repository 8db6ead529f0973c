// Package stream consumes interview events from a Redis stream consumer group.
package stream

import (
	"context"
	"time"
)

// Message is one stream entry delivered to this consumer.
type Message struct {
	ID     string
	Values map[string]any
	// Deliveries is how many times the entry has been delivered. It is only
	// known for entries read back from the pending entries list.
	Deliveries int64
}

// Broker is the consumer-group protocol the Consumer relies on.
type Broker interface {
	// EnsureGroup creates the consumer group from offset "0" when it does not exist.
	EnsureGroup(ctx context.Context) error
	// ReadPending returns entries already delivered to this consumer but not yet acknowledged.
	ReadPending(ctx context.Context, count int) ([]Message, error)
	// ReadNew blocks up to block for entries never delivered to the group.
	ReadNew(ctx context.Context, count int, block time.Duration) ([]Message, error)
	Ack(ctx context.Context, ids ...string) error
	// DeadLetter copies an entry that will never be processed somewhere it can be inspected.
	DeadLetter(ctx context.Context, msg Message, reason string) error
	Ping(ctx context.Context) error
	Close() error
}
