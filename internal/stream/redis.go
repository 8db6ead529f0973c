package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/interview-worker/internal/events"
)

// Dead-letter entry fields in addition to event and payload.
const (
	FieldReason   = "reason"
	FieldSourceID = "source_id"
)

type RedisOptions struct {
	Stream   string
	Group    string
	Consumer string
	// DeadLetter is the stream poison entries are copied to. Empty disables dead-lettering.
	DeadLetter string
	// ClaimMinIdle enables claiming entries other consumers left pending for at least this long.
	ClaimMinIdle time.Duration
}

// RedisBroker implements Broker over Redis Streams.
type RedisBroker struct {
	client redis.UniversalClient
	opts   RedisOptions
	logger *zap.Logger
}

// DefaultConsumerName names a consumer after its host so a restarted worker reads
// back the entries its predecessor left pending. instance tells apart several
// workers on one host; their leftovers are recovered through ClaimMinIdle.
func DefaultConsumerName(hostname, instance string) string {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		hostname = "unknown"
	}
	if instance = strings.TrimSpace(instance); instance == "" {
		return "consumer_" + hostname
	}
	return "consumer_" + hostname + "_" + instance
}

func NewRedisBroker(client redis.UniversalClient, opts RedisOptions, logger *zap.Logger) (*RedisBroker, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Stream == "" || opts.Group == "" || opts.Consumer == "" {
		return nil, errors.New("stream, group and consumer names are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisBroker{
		client: client,
		opts:   opts,
		logger: logger.With(zap.String("stream", opts.Stream), zap.String("group", opts.Group)),
	}, nil
}

func (b *RedisBroker) EnsureGroup(ctx context.Context) error {
	err := b.client.XGroupCreateMkStream(ctx, b.opts.Stream, b.opts.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	if err != nil {
		b.logger.Debug("consumer group already exists")
	}
	return nil
}

func (b *RedisBroker) ReadPending(ctx context.Context, count int) ([]Message, error) {
	if b.opts.ClaimMinIdle > 0 {
		claimed, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   b.opts.Stream,
			Group:    b.opts.Group,
			Consumer: b.opts.Consumer,
			MinIdle:  b.opts.ClaimMinIdle,
			Start:    "0-0",
			Count:    int64(count),
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("claim idle entries: %w", err)
		}
		if len(claimed) > 0 {
			b.logger.Info("claimed idle entries", zap.Int("count", len(claimed)))
		}
	}

	// A non-negative Block is always sent, and pending reads must not block.
	messages, err := b.read(ctx, "0", count, -1)
	if err != nil || len(messages) == 0 {
		return messages, err
	}

	pending, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   b.opts.Stream,
		Group:    b.opts.Group,
		Start:    messages[0].ID,
		End:      messages[len(messages)-1].ID,
		Count:    int64(len(messages)),
		Consumer: b.opts.Consumer,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read delivery counts: %w", err)
	}

	counts := make(map[string]int64, len(pending))
	for _, p := range pending {
		counts[p.ID] = p.RetryCount
	}
	for i := range messages {
		messages[i].Deliveries = counts[messages[i].ID]
	}

	return messages, nil
}

func (b *RedisBroker) ReadNew(ctx context.Context, count int, block time.Duration) ([]Message, error) {
	if block <= 0 {
		block = -1
	}
	return b.read(ctx, ">", count, block)
}

func (b *RedisBroker) read(ctx context.Context, id string, count int, block time.Duration) ([]Message, error) {
	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.opts.Group,
		Consumer: b.opts.Consumer,
		Streams:  []string{b.opts.Stream, id},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read group from %q: %w", id, err)
	}

	var messages []Message
	for _, s := range streams {
		for _, m := range s.Messages {
			messages = append(messages, Message{ID: m.ID, Values: m.Values})
		}
	}
	return messages, nil
}

func (b *RedisBroker) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := b.client.XAck(ctx, b.opts.Stream, b.opts.Group, ids...).Err(); err != nil {
		return fmt.Errorf("ack %v: %w", ids, err)
	}
	return nil
}

func (b *RedisBroker) DeadLetter(ctx context.Context, msg Message, reason string) error {
	if b.opts.DeadLetter == "" {
		return nil
	}

	values := map[string]any{
		events.FieldEvent:   valueString(msg.Values[events.FieldEvent]),
		events.FieldPayload: valueString(msg.Values[events.FieldPayload]),
		FieldReason:         reason,
		FieldSourceID:       msg.ID,
	}
	id, err := b.client.XAdd(ctx, &redis.XAddArgs{Stream: b.opts.DeadLetter, Values: values}).Result()
	if err != nil {
		return fmt.Errorf("dead-letter %s: %w", msg.ID, err)
	}

	b.logger.Warn("entry moved to dead-letter stream",
		zap.String("message_id", msg.ID),
		zap.String("dead_letter_id", id),
		zap.String(FieldReason, reason),
	)
	return nil
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

func valueString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
