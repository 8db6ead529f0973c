package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spigell/interview-worker/internal/events"
)

// Publisher appends event envelopes to a stream.
type Publisher struct {
	client redis.Cmdable
	stream string
	now    func() time.Time
}

func NewPublisher(client redis.Cmdable, stream string) *Publisher {
	return &Publisher{client: client, stream: stream, now: time.Now}
}

// Publish appends one envelope and returns its entry id. payload may be a JSON
// string, raw JSON bytes, or any value that is marshaled to JSON.
func (p *Publisher) Publish(ctx context.Context, eventType events.EventType, payload any) (string, error) {
	if !eventType.Known() {
		return "", fmt.Errorf("unknown event type %q", eventType)
	}

	var body string
	switch v := payload.(type) {
	case string:
		body = v
	case []byte:
		body = string(v)
	case json.RawMessage:
		body = string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode %s payload: %w", eventType, err)
		}
		body = string(data)
	}
	if !json.Valid([]byte(body)) {
		return "", errors.New("payload is not valid json")
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: []any{
			events.FieldEvent, string(eventType),
			events.FieldPayload, body,
			events.FieldTS, strconv.FormatInt(p.now().UnixMilli(), 10),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", eventType, err)
	}

	return id, nil
}
