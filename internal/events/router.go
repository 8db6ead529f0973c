package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

type route func(ctx context.Context, payload []byte) error

// Router maps event types to typed handlers.
type Router struct {
	routes map[EventType]route
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		routes: make(map[EventType]route),
		logger: logger,
	}
}

// Register binds handler to eventType. The payload is decoded into T before the
// handler runs; decode failures are reported as ErrMalformed.
func Register[T any](r *Router, eventType EventType, handler func(ctx context.Context, payload T) error) {
	r.routes[eventType] = func(ctx context.Context, raw []byte) error {
		var payload T
		if err := decodePayload(raw, &payload); err != nil {
			return fmt.Errorf("%w: %s payload: %v", ErrMalformed, eventType, err)
		}
		return handler(ctx, payload)
	}
}

// Missing returns the known event types without a registered handler.
func (r *Router) Missing() []EventType {
	var missing []EventType
	for _, t := range Types {
		if _, ok := r.routes[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

// Dispatch decodes the envelope payload and runs its handler. Unknown event types
// are logged and skipped without error.
func (r *Router) Dispatch(ctx context.Context, env Envelope) error {
	handle, ok := r.routes[env.Type]
	if !ok {
		r.logger.Warn("unknown event type", zap.String("event", string(env.Type)))
		return nil
	}

	return handle(ctx, []byte(env.Payload))
}

func decodePayload(raw []byte, target any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return fmt.Errorf("payload must be a json object")
	}
	return json.Unmarshal(raw, target)
}
