package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/interview-worker/internal/events"
	"github.com/spigell/interview-worker/internal/metrics"
)

// memoryBroker mimics a consumer group with a single consumer: entries read as new
// stay in the pending list until acknowledged.
type memoryBroker struct {
	mu         sync.Mutex
	queue      []Message
	pel        []Message
	deliveries map[string]int64
	acked      []string
	dead       []string
	reasons    map[string]string

	ensureCalls int
	ensureErr   error
	readErrs    []error
	onEmpty     func()
}

func newMemoryBroker(msgs ...Message) *memoryBroker {
	return &memoryBroker{
		queue:      msgs,
		deliveries: make(map[string]int64),
		reasons:    make(map[string]string),
	}
}

func (b *memoryBroker) EnsureGroup(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureCalls++
	return b.ensureErr
}

func (b *memoryBroker) ReadPending(_ context.Context, count int) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.readErrs) > 0 {
		err := b.readErrs[0]
		b.readErrs = b.readErrs[1:]
		return nil, err
	}

	var out []Message
	for _, m := range b.pel {
		if len(out) == count {
			break
		}
		b.deliveries[m.ID]++
		m.Deliveries = b.deliveries[m.ID]
		out = append(out, m)
	}
	return out, nil
}

func (b *memoryBroker) ReadNew(ctx context.Context, count int, _ time.Duration) ([]Message, error) {
	b.mu.Lock()
	n := min(count, len(b.queue))
	out := append([]Message(nil), b.queue[:n]...)
	b.queue = b.queue[n:]
	for _, m := range out {
		b.deliveries[m.ID] = 1
		b.pel = append(b.pel, m)
	}
	onEmpty := b.onEmpty
	b.mu.Unlock()

	if len(out) > 0 {
		return out, nil
	}
	if onEmpty != nil {
		onEmpty()
		return nil, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (b *memoryBroker) Ack(_ context.Context, ids ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		for i, m := range b.pel {
			if m.ID == id {
				b.pel = append(b.pel[:i], b.pel[i+1:]...)
				break
			}
		}
		b.acked = append(b.acked, id)
	}
	return nil
}

func (b *memoryBroker) DeadLetter(_ context.Context, msg Message, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dead = append(b.dead, msg.ID)
	b.reasons[msg.ID] = reason
	return nil
}

func (b *memoryBroker) Ping(context.Context) error { return nil }

func (b *memoryBroker) Close() error { return nil }

func (b *memoryBroker) isAcked(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acked := range b.acked {
		if acked == id {
			return true
		}
	}
	return false
}

type dispatchFunc func(ctx context.Context, env events.Envelope) error

func (f dispatchFunc) Dispatch(ctx context.Context, env events.Envelope) error { return f(ctx, env) }

func entry(id, event, payload string) Message {
	return Message{ID: id, Values: map[string]any{"event": event, "payload": payload}}
}

func runUntilDrained(t *testing.T, c *Consumer, b *memoryBroker) {
	t.Helper()
	b.onEmpty = c.Stop

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		c.Stop()
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, StateStopped, c.State())
}

func TestConsumerProcessesAndAcknowledges(t *testing.T) {
	broker := newMemoryBroker(
		entry("1-0", "start_interview", `{"sessionId":42}`),
		entry("2-0", "end_interview", `{"sessionId":42}`),
	)

	var seen []events.EventType
	var consumer *Consumer
	consumer = NewConsumer(broker, dispatchFunc(func(_ context.Context, env events.Envelope) error {
		assert.Equal(t, StateRunning, consumer.State())
		seen = append(seen, env.Type)
		return nil
	}), Options{}, nil, nil)

	runUntilDrained(t, consumer, broker)

	assert.Equal(t, []events.EventType{events.StartInterview, events.EndInterview}, seen)
	assert.Equal(t, []string{"1-0", "2-0"}, broker.acked)
	assert.Empty(t, broker.pel)
	assert.Equal(t, 1, broker.ensureCalls)
}

func TestConsumerDropsMalformedEntries(t *testing.T) {
	broker := newMemoryBroker(
		Message{ID: "1-0", Values: map[string]any{"event": "start_interview"}},
		entry("2-0", "start_interview", `not json`),
	)

	calls := 0
	consumer := NewConsumer(broker, dispatchFunc(func(_ context.Context, env events.Envelope) error {
		calls++
		return events.ErrMalformed
	}), Options{}, nil, nil)

	runUntilDrained(t, consumer, broker)

	assert.Equal(t, 1, calls, "entries without payload never reach the dispatcher")
	assert.Equal(t, []string{"1-0", "2-0"}, broker.acked)
	assert.Equal(t, []string{"1-0", "2-0"}, broker.dead)
}

func TestConsumerRetriesFailedHandlers(t *testing.T) {
	broker := newMemoryBroker(
		entry("1-0", "question_evaluate", `{"sessionId":1}`),
		entry("2-0", "start_interview", `{"sessionId":1}`),
	)

	attempts := map[string]int{}
	var consumer *Consumer
	consumer = NewConsumer(broker, dispatchFunc(func(_ context.Context, env events.Envelope) error {
		attempts[string(env.Type)]++
		if env.Type == events.QuestionEvaluate && attempts[string(env.Type)] == 1 {
			return errors.New("database unavailable")
		}
		return nil
	}), Options{ErrorBackoff: time.Millisecond}, nil, nil)

	dispatcher := consumer.dispatcher
	consumer.dispatcher = dispatchFunc(func(ctx context.Context, env events.Envelope) error {
		if env.Type == events.StartInterview {
			assert.False(t, broker.isAcked("2-0"))
		}
		err := dispatcher.Dispatch(ctx, env)
		if err != nil {
			assert.False(t, broker.isAcked("1-0"), "failed entries must stay unacknowledged")
		}
		return err
	})

	runUntilDrained(t, consumer, broker)

	assert.Equal(t, 2, attempts[string(events.QuestionEvaluate)])
	assert.Equal(t, 1, attempts[string(events.StartInterview)], "the failed batch stops at the failing entry")
	assert.Equal(t, []string{"1-0", "2-0"}, broker.acked)
	assert.Empty(t, broker.dead)
}

func TestConsumerDeadLettersAfterMaxDeliveries(t *testing.T) {
	broker := newMemoryBroker(entry("1-0", "generate_report", `{"sessionId":1}`))

	calls := 0
	consumer := NewConsumer(broker, dispatchFunc(func(context.Context, events.Envelope) error {
		calls++
		return errors.New("still failing")
	}), Options{MaxDeliveries: 2, ErrorBackoff: time.Millisecond}, nil, nil)

	runUntilDrained(t, consumer, broker)

	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"1-0"}, broker.dead)
	assert.Equal(t, "max deliveries exceeded", broker.reasons["1-0"])
	assert.Equal(t, []string{"1-0"}, broker.acked)
}

func TestConsumerRecoversFromReadErrors(t *testing.T) {
	broker := newMemoryBroker(entry("1-0", "start_interview", `{"sessionId":1}`))
	broker.readErrs = []error{errors.New("connection refused")}

	consumer := NewConsumer(broker, dispatchFunc(func(context.Context, events.Envelope) error { return nil }),
		Options{ErrorBackoff: time.Millisecond}, nil, nil)

	runUntilDrained(t, consumer, broker)

	assert.Equal(t, []string{"1-0"}, broker.acked)
}

func TestConsumerInitializeFailure(t *testing.T) {
	broker := newMemoryBroker()
	broker.ensureErr = errors.New("NOAUTH")

	consumer := NewConsumer(broker, dispatchFunc(func(context.Context, events.Envelope) error { return nil }), Options{}, nil, nil)

	require.ErrorIs(t, consumer.Start(context.Background()), broker.ensureErr)
	assert.Equal(t, StateStopped, consumer.State())
}

func TestConsumerLifecycle(t *testing.T) {
	broker := newMemoryBroker()
	consumer := NewConsumer(broker, dispatchFunc(func(context.Context, events.Envelope) error { return nil }), Options{}, nil, nil)

	assert.Equal(t, StateStopped, consumer.State())
	consumer.Stop()
	consumer.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- consumer.Start(ctx) }()

	require.Eventually(t, func() bool { return consumer.State() == StateRunning }, time.Second, time.Millisecond)
	require.Error(t, consumer.Start(ctx), "a second Start must be rejected")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer ignored context cancellation")
	}
	assert.Equal(t, StateStopped, consumer.State())

	consumer.Stop()
	assert.Equal(t, StateStopped, consumer.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
}

func TestConsumerBoundsEventLabels(t *testing.T) {
	broker := newMemoryBroker(
		entry("1-0", "session_paused_7f3a", `{"sessionId":1}`),
		Message{ID: "2-0", Values: map[string]any{"event": "resume-9c1"}},
		entry("3-0", "start_interview", `{"sessionId":1}`),
	)

	registry := prometheus.NewRegistry()
	pipeline := metrics.New(metrics.WithRegistry(registry))
	consumer := NewConsumer(broker, dispatchFunc(func(context.Context, events.Envelope) error { return nil }),
		Options{}, nil, pipeline)

	runUntilDrained(t, consumer, broker)

	assert.Equal(t, []string{"1-0", "2-0", "3-0"}, broker.acked)
	assert.ElementsMatch(t, []string{"unknown", "start_interview"}, eventLabels(t, registry))
}

func eventLabels(t *testing.T, g prometheus.Gatherer) []string {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)

	seen := map[string]bool{}
	var labels []string
	for _, mf := range families {
		if mf.GetName() != "interview_worker_messages_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "event" && !seen[lp.GetValue()] {
					seen[lp.GetValue()] = true
					labels = append(labels, lp.GetValue())
				}
			}
		}
	}
	return labels
}
