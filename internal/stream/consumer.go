package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-worker/internal/events"
	"github.com/spigell/interview-worker/internal/logger"
	"github.com/spigell/interview-worker/internal/metrics"
	"github.com/spigell/interview-worker/internal/utils"
)

type State int32

const (
	StateStopped State = iota
	StateInitializing
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

const (
	defaultBatchSize    = 10
	defaultBlock        = 5 * time.Second
	defaultErrorBackoff = time.Second
	maxErrorBackoff     = 30 * time.Second
)

type Options struct {
	BatchSize int
	Block     time.Duration
	// MaxDeliveries dead-letters pending entries delivered more often than this. Zero disables the limit.
	MaxDeliveries int64
	ErrorBackoff  time.Duration
}

// Dispatcher routes a parsed envelope to its handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, env events.Envelope) error
}

// Consumer pulls batches from a Broker and processes them strictly in order.
// Entries are acknowledged only after their handler succeeded or they were
// classified as malformed.
type Consumer struct {
	broker     Broker
	dispatcher Dispatcher
	opts       Options
	logger     *zap.Logger
	metrics    *metrics.Pipeline

	state   atomic.Int32
	running atomic.Bool
}

func NewConsumer(broker Broker, dispatcher Dispatcher, opts Options, log *zap.Logger, m *metrics.Pipeline) *Consumer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Block <= 0 {
		opts.Block = defaultBlock
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = defaultErrorBackoff
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Consumer{
		broker:     broker,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     log,
		metrics:    m,
	}
}

func (c *Consumer) State() State {
	return State(c.state.Load())
}

// Initialize ensures the consumer group exists. It is safe to call repeatedly.
func (c *Consumer) Initialize(ctx context.Context) error {
	c.state.CompareAndSwap(int32(StateStopped), int32(StateInitializing))
	if err := c.broker.EnsureGroup(ctx); err != nil {
		c.state.CompareAndSwap(int32(StateInitializing), int32(StateStopped))
		return err
	}
	c.logger.Info("consumer initialized")
	return nil
}

// Start runs the consume loop until Stop is called or ctx is done. The stop flag
// is checked between batches, so an in-flight batch always runs to completion.
func (c *Consumer) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("consumer is already running")
	}
	defer func() {
		c.running.Store(false)
		c.state.Store(int32(StateStopped))
		c.logger.Info("consumer stopped")
	}()

	if err := c.Initialize(ctx); err != nil {
		return err
	}
	if !c.state.CompareAndSwap(int32(StateInitializing), int32(StateRunning)) {
		// Stop was called during initialization.
		return nil
	}
	c.logger.Info("consumer started")

	failures := 0
	for c.running.Load() && ctx.Err() == nil {
		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			failures++
			backoff := utils.Backoff(failures, c.opts.ErrorBackoff, maxErrorBackoff)
			c.metrics.LoopError()
			c.logger.Error("consumer loop error", zap.Error(err), zap.Duration("backoff", backoff))
			_ = utils.WaitFor(ctx, backoff)
			continue
		}
		failures = 0
	}

	return nil
}

// Stop asks a running consumer to exit after the current batch. It is idempotent.
func (c *Consumer) Stop() {
	if c.running.Swap(false) {
		c.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
		c.state.CompareAndSwap(int32(StateInitializing), int32(StateStopping))
	}
}

func (c *Consumer) poll(ctx context.Context) error {
	pending, err := c.broker.ReadPending(ctx, c.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("read pending entries: %w", err)
	}
	c.metrics.PendingRead(len(pending))
	if err := c.processBatch(ctx, pending); err != nil {
		return err
	}

	fresh, err := c.broker.ReadNew(ctx, c.opts.BatchSize, c.opts.Block)
	if err != nil {
		return fmt.Errorf("read new entries: %w", err)
	}
	return c.processBatch(ctx, fresh)
}

func (c *Consumer) processBatch(ctx context.Context, batch []Message) error {
	for _, msg := range batch {
		if err := c.process(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msg Message) error {
	log := c.logger.With(logger.MessageFields(msg.ID, valueString(msg.Values[events.FieldEvent]))...)

	if c.opts.MaxDeliveries > 0 && msg.Deliveries > c.opts.MaxDeliveries {
		log.Error("entry exceeded max deliveries", zap.Int64("deliveries", msg.Deliveries))
		return c.drop(ctx, msg, "max deliveries exceeded", metrics.OutcomeDeadLettered)
	}

	env, err := events.ParseEnvelope(msg.Values)
	if err != nil {
		log.Warn("could not parse event", zap.Error(err))
		return c.drop(ctx, msg, err.Error(), metrics.OutcomeMalformed)
	}

	started := time.Now()
	err = c.dispatcher.Dispatch(ctx, env)
	switch {
	case errors.Is(err, events.ErrMalformed):
		log.Warn("invalid event payload", zap.Error(err))
		return c.drop(ctx, msg, err.Error(), metrics.OutcomeMalformed)
	case err != nil:
		c.metrics.ObserveMessage(eventLabel(env.Type), metrics.OutcomeFailed, time.Since(started))
		log.Error("error processing message", zap.Error(err))
		return fmt.Errorf("process %s: %w", msg.ID, err)
	}

	if err := c.broker.Ack(ctx, msg.ID); err != nil {
		return err
	}
	c.metrics.ObserveMessage(eventLabel(env.Type), metrics.OutcomeAcked, time.Since(started))
	log.Info("message processed")
	return nil
}

// drop dead-letters and acknowledges an entry that can never be processed.
func (c *Consumer) drop(ctx context.Context, msg Message, reason, outcome string) error {
	if err := c.broker.DeadLetter(ctx, msg, reason); err != nil {
		return err
	}
	if err := c.broker.Ack(ctx, msg.ID); err != nil {
		return err
	}
	c.metrics.ObserveMessage(eventLabel(events.EventType(valueString(msg.Values[events.FieldEvent]))), outcome, 0)
	return nil
}

// eventLabel keeps the metric label set bounded to the known event types.
func eventLabel(t events.EventType) string {
	if !t.Known() {
		return "unknown"
	}
	return string(t)
}

// Running reports whether the consume loop is active.
func (c *Consumer) Running() bool {
	return c.State() == StateRunning
}

func (c *Consumer) StateName() string {
	return c.State().String()
}
