package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/interview-worker/internal/events"
	"github.com/spigell/interview-worker/internal/interview"
	"github.com/spigell/interview-worker/internal/logger"
)

func (h *Handlers) StartInterview(ctx context.Context, p events.StartInterviewPayload) error {
	if err := p.Validate(); err != nil {
		return h.skipInvalid(events.StartInterview, err)
	}

	id := p.SessionID.Int64()
	if err := h.sessions.TransitionTo(ctx, id, interview.StatusInProgress, interview.Transition{At: h.now()}); err != nil {
		return fmt.Errorf("start session %d: %w", id, err)
	}

	logger.WithSession(h.logger, id).Info("interview started")
	return nil
}

func (h *Handlers) EndInterview(ctx context.Context, p events.EndInterviewPayload) error {
	if err := p.Validate(); err != nil {
		return h.skipInvalid(events.EndInterview, err)
	}

	id := p.SessionID.Int64()
	if err := h.sessions.TransitionTo(ctx, id, interview.StatusCompleted, interview.Transition{At: h.now()}); err != nil {
		return fmt.Errorf("complete session %d: %w", id, err)
	}

	logger.WithSession(h.logger, id).Info("interview ended")
	return nil
}

func (h *Handlers) AbandonInterview(ctx context.Context, p events.AbandonInterviewPayload) error {
	if err := p.Validate(); err != nil {
		return h.skipInvalid(events.AbandonInterview, err)
	}

	id := p.SessionID.Int64()
	t := interview.Transition{At: h.now(), Reason: p.Reason}
	if err := h.sessions.TransitionTo(ctx, id, interview.StatusAbandoned, t); err != nil {
		return fmt.Errorf("abandon session %d: %w", id, err)
	}

	logger.WithSession(h.logger, id).Info("interview abandoned", zap.String("reason", p.Reason))
	return nil
}
