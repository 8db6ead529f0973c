// Package handlers applies interview session events to the persistence ports and
// the completion-service analyzers.
package handlers

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-worker/internal/ai"
	"github.com/spigell/interview-worker/internal/events"
	"github.com/spigell/interview-worker/internal/interview"
	"github.com/spigell/interview-worker/internal/metrics"
)

// Deps are the collaborators shared by all handlers. Metrics and Now are optional.
type Deps struct {
	Sessions      interview.SessionStore
	Conversations interview.ConversationStore
	Feedback      interview.FeedbackStore
	Results       interview.ResultStore
	Analyzer      ai.AnswerAnalyzer
	Reporter      ai.ReportGenerator
	Metrics       *metrics.Pipeline
	Logger        *zap.Logger
	Now           func() time.Time
}

type Handlers struct {
	sessions      interview.SessionStore
	conversations interview.ConversationStore
	feedback      interview.FeedbackStore
	results       interview.ResultStore
	analyzer      ai.AnswerAnalyzer
	reporter      ai.ReportGenerator
	metrics       *metrics.Pipeline
	logger        *zap.Logger
	now           func() time.Time
}

func New(deps Deps) (*Handlers, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errors.New("session store is required")
	case deps.Conversations == nil:
		return nil, errors.New("conversation store is required")
	case deps.Feedback == nil:
		return nil, errors.New("feedback store is required")
	case deps.Results == nil:
		return nil, errors.New("result store is required")
	case deps.Analyzer == nil:
		return nil, errors.New("answer analyzer is required")
	case deps.Reporter == nil:
		return nil, errors.New("report generator is required")
	}

	h := &Handlers{
		sessions:      deps.Sessions,
		conversations: deps.Conversations,
		feedback:      deps.Feedback,
		results:       deps.Results,
		analyzer:      deps.Analyzer,
		reporter:      deps.Reporter,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		now:           deps.Now,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.now == nil {
		h.now = time.Now
	}

	return h, nil
}

// Register builds the handlers and binds one to every event type. It fails when
// any known event type is left without a handler.
func Register(router *events.Router, deps Deps) (*Handlers, error) {
	h, err := New(deps)
	if err != nil {
		return nil, err
	}

	events.Register(router, events.StartInterview, h.StartInterview)
	events.Register(router, events.EndInterview, h.EndInterview)
	events.Register(router, events.AbandonInterview, h.AbandonInterview)
	events.Register(router, events.QuestionEvaluate, h.QuestionEvaluate)
	events.Register(router, events.GenerateReport, h.GenerateReport)

	if missing := router.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("no handler registered for %v", missing)
	}

	return h, nil
}

// skipInvalid logs a payload that decoded but cannot be used. The message is
// still acknowledged, so nil is returned.
func (h *Handlers) skipInvalid(event events.EventType, err error) error {
	h.logger.Warn("skipping event with invalid identifiers",
		zap.String("event", string(event)),
		zap.Error(err),
	)
	return nil
}
