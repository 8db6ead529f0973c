package interview

import "context"

// SessionStore persists session status transitions and exposes the job context of a session.
type SessionStore interface {
	// TransitionTo moves the session to status. Starting keeps an existing startedAt,
	// completing keeps an existing completedAt, and abandoning is a no-op for
	// sessions that are missing or already in a final status.
	TransitionTo(ctx context.Context, sessionID int64, status SessionStatus, t Transition) error
	// Get returns ErrSessionNotFound when the session does not exist.
	Get(ctx context.Context, sessionID int64) (*Session, error)
}

type ConversationStore interface {
	CreateTurn(ctx context.Context, turn *ConversationTurn) (int64, error)
	AppendMessages(ctx context.Context, turnID int64, messages []Message) error
}

type FeedbackStore interface {
	CreateFeedback(ctx context.Context, feedback *QuestionFeedback) error
	CreateResult(ctx context.Context, result *QuestionResult) error
}

type ResultStore interface {
	CreateInterviewResult(ctx context.Context, result *InterviewResult) error
}
