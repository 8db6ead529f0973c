package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-worker/internal/ai"
	"github.com/spigell/interview-worker/internal/events"
	"github.com/spigell/interview-worker/internal/interview"
	"github.com/spigell/interview-worker/internal/logger"
	"github.com/spigell/interview-worker/internal/metrics"
)

const (
	analyzerHistoryTurns = 10
	// confidentThreshold is the derived confidence at which the analyzer is told the
	// candidate appeared confident.
	confidentThreshold = 0.8
)

// jobContext is the part of a session the analyzers use as prompt context.
type jobContext struct {
	role           string
	description    string
	totalQuestions int
	session        *interview.Session
}

// QuestionEvaluate persists the conversation turn and its transcript, then scores the
// answer. Turn persistence errors are returned; the scoring step is best-effort.
func (h *Handlers) QuestionEvaluate(ctx context.Context, p events.QuestionEvaluatePayload) error {
	if err := p.Validate(); err != nil {
		return h.skipInvalid(events.QuestionEvaluate, err)
	}

	sessionID := p.SessionID.Int64()
	log := logger.WithSession(h.logger, sessionID).With(zap.Int("question_number", p.QuestionNumber))

	job, err := h.loadJobContext(ctx, log, sessionID)
	if err != nil {
		return err
	}

	m, err := p.DecodeMetrics()
	if err != nil {
		log.Warn("question metrics partially decoded", zap.Error(err))
	}
	confidence := m.Confidence()

	now := h.now()
	turn := &interview.ConversationTurn{
		SessionID:            sessionID,
		InterviewID:          p.InterviewID.Int64(),
		QuestionNumber:       p.QuestionNumber,
		Question:             p.Question,
		Category:             p.Category,
		Difficulty:           p.Difficulty,
		Source:               interview.SourceAIGenerated,
		Answer:               p.UserResponse,
		QuestionAskedAt:      parseTime(p.QuestionAskedAt, now),
		AnswerStartedAt:      parseOptionalTime(p.AnswerStartedAt),
		AnswerEndedAt:        ptr(parseTime(p.AnswerEndedAt, now)),
		ThinkingTime:         p.ThinkingTime,
		AnswerDuration:       p.AnswerDuration,
		StrugglingIndicators: m.StrugglingIndicators,
		ConfidenceScore:      confidence,
	}
	if p.InterviewQuestionID.Valid() {
		turn.Source = interview.SourceCustom
		turn.InterviewQuestionID = ptr(p.InterviewQuestionID.Int64())
	}

	turnID, err := h.conversations.CreateTurn(ctx, turn)
	if err != nil {
		return fmt.Errorf("create conversation turn: %w", err)
	}

	if err := h.conversations.AppendMessages(ctx, turnID, transcript(p.ConversationHistory, now)); err != nil {
		return fmt.Errorf("append transcript to turn %d: %w", turnID, err)
	}

	h.scoreAnswer(ctx, log, p, job, turnID, m, confidence)

	log.Info("question evaluated", zap.Int64("conversation_id", turnID))
	return nil
}

func (h *Handlers) scoreAnswer(
	ctx context.Context,
	log *zap.Logger,
	p events.QuestionEvaluatePayload,
	job jobContext,
	turnID int64,
	m events.QuestionMetrics,
	confidence float64,
) {
	analysis, err := h.analyzer.AnalyzeAnswer(ctx, ai.AnswerInput{
		Question:             p.Question,
		Answer:               p.UserResponse,
		InterviewerUtterance: p.AIResponse,
		History:              lastTurns(p.ConversationHistory, analyzerHistoryTurns),
		JobDescription:       job.description,
		Role:                 job.role,
		StrugglingIndicators: m.StrugglingIndicators,
		ConfidenceHint:       confidence >= confidentThreshold,
	})
	if err != nil || analysis == nil {
		log.Error("answer analysis failed, skipping feedback", zap.Error(err))
		return
	}
	h.metrics.ObserveAnalysis(metrics.AnalysisAnswer, analysis.Fallback)

	feedback := &interview.QuestionFeedback{
		ConversationID:       turnID,
		AnswerQuality:        analysis.AnswerQuality,
		TechnicalAccuracy:    analysis.TechnicalAccuracy,
		CommunicationClarity: analysis.CommunicationClarity,
		ProblemSolvingSkill:  analysis.ProblemSolvingSkill,
		Strengths:            analysis.Strengths,
		Weaknesses:           analysis.Weaknesses,
		Suggestions:          analysis.Suggestions,
		ExpectedKeywords:     analysis.ExpectedKeywords,
		MentionedKeywords:    analysis.MentionedKeywords,
		MissedKeywords:       analysis.MissedKeywords,
		Feedback:             analysis.Feedback,
	}
	if err := h.feedback.CreateFeedback(ctx, feedback); err != nil {
		log.Error("persist question feedback failed", zap.Error(err))
		return
	}

	if err := h.feedback.CreateResult(ctx, questionResult(p, turnID, analysis, confidence)); err != nil {
		log.Error("persist question result failed", zap.Error(err))
	}
}

// questionResult scales the analyzer's 1-10 scores to 0-100.
func questionResult(p events.QuestionEvaluatePayload, turnID int64, a *ai.AnswerAnalysis, confidence float64) *interview.QuestionResult {
	mean := float64(a.AnswerQuality+a.TechnicalAccuracy+a.CommunicationClarity+a.ProblemSolvingSkill) / 4

	return &interview.QuestionResult{
		SessionID:            p.SessionID.Int64(),
		ConversationID:       turnID,
		QuestionNumber:       p.QuestionNumber,
		OverallQuestionScore: clampPercent(int(math.Round(mean * 10))),
		TechnicalScore:       clampPercent(a.TechnicalAccuracy * 10),
		CommunicationScore:   clampPercent(a.CommunicationClarity * 10),
		ProblemSolvingScore:  clampPercent(a.ProblemSolvingSkill * 10),
		ConfidenceScore:      confidence,
		DifficultyWeight:     1,
	}
}

// loadJobContext returns defaults when the session does not exist. Other store
// errors are returned so the message is retried.
func (h *Handlers) loadJobContext(ctx context.Context, log *zap.Logger, sessionID int64) (jobContext, error) {
	job := jobContext{
		role:           interview.DefaultRole,
		totalQuestions: interview.DefaultTotalQuestions,
	}

	session, err := h.sessions.Get(ctx, sessionID)
	if errors.Is(err, interview.ErrSessionNotFound) {
		log.Warn("session not found, using default job context")
		return job, nil
	}
	if err != nil {
		return job, fmt.Errorf("load session %d: %w", sessionID, err)
	}

	job.session = session
	if role := strings.TrimSpace(session.Role); role != "" {
		job.role = role
	}
	if session.TotalQuestions > 0 {
		job.totalQuestions = session.TotalQuestions
	}
	job.description = session.JobDescription

	return job, nil
}

func transcript(history []ai.Turn, at time.Time) []interview.Message {
	messages := make([]interview.Message, 0, len(history))
	for _, turn := range history {
		messages = append(messages, interview.Message{
			Role:      interview.RoleFromHistory(turn.Role),
			Content:   turn.Content,
			Timestamp: at,
		})
	}
	return messages
}

func lastTurns(history []ai.Turn, n int) []ai.Turn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func parseTime(raw string, def time.Time) time.Time {
	if t := parseOptionalTime(raw); t != nil {
		return *t
	}
	return def
}

func parseOptionalTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999Z07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func clampPercent(v int) int {
	return min(max(v, 0), 100)
}

func ptr[T any](v T) *T {
	return &v
}
