package gormstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/interview-worker/internal/interview"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	store, err := Open(DriverSQLite, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedSession(t *testing.T, s *Store, status interview.SessionStatus) *CandidateSession {
	t.Helper()

	agent := InterviewAgent{Role: "Backend Engineer", JobDescription: "Go, Redis, Postgres", TotalQuestions: 5}
	require.NoError(t, s.db.Create(&agent).Error)

	session := CandidateSession{InterviewID: 10, UserID: 20, InterviewAgentID: &agent.ID, Status: string(status)}
	require.NoError(t, s.db.Create(&session).Error)
	return &session
}

func reload(t *testing.T, s *Store, id int64) CandidateSession {
	t.Helper()
	var record CandidateSession
	require.NoError(t, s.db.First(&record, id).Error)
	return record
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "", nil)
	require.Error(t, err)
}

func TestStartKeepsFirstStartedAt(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	session := seedSession(t, store, interview.StatusScheduled)

	first := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.TransitionTo(ctx, session.ID, interview.StatusInProgress, interview.Transition{At: first}))
	require.NoError(t, store.TransitionTo(ctx, session.ID, interview.StatusInProgress, interview.Transition{At: first.Add(time.Hour)}))

	record := reload(t, store, session.ID)
	assert.Equal(t, string(interview.StatusInProgress), record.Status)
	require.NotNil(t, record.StartedAt)
	assert.True(t, record.StartedAt.Equal(first), "startedAt changed on replay: %s", record.StartedAt)
}

func TestEndKeepsFirstCompletedAt(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	session := seedSession(t, store, interview.StatusInProgress)

	first := time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC)
	require.NoError(t, store.TransitionTo(ctx, session.ID, interview.StatusCompleted, interview.Transition{At: first}))
	require.NoError(t, store.TransitionTo(ctx, session.ID, interview.StatusCompleted, interview.Transition{At: first.Add(time.Minute)}))

	record := reload(t, store, session.ID)
	assert.Equal(t, string(interview.StatusCompleted), record.Status)
	require.NotNil(t, record.CompletedAt)
	assert.True(t, record.CompletedAt.Equal(first))
}

func TestTransitionMissingSession(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	at := interview.Transition{At: time.Now()}

	err := store.TransitionTo(ctx, 404, interview.StatusInProgress, at)
	assert.True(t, errors.Is(err, interview.ErrSessionNotFound))

	require.NoError(t, store.TransitionTo(ctx, 404, interview.StatusAbandoned, at), "abandoning a missing session is a no-op")
}

func TestAbandonGuardsFinishedSessions(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	at := interview.Transition{At: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC), Reason: "closed tab"}

	for _, status := range []interview.SessionStatus{interview.StatusCompleted, interview.StatusCheated} {
		session := seedSession(t, store, status)
		require.NoError(t, store.TransitionTo(ctx, session.ID, interview.StatusAbandoned, at))

		record := reload(t, store, session.ID)
		assert.Equal(t, string(status), record.Status)
		assert.Nil(t, record.AbandonedAt)
	}

	active := seedSession(t, store, interview.StatusInProgress)
	require.NoError(t, store.TransitionTo(ctx, active.ID, interview.StatusAbandoned, at))

	record := reload(t, store, active.ID)
	assert.Equal(t, string(interview.StatusAbandoned), record.Status)
	assert.Equal(t, "closed tab", record.AbandonReason)
	require.NotNil(t, record.AbandonedAt)
	assert.True(t, record.AbandonedAt.Equal(at.At))
}

func TestGetSession(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	session := seedSession(t, store, interview.StatusInProgress)

	require.NoError(t, store.CreateResult(ctx, &interview.QuestionResult{SessionID: session.ID, QuestionNumber: 1, ConfidenceScore: 0.8}))
	require.NoError(t, store.CreateResult(ctx, &interview.QuestionResult{SessionID: session.ID, QuestionNumber: 2, ConfidenceScore: 0.4}))

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", got.Role)
	assert.Equal(t, "Go, Redis, Postgres", got.JobDescription)
	assert.Equal(t, 5, got.TotalQuestions)
	assert.Equal(t, interview.StatusInProgress, got.Status)
	assert.Len(t, got.PriorResults, 2)

	_, err = store.Get(ctx, 999)
	assert.ErrorIs(t, err, interview.ErrSessionNotFound)
}

func TestGetSessionWithoutAgent(t *testing.T) {
	store := setupStore(t)
	session := CandidateSession{InterviewID: 1, Status: string(interview.StatusScheduled)}
	require.NoError(t, store.db.Create(&session).Error)

	got, err := store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Role)
	assert.Zero(t, got.TotalQuestions)
}

func TestCreateTurnAndMessages(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	asked := time.Date(2025, 3, 14, 10, 5, 0, 0, time.UTC)
	questionID := int64(77)
	duration := 42.5

	turn := &interview.ConversationTurn{
		SessionID:            1,
		InterviewID:          2,
		QuestionNumber:       3,
		Question:             "Explain X",
		Source:               interview.SourceCustom,
		InterviewQuestionID:  &questionID,
		Answer:               "X does Y",
		QuestionAskedAt:      asked,
		AnswerDuration:       &duration,
		StrugglingIndicators: 1,
		ConfidenceScore:      0.8,
	}
	id, err := store.CreateTurn(ctx, turn)
	require.NoError(t, err)
	assert.Equal(t, id, turn.ID)

	require.NoError(t, store.AppendMessages(ctx, id, []interview.Message{
		{Role: interview.RoleAssistant, Content: "Explain X", Timestamp: asked},
		{Role: interview.RoleUser, Content: "X does Y", Timestamp: asked},
	}))
	require.NoError(t, store.AppendMessages(ctx, id, nil))

	var record ConversationRecord
	require.NoError(t, store.db.Preload("Messages").First(&record, id).Error)
	assert.Equal(t, "CUSTOM", record.QuestionSource)
	require.NotNil(t, record.InterviewQuestionID)
	assert.Equal(t, int64(77), *record.InterviewQuestionID)
	require.NotNil(t, record.AnswerDuration)
	assert.InDelta(t, 42.5, *record.AnswerDuration, 0.001)
	require.Len(t, record.Messages, 2)
	assert.Equal(t, "ASSISTANT", record.Messages[0].Role)
	assert.Equal(t, "USER", record.Messages[1].Role)
}

func TestFeedbackIsNotDeduplicated(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	feedback := &interview.QuestionFeedback{
		ConversationID:   1,
		AnswerQuality:    8,
		Strengths:        []string{"clear"},
		MissedKeywords:   []string{"idempotency"},
		ExpectedKeywords: nil,
		Feedback:         "Good answer.",
	}
	require.NoError(t, store.CreateFeedback(ctx, feedback))
	require.NoError(t, store.CreateFeedback(ctx, feedback))

	var records []QuestionFeedbackRecord
	require.NoError(t, store.db.Find(&records).Error)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"clear"}, records[0].Strengths)
	assert.Equal(t, []string{"idempotency"}, records[0].MissedKeywords)
	assert.Equal(t, []string{}, records[0].ExpectedKeywords)

	result := &interview.QuestionResult{SessionID: 1, QuestionNumber: 1, OverallQuestionScore: 75}
	require.NoError(t, store.CreateResult(ctx, result))
	require.NoError(t, store.CreateResult(ctx, result))

	var count int64
	require.NoError(t, store.db.Model(&QuestionResultRecord{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestInterviewResultIsCreatedOnce(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	result := &interview.InterviewResult{
		InterviewID:     1,
		SessionID:       2,
		UserID:          3,
		OverallScore:    81,
		Decision:        interview.DecisionHire,
		SkillScores:     map[string]int{"go": 85},
		TopStrengths:    []string{"concurrency"},
		ImprovementPlan: map[string][]string{interview.PhaseDay7: {"Final practice"}},
		DurationMinutes: 42,
	}
	require.NoError(t, store.CreateInterviewResult(ctx, result))

	replay := *result
	replay.OverallScore = 10
	require.NoError(t, store.CreateInterviewResult(ctx, &replay))

	var records []InterviewResultRecord
	require.NoError(t, store.db.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, 81, records[0].OverallScore)
	assert.Equal(t, "HIRE", records[0].Decision)
	assert.Equal(t, map[string]int{"go": 85}, records[0].SkillScores)
	assert.Equal(t, []string{"Final practice"}, records[0].ImprovementPlan[interview.PhaseDay7])
	assert.Equal(t, 42, records[0].InterviewDuration)
	assert.Equal(t, []string{}, records[0].TopWeaknesses)
}

func TestPing(t *testing.T) {
	store := setupStore(t)
	require.NoError(t, store.Ping(context.Background()))
}
