package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/spigell/interview-worker/internal/ai"
	"github.com/spigell/interview-worker/internal/interview"
)

type transitionCall struct {
	sessionID int64
	status    interview.SessionStatus
	t         interview.Transition
}

// memoryStore implements every persistence port in memory.
type memoryStore struct {
	mu sync.Mutex

	sessions    map[int64]*interview.Session
	transitions []transitionCall
	turns       []*interview.ConversationTurn
	messages    map[int64][]interview.Message
	feedback    []*interview.QuestionFeedback
	results     []*interview.QuestionResult
	reports     []*interview.InterviewResult

	getErr        error
	transitionErr error
	turnErr       error
	messagesErr   error
	feedbackErr   error
	resultErr     error
	reportErr     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sessions: make(map[int64]*interview.Session),
		messages: make(map[int64][]interview.Message),
	}
}

func (s *memoryStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transitions) + len(s.turns) + len(s.feedback) + len(s.results) + len(s.reports)
}

func (s *memoryStore) TransitionTo(_ context.Context, id int64, status interview.SessionStatus, t interview.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transitionErr != nil {
		return s.transitionErr
	}
	s.transitions = append(s.transitions, transitionCall{sessionID: id, status: status, t: t})
	if session, ok := s.sessions[id]; ok {
		session.Status = status
	}
	return nil
}

func (s *memoryStore) Get(_ context.Context, id int64) (*interview.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	session, ok := s.sessions[id]
	if !ok {
		return nil, interview.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *memoryStore) CreateTurn(_ context.Context, turn *interview.ConversationTurn) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turnErr != nil {
		return 0, s.turnErr
	}
	turn.ID = int64(len(s.turns) + 1)
	s.turns = append(s.turns, turn)
	return turn.ID, nil
}

func (s *memoryStore) AppendMessages(_ context.Context, turnID int64, messages []interview.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.messagesErr != nil {
		return s.messagesErr
	}
	s.messages[turnID] = append(s.messages[turnID], messages...)
	return nil
}

func (s *memoryStore) CreateFeedback(_ context.Context, f *interview.QuestionFeedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feedbackErr != nil {
		return s.feedbackErr
	}
	s.feedback = append(s.feedback, f)
	return nil
}

func (s *memoryStore) CreateResult(_ context.Context, r *interview.QuestionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resultErr != nil {
		return s.resultErr
	}
	s.results = append(s.results, r)
	return nil
}

func (s *memoryStore) CreateInterviewResult(_ context.Context, r *interview.InterviewResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reportErr != nil {
		return s.reportErr
	}
	s.reports = append(s.reports, r)
	return nil
}

type stubAnalyzer struct {
	analysis *ai.AnswerAnalysis
	err      error
	calls    int
	last     ai.AnswerInput
}

func (a *stubAnalyzer) AnalyzeAnswer(_ context.Context, in ai.AnswerInput) (*ai.AnswerAnalysis, error) {
	a.calls++
	a.last = in
	if a.err != nil {
		return nil, a.err
	}
	if a.analysis == nil {
		return ai.FallbackAnswer(), nil
	}
	return a.analysis, nil
}

type stubReporter struct {
	report *ai.ReportAnalysis
	err    error
	calls  int
	last   ai.ReportInput
}

func (r *stubReporter) GenerateReport(_ context.Context, in ai.ReportInput) (*ai.ReportAnalysis, error) {
	r.calls++
	r.last = in
	if r.err != nil {
		return nil, r.err
	}
	if r.report == nil {
		return ai.FallbackReport(), nil
	}
	return r.report, nil
}

var fixedNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

func newTestHandlers(store *memoryStore, analyzer *stubAnalyzer, reporter ai.ReportGenerator) *Handlers {
	h, err := New(Deps{
		Sessions:      store,
		Conversations: store,
		Feedback:      store,
		Results:       store,
		Analyzer:      analyzer,
		Reporter:      reporter,
		Now:           func() time.Time { return fixedNow },
	})
	if err != nil {
		panic(err)
	}
	return h
}
