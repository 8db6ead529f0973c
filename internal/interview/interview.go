package interview

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned by SessionStore.Get when no session has the requested id.
var ErrSessionNotFound = errors.New("interview session not found")

// Defaults applied when the session or its interview agent cannot be loaded.
const (
	DefaultRole           = "Software Engineer"
	DefaultTotalQuestions = 6
)

type SessionStatus string

const (
	StatusScheduled  SessionStatus = "SCHEDULED"
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusAbandoned  SessionStatus = "ABANDONED"
	StatusCheated    SessionStatus = "CHEATED"
)

// Statuses lists every session status.
var Statuses = []SessionStatus{
	StatusScheduled,
	StatusInProgress,
	StatusCompleted,
	StatusAbandoned,
	StatusCheated,
}

// Final reports whether a session in this status must not be moved to ABANDONED.
func (s SessionStatus) Final() bool {
	return s == StatusCompleted || s == StatusCheated
}

// FinalStatuses returns the statuses for which Final is true.
func FinalStatuses() []SessionStatus {
	var final []SessionStatus
	for _, s := range Statuses {
		if s.Final() {
			final = append(final, s)
		}
	}
	return final
}

type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleSystem    Role = "SYSTEM"
)

// RoleFromHistory maps the lowercase roles used in conversation history payloads.
func RoleFromHistory(role string) Role {
	switch role {
	case "user":
		return RoleUser
	case "assistant":
		return RoleAssistant
	default:
		return RoleSystem
	}
}

type QuestionSource string

const (
	SourceAIGenerated QuestionSource = "AI_GENERATED"
	SourceCustom      QuestionSource = "CUSTOM"
)

// Session is the read model handlers need about a candidate interview session.
type Session struct {
	ID             int64
	InterviewID    int64
	Status         SessionStatus
	JobDescription string
	Role           string
	TotalQuestions int
	StartedAt      *time.Time
	CompletedAt    *time.Time
	PriorResults   []QuestionResult
}

// Transition carries the timestamps and metadata recorded with a status change.
type Transition struct {
	At     time.Time
	Reason string
}

// ConversationTurn is one asked-and-answered question within a session.
type ConversationTurn struct {
	ID                   int64
	SessionID            int64
	InterviewID          int64
	QuestionNumber       int
	Question             string
	Category             string
	Difficulty           string
	Source               QuestionSource
	InterviewQuestionID  *int64
	Answer               string
	QuestionAskedAt      time.Time
	AnswerStartedAt      *time.Time
	AnswerEndedAt        *time.Time
	ThinkingTime         *float64
	AnswerDuration       *float64
	StrugglingIndicators int
	ConfidenceScore      float64
}

type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// QuestionFeedback is the per-turn evaluation produced by the answer analyzer.
// Scores are in [1,10].
type QuestionFeedback struct {
	ConversationID       int64
	AnswerQuality        int
	TechnicalAccuracy    int
	CommunicationClarity int
	ProblemSolvingSkill  int
	Strengths            []string
	Weaknesses           []string
	Suggestions          []string
	ExpectedKeywords     []string
	MentionedKeywords    []string
	MissedKeywords       []string
	Feedback             string
}

// QuestionResult holds per-turn scores in [0,100] derived from QuestionFeedback.
type QuestionResult struct {
	SessionID            int64
	ConversationID       int64
	QuestionNumber       int
	OverallQuestionScore int
	TechnicalScore       int
	CommunicationScore   int
	ProblemSolvingScore  int
	ConfidenceScore      float64
	DifficultyWeight     float64
	HintUsed             bool
	Skipped              bool
}

type Decision string

const (
	DecisionStrongHire   Decision = "STRONG_HIRE"
	DecisionHire         Decision = "HIRE"
	DecisionBorderline   Decision = "BORDERLINE"
	DecisionNoHire       Decision = "NO_HIRE"
	DecisionStrongNoHire Decision = "STRONG_NO_HIRE"
)

// Decisions lists every valid hiring decision.
var Decisions = []Decision{
	DecisionStrongHire,
	DecisionHire,
	DecisionBorderline,
	DecisionNoHire,
	DecisionStrongNoHire,
}

func (d Decision) Valid() bool {
	for _, known := range Decisions {
		if d == known {
			return true
		}
	}
	return false
}

// Improvement plan phase keys.
const (
	PhaseDays1To2 = "day1-2"
	PhaseDays3To4 = "day3-4"
	PhaseDays5To6 = "day5-6"
	PhaseDay7     = "day7"
)

// PlanPhases lists the fixed improvement plan keys in order.
var PlanPhases = []string{PhaseDays1To2, PhaseDays3To4, PhaseDays5To6, PhaseDay7}

// InterviewResult is the whole-session report. Scores are in [0,100].
type InterviewResult struct {
	InterviewID          int64
	SessionID            int64
	UserID               int64
	OverallScore         int
	TechnicalScore       int
	CommunicationScore   int
	ProblemSolvingScore  int
	CultureFitScore      int
	SkillScores          map[string]int
	TopStrengths         []string
	TopWeaknesses        []string
	Decision             Decision
	RoleReadinessPercent int
	ImprovementPlan      map[string][]string
	DetailedFeedback     string
	TranscriptSummary    string
	TotalQuestions       int
	QuestionsAnswered    int
	QuestionsSkipped     int
	AvgResponseTime      float64
	AvgConfidence        float64
	TotalHintsUsed       int
	DurationMinutes      int
}
