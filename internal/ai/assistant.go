package ai

import (
	"context"

	"github.com/spigell/interview-worker/internal/interview"
)

// Turn is one entry of the conversation history as emitted by the realtime session.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnswerInput is everything the analyzer needs to score one question/answer turn.
type AnswerInput struct {
	Question             string
	Answer               string
	InterviewerUtterance string
	History              []Turn
	JobDescription       string
	Role                 string
	StrugglingIndicators int
	ConfidenceHint       bool
}

// AnswerAnalysis mirrors QuestionFeedback without persistence identifiers.
type AnswerAnalysis struct {
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
	Fallback             bool
}

type ProctoringMetrics struct {
	AvgEngagement    float64 `json:"avgEngagement"`
	FacePresentRatio float64 `json:"facePresentRatio"`
}

// ReportInput is the transcript plus context and metrics used to produce the hiring report.
type ReportInput struct {
	Transcript        []Turn
	JobDescription    string
	Role              string
	TotalQuestions    int
	QuestionsAnswered int
	AvgResponseTime   float64
	AvgConfidence     float64
	TotalHintsUsed    int
	DurationMinutes   int
	Proctoring        *ProctoringMetrics
}

type ReportAnalysis struct {
	OverallScore         int
	TechnicalScore       int
	CommunicationScore   int
	ProblemSolvingScore  int
	CultureFitScore      int
	SkillScores          map[string]int
	TopStrengths         []string
	TopWeaknesses        []string
	Decision             interview.Decision
	RoleReadinessPercent int
	ImprovementPlan      map[string][]string
	DetailedFeedback     string
	TranscriptSummary    string
	Fallback             bool
}

// AnswerAnalyzer scores one answer. Implementations are fail-soft and substitute
// FallbackAnswer instead of returning an error whenever they can.
type AnswerAnalyzer interface {
	AnalyzeAnswer(ctx context.Context, in AnswerInput) (*AnswerAnalysis, error)
}

// ReportGenerator scores a whole transcript with the same fail-soft contract.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, in ReportInput) (*ReportAnalysis, error)
}
