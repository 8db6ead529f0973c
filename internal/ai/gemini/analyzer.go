package gemini

import (
	"context"
	"fmt"
	"strings"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/interview-worker/internal/ai"
)

type completer interface {
	CompleteJSON(ctx context.Context, req Request) (string, error)
}

const (
	answerJobDescriptionLimit = 1500
	answerHistoryTurns        = 10
	answerTemperature         = 0.3
	answerMaxTokens           = 800
)

//go:embed prompts/answer_system.md
var answerSystemPrompt string

//go:embed prompts/answer_user.md
var answerUserTemplate string

// Analyzer scores a single answer through the completion service.
type Analyzer struct {
	completer completer
	logger    *zap.Logger
}

func NewAnalyzer(c completer, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{completer: c, logger: logger}
}

// AnalyzeAnswer never returns an error: any completion or parse failure yields ai.FallbackAnswer.
func (a *Analyzer) AnalyzeAnswer(ctx context.Context, in ai.AnswerInput) (*ai.AnswerAnalysis, error) {
	if a.completer == nil {
		a.logger.Warn("completion service is not configured, using fallback answer analysis")
		return ai.FallbackAnswer(), nil
	}

	raw, err := a.completer.CompleteJSON(ctx, Request{
		System:          answerSystemPrompt,
		User:            buildAnswerPrompt(in),
		Temperature:     answerTemperature,
		MaxOutputTokens: answerMaxTokens,
	})
	if err != nil {
		a.logger.Error("question feedback analysis failed", zap.Error(err))
		return ai.FallbackAnswer(), nil
	}

	analysis, err := parseAnswer(raw)
	if err != nil {
		a.logger.Error("question feedback analysis failed", zap.Error(err))
		return ai.FallbackAnswer(), nil
	}

	return analysis, nil
}

func buildAnswerPrompt(in ai.AnswerInput) string {
	notes := ""
	if in.StrugglingIndicators > 0 {
		notes = fmt.Sprintf("Note: Candidate showed %d struggling indicators.", in.StrugglingIndicators)
	}
	if in.ConfidenceHint {
		notes = strings.TrimSpace(notes + "\nNote: Candidate appeared confident.")
	}

	r := strings.NewReplacer(
		"{{ROLE}}", in.Role,
		"{{JOB_DESCRIPTION}}", truncateRunes(in.JobDescription, answerJobDescriptionLimit),
		"{{QUESTION}}", in.Question,
		"{{ANSWER}}", in.Answer,
		"{{INTERVIEWER}}", in.InterviewerUtterance,
		"{{HISTORY}}", formatHistory(lastTurns(in.History, answerHistoryTurns), false, "\n"),
		"{{NOTES}}", notes,
	)
	return r.Replace(answerUserTemplate)
}

func parseAnswer(raw string) (*ai.AnswerAnalysis, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	return &ai.AnswerAnalysis{
		AnswerQuality:        clampScore(data["answerQuality"], 5, 1, 10),
		TechnicalAccuracy:    clampScore(data["technicalAccuracy"], 5, 1, 10),
		CommunicationClarity: clampScore(data["communicationClarity"], 5, 1, 10),
		ProblemSolvingSkill:  clampScore(data["problemSolvingSkill"], 5, 1, 10),
		Strengths:            stringsOr(data["strengths"], nil),
		Weaknesses:           stringsOr(data["weaknesses"], nil),
		Suggestions:          stringsOr(data["suggestions"], nil),
		ExpectedKeywords:     stringsOr(data["expectedKeywords"], nil),
		MentionedKeywords:    stringsOr(data["mentionedKeywords"], nil),
		MissedKeywords:       stringsOr(data["missedKeywords"], nil),
		Feedback:             stringOr(data["feedback"], "Feedback generated."),
	}, nil
}

func lastTurns(history []ai.Turn, n int) []ai.Turn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func formatHistory(history []ai.Turn, upper bool, sep string) string {
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		role := turn.Role
		if upper {
			role = strings.ToUpper(role)
		}
		lines = append(lines, role+": "+turn.Content)
	}
	return strings.Join(lines, sep)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
