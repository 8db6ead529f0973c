package ai

import "github.com/spigell/interview-worker/internal/interview"

const (
	neutralAnswerScore = 5
	neutralReportScore = 50
)

// FallbackAnswer is the neutral analysis used when the completion service cannot be used.
func FallbackAnswer() *AnswerAnalysis {
	return &AnswerAnalysis{
		AnswerQuality:        neutralAnswerScore,
		TechnicalAccuracy:    neutralAnswerScore,
		CommunicationClarity: neutralAnswerScore,
		ProblemSolvingSkill:  neutralAnswerScore,
		Strengths:            []string{"Completed the question"},
		Weaknesses:           []string{"Unable to analyze in detail"},
		Suggestions:          []string{"Keep practicing similar questions"},
		ExpectedKeywords:     []string{},
		MentionedKeywords:    []string{},
		MissedKeywords:       []string{},
		Feedback:             "Analysis unavailable. Consider reviewing your answer.",
		Fallback:             true,
	}
}

// FallbackReport is the neutral BORDERLINE report used when the completion service cannot be used.
func FallbackReport() *ReportAnalysis {
	return &ReportAnalysis{
		OverallScore:         neutralReportScore,
		TechnicalScore:       neutralReportScore,
		CommunicationScore:   neutralReportScore,
		ProblemSolvingScore:  neutralReportScore,
		CultureFitScore:      neutralReportScore,
		SkillScores:          map[string]int{},
		TopStrengths:         []string{"Completed interview"},
		TopWeaknesses:        []string{"Report generation failed"},
		Decision:             interview.DecisionBorderline,
		RoleReadinessPercent: neutralReportScore,
		ImprovementPlan: map[string][]string{
			interview.PhaseDays1To2: {"Review interview performance"},
			interview.PhaseDays3To4: {"Practice similar questions"},
			interview.PhaseDays5To6: {"Strengthen weak areas"},
			interview.PhaseDay7:     {"Take another practice interview"},
		},
		DetailedFeedback:  "Report generation encountered an error. Please review your responses.",
		TranscriptSummary: "Interview completed.",
		Fallback:          true,
	}
}

// DefaultImprovementPlan fills phases the completion service omitted or malformed.
func DefaultImprovementPlan() map[string][]string {
	return map[string][]string{
		interview.PhaseDays1To2: {"Review fundamentals"},
		interview.PhaseDays3To4: {"Practice mock interviews"},
		interview.PhaseDays5To6: {"Deep dive on weak areas"},
		interview.PhaseDay7:     {"Final practice"},
	}
}

// ParseDecision returns the matching decision, or BORDERLINE for anything unknown.
func ParseDecision(raw string) interview.Decision {
	d := interview.Decision(raw)
	if d.Valid() {
		return d
	}
	return interview.DecisionBorderline
}
