package gemini

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/interview-worker/internal/ai"
	"github.com/spigell/interview-worker/internal/interview"
)

const (
	reportJobDescriptionLimit = 2000
	reportTemperature         = 0.4
	reportMaxTokens           = 2000
)

//go:embed prompts/report_system.md
var reportSystemPrompt string

//go:embed prompts/report_user.md
var reportUserTemplate string

// Reporter produces the whole-interview hiring report through the completion service.
type Reporter struct {
	completer completer
	logger    *zap.Logger
}

func NewReporter(c completer, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{completer: c, logger: logger}
}

// GenerateReport never returns an error: any completion or parse failure yields ai.FallbackReport.
func (r *Reporter) GenerateReport(ctx context.Context, in ai.ReportInput) (*ai.ReportAnalysis, error) {
	if r.completer == nil {
		r.logger.Warn("completion service is not configured, using fallback report")
		return ai.FallbackReport(), nil
	}

	raw, err := r.completer.CompleteJSON(ctx, Request{
		System:          reportSystemPrompt,
		User:            buildReportPrompt(in),
		Temperature:     reportTemperature,
		MaxOutputTokens: reportMaxTokens,
	})
	if err != nil {
		r.logger.Error("generate report failed", zap.Error(err))
		return ai.FallbackReport(), nil
	}

	report, err := parseReport(raw)
	if err != nil {
		r.logger.Error("generate report failed", zap.Error(err))
		return ai.FallbackReport(), nil
	}

	return report, nil
}

func buildReportPrompt(in ai.ReportInput) string {
	metrics := []string{
		"- Total questions: " + strconv.Itoa(in.TotalQuestions),
		"- Questions answered: " + strconv.Itoa(in.QuestionsAnswered),
		"- Avg response time: " + strconv.FormatFloat(in.AvgResponseTime, 'f', -1, 64) + "s",
		"- Avg confidence: " + strconv.FormatFloat(in.AvgConfidence, 'f', -1, 64),
		"- Total hints used: " + strconv.Itoa(in.TotalHintsUsed),
		"- Interview duration: " + strconv.Itoa(in.DurationMinutes) + " min",
	}
	if p := in.Proctoring; p != nil {
		metrics = append(metrics, fmt.Sprintf(
			"- Proctoring: avg engagement %.0f%%, face visible %.0f%% of snapshots (factor into culture fit / professionalism)",
			p.AvgEngagement*100, p.FacePresentRatio*100,
		))
	}

	r := strings.NewReplacer(
		"{{ROLE}}", in.Role,
		"{{JOB_DESCRIPTION}}", truncateRunes(in.JobDescription, reportJobDescriptionLimit),
		"{{TRANSCRIPT}}", formatHistory(in.Transcript, true, "\n\n"),
		"{{METRICS}}", strings.Join(metrics, "\n"),
	)
	return r.Replace(reportUserTemplate)
}

func parseReport(raw string) (*ai.ReportAnalysis, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	return &ai.ReportAnalysis{
		OverallScore:         clampScore(data["overallScore"], 50, 0, 100),
		TechnicalScore:       clampScore(data["technicalScore"], 50, 0, 100),
		CommunicationScore:   clampScore(data["communicationScore"], 50, 0, 100),
		ProblemSolvingScore:  clampScore(data["problemSolvingScore"], 50, 0, 100),
		CultureFitScore:      clampScore(data["cultureFitScore"], 50, 0, 100),
		SkillScores:          coerceScoreMap(data["skillScores"], 0, 100),
		TopStrengths:         stringsOr(data["topStrengths"], []string{"Attended interview"}),
		TopWeaknesses:        stringsOr(data["topWeaknesses"], []string{"Needs more practice"}),
		Decision:             ai.ParseDecision(stringOr(data["decision"], "")),
		RoleReadinessPercent: clampScore(data["roleReadinessPercent"], 50, 0, 100),
		ImprovementPlan:      coercePlan(data["improvementPlan"]),
		DetailedFeedback:     stringOr(data["detailedFeedback"], "Feedback generated."),
		TranscriptSummary:    stringOr(data["transcriptSummary"], "Interview completed."),
	}, nil
}

// coercePlan keeps only the fixed phase keys, filling missing or malformed phases with defaults.
func coercePlan(v any) map[string][]string {
	defaults := ai.DefaultImprovementPlan()
	obj, ok := v.(map[string]any)
	if !ok {
		return defaults
	}

	plan := make(map[string][]string, len(interview.PlanPhases))
	for _, phase := range interview.PlanPhases {
		items, isList := coerceStrings(obj[phase])
		if !isList {
			items = defaults[phase]
		}
		plan[phase] = items
	}
	return plan
}
