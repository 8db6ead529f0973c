package handlers

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/spigell/interview-worker/internal/ai"
	"github.com/spigell/interview-worker/internal/events"
	"github.com/spigell/interview-worker/internal/interview"
	"github.com/spigell/interview-worker/internal/logger"
	"github.com/spigell/interview-worker/internal/metrics"
)

// Used when the generate_report payload does not carry measured values.
const (
	defaultAvgResponseTime = 30.0
	defaultTotalHintsUsed  = 0
	defaultAvgConfidence   = 0.7
)

// GenerateReport produces and persists the hiring report for a session. A failed
// completion yields the neutral fallback report; persistence errors are returned.
func (h *Handlers) GenerateReport(ctx context.Context, p events.GenerateReportPayload) error {
	if err := p.Validate(); err != nil {
		return h.skipInvalid(events.GenerateReport, err)
	}

	sessionID := p.SessionID.Int64()
	log := logger.WithSession(h.logger, sessionID).With(zap.Int64("interview_id", p.InterviewID.Int64()))

	job, err := h.loadJobContext(ctx, log, sessionID)
	if err != nil {
		return err
	}

	now := h.now()
	in := ai.ReportInput{
		Transcript:        p.ConversationHistory,
		JobDescription:    job.description,
		Role:              job.role,
		TotalQuestions:    job.totalQuestions,
		QuestionsAnswered: countUserTurns(p.ConversationHistory),
		AvgResponseTime:   defaultAvgResponseTime,
		AvgConfidence:     defaultAvgConfidence,
		TotalHintsUsed:    defaultTotalHintsUsed,
		DurationMinutes:   1,
		Proctoring:        p.ProctoringMetrics,
	}
	if p.AvgResponseTime != nil && *p.AvgResponseTime >= 0 {
		in.AvgResponseTime = *p.AvgResponseTime
	}
	if p.TotalHintsUsed != nil && *p.TotalHintsUsed >= 0 {
		in.TotalHintsUsed = *p.TotalHintsUsed
	}
	if s := job.session; s != nil {
		if s.StartedAt != nil {
			in.DurationMinutes = max(1, int(math.Round(now.Sub(*s.StartedAt).Minutes())))
		}
		if avg, ok := meanConfidence(s.PriorResults); ok {
			in.AvgConfidence = avg
		}
	}

	report, err := h.reporter.GenerateReport(ctx, in)
	if err != nil || report == nil {
		log.Error("report generation failed, using fallback report", zap.Error(err))
		report = ai.FallbackReport()
	}
	h.metrics.ObserveAnalysis(metrics.AnalysisReport, report.Fallback)

	result := &interview.InterviewResult{
		InterviewID:          p.InterviewID.Int64(),
		SessionID:            sessionID,
		UserID:               p.UserID.Int64(),
		OverallScore:         report.OverallScore,
		TechnicalScore:       report.TechnicalScore,
		CommunicationScore:   report.CommunicationScore,
		ProblemSolvingScore:  report.ProblemSolvingScore,
		CultureFitScore:      report.CultureFitScore,
		SkillScores:          report.SkillScores,
		TopStrengths:         report.TopStrengths,
		TopWeaknesses:        report.TopWeaknesses,
		Decision:             ai.ParseDecision(string(report.Decision)),
		RoleReadinessPercent: report.RoleReadinessPercent,
		ImprovementPlan:      report.ImprovementPlan,
		DetailedFeedback:     report.DetailedFeedback,
		TranscriptSummary:    report.TranscriptSummary,
		TotalQuestions:       in.TotalQuestions,
		QuestionsAnswered:    in.QuestionsAnswered,
		AvgResponseTime:      in.AvgResponseTime,
		AvgConfidence:        in.AvgConfidence,
		TotalHintsUsed:       in.TotalHintsUsed,
		DurationMinutes:      in.DurationMinutes,
	}

	if err := h.results.CreateInterviewResult(ctx, result); err != nil {
		return fmt.Errorf("persist interview result for session %d: %w", sessionID, err)
	}

	log.Info("report generated",
		zap.String("decision", string(result.Decision)),
		zap.Int("overall_score", result.OverallScore),
		zap.Bool("fallback", report.Fallback),
	)
	return nil
}

func countUserTurns(history []ai.Turn) int {
	n := 0
	for _, turn := range history {
		if turn.Role == "user" {
			n++
		}
	}
	return n
}

func meanConfidence(results []interview.QuestionResult) (float64, bool) {
	if len(results) == 0 {
		return 0, false
	}
	var sum float64
	for _, r := range results {
		sum += r.ConfidenceScore
	}
	return sum / float64(len(results)), true
}
