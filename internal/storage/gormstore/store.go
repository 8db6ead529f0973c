// Package gormstore implements the interview persistence ports on gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/spigell/interview-worker/internal/interview"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	messageBatchSize = 100
)

var (
	_ interview.SessionStore      = (*Store)(nil)
	_ interview.ConversationStore = (*Store)(nil)
	_ interview.FeedbackStore     = (*Store)(nil)
	_ interview.ResultStore       = (*Store)(nil)
)

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to the database with the named driver.
func Open(driver, dsn string, logger *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	return New(db, logger), nil
}

func New(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Migrate creates or updates every table the pipeline writes to.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// TransitionTo keeps the first startedAt and completedAt on replays. Abandoning
// leaves missing, COMPLETED and CHEATED sessions untouched.
func (s *Store) TransitionTo(ctx context.Context, sessionID int64, status interview.SessionStatus, t interview.Transition) error {
	query := s.db.WithContext(ctx).Model(&CandidateSession{}).Where("id = ?", sessionID)
	updates := map[string]any{"status": string(status)}

	switch status {
	case interview.StatusInProgress:
		updates["started_at"] = gorm.Expr("COALESCE(started_at, ?)", t.At)
	case interview.StatusCompleted:
		updates["completed_at"] = gorm.Expr("COALESCE(completed_at, ?)", t.At)
	case interview.StatusAbandoned:
		updates["abandoned_at"] = t.At
		updates["abandon_reason"] = t.Reason
		query = query.Where("status NOT IN ?", finalStatuses())
	}

	res := query.Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update session status: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		if status == interview.StatusAbandoned {
			s.logger.Debug("abandon ignored for missing or finished session", zap.Int64("session_id", sessionID))
			return nil
		}
		return interview.ErrSessionNotFound
	}

	return nil
}

func (s *Store) Get(ctx context.Context, sessionID int64) (*interview.Session, error) {
	var record CandidateSession
	err := s.db.WithContext(ctx).
		Preload("InterviewAgent").
		Preload("QuestionResults").
		First(&record, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, interview.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	session := &interview.Session{
		ID:          record.ID,
		InterviewID: record.InterviewID,
		Status:      interview.SessionStatus(record.Status),
		StartedAt:   record.StartedAt,
		CompletedAt: record.CompletedAt,
	}
	if agent := record.InterviewAgent; agent != nil {
		session.Role = agent.Role
		session.JobDescription = agent.JobDescription
		session.TotalQuestions = agent.TotalQuestions
	}
	for _, r := range record.QuestionResults {
		session.PriorResults = append(session.PriorResults, questionResultFromRecord(r))
	}

	return session, nil
}

func (s *Store) CreateTurn(ctx context.Context, turn *interview.ConversationTurn) (int64, error) {
	record := ConversationRecord{
		SessionID:            turn.SessionID,
		InterviewID:          turn.InterviewID,
		QuestionNumber:       turn.QuestionNumber,
		Question:             turn.Question,
		Category:             turn.Category,
		Difficulty:           turn.Difficulty,
		QuestionSource:       string(turn.Source),
		InterviewQuestionID:  turn.InterviewQuestionID,
		Answer:               turn.Answer,
		QuestionAskedAt:      turn.QuestionAskedAt,
		AnswerStartedAt:      turn.AnswerStartedAt,
		AnswerEndedAt:        turn.AnswerEndedAt,
		ThinkingTime:         turn.ThinkingTime,
		AnswerDuration:       turn.AnswerDuration,
		StrugglingIndicators: turn.StrugglingIndicators,
		ConfidenceScore:      turn.ConfidenceScore,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return 0, fmt.Errorf("create conversation: %w", err)
	}

	turn.ID = record.ID
	return record.ID, nil
}

func (s *Store) AppendMessages(ctx context.Context, turnID int64, messages []interview.Message) error {
	if len(messages) == 0 {
		return nil
	}

	records := make([]MessageRecord, 0, len(messages))
	for _, m := range messages {
		records = append(records, MessageRecord{
			ConversationID: turnID,
			Role:           string(m.Role),
			Content:        m.Content,
			Timestamp:      m.Timestamp,
		})
	}

	if err := s.db.WithContext(ctx).CreateInBatches(records, messageBatchSize).Error; err != nil {
		return fmt.Errorf("create messages: %w", err)
	}
	return nil
}

func (s *Store) CreateFeedback(ctx context.Context, f *interview.QuestionFeedback) error {
	record := QuestionFeedbackRecord{
		ConversationID:       f.ConversationID,
		AnswerQuality:        f.AnswerQuality,
		TechnicalAccuracy:    f.TechnicalAccuracy,
		CommunicationClarity: f.CommunicationClarity,
		ProblemSolvingSkill:  f.ProblemSolvingSkill,
		Strengths:            nonNil(f.Strengths),
		Weaknesses:           nonNil(f.Weaknesses),
		Suggestions:          nonNil(f.Suggestions),
		ExpectedKeywords:     nonNil(f.ExpectedKeywords),
		MentionedKeywords:    nonNil(f.MentionedKeywords),
		MissedKeywords:       nonNil(f.MissedKeywords),
		Feedback:             f.Feedback,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("create question feedback: %w", err)
	}
	return nil
}

// CreateResult does not deduplicate; a redelivered question produces another row.
func (s *Store) CreateResult(ctx context.Context, r *interview.QuestionResult) error {
	db := s.db.WithContext(ctx)

	var existing int64
	if err := db.Model(&QuestionResultRecord{}).
		Where("session_id = ? AND question_number = ?", r.SessionID, r.QuestionNumber).
		Count(&existing).Error; err != nil {
		return fmt.Errorf("count question results: %w", err)
	}
	if existing > 0 {
		s.logger.Debug("storing duplicate question result",
			zap.Int64("session_id", r.SessionID),
			zap.Int("question_number", r.QuestionNumber),
			zap.Int64("existing", existing),
		)
	}

	record := QuestionResultRecord{
		SessionID:            r.SessionID,
		ConversationID:       r.ConversationID,
		QuestionNumber:       r.QuestionNumber,
		OverallQuestionScore: r.OverallQuestionScore,
		TechnicalScore:       r.TechnicalScore,
		CommunicationScore:   r.CommunicationScore,
		ProblemSolvingScore:  r.ProblemSolvingScore,
		ConfidenceScore:      r.ConfidenceScore,
		DifficultyWeight:     r.DifficultyWeight,
		HintUsed:             r.HintUsed,
		Skipped:              r.Skipped,
	}
	if err := db.Create(&record).Error; err != nil {
		return fmt.Errorf("create question result: %w", err)
	}
	return nil
}

// CreateInterviewResult stores the report once per session; later calls for the
// same session are ignored.
func (s *Store) CreateInterviewResult(ctx context.Context, r *interview.InterviewResult) error {
	db := s.db.WithContext(ctx)

	var existing InterviewResultRecord
	err := db.Where("session_id = ?", r.SessionID).First(&existing).Error
	if err == nil {
		s.logger.Info("interview result already exists", zap.Int64("session_id", r.SessionID))
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("find interview result: %w", err)
	}

	record := InterviewResultRecord{
		InterviewID:          r.InterviewID,
		SessionID:            r.SessionID,
		UserID:               r.UserID,
		OverallScore:         r.OverallScore,
		TechnicalScore:       r.TechnicalScore,
		CommunicationScore:   r.CommunicationScore,
		ProblemSolvingScore:  r.ProblemSolvingScore,
		CultureFitScore:      r.CultureFitScore,
		SkillScores:          r.SkillScores,
		TopStrengths:         nonNil(r.TopStrengths),
		TopWeaknesses:        nonNil(r.TopWeaknesses),
		Decision:             string(r.Decision),
		RoleReadinessPercent: r.RoleReadinessPercent,
		ImprovementPlan:      r.ImprovementPlan,
		DetailedFeedback:     r.DetailedFeedback,
		TranscriptSummary:    r.TranscriptSummary,
		TotalQuestions:       r.TotalQuestions,
		QuestionsAnswered:    r.QuestionsAnswered,
		QuestionsSkipped:     r.QuestionsSkipped,
		AvgResponseTime:      r.AvgResponseTime,
		AvgConfidence:        r.AvgConfidence,
		TotalHintsUsed:       r.TotalHintsUsed,
		InterviewDuration:    r.DurationMinutes,
	}
	if record.SkillScores == nil {
		record.SkillScores = map[string]int{}
	}
	if err := db.Create(&record).Error; err != nil {
		return fmt.Errorf("create interview result: %w", err)
	}
	return nil
}

func questionResultFromRecord(r QuestionResultRecord) interview.QuestionResult {
	return interview.QuestionResult{
		SessionID:            r.SessionID,
		ConversationID:       r.ConversationID,
		QuestionNumber:       r.QuestionNumber,
		OverallQuestionScore: r.OverallQuestionScore,
		TechnicalScore:       r.TechnicalScore,
		CommunicationScore:   r.CommunicationScore,
		ProblemSolvingScore:  r.ProblemSolvingScore,
		ConfidenceScore:      r.ConfidenceScore,
		DifficultyWeight:     r.DifficultyWeight,
		HintUsed:             r.HintUsed,
		Skipped:              r.Skipped,
	}
}

func finalStatuses() []string {
	final := interview.FinalStatuses()
	out := make([]string, 0, len(final))
	for _, s := range final {
		out = append(out, string(s))
	}
	return out
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
