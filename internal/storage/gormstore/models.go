package gormstore

import "time"

// InterviewAgent is the interview configuration a session was created from.
type InterviewAgent struct {
	ID             int64  `gorm:"primaryKey"`
	Role           string `gorm:"size:255"`
	JobDescription string `gorm:"type:text"`
	TotalQuestions int    `gorm:"default:6"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (InterviewAgent) TableName() string { return "interview_agents" }

type CandidateSession struct {
	ID               int64 `gorm:"primaryKey"`
	InterviewID      int64 `gorm:"index"`
	UserID           int64 `gorm:"index"`
	InterviewAgentID *int64
	InterviewAgent   *InterviewAgent
	Status           string `gorm:"size:32;not null;default:SCHEDULED;index"`
	StartedAt        *time.Time
	CompletedAt      *time.Time
	AbandonedAt      *time.Time
	AbandonReason    string                 `gorm:"type:text"`
	QuestionResults  []QuestionResultRecord `gorm:"foreignKey:SessionID"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (CandidateSession) TableName() string { return "candidate_interview_sessions" }

type ConversationRecord struct {
	ID                   int64  `gorm:"primaryKey"`
	SessionID            int64  `gorm:"index"`
	InterviewID          int64  `gorm:"index"`
	QuestionNumber       int    `gorm:"not null"`
	Question             string `gorm:"type:text"`
	Category             string `gorm:"size:64"`
	Difficulty           string `gorm:"size:32"`
	QuestionSource       string `gorm:"size:32"`
	InterviewQuestionID  *int64
	Answer               string `gorm:"type:text"`
	QuestionAskedAt      time.Time
	AnswerStartedAt      *time.Time
	AnswerEndedAt        *time.Time
	ThinkingTime         *float64
	AnswerDuration       *float64
	StrugglingIndicators int
	ConfidenceScore      float64
	Messages             []MessageRecord `gorm:"foreignKey:ConversationID"`
	CreatedAt            time.Time
}

func (ConversationRecord) TableName() string { return "interview_conversations" }

type MessageRecord struct {
	ID             int64  `gorm:"primaryKey"`
	ConversationID int64  `gorm:"index;not null"`
	Role           string `gorm:"size:16;not null"`
	Content        string `gorm:"type:text"`
	Timestamp      time.Time
}

func (MessageRecord) TableName() string { return "conversation_messages" }

type QuestionFeedbackRecord struct {
	ID                   int64 `gorm:"primaryKey"`
	ConversationID       int64 `gorm:"index;not null"`
	AnswerQuality        int
	TechnicalAccuracy    int
	CommunicationClarity int
	ProblemSolvingSkill  int
	Strengths            []string `gorm:"serializer:json"`
	Weaknesses           []string `gorm:"serializer:json"`
	Suggestions          []string `gorm:"serializer:json"`
	ExpectedKeywords     []string `gorm:"serializer:json"`
	MentionedKeywords    []string `gorm:"serializer:json"`
	MissedKeywords       []string `gorm:"serializer:json"`
	Feedback             string   `gorm:"type:text"`
	CreatedAt            time.Time
}

func (QuestionFeedbackRecord) TableName() string { return "question_feedback" }

type QuestionResultRecord struct {
	ID                   int64 `gorm:"primaryKey"`
	SessionID            int64 `gorm:"index;not null"`
	ConversationID       int64 `gorm:"index"`
	QuestionNumber       int
	OverallQuestionScore int
	TechnicalScore       int
	CommunicationScore   int
	ProblemSolvingScore  int
	ConfidenceScore      float64
	DifficultyWeight     float64 `gorm:"default:1"`
	HintUsed             bool
	Skipped              bool
	CreatedAt            time.Time
}

func (QuestionResultRecord) TableName() string { return "question_results" }

type InterviewResultRecord struct {
	ID                   int64 `gorm:"primaryKey"`
	InterviewID          int64 `gorm:"index"`
	SessionID            int64 `gorm:"uniqueIndex"`
	UserID               int64 `gorm:"index"`
	OverallScore         int
	TechnicalScore       int
	CommunicationScore   int
	ProblemSolvingScore  int
	CultureFitScore      int
	SkillScores          map[string]int `gorm:"serializer:json"`
	TopStrengths         []string       `gorm:"serializer:json"`
	TopWeaknesses        []string       `gorm:"serializer:json"`
	Decision             string         `gorm:"size:32"`
	RoleReadinessPercent int
	ImprovementPlan      map[string][]string `gorm:"serializer:json"`
	DetailedFeedback     string              `gorm:"type:text"`
	TranscriptSummary    string              `gorm:"type:text"`
	TotalQuestions       int
	QuestionsAnswered    int
	QuestionsSkipped     int
	AvgResponseTime      float64
	AvgConfidence        float64
	TotalHintsUsed       int
	InterviewDuration    int
	CreatedAt            time.Time
}

func (InterviewResultRecord) TableName() string { return "interview_results" }

func allModels() []any {
	return []any{
		&InterviewAgent{},
		&CandidateSession{},
		&ConversationRecord{},
		&MessageRecord{},
		&QuestionFeedbackRecord{},
		&QuestionResultRecord{},
		&InterviewResultRecord{},
	}
}
