package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/interview-worker/internal/ai"
)

// ErrInvalid marks payloads that decoded fine but lack usable identifiers.
var ErrInvalid = errors.New("invalid event payload")

// ID is a positive integer identifier. It accepts JSON numbers and numeric strings;
// anything else non-structural decodes to 0, which Validate rejects.
type ID int64

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}

	switch data[0] {
	case '{', '[':
		return fmt.Errorf("identifier must be a number, got %s", data)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = parseID(strings.TrimSpace(s))
		return nil
	case 't', 'f':
		*id = 0
		return nil
	default:
		*id = parseID(string(data))
		return nil
	}
}

func parseID(s string) ID {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0
	}
	return ID(f)
}

func (id ID) Valid() bool { return id > 0 }

func (id ID) Int64() int64 { return int64(id) }

// SessionRef carries the identifiers shared by every event payload.
type SessionRef struct {
	SessionID        ID `json:"sessionId"`
	InterviewID      ID `json:"interviewId,omitempty"`
	UserID           ID `json:"userId,omitempty"`
	InterviewAgentID ID `json:"interviewAgentId,omitempty"`
}

func (r SessionRef) Validate() error {
	if !r.SessionID.Valid() {
		return fmt.Errorf("%w: sessionId must be a positive integer", ErrInvalid)
	}
	return nil
}

type StartInterviewPayload struct {
	SessionRef
}

type EndInterviewPayload struct {
	SessionRef
	ConversationHistory []ai.Turn `json:"conversationHistory,omitempty"`
}

type AbandonInterviewPayload struct {
	SessionRef
	ConversationHistory []ai.Turn `json:"conversationHistory,omitempty"`
	Reason              string    `json:"reason"`
}

type QuestionEvaluatePayload struct {
	SessionRef
	QuestionNumber      int            `json:"questionNumber"`
	Question            string         `json:"question"`
	UserResponse        string         `json:"userResponse"`
	AIResponse          string         `json:"aiResponse"`
	QuestionAskedAt     string         `json:"questionAskedAt,omitempty"`
	AnswerStartedAt     string         `json:"answerStartedAt,omitempty"`
	AnswerEndedAt       string         `json:"answerEndedAt,omitempty"`
	ThinkingTime        *float64       `json:"thinkingTime,omitempty"`
	AnswerDuration      *float64       `json:"answerDuration,omitempty"`
	ConversationHistory []ai.Turn      `json:"conversationHistory"`
	Metrics             map[string]any `json:"metrics,omitempty"`
	InterviewQuestionID ID             `json:"interviewQuestionId,omitempty"`
	Category            string         `json:"category,omitempty"`
	Difficulty          string         `json:"difficulty,omitempty"`
}

func (p QuestionEvaluatePayload) Validate() error {
	if !p.SessionID.Valid() || !p.InterviewID.Valid() {
		return fmt.Errorf("%w: sessionId and interviewId must be positive integers", ErrInvalid)
	}
	return nil
}

type GenerateReportPayload struct {
	SessionRef
	ConversationHistory []ai.Turn             `json:"conversationHistory"`
	AvgResponseTime     *float64              `json:"avgResponseTime,omitempty"`
	TotalHintsUsed      *int                  `json:"totalHintsUsed,omitempty"`
	ProctoringMetrics   *ai.ProctoringMetrics `json:"proctoringMetrics,omitempty"`
}

func (p GenerateReportPayload) Validate() error {
	if !p.SessionID.Valid() || !p.InterviewID.Valid() || !p.UserID.Valid() {
		return fmt.Errorf("%w: sessionId, interviewId and userId must be positive integers", ErrInvalid)
	}
	return nil
}

// QuestionMetrics is the typed view of the free-form question_evaluate metrics object.
type QuestionMetrics struct {
	ConfidenceScore      any `mapstructure:"confidence_score"`
	StrugglingIndicators int `mapstructure:"struggling_indicators"`
}

// DecodeMetrics decodes the metrics object with weak typing. On error the fields that
// did decode are still returned.
func (p QuestionEvaluatePayload) DecodeMetrics() (QuestionMetrics, error) {
	var m QuestionMetrics
	if len(p.Metrics) == 0 {
		return m, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &m,
	})
	if err != nil {
		return m, err
	}

	err = decoder.Decode(p.Metrics)
	if m.StrugglingIndicators < 0 {
		m.StrugglingIndicators = 0
	}
	return m, err
}

// Confidence derives a score in [0,1]: numbers in range are used as-is, booleans map
// to 0.8 / 0.4, and anything else yields 0.5.
func (m QuestionMetrics) Confidence() float64 {
	switch v := m.ConfidenceScore.(type) {
	case float64:
		if v >= 0 && v <= 1 {
			return v
		}
	case bool:
		if v {
			return 0.8
		}
		return 0.4
	}
	return 0.5
}
