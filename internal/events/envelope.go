// Package events decodes interview session events from the broker and routes them to handlers.
package events

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks envelopes and payloads that can never be processed. Messages
// failing with it are acknowledged and dropped rather than retried.
var ErrMalformed = errors.New("malformed event")

type EventType string

const (
	StartInterview   EventType = "start_interview"
	EndInterview     EventType = "end_interview"
	AbandonInterview EventType = "abandon_interview"
	QuestionEvaluate EventType = "question_evaluate"
	GenerateReport   EventType = "generate_report"
)

// Types lists every event type the pipeline understands.
var Types = []EventType{
	StartInterview,
	EndInterview,
	AbandonInterview,
	QuestionEvaluate,
	GenerateReport,
}

func (t EventType) Known() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Wire field names of a stream entry.
const (
	FieldEvent   = "event"
	FieldPayload = "payload"
	FieldTS      = "ts"
)

// Envelope is the outer wrapper of a stream entry.
type Envelope struct {
	Type    EventType
	Payload string
	TS      string
}

// ParseEnvelope reads the event, payload and optional ts fields. Entries missing
// event or payload are rejected with ErrMalformed.
func ParseEnvelope(fields map[string]any) (Envelope, error) {
	event := fieldString(fields, FieldEvent)
	payload := fieldString(fields, FieldPayload)

	if event == "" || payload == "" {
		return Envelope{}, fmt.Errorf("%w: missing %q or %q field", ErrMalformed, FieldEvent, FieldPayload)
	}

	return Envelope{
		Type:    EventType(event),
		Payload: payload,
		TS:      fieldString(fields, FieldTS),
	}, nil
}

func fieldString(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
