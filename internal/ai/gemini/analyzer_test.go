package gemini

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/interview-worker/internal/ai"
)

type stubCompleter struct {
	response string
	err      error
	calls    int
	last     Request
}

func (s *stubCompleter) CompleteJSON(_ context.Context, req Request) (string, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestAnalyzeAnswer(t *testing.T) {
	stub := &stubCompleter{response: `{
		"answerQuality": 8,
		"technicalAccuracy": 7,
		"communicationClarity": 9,
		"problemSolvingSkill": 6,
		"strengths": ["clear structure"],
		"weaknesses": ["missed edge cases"],
		"suggestions": ["discuss complexity"],
		"expectedKeywords": ["hash map", "O(n)"],
		"mentionedKeywords": ["hash map"],
		"missedKeywords": ["O(n)"],
		"feedback": "Solid answer."
	}`}
	analyzer := NewAnalyzer(stub, zap.NewNop())

	got, err := analyzer.AnalyzeAnswer(context.Background(), ai.AnswerInput{
		Question: "Explain X",
		Answer:   "X is ...",
		Role:     "Backend Engineer",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Fallback {
		t.Fatal("expected a parsed analysis, got fallback")
	}
	if got.AnswerQuality != 8 || got.TechnicalAccuracy != 7 || got.CommunicationClarity != 9 || got.ProblemSolvingSkill != 6 {
		t.Fatalf("unexpected scores: %+v", got)
	}
	if !reflect.DeepEqual(got.MissedKeywords, []string{"O(n)"}) {
		t.Fatalf("unexpected missed keywords: %v", got.MissedKeywords)
	}
	if got.Feedback != "Solid answer." {
		t.Fatalf("unexpected feedback: %q", got.Feedback)
	}

	if stub.last.Temperature != answerTemperature || stub.last.MaxOutputTokens != answerMaxTokens {
		t.Fatalf("unexpected generation settings: %+v", stub.last)
	}
	if !strings.Contains(stub.last.System, "Return ONLY valid JSON") {
		t.Fatal("expected system instruction to demand a json object")
	}
	if !strings.Contains(stub.last.User, "Question asked: Explain X") {
		t.Fatalf("question missing from prompt: %s", stub.last.User)
	}
}

func TestAnalyzeAnswerNeverFails(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{name: "completion error", err: errors.New("deadline exceeded")},
		{name: "empty content", response: ""},
		{name: "not json", response: "I think the candidate did well"},
		{name: "json array", response: `[1, 2, 3]`},
		{name: "json null", response: `null`},
		{name: "truncated json", response: `{"answerQuality": 8,`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := NewAnalyzer(&stubCompleter{response: tt.response, err: tt.err}, zap.NewNop())

			got, err := analyzer.AnalyzeAnswer(context.Background(), ai.AnswerInput{Question: "q", Answer: "a"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if !reflect.DeepEqual(got, ai.FallbackAnswer()) {
				t.Fatalf("expected fallback analysis, got %+v", got)
			}
		})
	}
}

func TestAnalyzeAnswerWithoutCompleter(t *testing.T) {
	got, err := NewAnalyzer(nil, nil).AnalyzeAnswer(context.Background(), ai.AnswerInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Fallback {
		t.Fatal("expected fallback analysis")
	}
}

func TestParseAnswerClampsAndCoerces(t *testing.T) {
	raw := "```json\n" + `{
		"answerQuality": 42,
		"technicalAccuracy": -3,
		"communicationClarity": "7.6",
		"strengths": "not a list",
		"weaknesses": ["  padded  ", 5, ""],
		"feedback": 12
	}` + "\n```"

	got, err := parseAnswer(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.AnswerQuality != 10 {
		t.Fatalf("expected answer quality clamped to 10, got %d", got.AnswerQuality)
	}
	if got.TechnicalAccuracy != 1 {
		t.Fatalf("expected technical accuracy clamped to 1, got %d", got.TechnicalAccuracy)
	}
	if got.CommunicationClarity != 8 {
		t.Fatalf("expected communication clarity rounded to 8, got %d", got.CommunicationClarity)
	}
	if got.ProblemSolvingSkill != 5 {
		t.Fatalf("expected missing score to default to 5, got %d", got.ProblemSolvingSkill)
	}
	if got.Strengths == nil || len(got.Strengths) != 0 {
		t.Fatalf("expected empty strengths list, got %#v", got.Strengths)
	}
	if !reflect.DeepEqual(got.Weaknesses, []string{"padded"}) {
		t.Fatalf("unexpected weaknesses: %#v", got.Weaknesses)
	}
	if got.ExpectedKeywords == nil || len(got.ExpectedKeywords) != 0 {
		t.Fatalf("expected empty keyword list, got %#v", got.ExpectedKeywords)
	}
	if got.Feedback != "Feedback generated." {
		t.Fatalf("expected default feedback, got %q", got.Feedback)
	}
}

func TestBuildAnswerPromptBoundsContext(t *testing.T) {
	history := make([]ai.Turn, 0, 15)
	for i := 0; i < 15; i++ {
		history = append(history, ai.Turn{Role: "user", Content: fmt.Sprintf("turn-%02d", i)})
	}

	prompt := buildAnswerPrompt(ai.AnswerInput{
		Question:             "q",
		JobDescription:       strings.Repeat("j", answerJobDescriptionLimit+100),
		History:              history,
		StrugglingIndicators: 3,
	})

	if strings.Contains(prompt, strings.Repeat("j", answerJobDescriptionLimit+1)) {
		t.Fatal("expected job description to be truncated")
	}
	if !strings.Contains(prompt, strings.Repeat("j", answerJobDescriptionLimit)) {
		t.Fatal("expected truncated job description to be present")
	}
	if strings.Contains(prompt, "turn-04") {
		t.Fatal("expected only the last 10 history turns")
	}
	if !strings.Contains(prompt, "user: turn-05") || !strings.Contains(prompt, "user: turn-14") {
		t.Fatalf("expected recent turns in prompt: %s", prompt)
	}
	if !strings.Contains(prompt, "Candidate showed 3 struggling indicators") {
		t.Fatal("expected struggling indicators note")
	}
}
