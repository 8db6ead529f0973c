package utils

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{name: "non-positive limit", input: "model said hi", limit: 0, expect: ""},
		{name: "fits", input: `{"answerQuality":8}`, limit: 40, expect: `{"answerQuality":8}`},
		{name: "cut with ellipsis", input: `{"answerQuality":8}`, limit: 5, expect: `{"ans...`},
		{name: "counts runes", input: "  привет мир  ", limit: 6, expect: "привет..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
