package gemini

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

func decodeObject(raw string) (map[string]any, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty completion content")
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse completion response: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("completion response is not a json object")
	}

	return data, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// clampScore rounds v into [lo,hi], using def when v is missing or not numeric.
func clampScore(v any, def, lo, hi int) int {
	f := coerceFloat(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		f = float64(def)
	}
	n := int(math.Round(f))
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// coerceStrings returns the string items of a JSON array. ok is false when v is not an array.
func coerceStrings(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		s, isString := item.(string)
		if !isString {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, true
}

func stringsOr(v any, def []string) []string {
	if out, ok := coerceStrings(v); ok {
		return out
	}
	return append([]string{}, def...)
}

func stringOr(v any, def string) string {
	s, ok := v.(string)
	if !ok {
		return def
	}
	return strings.TrimSpace(s)
}

func coerceScoreMap(v any, lo, hi int) map[string]int {
	obj, ok := v.(map[string]any)
	if !ok {
		return map[string]int{}
	}

	out := make(map[string]int, len(obj))
	for key, raw := range obj {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		f := coerceFloat(raw)
		if math.IsNaN(f) {
			continue
		}
		out[key] = clampScore(f, lo, lo, hi)
	}
	return out
}
