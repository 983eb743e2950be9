package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// thinkTagPattern matches <think>...</think> blocks some local models emit
// before their answer.
var thinkTagPattern = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)

// StripCodeFence removes a markdown code fence (```json ... ``` or ``` ... ```)
// wrapped around a model response, returning the inner text.
func StripCodeFence(response string) string {
	s := strings.TrimSpace(thinkTagPattern.ReplaceAllString(response, ""))
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	inner := s[start+3:]
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.ContainsAny(inner[:nl], "{[") {
		inner = inner[nl+1:]
	}
	if end := strings.Index(inner, "```"); end >= 0 {
		inner = inner[:end]
	}
	return strings.TrimSpace(inner)
}

// ExtractJSON returns the first balanced JSON object in a model response
// after stripping any code fence.
func ExtractJSON(response string) (string, error) {
	cleaned := StripCodeFence(response)
	if json.Valid([]byte(cleaned)) {
		return cleaned, nil
	}
	if obj, ok := extractBalanced(cleaned, '{', '}'); ok && json.Valid([]byte(obj)) {
		return obj, nil
	}
	return "", fmt.Errorf("%w: no valid JSON object in response", ErrInvalidResponse)
}

// ParseJSONResponse extracts JSON from a response and unmarshals it into T.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T
	raw, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return result, nil
}

// extractBalanced finds the first bracket-balanced span starting at open,
// ignoring brackets inside JSON strings.
func extractBalanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
