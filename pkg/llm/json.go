package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	// thinkTagPattern matches <think>...</think> preambles some models emit.
	thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	// fencePattern matches ```json ... ``` and bare ``` ... ``` blocks.
	fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")
)

// ExtractJSON returns the JSON document inside an LLM reply. It prefers fenced
// code blocks, then the first balanced object or array in the text.
func ExtractJSON(response string) (string, error) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	for _, m := range fencePattern.FindAllStringSubmatch(cleaned, -1) {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		if inner, ok := firstBalanced(candidate); ok {
			return inner, nil
		}
	}

	if doc, ok := firstBalanced(cleaned); ok {
		return doc, nil
	}

	trimmed := strings.TrimSpace(cleaned)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

// firstBalanced tries the object or array whose opening bracket comes first.
func firstBalanced(s string) (string, bool) {
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	order := []byte{'{', '['}
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		order = []byte{'[', '{'}
	}

	for _, open := range order {
		closing := byte('}')
		if open == '[' {
			closing = ']'
		}
		if doc, ok := extractBalancedJSON(s, open, closing); ok && json.Valid([]byte(doc)) {
			return doc, true
		}
	}
	return "", false
}

// extractBalancedJSON finds the first balanced structure starting with openChar,
// skipping brackets inside string literals.
func extractBalancedJSON(s string, openChar, closeChar byte) (string, bool) {
	start := strings.IndexByte(s, openChar)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

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
		case c == openChar:
			depth++
		case c == closeChar:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// ParseJSONResponse extracts JSON from a response and unmarshals it into T.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}

	return result, nil
}
