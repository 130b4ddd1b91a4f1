// Package jsonutil holds small, stateless JSON and Unicode helpers shared by
// every streaming provider adapter.
package jsonutil

import "encoding/json"

// ParsePartialJSON exposes tool arguments as a growing map while they are
// still streaming in. The contract (spec.md §4.2): the input is a prefix of
// a JSON object. Try an exact parse first; on failure, scan the prefix
// tracking string/escape state and a stack of expected closing delimiters,
// then retry with any open string closed and the reversed stack appended.
// Returns (nil, false) if the
// prefix doesn't start with '{' or the completion still fails. Never
// panics on arbitrary input.
//
// Grounded on original_source/packages/ai/src/pi_ai/utils/json_parse.py.
func ParsePartialJSON(text string) (map[string]any, bool) {
	trimmed := text
	if isBlank(trimmed) {
		return nil, false
	}

	if m, ok := tryExact(trimmed); ok {
		return m, true
	}

	return tryFix(trimmed)
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

func tryExact(text string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, false
	}
	return m, true
}

func tryFix(text string) (map[string]any, bool) {
	stripped := trimSpaceBoth(text)
	if stripped == "" || stripped[0] != '{' {
		return nil, false
	}

	var stack []byte
	inString := false
	escapeNext := false

	for i := 0; i < len(stripped); i++ {
		c := stripped[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		if c == '\\' && inString {
			escapeNext = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if escapeNext {
		// Drop a trailing lone backslash so the closing quote is not escaped.
		stripped = stripped[:len(stripped)-1]
	}
	if inString {
		stripped += `"`
	}

	closing := make([]byte, len(stack))
	for i, b := range stack {
		closing[len(stack)-1-i] = b
	}
	candidate := stripped + string(closing)

	return tryExact(candidate)
}

func trimSpaceBoth(s string) string {
	start, end := 0, len(s)
	for start < end && isSpaceByte(s[start]) {
		start++
	}
	for end > start && isSpaceByte(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
