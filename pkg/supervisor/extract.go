package supervisor

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls a JSON object out of noisy model output. Strategy, in
// order: strip code fences and parse; find the first brace and walk to its
// match with a string-aware, escape-aware counter; fall back to the span
// between the first { and the last }; finally surface the original decode
// error. Contents of string literals are never altered.
func ExtractJSON(content string) (map[string]any, error) {
	clean := strings.TrimSpace(
		strings.ReplaceAll(strings.ReplaceAll(content, "```json", ""), "```", ""))

	var out map[string]any
	cleanErr := json.Unmarshal([]byte(clean), &out)
	if cleanErr == nil {
		return out, nil
	}

	if span, ok := balancedObject(content); ok {
		if err := json.Unmarshal([]byte(span), &out); err == nil {
			return out, nil
		}
	}

	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start != -1 && end > start {
		if err := json.Unmarshal([]byte(content[start:end+1]), &out); err == nil {
			return out, nil
		}
	}

	return nil, cleanErr
}

// balancedObject finds the first top-level {...} span by brace counting.
// Braces inside string literals are ignored; escaped quotes do not end a
// string.
func balancedObject(content string) (string, bool) {
	start := strings.Index(content, "{")
	if start == -1 {
		return "", false
	}

	balance := 0
	inString := false
	escaped := false

	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			balance++
		case '}':
			balance--
			if balance == 0 {
				return content[start : i+1], true
			}
		}
	}
	return "", false
}
