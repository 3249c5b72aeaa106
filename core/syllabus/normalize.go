package syllabus

import (
	"encoding/json"
	"strings"
)

// Normalize extracts the assignment records from the model's text.
// Records are returned verbatim; they are only decoded when materialized.
func Normalize(raw string) ([]json.RawMessage, error) {
	text := stripFence(strings.TrimSpace(raw))

	candidate := text
	if span, ok := firstObject(text); ok {
		candidate = span
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, &Error{
			Kind:        KindParseFailed,
			Message:     "AI response was not in expected format",
			RawResponse: raw,
			Err:         err,
		}
	}

	noAssignments := &Error{
		Kind:       KindNoAssignments,
		Message:    "No assignments found in the document",
		ParsedData: json.RawMessage(candidate),
	}
	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, noAssignments
	}
	if _, ok := obj["assignments"].([]interface{}); !ok {
		return nil, noAssignments
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil, noAssignments
	}
	var records []json.RawMessage
	if err := json.Unmarshal(fields["assignments"], &records); err != nil {
		return nil, noAssignments
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	return records, nil
}

// stripFence removes a leading ``` fence (with an optional language tag) and its closing fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	i := 0
	for i < len(s) && isTagChar(s[i]) {
		i++
	}
	s = strings.TrimSpace(s[i:])
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isTagChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_' || c == '+'
}

// firstObject finds the first balanced top-level {...} span.
// Braces inside JSON strings are ignored.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	var (
		depth    int
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		c := s[i]
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
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
