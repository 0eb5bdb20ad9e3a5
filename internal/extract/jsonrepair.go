package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	codeBlockRe = regexp.MustCompile("```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")
	braceSpanRe = regexp.MustCompile(`\{[\s\S]*\}`)
)

// DecodeObject pulls a JSON object out of a model response and unmarshals it
// into out. Models wrap JSON in code fences, prepend prose, or truncate
// mid-array, so decoding walks a ladder: fence/brace extraction, direct
// parse, bracket-balancing repair, then a backward scan for the longest
// parseable prefix.
func DecodeObject(response string, out any) error {
	candidate := extractCandidate(response)
	if candidate == "" {
		return fmt.Errorf("no JSON object found in response")
	}

	if err := json.Unmarshal([]byte(candidate), out); err == nil {
		return nil
	}

	if repaired, ok := repairJSON(candidate); ok {
		if err := json.Unmarshal([]byte(repaired), out); err == nil {
			return nil
		}
	}

	if prefix, ok := longestParseablePrefix(candidate); ok {
		if err := json.Unmarshal([]byte(prefix), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("could not parse JSON from response")
}

func extractCandidate(response string) string {
	if m := codeBlockRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return braceSpanRe.FindString(response)
}

// repairJSON fixes the common truncation shapes: trailing comma, an
// unterminated string, and unclosed brackets or braces.
func repairJSON(s string) (string, bool) {
	repaired := strings.TrimRight(s, " \t\r\n")
	repaired = strings.TrimSuffix(repaired, ",")

	inString := false
	escaped := false
	for _, r := range repaired {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		}
	}
	if inString {
		repaired += `"`
	}

	openBraces := strings.Count(repaired, "{") - strings.Count(repaired, "}")
	openBrackets := strings.Count(repaired, "[") - strings.Count(repaired, "]")
	if openBraces < 0 || openBrackets < 0 {
		return "", false
	}
	repaired += strings.Repeat("]", openBrackets)
	repaired += strings.Repeat("}", openBraces)

	if !json.Valid([]byte(repaired)) {
		return "", false
	}
	return repaired, true
}

// longestParseablePrefix scans backward for a closing bracket that yields a
// balanceable prefix. Recovers the complete elements of a response that was
// cut off mid-element.
func longestParseablePrefix(s string) (string, bool) {
	for i := len(s) - 1; i > 0; i-- {
		if s[i] != '}' && s[i] != ']' {
			continue
		}
		prefix := s[:i+1]
		openBraces := strings.Count(prefix, "{") - strings.Count(prefix, "}")
		openBrackets := strings.Count(prefix, "[") - strings.Count(prefix, "]")
		if openBraces < 0 || openBrackets < 0 {
			continue
		}
		balanced := prefix + strings.Repeat("]", openBrackets) + strings.Repeat("}", openBraces)
		if json.Valid([]byte(balanced)) {
			return balanced, true
		}
	}
	return "", false
}
