package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```(\\w*)\\s*\\n(.+?)\\n```")

// ExtractJSON pulls the JSON payload out of a model reply. Fenced code
// blocks win over bare text, so prose around a ```json``` block never
// confuses the scan; failing that, the first balanced object or array in
// the reply is taken.
func ExtractJSON(response string) (string, error) {
	if payload, ok := fencedJSON(response); ok {
		return payload, nil
	}
	if payload, ok := bareJSON(response); ok {
		return payload, nil
	}
	return "", fmt.Errorf("no valid JSON object found in response")
}

// fencedJSON scans markdown code fences for a JSON document. Fences
// tagged with a non-JSON language are skipped so a python example next
// to the answer is not mistaken for it.
func fencedJSON(response string) (string, bool) {
	for _, match := range fencePattern.FindAllStringSubmatch(response, -1) {
		lang := strings.ToLower(match[1])
		if lang != "" && lang != "json" {
			continue
		}

		body := strings.TrimSpace(match[2])
		if !strings.HasPrefix(body, "{") && !strings.HasPrefix(body, "[") {
			continue
		}
		if parsesAsJSON(body) {
			return body, true
		}
	}
	return "", false
}

// bareJSON takes the first balanced {...} or [...] span in the reply.
func bareJSON(response string) (string, bool) {
	start := strings.IndexAny(response, "{[")
	if start < 0 {
		return "", false
	}

	closer := byte('}')
	if response[start] == '[' {
		closer = ']'
	}

	span := balancedSpan(response[start:], closer)
	if span == "" || !parsesAsJSON(span) {
		return "", false
	}
	return span, true
}

// balancedSpan returns the prefix of s up to the bracket that closes
// s[0], tracking string literals so braces inside quoted values do not
// count. An unterminated span returns empty.
func balancedSpan(s string, closer byte) string {
	opener := s[0]
	depth := 0
	inString := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

func parsesAsJSON(s string) bool {
	var raw json.RawMessage
	return json.Unmarshal([]byte(s), &raw) == nil
}
