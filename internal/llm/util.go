package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ExtractJSON pulls the first JSON object from model output into out,
// tolerating markdown code fences and surrounding prose.
func ExtractJSON(raw string, out any) error {
	return extract(raw, "{", "}", out)
}

// ExtractJSONArray pulls the first JSON array from model output into out.
func ExtractJSONArray(raw string, out any) error {
	return extract(raw, "[", "]", out)
}

func extract(raw, open, close string, out any) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return errors.New("empty output")
	}

	if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
		if strings.HasPrefix(s, "json") {
			s = strings.TrimSpace(strings.TrimPrefix(s, "json"))
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = strings.TrimSpace(s[:idx])
		}
	}

	start := strings.Index(s, open)
	end := strings.LastIndex(s, close)
	if start < 0 || end < 0 || start >= end {
		return errors.New("missing JSON value")
	}

	return json.Unmarshal([]byte(s[start:end+1]), out)
}
