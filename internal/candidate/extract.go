package candidate

import (
	"encoding/json"
	"strings"

	"github.com/sells-group/nearby-events/internal/model"
)

// ExtractCandidates pulls a list of event objects out of generator output.
// It tries the whole text, the text with a markdown fence removed, the
// widest [...] slice and the widest {...} slice, in that order. A top-level
// array or an object with an "events" array is accepted. Anything else
// yields an empty list; the caller treats that as "nothing found".
func ExtractCandidates(text string) []model.Candidate {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []model.Candidate{}
	}

	attempts := []string{trimmed}
	if fenced := stripFence(trimmed); fenced != trimmed {
		attempts = append(attempts, fenced)
	}
	if s, ok := slice(trimmed, '[', ']'); ok {
		attempts = append(attempts, s)
	}
	if s, ok := slice(trimmed, '{', '}'); ok {
		attempts = append(attempts, s)
	}

	for _, a := range attempts {
		var parsed any
		if err := json.Unmarshal([]byte(a), &parsed); err != nil {
			continue
		}
		if list, ok := eventList(parsed); ok {
			return toCandidates(list)
		}
	}
	return []model.Candidate{}
}

func eventList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		events, ok := t["events"].([]any)
		return events, ok
	}
	return nil, false
}

func toCandidates(list []any) []model.Candidate {
	out := make([]model.Candidate, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, model.Candidate(m))
		}
	}
	return out
}

func slice(s string, open, closing byte) (string, bool) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, closing)
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// stripFence removes a surrounding ```json ... ``` block.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}
