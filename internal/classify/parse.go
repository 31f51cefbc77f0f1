package classify

import (
	"encoding/json"
	"strings"
)

// extractJSONArray pulls the JSON array out of a model completion. The model
// may wrap the array in markdown code fences or surround it with prose, so
// fence lines are dropped first and the outermost [...] span is taken when
// the remaining text is not valid JSON on its own.
func extractJSONArray(text string) (json.RawMessage, bool) {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "```") {
		lines := strings.Split(text, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		text = strings.TrimSpace(strings.Join(kept, "\n"))
	}

	if json.Valid([]byte(text)) && strings.HasPrefix(text, "[") {
		return json.RawMessage(text), true
	}

	start := strings.Index(text, "[")
	if start == -1 {
		return nil, false
	}
	end := strings.LastIndex(text, "]")
	if end == -1 || end <= start {
		return nil, false
	}

	span := text[start : end+1]
	if !json.Valid([]byte(span)) {
		return nil, false
	}
	return json.RawMessage(span), true
}
