package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"horse.fit/presscheck/internal/filter"
)

const relevanceSystemPrompt = `당신은 기자의 기사 선별 보조입니다.
번호가 붙은 기사 목록에서 해당 부서 기자가 확인할 가치가 있는 기사의
번호만 고른다. 단순 일정 안내, 보도자료 요약, 사소한 사안은 제외한다.

[출력 형식]
선택한 기사 번호의 JSON 배열로만 응답하라. 예: [1, 4, 7]
확인할 가치가 있는 기사가 하나도 없으면 빈 배열 []을 반환하라.
JSON 외 텍스트는 포함하지 않는다.`

// Selector implements the relevance pre-filter with a single cheap
// classification call. It satisfies filter.IndexSelector.
type Selector struct {
	completer Completer
	model     string
}

func NewSelector(completer Completer, model string) *Selector {
	return &Selector{completer: completer, model: model}
}

// SelectIndices returns the 1-based indices of entries worth a full body
// fetch, or filter.ErrNoneRelevant when the service deliberately picked none.
func (s *Selector) SelectIndices(ctx context.Context, department string, entries []filter.RelevanceEntry) ([]int, error) {
	if len(entries) == 0 {
		return nil, filter.ErrNoneRelevant
	}

	text, err := s.completer.Complete(ctx, CompleteRequest{
		Model:     s.model,
		System:    relevanceSystemPrompt,
		User:      buildRelevancePrompt(department, entries),
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("relevance selection: %w", err)
	}

	payload, ok := extractJSONArray(text)
	if !ok {
		return nil, fmt.Errorf("no JSON array in relevance output")
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(payload, &elements); err != nil {
		return nil, fmt.Errorf("decode relevance indices: %w", err)
	}
	if len(elements) == 0 {
		return nil, filter.ErrNoneRelevant
	}

	// Non-integer entries are discarded; a partially usable answer beats
	// refetching everything.
	indices := make([]int, 0, len(elements))
	for _, element := range elements {
		var idx int
		if err := json.Unmarshal(element, &idx); err != nil {
			continue
		}
		indices = append(indices, idx)
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("no usable indices in relevance output")
	}
	return indices, nil
}

func buildRelevancePrompt(department string, entries []filter.RelevanceEntry) string {
	lines := []string{fmt.Sprintf("[부서]\n%s", departmentLabel(department)), "", "[기사 목록]"}
	for i, entry := range entries {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s", i+1, entry.Publisher, entry.Title))
		if snippet := strings.TrimSpace(entry.Snippet); snippet != "" {
			lines = append(lines, fmt.Sprintf("   %s", snippet))
		}
	}
	return strings.Join(lines, "\n")
}
