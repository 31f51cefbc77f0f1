package notify

import (
	"fmt"
	"strings"
	"time"

	"horse.fit/presscheck/internal/pipeline"
)

const maxMessageLen = 4096

// FormatCheckHeader renders the check-run summary line.
func FormatCheckHeader(outcome pipeline.CheckOutcome, at time.Time) string {
	reported := 0
	for _, item := range outcome.Items {
		if item.Category.Reportable() {
			reported++
		}
	}
	return fmt.Sprintf("[타사 체크] (%s)\n주요 %d건 (전체 %d건 중)",
		at.Format("2006-01-02 15:04"), reported, len(outcome.Items))
}

// FormatCheckItem renders one reportable check item as a standalone message.
func FormatCheckItem(item pipeline.CheckItem) string {
	tag := "[주요]"
	if item.Category == "exclusive" {
		tag = "[단독]"
	}

	lines := []string{fmt.Sprintf("%s [%s] %s", tag, item.Publisher, item.Title), "", item.Summary}
	if item.Reason != "" {
		lines = append(lines, "", "-> "+item.Reason)
	}
	if item.SourceCount > 1 {
		lines = append(lines, "", fmt.Sprintf("동일 사안 보도 %d건", item.SourceCount))
	}
	if item.URL != "" {
		lines = append(lines, "", item.URL)
	}
	return clipMessage(strings.Join(lines, "\n"))
}

// FormatBriefingHeader renders the briefing summary line. First runs show
// the total; update runs break the delta out.
func FormatBriefingHeader(outcome pipeline.BriefingOutcome) string {
	if outcome.FirstRun {
		return fmt.Sprintf("[부서 브리핑] %s\n주요 기사 %d건", outcome.Day, len(outcome.Items))
	}

	modified, added := 0, 0
	for _, item := range outcome.Items {
		switch item.Action {
		case pipeline.ActionModified:
			modified++
		case pipeline.ActionAdded:
			added++
		}
	}
	return fmt.Sprintf("[부서 브리핑 갱신] %s\n전체 %d건 (수정 %d건, 추가 %d건)",
		outcome.Day, len(outcome.Items), modified, added)
}

// FormatBriefingItem renders one briefing entry. Update runs prefix changed
// entries with their action so they stand out from the carried-over set.
func FormatBriefingItem(item pipeline.DiffItem, updateRun bool) string {
	var prefix string
	if updateRun {
		switch item.Action {
		case pipeline.ActionModified:
			prefix = "[수정] "
		case pipeline.ActionAdded:
			prefix = "[추가] "
		}
	}

	head := item.Row.Title
	if item.Row.Exclusive {
		head = "[단독] " + head
	}
	if item.Row.Publisher != "" {
		head = fmt.Sprintf("[%s] %s", item.Row.Publisher, head)
	}

	lines := []string{prefix + head, "", item.Row.Summary}
	if len(item.Row.Tags) > 0 {
		var tags []string
		for _, t := range item.Row.Tags {
			tags = append(tags, "#"+t)
		}
		lines = append(lines, "", strings.Join(tags, " "))
	}
	if item.Row.URL != "" {
		lines = append(lines, "", item.Row.URL)
	}
	return clipMessage(strings.Join(lines, "\n"))
}

// FormatNoResults is the normal empty outcome, distinct from a failure.
func FormatNoResults() string {
	return "시간 윈도우 내 신규 기사가 없습니다."
}

// FormatFailure is the run-failed notice. It must never read like an empty
// result.
func FormatFailure(variant string, err error) string {
	label := "타사 체크"
	if variant == "briefing" {
		label = "부서 브리핑"
	}
	return fmt.Sprintf("[오류] %s 실행에 실패했습니다: %v", label, err)
}

func clipMessage(msg string) string {
	runes := []rune(msg)
	if len(runes) <= maxMessageLen {
		return msg
	}
	return string(runes[:maxMessageLen-3]) + "..."
}
