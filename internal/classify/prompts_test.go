package classify

import (
	"strings"
	"testing"
	"time"
)

func TestFormatCandidates_Numbering(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{
		{Publisher: "예시일보", Title: "첫 기사", URL: "https://a.example/1",
			PublishedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		{Publisher: "중앙방송", Title: "둘째 기사", URL: "https://a.example/2", Body: "본문입니다."},
	}

	got := formatCandidates("[수집된 기사]", candidates)
	if !strings.Contains(got, "1. [예시일보] 첫 기사") {
		t.Fatalf("first candidate not numbered from 1:\n%s", got)
	}
	if !strings.Contains(got, "2. [중앙방송] 둘째 기사") {
		t.Fatalf("second candidate misnumbered:\n%s", got)
	}
	if !strings.Contains(got, "시각: 2026-03-02 09:00") {
		t.Fatalf("publication time missing:\n%s", got)
	}
	if !strings.Contains(got, "본문(1~2문단): 본문입니다.") {
		t.Fatalf("body line missing:\n%s", got)
	}
}

func TestFormatCandidates_BodyClipped(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("가", maxPromptBodyRunes+500)
	got := formatCandidates("[수집된 기사]", []Candidate{{Publisher: "p", Title: "t", Body: long}})
	if strings.Contains(got, long) {
		t.Fatalf("body was not clipped")
	}
	if !strings.Contains(got, strings.Repeat("가", maxPromptBodyRunes)) {
		t.Fatalf("clipped body missing")
	}
}

func TestBuildCheckUserPrompt_History(t *testing.T) {
	t.Parallel()

	req := CheckRequest{
		Department: "사회",
		Candidates: []Candidate{{Publisher: "p", Title: "t", URL: "u"}},
		History: []HistoryEntry{{
			CheckedAt:    time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
			TopicCluster: "임원 수사",
			KeyFacts:     []string{"소환 조사", "배임 혐의"},
		}},
	}

	got := buildCheckUserPrompt(req)
	if !strings.Contains(got, `2026-03-01 14:00 보고: "임원 수사"`) {
		t.Fatalf("history entry missing:\n%s", got)
	}
	if !strings.Contains(got, "(1) 소환 조사, (2) 배임 혐의") {
		t.Fatalf("key facts missing:\n%s", got)
	}

	empty := buildCheckUserPrompt(CheckRequest{Candidates: req.Candidates})
	if !strings.Contains(empty, "이력 없음") {
		t.Fatalf("empty history marker missing:\n%s", empty)
	}
}

func TestBuildBriefingSystemPrompt_ScenarioSwitch(t *testing.T) {
	t.Parallel()

	base := BriefingRequest{
		Department: "경제",
		Date:       "2026-03-02",
		RecentTags: []string{"금리", "환율"},
		Candidates: []Candidate{{Publisher: "p", Title: "t"}},
	}

	first := buildBriefingSystemPrompt(base)
	if !strings.Contains(first, "당일 첫 요청") {
		t.Fatalf("first-run procedure missing:\n%s", first)
	}
	if strings.Contains(first, "existing_ref") {
		t.Fatalf("first-run prompt must not mention existing_ref")
	}
	if !strings.Contains(first, "#금리 #환율") {
		t.Fatalf("recent tags missing:\n%s", first)
	}
	if !strings.Contains(first, "경제부") {
		t.Fatalf("department label missing:\n%s", first)
	}

	update := base
	update.Existing = []ExistingEntry{{Title: "기존 기사", Summary: "요약", Tags: []string{"금리"}}}
	got := buildBriefingSystemPrompt(update)
	if !strings.Contains(got, "당일 재요청") {
		t.Fatalf("update-run procedure missing:\n%s", got)
	}
	if !strings.Contains(got, "1. 기존 기사 | 요약: 요약 | #금리") {
		t.Fatalf("existing cache listing missing:\n%s", got)
	}
	if !strings.Contains(got, "existing_ref") {
		t.Fatalf("update-run schema missing existing_ref:\n%s", got)
	}
}

func TestDepartmentLabel(t *testing.T) {
	t.Parallel()

	if got := departmentLabel("사회"); got != "사회부" {
		t.Fatalf("departmentLabel(사회) = %q", got)
	}
	if got := departmentLabel("경제부"); got != "경제부" {
		t.Fatalf("departmentLabel(경제부) = %q", got)
	}
}
