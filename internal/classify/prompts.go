package classify

import (
	"fmt"
	"strings"
	"time"
)

// Candidate is one collected article shown to the classifier. Candidates are
// numbered from 1 in the prompt and results refer back by those numbers.
type Candidate struct {
	Publisher   string
	Title       string
	URL         string
	Body        string
	PublishedAt time.Time
}

// HistoryEntry is one previously reported topic from the lookback window.
type HistoryEntry struct {
	CheckedAt    time.Time
	TopicCluster string
	KeyFacts     []string
}

// ExistingEntry is one cached briefing item from earlier the same day,
// numbered from 1 for the update-run prompt.
type ExistingEntry struct {
	Title   string
	Summary string
	Tags    []string
}

// CheckRequest is the input to a check-variant classification.
type CheckRequest struct {
	Department string
	Candidates []Candidate
	History    []HistoryEntry
}

// BriefingRequest is the input to a briefing-variant classification. A
// non-empty Existing list switches the prompt into update-run form.
type BriefingRequest struct {
	Department string
	Date       string
	RecentTags []string
	Existing   []ExistingEntry
	Candidates []Candidate
}

// Prompt bodies are clipped so a pathological article cannot blow up the
// request size.
const maxPromptBodyRunes = 1200

const checkSystemPrompt = `당신은 기자의 타사 체크 보조입니다.

[주요 기사 판단 기준]
아래 기준 중 하나 이상에 해당하면 important로 판단한다:

A. 팩트 기반
  - 공식 조치: 체포, 구속, 기소, 영장 청구/기각, 판결, 정책 발표
  - 수치적 규모: 금액, 인원, 피해 규모가 유의미한 수준
  - 관계자 급: 고위 공직자, 대기업 임원, 공인 등
  - 중대한 전개: 소환→구속, 수사→기소 등 국면 전환

B. 경쟁 관점
  - 사실상 단독: [단독] 태그 없어도 특정 언론사만 보도한 기사는 exclusive
  - 복수 보도: 3개 이상 주요 언론사가 동시 보도
  - 새로운 앵글: 동일 사안에 대한 새로운 관점/정보

C. 시의성
  - 속보성: 방금 발생/확인된 사건
  - 임박 이벤트: 오늘/내일 중 결정/발표/공판 예정

[중복 제거 기준]
1. 동일 배치 내: 같은 사안의 여러 기사는 가장 포괄적인 1건을 source_indices에,
   나머지를 merged_indices에 넣는다
2. 이전 보고 대비: 이력과 실질적으로 동일한 내용이면 skip
3. 중복 예외: 이전 보고 주제라도 중요한 새 팩트(공식 조치, 수치 변경,
   인물 추가 등)가 있으면 보고

[요약 작성 기준]
- 구체적 정보: "수사가 확대됐다" 대신 "임원 3명을 추가 소환했다"
- 핵심 수치/사실 포함: 인물명, 기관명, 일시 등
- 사실 기반 작성, 추측/의견 배제

[출력 형식]
반드시 아래 JSON 배열로만 응답하라. JSON 외 텍스트는 포함하지 않는다.
모든 기사 번호가 정확히 하나의 항목의 source_indices 또는 merged_indices에
나타나야 한다.
각 항목:
{
  "category": "exclusive" | "important" | "skip",
  "topic_cluster": "주제 식별자 (짧은 구문)",
  "publisher": "언론사명",
  "title": "기사 제목",
  "summary": "2~3문장 요약",
  "reason": "주요 판단 근거 1문장 (skip이면 빈 문자열)",
  "key_facts": ["핵심 팩트1", "핵심 팩트2"],
  "source_indices": [대표 기사 번호],
  "merged_indices": [병합된 기사 번호] 또는 빈 배열
}`

func buildCheckUserPrompt(req CheckRequest) string {
	var sections []string

	if len(req.History) > 0 {
		lines := []string{"[기자의 최근 보고 이력]"}
		for _, h := range req.History {
			var facts []string
			for j, f := range h.KeyFacts {
				facts = append(facts, fmt.Sprintf("(%d) %s", j+1, f))
			}
			lines = append(lines, fmt.Sprintf("- %s 보고: %q", h.CheckedAt.Format("2006-01-02 15:04"), h.TopicCluster))
			lines = append(lines, fmt.Sprintf("  확인된 팩트: %s", strings.Join(facts, ", ")))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	} else {
		sections = append(sections, "[기자의 최근 보고 이력]\n이력 없음")
	}

	sections = append(sections, formatCandidates("[새로 수집된 기사]", req.Candidates))

	sections = append(sections,
		"각 기사에 대해:\n"+
			"1. 중복 제거: 동일 배치 내 병합 + 이전 보고 대비 중복 판단\n"+
			"2. 단독 식별: 제목 태그 또는 사실상 단독 여부\n"+
			"3. 중복 아닌 기사에 주요도 판단 (A~C 기준 적용)\n"+
			"4. 보고 대상: 요약 + 해당되는 판단 근거 명시")

	return strings.Join(sections, "\n\n")
}

const briefingOutputSchemaFirst = `[
  {
    "category": "follow_up" 또는 "new",
    "exclusive": true 또는 false,
    "title": "기사 제목",
    "url": "기사 URL",
    "summary": "1~2문장 핵심 요약",
    "reason": "선정 근거 1문장",
    "tags": ["태그1", "태그2"],
    "source_indices": [대표 기사 번호],
    "merged_indices": [병합된 기사 번호] 또는 빈 배열
  }
]
- exclusive: 제목에 [단독] 태그가 있거나 특정 언론사만 보도한 기사이면 true
- 주요 기사 5~8개를 선정한다`

const briefingOutputSchemaUpdate = `[
  {
    "category": "follow_up" 또는 "new",
    "exclusive": true 또는 false,
    "existing_ref": 수정 대상 기존 항목 번호 (신규 항목은 0),
    "title": "기사 제목",
    "url": "기사 URL",
    "summary": "갱신된 요약 또는 신규 요약",
    "reason": "선정 근거 1문장",
    "tags": ["태그1", "태그2"],
    "source_indices": [대표 기사 번호],
    "merged_indices": [병합된 기사 번호] 또는 빈 배열
  }
]
- exclusive: 제목에 [단독] 태그가 있거나 특정 언론사만 보도한 기사이면 true
변경 없는 기존 항목은 포함하지 않는다. 수정/추가 항목이 없으면 빈 배열 []을 반환.`

func buildBriefingSystemPrompt(req BriefingRequest) string {
	deptLabel := departmentLabel(req.Department)
	updateRun := len(req.Existing) > 0

	sections := []string{
		fmt.Sprintf("당신은 %s 기자의 뉴스 브리핑 보조입니다.\n"+
			"아래에 번호가 붙은 수집 기사 목록이 주어진다. 이 목록만을 근거로 "+
			"브리핑을 작성한다.", deptLabel),
		fmt.Sprintf("[오늘 날짜]\n오늘은 %s이다. 당일 뉴스만 대상으로 한다.", req.Date),
	}

	if len(req.RecentTags) > 0 {
		var tags []string
		for _, t := range req.RecentTags {
			tags = append(tags, "#"+t)
		}
		sections = append(sections, "[이전 전달 태그 - 최근 3일]\n"+strings.Join(tags, " "))
	}

	if updateRun {
		lines := []string{"[오늘 기존 캐시]"}
		for i, item := range req.Existing {
			var tags []string
			for _, t := range item.Tags {
				tags = append(tags, "#"+t)
			}
			lines = append(lines, fmt.Sprintf("%d. %s | 요약: %s | %s",
				i+1, item.Title, item.Summary, strings.Join(tags, " ")))
		}
		sections = append(sections, strings.Join(lines, "\n"))

		sections = append(sections,
			"[절차 - 당일 재요청]\n"+
				"1. 기존 캐시 항목의 후속 정보가 수집 기사에 있는지 확인\n"+
				"2. 기존 항목에 새 정보가 있으면 existing_ref로 해당 번호를 지정 (기존 요약에 새 정보 병합)\n"+
				"3. 기존 캐시에 없는 새로운 기사는 existing_ref를 0으로 지정\n"+
				"4. 변경 없는 항목은 출력하지 않음\n"+
				"5. 분석이 끝나면 아래 JSON 형식으로 응답")
	} else {
		sections = append(sections,
			"[절차 - 당일 첫 요청]\n"+
				"1. 이전 태그와 내용상 연결되는 보도는 follow_up\n"+
				"2. 연결 없는 새로운 뉴스는 new\n"+
				"3. 주요 기사 5~8개 선정\n"+
				"4. 분석이 끝나면 아래 JSON 형식으로 응답")
	}

	sections = append(sections,
		"[요약 작성 기준]\n"+
			"- 1~2문장으로 핵심만 전달. 길게 쓰지 않는다\n"+
			"- 구체적 정보: \"수사가 확대됐다\" 대신 \"임원 3명을 추가 소환했다\"\n"+
			"- 사실 기반, 추측/의견 배제")

	schema := briefingOutputSchemaFirst
	if updateRun {
		schema = briefingOutputSchemaUpdate
	}
	sections = append(sections,
		"[출력 형식]\n"+
			"반드시 아래 JSON 배열로만 응답하라. JSON 외 텍스트는 포함하지 않는다.\n"+
			schema)

	return strings.Join(sections, "\n\n")
}

func buildBriefingUserPrompt(req BriefingRequest) string {
	deptLabel := departmentLabel(req.Department)

	var sections []string
	sections = append(sections, formatCandidates("[수집된 기사]", req.Candidates))
	if len(req.Existing) > 0 {
		sections = append(sections, fmt.Sprintf(
			"%s 관련 수집 기사에서 기존 캐시 대비 변경/추가 사항을 보고하시오.", deptLabel))
	} else {
		sections = append(sections, fmt.Sprintf(
			"%s 관련 %s 주요 뉴스 브리핑을 작성하시오.", deptLabel, req.Date))
	}
	return strings.Join(sections, "\n\n")
}

func formatCandidates(header string, candidates []Candidate) string {
	lines := []string{header}
	for i, c := range candidates {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s", i+1, c.Publisher, c.Title))
		if body := clipRunes(c.Body, maxPromptBodyRunes); body != "" {
			lines = append(lines, fmt.Sprintf("   본문(1~2문단): %s", body))
		}
		lines = append(lines, fmt.Sprintf("   URL: %s", c.URL))
		if !c.PublishedAt.IsZero() {
			lines = append(lines, fmt.Sprintf("   시각: %s", c.PublishedAt.Format("2006-01-02 15:04")))
		}
	}
	return strings.Join(lines, "\n")
}

func departmentLabel(department string) string {
	if strings.HasSuffix(department, "부") {
		return department
	}
	return department + "부"
}

func clipRunes(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
