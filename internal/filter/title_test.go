package filter

import (
	"testing"

	"horse.fit/presscheck/internal/newswire"
)

func TestHasSkipTag(t *testing.T) {
	cases := []struct {
		title string
		want  bool
	}{
		{"[포토] 국회 본회의장", true},
		{"국정감사 현장 [사진]", true},
		{"[영상] 기자회견 전체", true},
		{"[단독] 검찰, 전직 임원 소환", false},
		{"예산안 처리 지연", false},
	}
	for _, tc := range cases {
		if got := HasSkipTag(tc.title); got != tc.want {
			t.Fatalf("HasSkipTag(%q) = %v, want %v", tc.title, got, tc.want)
		}
	}
}

func TestByTitle_DropsNonTextContent(t *testing.T) {
	candidates := []newswire.Candidate{
		{Title: "[포토] 수해 복구 현장", Snippet: "현장 사진 모음"},
		{Title: "정부, 수해 복구 예산 편성", Snippet: "정부가 수해 복구를 위한 추가 예산을 편성했다."},
	}

	kept := ByTitle(candidates)
	if len(kept) != 1 {
		t.Fatalf("expected 1 kept, got %d", len(kept))
	}
	if kept[0].Title != "정부, 수해 복구 예산 편성" {
		t.Fatalf("wrong candidate kept: %q", kept[0].Title)
	}
}

func TestByTitle_KeepsShortTitles(t *testing.T) {
	// Too few letters for language detection; the gate must not drop them.
	candidates := []newswire.Candidate{{Title: "속보", Snippet: ""}}
	if kept := ByTitle(candidates); len(kept) != 1 {
		t.Fatalf("expected short title to survive, got %d kept", len(kept))
	}
}
