package pipeline

import (
	"testing"
	"time"

	"horse.fit/presscheck/internal/classify"
	"horse.fit/presscheck/internal/db"
	"horse.fit/presscheck/internal/newswire"
)

func TestDiff_FirstRunAllAdded(t *testing.T) {
	t.Parallel()

	candidates := []newswire.Candidate{
		{Title: "첫번째 기사", Link: "https://news.example/u1"},
		{Title: "두번째 기사", Link: "https://news.example/u2"},
	}
	results := []classify.BriefingItem{
		{Category: classify.BriefingNew, Title: "첫번째 기사", Summary: "요약1", SourceIndices: []int{1}},
		{Category: classify.BriefingNew, Title: "두번째 기사", Summary: "요약2", SourceIndices: []int{2}},
	}

	items := Diff(nil, results, candidates)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for _, item := range items {
		if item.Action != ActionAdded {
			t.Fatalf("expected all items added on first run, got %s", item.Action)
		}
	}
}

func TestDiff_UpdateRunModifiesByRef(t *testing.T) {
	t.Parallel()

	existing := []db.BriefingItemRow{
		{ItemUUID: "uuid-1", Title: "기존 기사", Summary: "이전 요약", Tags: []string{"수사"}},
		{ItemUUID: "uuid-2", Title: "다른 기존 기사", Summary: "그대로"},
	}
	candidates := []newswire.Candidate{
		{Title: "기존 기사 후속", Link: "https://news.example/u3"},
	}
	results := []classify.BriefingItem{
		{
			Category:      classify.BriefingFollowUp,
			ExistingRef:   1,
			Title:         "기존 기사",
			Summary:       "임원 3명을 추가 소환했다",
			Tags:          []string{"수사", "소환"},
			SourceIndices: []int{1},
		},
	}

	items := Diff(existing, results, candidates)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	var modified, unchanged int
	for _, item := range items {
		switch item.Action {
		case ActionModified:
			modified++
			if item.Row.ItemUUID != "uuid-1" {
				t.Fatalf("expected modification of uuid-1, got %s", item.Row.ItemUUID)
			}
			if item.Update.Summary != "임원 3명을 추가 소환했다" {
				t.Fatalf("expected replaced summary, got %q", item.Update.Summary)
			}
		case ActionUnchanged:
			unchanged++
			if item.Row.ItemUUID != "uuid-2" {
				t.Fatalf("expected uuid-2 unchanged, got %s", item.Row.ItemUUID)
			}
			if item.Row.Summary != "그대로" {
				t.Fatalf("unchanged item must not be touched, got %q", item.Row.Summary)
			}
		default:
			t.Fatalf("unexpected action %s", item.Action)
		}
	}
	if modified != 1 || unchanged != 1 {
		t.Fatalf("expected 1 modified and 1 unchanged, got %d/%d", modified, unchanged)
	}
}

func TestDiff_EmptyResultsAllUnchanged(t *testing.T) {
	t.Parallel()

	existing := []db.BriefingItemRow{
		{ItemUUID: "uuid-1", Title: "기존 기사"},
		{ItemUUID: "uuid-2", Title: "다른 기존 기사"},
	}

	items := Diff(existing, nil, nil)
	if len(items) != len(existing) {
		t.Fatalf("expected %d items, got %d", len(existing), len(items))
	}
	for _, item := range items {
		if item.Action != ActionUnchanged {
			t.Fatalf("repeat run with no results must be all-unchanged, got %s", item.Action)
		}
	}
}

func TestDiff_ZeroRefIsAdded(t *testing.T) {
	t.Parallel()

	existing := []db.BriefingItemRow{
		{ItemUUID: "uuid-1", Title: "기존 기사"},
	}
	candidates := []newswire.Candidate{
		{Title: "완전히 새로운 기사", Link: "https://news.example/u1"},
	}
	results := []classify.BriefingItem{
		{Category: classify.BriefingNew, ExistingRef: 0, Title: "완전히 새로운 기사", SourceIndices: []int{1}},
	}

	items := Diff(existing, results, candidates)
	var added int
	for _, item := range items {
		if item.Action == ActionAdded {
			added++
			if item.Insert.URL != "https://news.example/u1" {
				t.Fatalf("expected added item reconciled against candidates, got %q", item.Insert.URL)
			}
		}
	}
	if added != 1 {
		t.Fatalf("expected 1 added item, got %d", added)
	}
}

func TestDiff_ChangedBeforeUnchangedNewestFirst(t *testing.T) {
	t.Parallel()

	early := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	late := time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC)
	candidates := []newswire.Candidate{
		{Title: "이른 기사", Link: "https://news.example/u1", PublishedAt: early},
		{Title: "늦은 기사", Link: "https://news.example/u2", PublishedAt: late},
	}
	existing := []db.BriefingItemRow{
		{ItemUUID: "uuid-old", Title: "기존 기사"},
	}
	results := []classify.BriefingItem{
		{Category: classify.BriefingNew, Title: "이른 기사", SourceIndices: []int{1}},
		{Category: classify.BriefingNew, Title: "늦은 기사", SourceIndices: []int{2}},
	}

	items := Diff(existing, results, candidates)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Row.Title != "늦은 기사" || items[1].Row.Title != "이른 기사" {
		t.Fatalf("expected changed items newest-first, got %q then %q", items[0].Row.Title, items[1].Row.Title)
	}
	if items[2].Action != ActionUnchanged {
		t.Fatalf("expected unchanged items grouped last, got %s", items[2].Action)
	}
}
