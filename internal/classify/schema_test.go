package classify

import (
	"encoding/json"
	"testing"
)

func TestValidateCheckPayload_Valid(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`[
		{
			"category": "exclusive",
			"topic_cluster": "임원 수사",
			"publisher": "한겨레",
			"title": "[단독] 검찰, 전직 임원 소환",
			"summary": "검찰이 전직 임원을 소환 조사했다.",
			"reason": "단독 보도",
			"key_facts": ["소환 조사", "배임 혐의"],
			"source_indices": [2],
			"merged_indices": [3, 5]
		}
	]`)

	items, err := validateCheckPayload(payload)
	if err != nil {
		t.Fatalf("validateCheckPayload failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.Category != CheckExclusive {
		t.Fatalf("unexpected category %q", item.Category)
	}
	if len(item.MergedIndices) != 2 || item.MergedIndices[0] != 3 {
		t.Fatalf("unexpected merged indices %v", item.MergedIndices)
	}
}

func TestValidateCheckPayload_UnknownCategory(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`[{"category":"breaking","title":"t","source_indices":[1]}]`)
	if _, err := validateCheckPayload(payload); err == nil {
		t.Fatalf("expected schema rejection for unknown category")
	}
}

func TestValidateCheckPayload_MissingSourceIndices(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`[{"category":"skip","title":"t"}]`)
	if _, err := validateCheckPayload(payload); err == nil {
		t.Fatalf("expected schema rejection for missing source_indices")
	}
}

func TestValidateCheckPayload_ZeroIndexRejected(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`[{"category":"important","title":"t","source_indices":[0]}]`)
	if _, err := validateCheckPayload(payload); err == nil {
		t.Fatalf("expected schema rejection for zero index")
	}
}

func TestValidateCheckPayload_TrailingContent(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`[] trailing`)
	if _, err := validateCheckPayload(payload); err == nil {
		t.Fatalf("expected rejection for trailing content")
	}
}

func TestValidateBriefingPayload_Valid(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`[
		{
			"category": "follow_up",
			"exclusive": true,
			"existing_ref": 2,
			"title": "구속영장 발부",
			"summary": "법원이 구속영장을 발부했다.",
			"tags": ["수사", "구속"],
			"source_indices": [1],
			"merged_indices": []
		},
		{
			"category": "new",
			"title": "신규 정책 발표",
			"summary": "정부가 새 정책을 발표했다.",
			"source_indices": [4]
		}
	]`)

	items, err := validateBriefingPayload(payload)
	if err != nil {
		t.Fatalf("validateBriefingPayload failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ExistingRef != 2 || !items[0].Exclusive {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if items[1].ExistingRef != 0 {
		t.Fatalf("expected zero existing_ref for new item, got %d", items[1].ExistingRef)
	}
}

func TestValidateBriefingPayload_NegativeRefRejected(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage(`[{"category":"new","existing_ref":-1,"title":"t","source_indices":[1]}]`)
	if _, err := validateBriefingPayload(payload); err == nil {
		t.Fatalf("expected schema rejection for negative existing_ref")
	}
}
