package newswire

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func searchServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func writeItems(t *testing.T, w http.ResponseWriter, items []searchItem) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(searchResponse{Items: items}); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func pubDate(t time.Time) string {
	return t.Format(time.RFC1123Z)
}

func TestSearch_DedupAndOrder(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	server := searchServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("query") {
		case "예산":
			writeItems(t, w, []searchItem{
				{Title: "예산안 처리", OriginalLink: "https://a.example/1", PubDate: pubDate(base.Add(10 * time.Minute))},
				{Title: "공통 기사", OriginalLink: "https://a.example/shared", PubDate: pubDate(base.Add(30 * time.Minute))},
			})
		case "국회":
			writeItems(t, w, []searchItem{
				{Title: "공통 기사", OriginalLink: "https://a.example/shared", PubDate: pubDate(base.Add(30 * time.Minute))},
				{Title: "본회의 개의", OriginalLink: "https://a.example/2", PubDate: pubDate(base.Add(50 * time.Minute))},
			})
		default:
			writeItems(t, w, nil)
		}
	})

	client := NewClient("id", "secret", zerolog.Nop(), WithBaseURL(server.URL))
	got, err := client.Search(context.Background(), []string{"예산", "국회"}, base, 100)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 deduplicated candidates, got %d", len(got))
	}
	if got[0].Title != "본회의 개의" || got[1].Title != "공통 기사" || got[2].Title != "예산안 처리" {
		t.Fatalf("not newest first: %+v", got)
	}
}

func TestSearch_WindowFilter(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	server := searchServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeItems(t, w, []searchItem{
			{Title: "윈도우 안", OriginalLink: "https://a.example/in", PubDate: pubDate(base.Add(time.Hour))},
			{Title: "윈도우 밖", OriginalLink: "https://a.example/out", PubDate: pubDate(base.Add(-time.Hour))},
		})
	})

	client := NewClient("id", "secret", zerolog.Nop(), WithBaseURL(server.URL))
	got, err := client.Search(context.Background(), []string{"예산"}, base, 100)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "윈도우 안" {
		t.Fatalf("window edge not enforced: %+v", got)
	}
}

func TestSearch_ClipsToMaxResults(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	server := searchServer(t, func(w http.ResponseWriter, r *http.Request) {
		items := make([]searchItem, 0, 5)
		for i := 0; i < 5; i++ {
			items = append(items, searchItem{
				Title:        "기사",
				OriginalLink: "https://a.example/" + r.URL.Query().Get("query") + string(rune('a'+i)),
				PubDate:      pubDate(base.Add(time.Duration(i) * time.Minute)),
			})
		}
		writeItems(t, w, items)
	})

	client := NewClient("id", "secret", zerolog.Nop(), WithBaseURL(server.URL))
	got, err := client.Search(context.Background(), []string{"예산"}, base, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected clip to 3, got %d", len(got))
	}
}

func TestSearch_RateLimitSkipsKeyword(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	server := searchServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "막힌키워드" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeItems(t, w, []searchItem{
			{Title: "정상 기사", OriginalLink: "https://a.example/ok", PubDate: pubDate(base.Add(time.Minute))},
		})
	})

	client := NewClient("id", "secret", zerolog.Nop(), WithBaseURL(server.URL))
	got, err := client.Search(context.Background(), []string{"막힌키워드", "예산"}, base, 100)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "정상 기사" {
		t.Fatalf("rate-limited keyword not skipped cleanly: %+v", got)
	}
}

func TestSearch_ServerErrorFails(t *testing.T) {
	server := searchServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client := NewClient("id", "secret", zerolog.Nop(), WithBaseURL(server.URL))
	if _, err := client.Search(context.Background(), []string{"예산"}, time.Now(), 100); err == nil {
		t.Fatalf("expected error for server failure")
	}
}

func TestParseItem(t *testing.T) {
	item := searchItem{
		Title:        "<b>검찰</b> 수사 착수 &amp; 확대",
		Link:         "https://n.example/view/1",
		OriginalLink: "",
		Description:  "검찰이 <b>수사</b>에 착수했다.",
		PubDate:      "Mon, 02 Mar 2026 18:00:00 +0900",
	}

	got, err := parseItem(item)
	if err != nil {
		t.Fatalf("parseItem failed: %v", err)
	}
	if got.Title != "검찰 수사 착수 & 확대" {
		t.Fatalf("HTML not stripped from title: %q", got.Title)
	}
	if got.Snippet != "검찰이 수사에 착수했다." {
		t.Fatalf("HTML not stripped from snippet: %q", got.Snippet)
	}
	if got.OriginLink != "https://n.example/view/1" {
		t.Fatalf("expected link fallback for empty originallink, got %q", got.OriginLink)
	}
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !got.PublishedAt.Equal(want) {
		t.Fatalf("pubDate not normalized to UTC: %v", got.PublishedAt)
	}
}

func TestParseItem_BadDate(t *testing.T) {
	if _, err := parseItem(searchItem{PubDate: "어제"}); err == nil {
		t.Fatalf("expected error for unparsable pubDate")
	}
}
