package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestWebhookSend(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer server.Close()

	webhook := NewWebhook(server.URL, zerolog.Nop())
	if err := webhook.Send(context.Background(), "[타사 체크] 주요 1건"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if received.Text != "[타사 체크] 주요 1건" {
		t.Fatalf("payload text %q", received.Text)
	}
}

func TestWebhookSend_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	webhook := NewWebhook(server.URL, zerolog.Nop())
	if err := webhook.Send(context.Background(), "message"); err == nil {
		t.Fatalf("expected error for non-2xx status")
	}
}

func TestWebhookSend_Unconfigured(t *testing.T) {
	webhook := NewWebhook("", zerolog.Nop())
	if err := webhook.Send(context.Background(), "message"); err == nil {
		t.Fatalf("expected error for empty URL")
	}
}

func TestDiscard(t *testing.T) {
	if err := (Discard{}).Send(context.Background(), "message"); err != nil {
		t.Fatalf("Discard must never fail: %v", err)
	}
}
