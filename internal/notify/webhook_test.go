package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookNotifier_Delivers(t *testing.T) {
	received := make(chan Event, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		var event Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			t.Errorf("decode body: %v", err)
		}
		received <- event
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookOptions{URL: server.URL})

	sent := NewEvent(KindLargeBalance, "BOND-1")
	sent.Address = "rWhale"
	sent.Percentage = 12.5
	n.Notify(context.Background(), sent)

	got := <-received
	if got.Kind != KindLargeBalance || got.InstrumentID != "BOND-1" {
		t.Errorf("unexpected event: %+v", got)
	}
	if got.Percentage != 12.5 {
		t.Errorf("percentage = %v", got.Percentage)
	}
	if got.ID == "" || got.Timestamp == 0 {
		t.Error("event id and timestamp should be populated")
	}
}

func TestWebhookNotifier_SwallowsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	server.Close() // dead endpoint

	n := NewWebhookNotifier(WebhookOptions{URL: server.URL})

	// Must not panic or block.
	n.Notify(context.Background(), NewEvent(KindTransfer, "BOND-1"))
}
