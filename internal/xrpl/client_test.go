package xrpl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClient_Dial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := Dial(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	select {
	case <-client.Done():
		t.Error("fresh session should not be done")
	default:
	}
}

func TestClient_SubscribeAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req map[string]any
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req["command"] != "subscribe" {
			t.Errorf("command = %v, want subscribe", req["command"])
		}
		accounts, ok := req["accounts"].([]any)
		if !ok || len(accounts) != 2 {
			t.Errorf("accounts = %v", req["accounts"])
		}

		resp := map[string]any{
			"id":     req["id"],
			"status": "success",
			"result": map[string]any{},
		}
		if err := conn.WriteJSON(resp); err != nil {
			t.Errorf("write response: %v", err)
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := Dial(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	err = client.SubscribeAccounts(context.Background(), []string{"rOne", "rTwo"})
	if err != nil {
		t.Fatalf("SubscribeAccounts: %v", err)
	}
}

func TestClient_RequestRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req map[string]any
		if err := json.Unmarshal(msg, &req); err != nil {
			return
		}

		resp := map[string]any{
			"id":            req["id"],
			"status":        "error",
			"error":         "actMalformed",
			"error_message": "Account malformed.",
		}
		if err := conn.WriteJSON(resp); err != nil {
			t.Errorf("write response: %v", err)
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := Dial(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	err = client.SubscribeAccounts(context.Background(), []string{"bogus"})
	if err == nil {
		t.Fatal("expected rejection error")
	}
	if !strings.Contains(err.Error(), "actMalformed") {
		t.Errorf("error should carry the ledger code, got %v", err)
	}
}

func TestClient_EventDelivery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		stream := map[string]any{
			"type":         "transaction",
			"validated":    true,
			"ledger_index": 99,
			"transaction": map[string]any{
				"TransactionType": "Payment",
				"Account":         "rSender",
				"hash":            "DEADBEEF",
			},
		}
		if err := conn.WriteJSON(stream); err != nil {
			t.Errorf("write stream message: %v", err)
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := Dial(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	select {
	case event := <-client.Events():
		if event.LedgerIndex != 99 || event.Hash != "DEADBEEF" {
			t.Errorf("unexpected event: %+v", event)
		}
		if event.Tx.TransactionType != TxTypePayment {
			t.Errorf("TransactionType = %q", event.Tx.TransactionType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestClient_DoneOnServerClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conn.Close()
	}))
	defer server.Close()

	client, err := Dial(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session should end when the server closes the connection")
	}
	if client.Err() == nil {
		t.Error("abnormal session end should record a cause")
	}
}
