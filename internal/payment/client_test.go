package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIntentID(t *testing.T) {
	tests := []struct {
		clientSecret string
		want         string
	}{
		{"pi_123_secret_456", "pi_123"},
		{"pi_abc_secret", "pi_abc"},
		{"no-delimiter-here", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := IntentID(tt.clientSecret); got != tt.want {
			t.Fatalf("IntentID(%q) = %q, want %q", tt.clientSecret, got, tt.want)
		}
	}
}

func TestCreateIntent_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/payment_intents" {
			t.Fatalf("path = %s, want /v1/payment_intents", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Fatalf("authorization = %q, want Bearer sk_test", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostFormValue("amount") != "2099" {
			t.Fatalf("amount = %s, want 2099", r.PostFormValue("amount"))
		}
		if r.PostFormValue("currency") != "usd" {
			t.Fatalf("currency = %s, want usd", r.PostFormValue("currency"))
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(Intent{
			ID:           "pi_123",
			ClientSecret: "pi_123_secret_456",
			Amount:       2099,
			Currency:     "usd",
		}); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "sk_test")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	intent, err := client.CreateIntent(ctx, 2099, "usd")
	if err != nil {
		t.Fatalf("CreateIntent error: %v", err)
	}
	if intent.ID != "pi_123" || intent.ClientSecret != "pi_123_secret_456" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
}

func TestCreateIntent_NotConfigured(t *testing.T) {
	client := NewClient("http://localhost", "")

	_, err := client.CreateIntent(context.Background(), 100, "usd")
	if err != ErrNotConfigured {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}

	var nilClient *Client
	_, err = nilClient.CreateIntent(context.Background(), 100, "usd")
	if err != ErrNotConfigured {
		t.Fatalf("nil client err = %v, want ErrNotConfigured", err)
	}
}

func TestModifyIntentMetadata_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents/pi_123" {
			t.Fatalf("path = %s, want /v1/payment_intents/pi_123", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostFormValue("metadata[bag]"); got != `{"7":2}` {
			t.Fatalf("metadata[bag] = %s", got)
		}
		if got := r.PostFormValue("metadata[save_info]"); got != "true" {
			t.Fatalf("metadata[save_info] = %s", got)
		}
		if got := r.PostFormValue("metadata[username]"); got != "reader" {
			t.Fatalf("metadata[username] = %s", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "sk_test")

	err := client.ModifyIntentMetadata(context.Background(), "pi_123", Metadata{
		Bag:      `{"7":2}`,
		SaveInfo: "true",
		Username: "reader",
	})
	if err != nil {
		t.Fatalf("ModifyIntentMetadata error: %v", err)
	}
}

func TestModifyIntentMetadata_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no such intent"}`, http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "sk_test")

	err := client.ModifyIntentMetadata(context.Background(), "pi_missing", Metadata{})
	if err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}
