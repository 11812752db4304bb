package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadyWithoutToken(t *testing.T) {
	s := NewSender("", "")
	if !errors.Is(s.Ready(), ErrNoAccessToken) {
		t.Errorf("Ready() = %v, want ErrNoAccessToken", s.Ready())
	}
	if err := s.SendText(context.Background(), "U1", "hi"); !errors.Is(err, ErrNoAccessToken) {
		t.Errorf("SendText without token = %v, want ErrNoAccessToken", err)
	}
}

func TestSendTextPayload(t *testing.T) {
	var got map[string]any
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("access_token")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender("tok-1", srv.URL)
	if err := s.SendText(context.Background(), "U1", "Hi there"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}

	if gotToken != "tok-1" {
		t.Errorf("access_token = %q", gotToken)
	}
	rec := got["recipient"].(map[string]any)
	msg := got["message"].(map[string]any)
	if rec["id"] != "U1" || msg["text"] != "Hi there" {
		t.Errorf("payload = %v", got)
	}
	if _, hasAttachment := msg["attachment"]; hasAttachment {
		t.Error("text send carried an attachment field")
	}
}

func TestSendImagePayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender("tok-1", srv.URL)
	if err := s.SendImage(context.Background(), "U1", "https://example.com/a.png"); err != nil {
		t.Fatalf("SendImage() error = %v", err)
	}

	msg := got["message"].(map[string]any)
	att := msg["attachment"].(map[string]any)
	payload := att["payload"].(map[string]any)
	if att["type"] != "image" {
		t.Errorf("attachment type = %v", att["type"])
	}
	if payload["url"] != "https://example.com/a.png" || payload["is_reusable"] != true {
		t.Errorf("attachment payload = %v", payload)
	}
}

func TestSendNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewSender("bad", srv.URL)
	if err := s.SendText(context.Background(), "U1", "hi"); err == nil {
		t.Error("SendText() on 401 returned nil error")
	}
}
