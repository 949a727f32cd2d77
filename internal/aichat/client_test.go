package aichat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestChatReturnsContent(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: `{"Message":"hi","Emotion":10}`}}},
		})
	})

	c := NewClient(srv.URL, "test-key", WithTimeout(2*time.Second))
	content, err := c.Chat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if content != `{"Message":"hi","Emotion":10}` {
		t.Fatalf("content = %q", content)
	}
}

func TestChatEmptyCompletion(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	c := NewClient(srv.URL, "", WithTimeout(2*time.Second))
	if _, err := c.Chat(context.Background(), "hello"); !errors.Is(err, ErrAIResponse) {
		t.Fatalf("expected ErrAIResponse, got %v", err)
	}
}

func TestChatRetriesServerError(t *testing.T) {
	calls := 0
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	})
	c := NewClient(srv.URL, "", WithTimeout(2*time.Second), WithRetry(2))
	content, err := c.Chat(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Chat after retry: %v", err)
	}
	if content != "ok" || calls != 2 {
		t.Fatalf("content=%q calls=%d", content, calls)
	}
}

func TestChatDoesNotRetryClientError(t *testing.T) {
	calls := 0
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	})
	c := NewClient(srv.URL, "", WithTimeout(2*time.Second), WithRetry(3))
	if _, err := c.Chat(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error on 400")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
