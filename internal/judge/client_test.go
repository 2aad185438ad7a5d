package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trainworker/internal/convert"
)

func completionBody(content string) []byte {
	body := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 0,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
	raw, _ := json.Marshal(body)
	return raw
}

func TestClientScoreGroup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionBody(`{"scores": [0.9, 0.4]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "gpt-4o-mini", 0, 5*time.Second, nil)
	group := &convert.Group{
		WindowID: "2025-06-15T14:00",
		Examples: []*convert.Example{
			exampleWithMetrics("a", 500, 5),
			exampleWithMetrics("b", -200, 3),
		},
	}

	scores, err := c.ScoreGroup(context.Background(), group)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(scores) != 2 || scores[0] != 0.9 || scores[1] != 0.4 {
		t.Fatalf("scores=%v", scores)
	}
}

func TestClientScoreGroup_BadResponseFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionBody("agent one did best"))
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "gpt-4o-mini", 0, 5*time.Second, nil)
	group := &convert.Group{
		Examples: []*convert.Example{
			exampleWithMetrics("a", 500, 5),
			exampleWithMetrics("b", -200, 3),
		},
	}

	if _, err := c.ScoreGroup(context.Background(), group); err == nil {
		t.Fatal("want error for a non-JSON judge verdict")
	}
}

func TestClientScoreGroup_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(10 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "gpt-4o-mini", 0, 50*time.Millisecond, nil)
	group := &convert.Group{
		Examples: []*convert.Example{
			exampleWithMetrics("a", 500, 5),
			exampleWithMetrics("b", -200, 3),
		},
	}

	if _, err := c.ScoreGroup(context.Background(), group); err == nil {
		t.Fatal("want error when the judge endpoint hangs past the timeout")
	}
}
