package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/speechlab-io/orthoepy/pkg/provider/llm"
	"github.com/speechlab-io/orthoepy/pkg/provider/llm/openai"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := openai.New("", "gpt-4o"); err == nil {
		t.Error("New accepted empty api key")
	}
	if _, err := openai.New("sk-test", ""); err == nil {
		t.Error("New accepted empty model")
	}
}

func TestComplete(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": "Great work on your vowels!",
				},
			}},
			"usage": map[string]any{
				"prompt_tokens":     42,
				"completion_tokens": 7,
				"total_tokens":      49,
			},
		})
	}))
	defer srv.Close()

	p, err := openai.New("sk-test", "gpt-4o", openai.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "You are a helpful, friendly English pronunciation coach.",
		Messages: []llm.Message{
			{Role: "user", Content: "How did I do?"},
		},
		Temperature: 0.7,
		MaxTokens:   512,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Great work on your vowels!" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 49 {
		t.Errorf("TotalTokens = %d, want 49", resp.Usage.TotalTokens)
	}

	msgs, ok := gotBody["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("request carried %v messages, want system prompt + user", gotBody["messages"])
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "system" {
		t.Errorf("first message role = %v, want system", first["role"])
	}
}

func TestCompleteUnknownRole(t *testing.T) {
	t.Parallel()

	p, err := openai.New("sk-test", "gpt-4o")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "narrator", Content: "hm"}},
	})
	if err == nil {
		t.Fatal("Complete accepted unknown role")
	}
}
