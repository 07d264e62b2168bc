package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseTextToolCalls(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantLen  int
		wantName string
	}{
		{
			name:     "raw object",
			content:  `{"name": "list_supplies", "arguments": {"category": "paint"}}`,
			wantLen:  1,
			wantName: "list_supplies",
		},
		{
			name:     "array",
			content:  `[{"name": "list_projects", "arguments": {}}, {"name": "portfolio_stats", "arguments": {}}]`,
			wantLen:  2,
			wantName: "list_projects",
		},
		{
			name:     "tagged",
			content:  `<tool_call>{"name": "add_supply", "arguments": {"name": "gesso"}}</tool_call>`,
			wantLen:  1,
			wantName: "add_supply",
		},
		{
			name:     "tagged without closing tag",
			content:  `<tool_call>{"name": "low_stock_report", "arguments": {}}`,
			wantLen:  1,
			wantName: "low_stock_report",
		},
		{
			name:    "plain text",
			content: "Your gouache set is running low, want me to add it to the list?",
			wantLen: 0,
		},
		{
			name:    "empty",
			content: "",
			wantLen: 0,
		},
		{
			name:    "json without name field",
			content: `{"arguments": {"x": 1}}`,
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTextToolCalls(tt.content)
			if len(got) != tt.wantLen {
				t.Fatalf("got %d tool calls, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0].Function.Name != tt.wantName {
				t.Errorf("first call name = %q, want %q", got[0].Function.Name, tt.wantName)
			}
		})
	}
}

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model":             req.Model,
			"message":           map[string]any{"role": "assistant", "content": "Your brushes are all stocked."},
			"done":              true,
			"prompt_eval_count": 42,
			"eval_count":        11,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	resp, err := c.Chat(context.Background(), "qwen3:4b", []Message{{Role: "user", Content: "how are my brushes?"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "Your brushes are all stocked." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.InputTokens != 42 || resp.OutputTokens != 11 {
		t.Errorf("tokens = %d/%d, want 42/11", resp.InputTokens, resp.OutputTokens)
	}
}

func TestOllamaChatRecoversTextToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"model":   "qwen3:4b",
			"message": map[string]any{"role": "assistant", "content": `<tool_call>{"name": "search_supplies", "arguments": {"query": "ultramarine"}}</tool_call>`},
			"done":    true,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	resp, err := c.Chat(context.Background(), "qwen3:4b", []Message{{Role: "user", Content: "find my blue"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(resp.Message.ToolCalls))
	}
	if resp.Message.ToolCalls[0].Function.Name != "search_supplies" {
		t.Errorf("tool = %q", resp.Message.ToolCalls[0].Function.Name)
	}
	if resp.Message.Content != "" {
		t.Errorf("content should be cleared when text was a tool call, got %q", resp.Message.Content)
	}
}

func TestOllamaChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	_, err := c.Chat(context.Background(), "nope", nil, nil)
	if err == nil {
		t.Fatal("want error for non-200 status")
	}
}

func TestOllamaPingAndListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{{"name": "qwen3:4b"}, {"name": "llama3.2:3b"}},
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0] != "qwen3:4b" {
		t.Errorf("models = %v", models)
	}
}
