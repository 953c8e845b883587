package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"AgentKit-Chain/internal/llm"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error when api key is missing")
	}
	if _, err := NewClient(Config{APIKey: "k", Temperature: llm.Float64(3)}); err == nil {
		t.Fatalf("expected error for out of range temperature")
	}
	client, err := NewClient(Config{APIKey: "sk-secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Model() != "gpt-4o-mini" {
		t.Fatalf("unexpected default model: %s", client.Model())
	}
	if strings.Contains(client.String(), "sk-secret") {
		t.Fatalf("api key leaked in String()")
	}
}

func TestChatSuccess(t *testing.T) {
	var captured struct {
		Authorization string
		Body          map[string]any
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		captured.Authorization = r.Header.Get("Authorization")
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&captured.Body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": "hello there",
					},
				},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Model: "gpt-4o", Temperature: llm.Float64(0.7), Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.httpClient = srv.Client()

	resp, err := client.Chat(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "be brief"},
			{Role: llm.RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message.Content != "hello there" || resp.Message.Role != llm.RoleAssistant || resp.FinishReason != "stop" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if captured.Authorization != "Bearer test" {
		t.Fatalf("authorization header missing: %q", captured.Authorization)
	}
	if captured.Body["model"] != "gpt-4o" {
		t.Fatalf("model field mismatch: %v", captured.Body["model"])
	}
	if captured.Body["temperature"] != 0.7 {
		t.Fatalf("temperature mismatch: %v", captured.Body["temperature"])
	}
	if _, ok := captured.Body["tools"]; ok {
		t.Fatalf("tools must be omitted when none are given")
	}
}

func TestChatToolCalls(t *testing.T) {
	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role       string  `json:"role"`
			Content    *string `json:"content"`
			ToolCallID string  `json:"tool_call_id"`
			ToolCalls  []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name string `json:"name"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"messages"`
		Tools []struct {
			Type     string `json:"type"`
			Function struct {
				Name       string          `json:"name"`
				Parameters json.RawMessage `json:"parameters"`
			} `json:"function"`
		} `json:"tools"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"tool_calls","message":{"role":"assistant","content":null,"tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_balance","arguments":"{}"}}]}}]}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.httpClient = srv.Client()

	resp, err := client.Chat(context.Background(), llm.ChatRequest{
		Model: "override",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "balance?"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_0", Name: "get_wallet_address", Arguments: "{}"}}},
			{Role: llm.RoleTool, ToolCallID: "call_0", Content: "addr"},
		},
		Tools: []llm.ToolDefinition{{Name: "get_balance", Description: "balance", Parameters: json.RawMessage(`{"type":"object"}`)}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 || resp.Message.ToolCalls[0].Name != "get_balance" || resp.Message.ToolCalls[0].ID != "call_1" {
		t.Fatalf("unexpected tool calls: %+v", resp.Message.ToolCalls)
	}

	if body.Model != "override" {
		t.Fatalf("request model must override default, got %s", body.Model)
	}
	if len(body.Messages) != 3 {
		t.Fatalf("unexpected messages: %+v", body.Messages)
	}
	if body.Messages[1].Content != nil || len(body.Messages[1].ToolCalls) != 1 || body.Messages[1].ToolCalls[0].Type != "function" {
		t.Fatalf("assistant tool call message malformed: %+v", body.Messages[1])
	}
	if body.Messages[2].ToolCallID != "call_0" {
		t.Fatalf("tool result must carry the call id: %+v", body.Messages[2])
	}
	if len(body.Tools) != 1 || body.Tools[0].Type != "function" || body.Tools[0].Function.Name != "get_balance" {
		t.Fatalf("unexpected tools: %+v", body.Tools)
	}
}

func TestChatHTTPErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key sk-live-123", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "sk-live-123", BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.httpClient = srv.Client()

	_, err = client.Chat(context.Background(), llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}}})
	if err == nil {
		t.Fatalf("expected error when http status is not success")
	}
	if strings.Contains(err.Error(), "sk-live-123") {
		t.Fatalf("api key leaked in error: %v", err)
	}
}

func TestChatEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.httpClient = srv.Client()

	if _, err := client.Chat(context.Background(), llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}}}); err == nil {
		t.Fatalf("expected error for empty choices")
	}
	if _, err := client.Chat(context.Background(), llm.ChatRequest{}); err == nil {
		t.Fatalf("expected error for empty messages")
	}
}
