package agentkit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInitSendsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/init" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["OPENAI_API_KEY"] != "sk" || body["RPC_URL"] != "https://rpc" {
			t.Errorf("unexpected credentials: %v", body)
		}
		if _, ok := body["llm"]; ok {
			t.Errorf("llm must be omitted when unset")
		}
		_, _ = w.Write([]byte(`{"message":"Agent initialized successfully","walletAddress":"Wallet111","config":{"llm":{"modelName":"gpt-4o-mini","temperature":0.7}}}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Init(context.Background(), InitRequest{OpenAIAPIKey: "sk", RPCURL: "https://rpc"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if resp.WalletAddress != "Wallet111" || resp.Config.LLM.ModelName != "gpt-4o-mini" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestInitValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Missing required fields","code":"INVALID_ARGUMENT","missingFields":["OPENAI_API_KEY","RPC_URL"]}`))
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	_, err := client.Init(context.Background(), InitRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "INVALID_ARGUMENT" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if len(apiErr.MissingFields) != 2 {
		t.Fatalf("missing fields not decoded: %v", apiErr.MissingFields)
	}
}

func TestChatAndWallet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["message"] != "hi" {
			t.Errorf("unexpected message %q", body["message"])
		}
		_, _ = w.Write([]byte(`{"responses":["a","b"]}`))
	})
	mux.HandleFunc("/wallet", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"walletAddress":"Wallet111"}`))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","state":"ready"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	responses, err := client.Chat(context.Background(), "hi")
	if err != nil || len(responses) != 2 || responses[0] != "a" {
		t.Fatalf("chat: %v %v", responses, err)
	}
	address, err := client.Wallet(context.Background())
	if err != nil || address != "Wallet111" {
		t.Fatalf("wallet: %q %v", address, err)
	}
	health, err := client.Health(context.Background())
	if err != nil || health.State != "ready" {
		t.Fatalf("health: %+v %v", health, err)
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	_, err := client.Wallet(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "bad gateway" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("not a url", nil); err == nil {
		t.Fatal("expected error")
	}
}
