package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"AgentKit-Chain/sdk/go/agentkit"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/init", func(w http.ResponseWriter, r *http.Request) {
		resp := agentkit.InitResponse{Message: "Agent initialized successfully", WalletAddress: "DemoWallet1111111111111111111111111111111111"}
		resp.Config.LLM = agentkit.LLMSettings{ModelName: "gpt-4o-mini", Temperature: 0.7}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string][]string{
			"responses": {"Checking your balance.", `{"address":"DemoWallet1111111111111111111111111111111111","balance":"1.5 SOL"}`, "Your wallet holds 1.5 SOL."},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := agentkit.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := client.Init(ctx, agentkit.InitRequest{OpenAIAPIKey: "sk-demo", RPCURL: "https://api.devnet.solana.com"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("session wallet %s (model=%s)\n", session.WalletAddress, session.Config.LLM.ModelName)

	responses, err := client.Chat(ctx, "What is my balance?")
	if err != nil {
		panic(err)
	}
	for i, r := range responses {
		fmt.Printf("[%d] %s\n", i, r)
	}
}
