package api

import "AgentKit-Chain/internal/session"

type initConfig struct {
	LLM session.LLMSettings `json:"llm"`
}

type initResponse struct {
	Message       string     `json:"message"`
	WalletAddress string     `json:"walletAddress"`
	Config        initConfig `json:"config"`
}

type chatResponse struct {
	Responses []string `json:"responses"`
}

type walletResponse struct {
	WalletAddress string `json:"walletAddress"`
}

type healthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

type errorResponse struct {
	Error         string   `json:"error"`
	Code          string   `json:"code"`
	MissingFields []string `json:"missingFields,omitempty"`
	Details       string   `json:"details,omitempty"`
}
