// Package agentkit is a Go client for the AgentKit-Chain HTTP API.
package agentkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
const DefaultHTTPTimeout = 2 * time.Minute

// Client wraps the HTTP interactions with an agentkitd server.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// LLMSettings selects the model of a session.
type LLMSettings struct {
	ModelName   string  `json:"modelName"`
	Temperature float64 `json:"temperature"`
}

// InitRequest carries the credentials of a new session. LLM is optional.
type InitRequest struct {
	OpenAIAPIKey string       `json:"OPENAI_API_KEY"`
	RPCURL       string       `json:"RPC_URL"`
	LLM          *LLMSettings `json:"llm,omitempty"`
}

// String keeps credentials out of fmt output.
func (r InitRequest) String() string {
	return "agentkit.InitRequest{OPENAI_API_KEY: [REDACTED], RPC_URL: [REDACTED]}"
}

// InitResponse describes the session created by Init.
type InitResponse struct {
	Message       string `json:"message"`
	WalletAddress string `json:"walletAddress"`
	Config        struct {
		LLM LLMSettings `json:"llm"`
	} `json:"config"`
}

// Health reports the server lifecycle state.
type Health struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

// APIError represents a non-2xx response.
type APIError struct {
	StatusCode    int
	Code          string   `json:"code"`
	Message       string   `json:"error"`
	MissingFields []string `json:"missingFields,omitempty"`
	Details       string   `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if len(e.MissingFields) > 0 {
		msg += " (" + strings.Join(e.MissingFields, ", ") + ")"
	}
	if e.Code != "" {
		return fmt.Sprintf("agentkit api error (%d): %s - %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("agentkit api error (%d): %s", e.StatusCode, msg)
}

// NewClient instantiates a client. When httpClient is nil, a default client
// with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Init creates the server session and returns its wallet address.
func (c *Client) Init(ctx context.Context, req InitRequest) (InitResponse, error) {
	var resp InitResponse
	if err := c.do(ctx, http.MethodPost, "/init", req, &resp); err != nil {
		return InitResponse{}, err
	}
	return resp, nil
}

// Chat runs one turn and returns the agent and tool messages in order.
func (c *Client) Chat(ctx context.Context, message string) ([]string, error) {
	var resp struct {
		Responses []string `json:"responses"`
	}
	if err := c.do(ctx, http.MethodPost, "/chat", map[string]string{"message": message}, &resp); err != nil {
		return nil, err
	}
	return resp.Responses, nil
}

// Wallet returns the session wallet address.
func (c *Client) Wallet(ctx context.Context) (string, error) {
	var resp struct {
		WalletAddress string `json:"walletAddress"`
	}
	if err := c.do(ctx, http.MethodGet, "/wallet", nil, &resp); err != nil {
		return "", err
	}
	return resp.WalletAddress, nil
}

// Health fetches /healthz.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(rel).String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
