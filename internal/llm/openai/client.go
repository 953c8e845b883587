package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"AgentKit-Chain/internal/llm"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModelName   = "gpt-4o-mini"
	defaultTimeout     = 60 * time.Second
	maxErrorBodyBytes  = 2048
	redactedCredential = "[REDACTED]"
)

// Config 描述了调用 OpenAI 兼容 Chat Completions API 所需的信息。
// APIKey 由调用方显式注入，客户端不会读取进程环境变量。
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64
	Timeout     time.Duration
}

// Client 通过 HTTP 调用 OpenAI 提供的大模型能力。
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature *float64
	httpClient  *http.Client
}

// NewClient 根据配置创建 OpenAI 客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 OpenAI API Key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}

	if t := cfg.Temperature; t != nil && (*t < 0 || *t > 2) {
		return nil, fmt.Errorf("temperature 超出范围: %v", *t)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Model 返回客户端默认使用的模型名称。
func (c *Client) Model() string {
	return c.model
}

// String 避免在日志或错误中输出 API Key。
func (c *Client) String() string {
	return fmt.Sprintf("openai.Client{baseURL: %s, model: %s}", c.baseURL, c.model)
}

// Chat 调用 Chat Completions 接口，支持工具调用。
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	payload, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("构建 OpenAI 请求失败: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求 OpenAI 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("OpenAI 返回错误状态 %d: %s", resp.StatusCode, c.scrub(strings.TrimSpace(string(body))))
	}

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("解析 OpenAI 响应失败: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("OpenAI 响应中没有有效的 choices")
	}

	choice := decoded.Choices[0]
	msg := llm.Message{
		Role:    llm.RoleAssistant,
		Content: choice.Message.Content,
	}
	for _, call := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	if strings.TrimSpace(msg.Content) == "" && len(msg.ToolCalls) == 0 {
		return nil, errors.New("OpenAI 响应内容为空")
	}

	return &llm.ChatResponse{Message: msg, FinishReason: choice.FinishReason}, nil
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireToolSpec `json:"function"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	Tools       []wireTool    `json:"tools,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) buildPayload(req llm.ChatRequest) ([]byte, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("对话消息不能为空")
	}

	body := completionRequest{
		Model:       c.model,
		Temperature: c.temperature,
	}
	if model := strings.TrimSpace(req.Model); model != "" {
		body.Model = model
	}
	if req.Temperature != nil {
		body.Temperature = req.Temperature
	}

	for _, m := range req.Messages {
		wire := wireMessage{
			Role:       string(m.Role),
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		// assistant 消息仅包含工具调用时 content 需为 null。
		if m.Content != "" || len(m.ToolCalls) == 0 {
			content := m.Content
			wire.Content = &content
		}
		for _, call := range m.ToolCalls {
			wire.ToolCalls = append(wire.ToolCalls, wireToolCall{
				ID:       call.ID,
				Type:     "function",
				Function: wireFunction{Name: call.Name, Arguments: call.Arguments},
			})
		}
		body.Messages = append(body.Messages, wire)
	}

	for _, tool := range req.Tools {
		body.Tools = append(body.Tools, wireTool{
			Type: "function",
			Function: wireToolSpec{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化 OpenAI 请求失败: %w", err)
	}
	return encoded, nil
}

func (c *Client) scrub(text string) string {
	if c.apiKey == "" {
		return text
	}
	return strings.ReplaceAll(text, c.apiKey, redactedCredential)
}

var _ llm.Client = (*Client)(nil)
