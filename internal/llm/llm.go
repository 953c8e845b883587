package llm

import (
	"context"
	"encoding/json"
)

// Role 标识一条对话消息的发送方。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message 是发送给大模型或由大模型返回的一条对话消息。
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall 描述大模型请求执行的一次工具调用，Arguments 为原始 JSON 字符串。
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDefinition 描述一个可供大模型调用的工具，Parameters 为 JSON Schema。
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ChatRequest 是一次对话补全请求。Model 为空时使用客户端默认模型。
type ChatRequest struct {
	Model       string
	Temperature *float64
	Messages    []Message
	Tools       []ToolDefinition
}

// ChatResponse 是大模型返回的助手消息。
type ChatResponse struct {
	Message      Message
	FinishReason string
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ClientFunc 将普通函数适配为 Client，便于测试注入。
type ClientFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)

// Chat 实现 Client 接口。
func (f ClientFunc) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return f(ctx, req)
}

// Float64 返回 v 的指针，用于设置可选的温度参数。
func Float64(v float64) *float64 {
	return &v
}
