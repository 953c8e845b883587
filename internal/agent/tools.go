package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"AgentKit-Chain/internal/llm"
)

var (
	// ErrToolNotFound 表示工具未注册。
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolExists 表示同名工具已注册。
	ErrToolExists = errors.New("tool already exists")
)

// ToolHandler 执行一次工具调用，args 为大模型给出的 JSON 参数。
type ToolHandler func(ctx context.Context, args json.RawMessage) (ToolResult, error)

// ToolResult 是反馈给大模型的工具输出。
type ToolResult struct {
	Content string
	IsError bool
}

// Tool 将工具定义与处理函数绑定。
type Tool struct {
	Definition llm.ToolDefinition
	Handler    ToolHandler
}

// ToolRegistry 保存一个 Agent 可用的工具集合，每个会话独立持有。
type ToolRegistry struct {
	mu      sync.RWMutex
	entries map[string]Tool
}

// NewToolRegistry 创建注册表并登记给定工具。
func NewToolRegistry(tools ...Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{entries: make(map[string]Tool)}
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register 登记工具，重名时返回 ErrToolExists。
func (r *ToolRegistry) Register(tool Tool) error {
	name := tool.Definition.Name
	if name == "" {
		return errors.New("tool name is required")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %s has no handler", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrToolExists, name)
	}
	r.entries[name] = tool
	return nil
}

// Definitions 按名称排序返回工具定义，保证请求体稳定。
func (r *ToolRegistry) Definitions() []llm.ToolDefinition {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(r.entries))
	for _, tool := range r.entries {
		defs = append(defs, tool.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute 按名称分派工具调用。
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	if r == nil {
		return ToolResult{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	r.mu.RLock()
	tool, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return ToolResult{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	result, err := tool.Handler(ctx, args)
	if err != nil {
		return ToolResult{}, fmt.Errorf("tool %s execution failed: %w", name, err)
	}
	return result, nil
}
