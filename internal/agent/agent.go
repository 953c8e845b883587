package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"AgentKit-Chain/internal/llm"
)

// DefaultSystemPrompt 描述链上助手的角色。
const DefaultSystemPrompt = "You are a helpful agent that can interact onchain using the wallet and tools available to you. " +
	"Before acting, check the wallet address and network status when they are relevant. " +
	"If a request needs a capability you do not have, say so plainly. Be concise and helpful."

// defaultMaxSteps 是单轮对话中大模型调用次数的默认上限。
const defaultMaxSteps = 10

// ErrMaxSteps 表示单轮对话耗尽了推理步数。
var ErrMaxSteps = errors.New("agent exceeded max steps without a final answer")

// Agent 以 ReAct 循环协调大模型与链上工具：模型回复、执行工具、再次推理，
// 直到模型不再请求工具或达到步数上限。
type Agent struct {
	llmClient    llm.Client
	tools        *ToolRegistry
	memory       Memory
	systemPrompt string
	model        string
	temperature  *float64
	maxSteps     int
	llmTimeout   time.Duration
	logger       *slog.Logger

	closeOnce sync.Once
	closers   []func()
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithSystemPrompt 设置系统提示词。
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		if strings.TrimSpace(prompt) != "" {
			a.systemPrompt = prompt
		}
	}
}

// WithModel 设置模型名称，为空时使用大模型客户端的默认值。
func WithModel(model string) Option {
	return func(a *Agent) { a.model = strings.TrimSpace(model) }
}

// WithTemperature 设置采样温度。
func WithTemperature(t float64) Option {
	return func(a *Agent) { a.temperature = llm.Float64(t) }
}

// WithMaxSteps 设置单轮对话的最大推理步数。
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// WithTools 设置可用工具。
func WithTools(registry *ToolRegistry) Option {
	return func(a *Agent) { a.tools = registry }
}

// WithMemory 替换默认的内存会话存储。
func WithMemory(memory Memory) Option {
	return func(a *Agent) {
		if memory != nil {
			a.memory = memory
		}
	}
}

// WithLLMTimeout 设置单次调用大模型的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout <= 0 {
			a.llmTimeout = 0
			return
		}
		a.llmTimeout = timeout
	}
}

// WithLogger 设置日志记录器。
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithCloser 注册在 Close 时释放的资源，例如链客户端连接。
func WithCloser(fn func()) Option {
	return func(a *Agent) {
		if fn != nil {
			a.closers = append(a.closers, fn)
		}
	}
}

// New 创建一个 Agent。
func New(llmClient llm.Client, opts ...Option) (*Agent, error) {
	if llmClient == nil {
		return nil, errors.New("未配置大模型客户端")
	}
	ag := &Agent{
		llmClient:    llmClient,
		memory:       NewInMemory(),
		systemPrompt: DefaultSystemPrompt,
		maxSteps:     defaultMaxSteps,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	return ag, nil
}

// Memory 返回 Agent 使用的会话存储。
func (a *Agent) Memory() Memory {
	return a.memory
}

// Close 释放通过 WithCloser 注册的资源，可重复调用。
func (a *Agent) Close() {
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			a.closers[i]()
		}
	})
}

// Stream 执行一轮对话并按顺序产出事件。
// 模型的非空回复产出 KindAgent 事件，每个工具结果产出 KindTool 事件。
// 本轮的消息仅在模型给出最终回答后写入记忆。
func (a *Agent) Stream(ctx context.Context, conversationID, message string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		history := a.memory.Load(conversationID)
		pending := []llm.Message{{Role: llm.RoleUser, Content: message}}

		for step := 1; step <= a.maxSteps; step++ {
			if err := ctx.Err(); err != nil {
				yield(Event{}, err)
				return
			}

			resp, err := a.chat(ctx, history, pending)
			if err != nil {
				yield(Event{}, fmt.Errorf("agent call failed: %w", err))
				return
			}

			reply := resp.Message
			reply.Role = llm.RoleAssistant
			pending = append(pending, reply)

			a.logger.Debug("agent step",
				slog.String("conversation_id", conversationID),
				slog.Int("step", step),
				slog.Int("tool_calls", len(reply.ToolCalls)),
			)

			// 每条模型回复都产生一个事件，调用工具时内容可能为空。
			if !yield(Event{Kind: KindAgent, Step: step, Text: reply.Content}, nil) {
				return
			}
			if len(reply.ToolCalls) == 0 {
				a.memory.Append(conversationID, pending...)
				return
			}

			for _, call := range reply.ToolCalls {
				if err := ctx.Err(); err != nil {
					yield(Event{}, err)
					return
				}
				result := a.runTool(ctx, call)
				pending = append(pending, llm.Message{
					Role:       llm.RoleTool,
					Content:    result.Content,
					ToolCallID: call.ID,
					Name:       call.Name,
				})
				ev := Event{
					Kind:       KindTool,
					Step:       step,
					Text:       result.Content,
					ToolName:   call.Name,
					ToolCallID: call.ID,
					IsError:    result.IsError,
				}
				if !yield(ev, nil) {
					return
				}
			}
		}
		yield(Event{}, ErrMaxSteps)
	}
}

func (a *Agent) chat(ctx context.Context, history, pending []llm.Message) (*llm.ChatResponse, error) {
	messages := make([]llm.Message, 0, len(history)+len(pending)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, pending...)

	llmCtx := ctx
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}
	return a.llmClient.Chat(llmCtx, llm.ChatRequest{
		Model:       a.model,
		Temperature: a.temperature,
		Messages:    messages,
		Tools:       a.tools.Definitions(),
	})
}

// runTool 将工具失败转化为错误结果反馈给模型，而不是终止本轮对话。
func (a *Agent) runTool(ctx context.Context, call llm.ToolCall) ToolResult {
	result, err := a.tools.Execute(ctx, call.Name, json.RawMessage(call.Arguments))
	if err != nil {
		a.logger.Warn("tool failed", slog.String("tool", call.Name), slog.Any("error", err))
		return ToolResult{Content: fmt.Sprintf("error: %s", err), IsError: true}
	}
	return result
}

var _ Streamer = (*Agent)(nil)
