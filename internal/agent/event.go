package agent

import (
	"context"
	"iter"
)

// Kind 区分流式事件的来源。
type Kind string

const (
	// KindAgent 为大模型产生的消息。
	KindAgent Kind = "agent"
	// KindTool 为工具执行结果。
	KindTool Kind = "tools"
)

// Event 是一次对话轮次中按因果顺序产生的流式事件。
type Event struct {
	Kind       Kind
	Step       int
	Text       string
	ToolName   string
	ToolCallID string
	IsError    bool
}

// Streamer 将用户消息提交到指定会话，并以惰性序列的形式返回事件流。
// 序列在遇到错误后终止；调用方提前停止迭代时不会提交本轮记忆。
type Streamer interface {
	Stream(ctx context.Context, conversationID, message string) iter.Seq2[Event, error]
}
