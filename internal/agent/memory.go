package agent

import (
	"slices"
	"sync"

	"AgentKit-Chain/internal/llm"
)

// Memory 按会话 ID 保存对话历史。
type Memory interface {
	Load(conversationID string) []llm.Message
	Append(conversationID string, msgs ...llm.Message)
	Reset(conversationID string)
}

// InMemory 是进程内的 Memory 实现，生命周期与进程一致。
type InMemory struct {
	mu    sync.RWMutex
	convs map[string][]llm.Message
}

// NewInMemory 创建空的内存会话存储。
func NewInMemory() *InMemory {
	return &InMemory{convs: make(map[string][]llm.Message)}
}

// Load 返回会话历史的副本。
func (m *InMemory) Load(conversationID string) []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.convs[conversationID]
	copied := make([]llm.Message, len(stored))
	for i, msg := range stored {
		copied[i] = msg
		copied[i].ToolCalls = slices.Clone(msg.ToolCalls)
	}
	return copied
}

// Append 追加一组消息。
func (m *InMemory) Append(conversationID string, msgs ...llm.Message) {
	if len(msgs) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		msg.ToolCalls = slices.Clone(msg.ToolCalls)
		m.convs[conversationID] = append(m.convs[conversationID], msg)
	}
}

// Reset 清空会话历史。
func (m *InMemory) Reset(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.convs, conversationID)
}

var _ Memory = (*InMemory)(nil)
