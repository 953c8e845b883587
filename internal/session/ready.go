package session

import (
	"context"
	"sync/atomic"

	"AgentKit-Chain/internal/agent"
)

// Handle is a constructed agent owned by the session.
type Handle interface {
	agent.Streamer
	Close()
}

// Ready is the immutable snapshot published once initialization succeeds.
// It is safe for concurrent use.
type Ready struct {
	Agent          Handle
	Address        string
	ConversationID string
	LLM            LLMSettings

	turns     atomic.Uint64
	serialize bool
	turnLock  chan struct{}
}

func newReady(handle Handle, address, conversationID string, settings LLMSettings, serialize bool) *Ready {
	return &Ready{
		Agent:          handle,
		Address:        address,
		ConversationID: conversationID,
		LLM:            settings,
		serialize:      serialize,
		turnLock:       make(chan struct{}, 1),
	}
}

// NextTurn allocates the next turn number, starting at 1.
func (r *Ready) NextTurn() uint64 {
	return r.turns.Add(1)
}

// Turns returns how many turns have been allocated.
func (r *Ready) Turns() uint64 {
	return r.turns.Load()
}

// Serialized reports whether turns run one at a time.
func (r *Ready) Serialized() bool {
	return r.serialize
}

// Acquire waits for exclusive use of the conversation when turns are
// serialized. The returned release func must be called exactly once.
func (r *Ready) Acquire(ctx context.Context) (func(), error) {
	if !r.serialize {
		return func() {}, nil
	}
	select {
	case r.turnLock <- struct{}{}:
		return func() { <-r.turnLock }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
