package turn

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"AgentKit-Chain/internal/agent"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/session"
	"AgentKit-Chain/internal/web3/keys"
)

// scriptedHandle replays a fixed event list for every turn.
type scriptedHandle struct {
	events []agent.Event
	failAt int
	block  chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
	mu        sync.Mutex
	convs     []string
}

func (h *scriptedHandle) Stream(ctx context.Context, conversationID, message string) iter.Seq2[agent.Event, error] {
	return func(yield func(agent.Event, error) bool) {
		n := h.active.Add(1)
		defer h.active.Add(-1)
		for {
			cur := h.maxActive.Load()
			if n <= cur || h.maxActive.CompareAndSwap(cur, n) {
				break
			}
		}
		h.mu.Lock()
		h.convs = append(h.convs, conversationID)
		h.mu.Unlock()

		if h.block != nil {
			select {
			case <-h.block:
			case <-ctx.Done():
				yield(agent.Event{}, ctx.Err())
				return
			}
		}
		for i, ev := range h.events {
			if h.failAt > 0 && i == h.failAt {
				yield(agent.Event{}, errors.New("llm exploded"))
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func (h *scriptedHandle) Close() {}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readySession(t *testing.T, handle session.Handle, serialize bool) *session.Ready {
	t.Helper()
	prov, err := keys.NewGeneratedProvisioner(keys.SchemeEd25519)
	if err != nil {
		t.Fatalf("provisioner: %v", err)
	}
	mgr, err := session.NewManager(prov,
		session.FactoryFunc(func(context.Context, session.Config, *keys.Material) (session.Handle, error) {
			return handle, nil
		}),
		session.WithSerializedTurns(serialize),
		session.WithLogger(quiet()),
		session.WithAuditLogger(quiet()),
	)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	ready, err := mgr.Initialize(context.Background(), session.Config{OpenAIAPIKey: "sk", RPCURL: "http://rpc"})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return ready
}

func newAggregator(opts ...Option) *Aggregator {
	return NewAggregator(append([]Option{WithLogger(quiet()), WithAuditLogger(quiet())}, opts...)...)
}

func TestRunPreservesArrivalOrder(t *testing.T) {
	handle := &scriptedHandle{events: []agent.Event{
		{Kind: agent.KindAgent, Text: "checking balance"},
		{Kind: agent.KindTool, Text: "2 SOL"},
		{Kind: "reasoning", Text: "hidden"},
		{Kind: agent.KindAgent, Text: "You have 2 SOL."},
	}}
	ready := readySession(t, handle, true)

	res, err := newAggregator().Run(context.Background(), ready, "balance?")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"checking balance", "2 SOL", "You have 2 SOL."}
	if len(res.Responses) != len(want) {
		t.Fatalf("unexpected responses: %v", res.Responses)
	}
	for i := range want {
		if res.Responses[i] != want[i] {
			t.Fatalf("response %d: got %q want %q", i, res.Responses[i], want[i])
		}
	}
	if res.Turn != 1 {
		t.Fatalf("expected turn 1, got %d", res.Turn)
	}

	res, err = newAggregator().Run(context.Background(), ready, "again")
	if err != nil || res.Turn != 2 {
		t.Fatalf("expected turn 2, got %d (%v)", res.Turn, err)
	}
	if handle.convs[0] != ready.ConversationID || handle.convs[1] != ready.ConversationID {
		t.Fatalf("every turn must use the session conversation id")
	}
}

func TestRunMidStreamErrorDiscardsPartialOutput(t *testing.T) {
	handle := &scriptedHandle{
		events: []agent.Event{
			{Kind: agent.KindAgent, Text: "one"},
			{Kind: agent.KindTool, Text: "two"},
			{Kind: agent.KindAgent, Text: "three"},
		},
		failAt: 2,
	}
	ready := readySession(t, handle, true)

	res, err := newAggregator().Run(context.Background(), ready, "hi")
	if xerrors.CodeOf(err) != xerrors.CodeAgentFailure {
		t.Fatalf("expected AGENT_FAILURE, got %v", err)
	}
	if res.Responses != nil {
		t.Fatalf("partial output leaked: %v", res.Responses)
	}
	if e, _ := xerrors.From(err); e.Message() != "Internal server error" {
		t.Fatalf("unexpected message %q", e.Message())
	}
}

func TestRunTimeout(t *testing.T) {
	handle := &scriptedHandle{block: make(chan struct{}), events: []agent.Event{{Kind: agent.KindAgent, Text: "late"}}}
	ready := readySession(t, handle, true)

	res, err := newAggregator(WithTimeout(20*time.Millisecond)).Run(context.Background(), ready, "hi")
	if xerrors.CodeOf(err) != xerrors.CodeTimeout {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
	if xerrors.HTTPStatusOf(err) != 500 {
		t.Fatalf("timeouts render as 500, got %d", xerrors.HTTPStatusOf(err))
	}
	if len(res.Responses) != 0 {
		t.Fatalf("no output expected on timeout")
	}
}

func TestRunSerializesTurns(t *testing.T) {
	handle := &scriptedHandle{block: make(chan struct{}), events: []agent.Event{{Kind: agent.KindAgent, Text: "ok"}}}
	ready := readySession(t, handle, true)
	agg := newAggregator()

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := agg.Run(context.Background(), ready, "hi")
			errs <- err
		}()
	}
	time.Sleep(30 * time.Millisecond)
	close(handle.block)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	}
	if handle.maxActive.Load() != 1 {
		t.Fatalf("turns overlapped: max %d active", handle.maxActive.Load())
	}
	if ready.Turns() != 3 {
		t.Fatalf("expected 3 turns, got %d", ready.Turns())
	}
}

func TestFoldHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events := func(yield func(agent.Event, error) bool) {
		if !yield(agent.Event{Kind: agent.KindAgent, Text: "first"}, nil) {
			return
		}
		cancel()
		yield(agent.Event{Kind: agent.KindAgent, Text: "second"}, nil)
	}
	got, err := Fold(ctx, events)
	if !errors.Is(err, context.Canceled) || got != nil {
		t.Fatalf("expected cancellation without output, got %v %v", got, err)
	}
}

func TestRunRequiresReadySession(t *testing.T) {
	_, err := newAggregator().Run(context.Background(), nil, "hi")
	if xerrors.CodeOf(err) != xerrors.CodeNotInitialized {
		t.Fatalf("expected NOT_INITIALIZED, got %v", err)
	}
}

func TestFoldKeepsEmptyAgentMessages(t *testing.T) {
	events := func(yield func(agent.Event, error) bool) {
		for _, ev := range []agent.Event{
			{Kind: agent.KindAgent, Text: ""},
			{Kind: agent.KindTool, Text: "Wallet111"},
			{Kind: agent.KindAgent, Text: "done"},
		} {
			if !yield(ev, nil) {
				return
			}
		}
	}
	got, err := Fold(context.Background(), events)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if len(got) != 3 || got[0] != "" || got[1] != "Wallet111" || got[2] != "done" {
		t.Fatalf("unexpected responses: %q", got)
	}
}
