package turn

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"AgentKit-Chain/internal/agent"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/observability/metrics"
	"AgentKit-Chain/internal/session"
	"AgentKit-Chain/pkg/logger"
)

const msgInternal = "Internal server error"

// Result 是一轮对话聚合后的输出。
type Result struct {
	Turn      uint64
	Responses []string
}

// Fold 按到达顺序消费事件流，收集智能体消息与工具结果的文本。
// 未知类型的事件被忽略；流中途出错或上下文取消时丢弃已收集的内容。
func Fold(ctx context.Context, events iter.Seq2[agent.Event, error]) ([]string, error) {
	responses := make([]string, 0, 4)
	for ev, err := range events {
		if err != nil {
			return nil, err
		}
		switch ev.Kind {
		case agent.KindAgent, agent.KindTool:
			responses = append(responses, ev.Text)
			metrics.ObserveTurnEvent(string(ev.Kind))
		default:
			metrics.ObserveTurnEvent("ignored")
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return responses, nil
}

// Aggregator 在会话上执行单轮对话，并施加整体超时。
type Aggregator struct {
	timeout time.Duration
	logger  *slog.Logger
	audit   *slog.Logger
}

// Option 定制 Aggregator。
type Option func(*Aggregator)

// WithTimeout 设置单轮对话的截止时间，非正值表示不限制。
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.timeout = d }
}

// WithLogger 替换默认日志实例。
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithAuditLogger 替换审计日志实例。
func WithAuditLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.audit = l
		}
	}
}

// NewAggregator 创建对话聚合器。
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		logger: logger.Named("turn"),
		audit:  logger.Audit(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Run 提交用户消息并等待事件流结束。失败时不返回任何部分结果，
// 错误码为 AGENT_FAILURE 或 TIMEOUT。
func (a *Aggregator) Run(ctx context.Context, ready *session.Ready, message string) (Result, error) {
	if ready == nil || ready.Agent == nil {
		return Result{}, xerrors.New(xerrors.CodeNotInitialized, "")
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	started := time.Now()
	release, err := ready.Acquire(ctx)
	if err != nil {
		return Result{}, a.fail(0, started, err)
	}
	defer release()

	turnNo := ready.NextTurn()
	log := a.logger.With(slog.String("conversation_id", ready.ConversationID), slog.Uint64("turn", turnNo))
	log.Debug("turn started")

	responses, err := Fold(ctx, ready.Agent.Stream(ctx, ready.ConversationID, message))
	if err != nil {
		return Result{}, a.fail(turnNo, started, err)
	}

	elapsed := time.Since(started)
	metrics.ObserveTurn("ok", elapsed)
	log.Info("turn completed", slog.Int("responses", len(responses)), slog.Duration("elapsed", elapsed))
	a.audit.Info("turn_completed",
		slog.String("conversation_id", ready.ConversationID),
		slog.Uint64("turn", turnNo),
		slog.Int("responses", len(responses)),
	)
	return Result{Turn: turnNo, Responses: responses}, nil
}

func (a *Aggregator) fail(turnNo uint64, started time.Time, cause error) error {
	elapsed := time.Since(started)
	code := xerrors.CodeAgentFailure
	outcome := "error"
	if errors.Is(cause, context.DeadlineExceeded) {
		code = xerrors.CodeTimeout
		outcome = "timeout"
	}
	metrics.ObserveTurn(outcome, elapsed)
	a.logger.Error("turn failed",
		slog.Uint64("turn", turnNo),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed),
		slog.String("error", cause.Error()),
	)
	a.audit.Warn("turn_failed", slog.Uint64("turn", turnNo), slog.String("outcome", outcome))
	return xerrors.Wrap(code, cause, msgInternal)
}
