package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/observability/alerting"
	"AgentKit-Chain/internal/observability/metrics"
	"AgentKit-Chain/internal/web3/keys"
	"AgentKit-Chain/pkg/logger"

	"github.com/google/uuid"
)

var errManagerClosed = errors.New("session manager is closed")

// Factory builds the agent for a session from explicit credentials and the
// freshly provisioned key material.
type Factory interface {
	Build(ctx context.Context, cfg Config, material *keys.Material) (Handle, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, cfg Config, material *keys.Material) (Handle, error)

// Build implements Factory.
func (f FactoryFunc) Build(ctx context.Context, cfg Config, material *keys.Material) (Handle, error) {
	return f(ctx, cfg, material)
}

// Manager owns the single session of the process and its state machine:
// Uninitialized -> Initializing -> Ready. A failed initialization returns to
// Uninitialized with key material wiped.
type Manager struct {
	provisioner keys.Provisioner
	factory     Factory
	serialize   bool
	timeout     time.Duration
	logger      *slog.Logger
	audit       *slog.Logger
	alerts      alerting.Dispatcher

	mu       sync.Mutex
	closed   bool
	state    State
	material *keys.Material
	ready    atomic.Pointer[Ready]
}

// Option configures a Manager.
type Option func(*Manager)

// WithSerializedTurns controls whether chat turns on the shared conversation
// run one at a time. Enabled by default.
func WithSerializedTurns(enabled bool) Option {
	return func(m *Manager) { m.serialize = enabled }
}

// WithInitializeTimeout bounds provisioning plus agent construction.
func WithInitializeTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger overrides the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithAuditLogger overrides the audit logger.
func WithAuditLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.audit = l
		}
	}
}

// WithAlerts sends an alert for every failed initialization.
func WithAlerts(d alerting.Dispatcher) Option {
	return func(m *Manager) { m.alerts = d }
}

// NewManager creates a Manager in the Uninitialized state.
func NewManager(provisioner keys.Provisioner, factory Factory, opts ...Option) (*Manager, error) {
	if provisioner == nil {
		return nil, errors.New("key provisioner is required")
	}
	if factory == nil {
		return nil, errors.New("agent factory is required")
	}
	m := &Manager{
		provisioner: provisioner,
		factory:     factory,
		serialize:   true,
		logger:      logger.Named("session"),
		audit:       logger.Audit(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Ready returns the published session, or NOT_INITIALIZED. It never blocks.
func (m *Manager) Ready() (*Ready, error) {
	if r := m.ready.Load(); r != nil {
		return r, nil
	}
	return nil, xerrors.New(xerrors.CodeNotInitialized, "")
}

// WalletAddress returns the public address of the ready session.
func (m *Manager) WalletAddress() (string, error) {
	r, err := m.Ready()
	if err != nil {
		return "", err
	}
	return r.Address, nil
}

// Initialize provisions keys and builds the agent. Only one attempt can be in
// flight; concurrent or later attempts are rejected with ALREADY_INITIALIZED
// without touching anything.
func (m *Manager) Initialize(ctx context.Context, cfg Config) (ready *Ready, err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		metrics.ObserveSessionInit("rejected")
		return nil, xerrors.New(xerrors.CodeProvisioning, "", xerrors.WithDetails(errManagerClosed.Error()))
	}
	if m.state != StateUninitialized {
		m.mu.Unlock()
		metrics.ObserveSessionInit("rejected")
		return nil, xerrors.New(xerrors.CodeAlreadyInitialized, "")
	}
	m.state = StateInitializing
	m.mu.Unlock()

	var (
		material *keys.Material
		handle   Handle
		stage    = "key provisioning failed"
	)
	// 任何 panic 都必须回滚到 Uninitialized 并擦除密钥。
	defer func() {
		if r := recover(); r != nil {
			ready = nil
			err = m.fail(cfg, material, handle, fmt.Errorf("panic: %v", r), stage)
		}
	}()

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	started := time.Now()
	m.logger.Info("initializing session", slog.Any("config", cfg))

	material, err = m.provisioner.Provision(ctx)
	if err != nil {
		return nil, m.fail(cfg, nil, nil, err, stage)
	}

	stage = "agent construction failed"
	handle, err = m.factory.Build(ctx, cfg, material)
	if err != nil {
		return nil, m.fail(cfg, material, handle, err, stage)
	}
	if err := ctx.Err(); err != nil {
		return nil, m.fail(cfg, material, handle, err, "initialization cancelled")
	}

	stage = "conversation id generation failed"
	convID, err := uuid.NewV7()
	if err != nil {
		return nil, m.fail(cfg, material, handle, err, stage)
	}

	ready = newReady(handle, material.Address(), convID.String(), cfg.LLM, m.serialize)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, m.fail(cfg, material, handle, errManagerClosed, "initialization aborted")
	}
	m.material = material
	m.ready.Store(ready)
	m.state = StateReady
	m.mu.Unlock()

	metrics.ObserveSessionInit("ok")
	m.logger.Info("session ready",
		slog.Any("wallet", material),
		slog.String("conversation_id", ready.ConversationID),
		slog.Duration("elapsed", time.Since(started)),
	)
	m.audit.Info("session_initialized",
		slog.String("wallet_address", ready.Address),
		slog.String("scheme", string(material.Scheme())),
		slog.String("model", cfg.LLM.ModelName),
	)
	return ready, nil
}

// fail rolls back to Uninitialized. The returned error never carries the
// credentials of cfg.
func (m *Manager) fail(cfg Config, material *keys.Material, handle Handle, cause error, stage string) error {
	if handle != nil {
		handle.Close()
	}
	material.Wipe()

	m.mu.Lock()
	m.state = StateUninitialized
	m.mu.Unlock()

	detail := scrub(cause.Error(), cfg.OpenAIAPIKey, cfg.RPCURL)
	metrics.ObserveSessionInit("failed")
	m.logger.Error("session initialization failed", slog.String("stage", stage), slog.String("error", detail))
	m.audit.Warn("session_init_failed", slog.String("stage", stage), slog.String("error", detail))

	code := xerrors.CodeProvisioning
	if errors.Is(cause, context.DeadlineExceeded) {
		detail = fmt.Sprintf("%s: timed out", stage)
	}
	m.alert(code, stage, detail)
	return xerrors.New(code, "", xerrors.WithDetails(detail), xerrors.WithMetadata("stage", stage))
}

// alert delivers asynchronously. detail must already be scrubbed.
func (m *Manager) alert(code xerrors.Code, stage, detail string) {
	if m.alerts == nil {
		return
	}
	event := alerting.Event{
		Code:       code,
		Message:    stage,
		Severity:   xerrors.AttributesOf(code).Severity,
		Component:  "session",
		Metadata:   map[string]string{"stage": stage, "detail": detail},
		OccurredAt: time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.alerts.Notify(ctx, event); err != nil {
			m.logger.Warn("alert delivery failed", slog.String("error", err.Error()))
		}
	}()
}

// Close releases the agent and wipes key material. Later Initialize calls
// fail; an initialization still in flight rolls itself back instead of
// publishing.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if r := m.ready.Swap(nil); r != nil && r.Agent != nil {
		r.Agent.Close()
	}
	m.material.Wipe()
	m.material = nil
	if m.state == StateReady {
		m.state = StateUninitialized
	}
}

func scrub(text string, secrets ...string) string {
	for _, secret := range secrets {
		if strings.TrimSpace(secret) == "" {
			continue
		}
		text = strings.ReplaceAll(text, secret, redacted)
	}
	return text
}
