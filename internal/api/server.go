package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/observability/metrics"
	"AgentKit-Chain/internal/session"
	"AgentKit-Chain/internal/turn"
	"AgentKit-Chain/internal/validation"
	"AgentKit-Chain/pkg/logger"

	"github.com/google/uuid"
)

const (
	msgInitialized = "Agent initialized successfully"
	msgInvalidJSON = "Request body must be a JSON object"
	headerRequest  = "X-Request-ID"
)

// Server 暴露会话初始化、对话与钱包查询接口。
type Server struct {
	addr     string
	manager  *session.Manager
	turns    *turn.Aggregator
	defaults validation.Defaults

	maxBodyBytes      int64
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration
	exposeMetrics     bool

	logger *slog.Logger
	audit  *slog.Logger
}

// Option 定制 Server。
type Option func(*Server)

// WithLLMDefaults 设置请求未携带 llm 时使用的模型参数。
func WithLLMDefaults(d validation.Defaults) Option {
	return func(s *Server) { s.defaults = d }
}

// WithMaxBodyBytes 限制请求体大小。
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithTimeouts 设置读取请求头与优雅关闭的超时时间。
func WithTimeouts(readHeader, shutdown time.Duration) Option {
	return func(s *Server) {
		if readHeader > 0 {
			s.readHeaderTimeout = readHeader
		}
		if shutdown > 0 {
			s.shutdownTimeout = shutdown
		}
	}
}

// WithMetrics 控制是否在同一端口暴露 /metrics。
func WithMetrics(enabled bool) Option {
	return func(s *Server) { s.exposeMetrics = enabled }
}

// WithLogger 替换默认日志实例。
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAuditLogger 替换审计日志实例。
func WithAuditLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.audit = l
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, manager *session.Manager, turns *turn.Aggregator, opts ...Option) *Server {
	s := &Server{
		addr:              addr,
		manager:           manager,
		turns:             turns,
		defaults:          validation.Defaults{ModelName: "gpt-4o-mini", Temperature: 0.7},
		maxBodyBytes:      1 << 20,
		readHeaderTimeout: 5 * time.Second,
		shutdownTimeout:   5 * time.Second,
		exposeMetrics:     true,
		logger:            logger.Named("api"),
		audit:             logger.Audit(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.turns == nil {
		s.turns = turn.NewAggregator()
	}
	return s
}

// Handler 返回带中间件的路由，便于测试直接驱动。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/init", s.instrument("/init", http.MethodPost, s.handleInit))
	mux.Handle("/chat", s.instrument("/chat", http.MethodPost, s.handleChat))
	mux.Handle("/wallet", s.instrument("/wallet", http.MethodGet, s.handleWallet))
	mux.Handle("/healthz", s.instrument("/healthz", http.MethodGet, s.handleHealth))
	if s.exposeMetrics {
		mux.Handle("/metrics", metrics.Handler())
	}
	return mux
}

// Start 先绑定端口再提供服务，端口占用等监听错误会立即返回。
// 上下文取消后优雅关闭。
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// IsAddrInUse 判断监听错误是否因端口已被占用。
func IsAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

// Serve 在给定监听器上提供服务，直到上下文取消或出现错误。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("agent server listening", slog.String("address", ln.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	// 已初始化时直接拒绝，不解析请求体。
	if s.manager.State() != session.StateUninitialized {
		s.writeError(w, r, xerrors.New(xerrors.CodeAlreadyInitialized, ""))
		return
	}

	fields, err := s.decode(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := validation.ParseInit(fields, s.defaults)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ready, err := s.manager.Initialize(r.Context(), cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, initResponse{
		Message:       msgInitialized,
		WalletAddress: ready.Address,
		Config:        initConfig{LLM: ready.LLM},
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ready, err := s.manager.Ready()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	fields, err := s.decode(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	message, err := validation.ParseChat(fields)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.turns.Run(r.Context(), ready, message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Responses: result.Responses})
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	address, err := s.manager.WalletAddress()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, walletResponse{WalletAddress: address})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", State: s.manager.State().String()})
}

// decode 将请求体解析为字段映射，数字保留为 json.Number。空请求体视为空对象。
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "Request body too large")
		}
		return nil, xerrors.New(xerrors.CodeInvalidArgument, msgInvalidJSON)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := xerrors.From(err)
	if !ok {
		e = xerrors.Wrap(xerrors.CodeUnknown, err, "Internal server error")
	}
	status := e.HTTPStatus()

	resp := errorResponse{Error: e.Message(), Code: string(e.Code())}
	if missing := e.MissingFields(); len(missing) > 0 {
		resp.MissingFields = missing
	}
	if e.Code() != xerrors.CodeAgentFailure && e.Code() != xerrors.CodeTimeout && e.Code() != xerrors.CodeUnknown {
		resp.Details = strings.Join(e.Details(), "; ")
	}

	attrs := []any{
		slog.String("request_id", requestID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("code", resp.Code),
		slog.Int("status", status),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", append(attrs, slog.String("error", err.Error()))...)
	} else {
		s.logger.Debug("request rejected", attrs...)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// statusRecorder 记录处理器写出的状态码。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument 统一处理方法校验、请求 ID、指标与审计日志。
func (s *Server) instrument(route, method string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		id := strings.TrimSpace(r.Header.Get(headerRequest))
		if id == "" || len(id) > 128 {
			if generated, err := uuid.NewV7(); err == nil {
				id = generated.String()
			}
		}
		w.Header().Set(headerRequest, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		if r.Method != method {
			rec.Header().Set("Allow", method)
			writeJSON(rec, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed", Code: "METHOD_NOT_ALLOWED"})
		} else {
			next(rec, r)
		}

		elapsed := time.Since(started)
		metrics.ObserveHTTPRequest(route, r.Method, rec.status, elapsed)
		s.audit.Info("api_request",
			slog.String("request_id", id),
			slog.String("method", r.Method),
			slog.String("path", route),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", elapsed),
		)
	})
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Server is shutting down", Code: "UNAVAILABLE"})
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
