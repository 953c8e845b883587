package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"sync"
)

// Code 表示系统内的统一错误码。
type Code string

// Severity 描述错误的严重程度，用于日志与审计。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Attributes 为错误码提供默认行为。
type Attributes struct {
	Message    string
	Severity   Severity
	HTTPStatus int
	Retryable  bool
}

const (
	CodeUnknown            Code = "UNKNOWN"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeAlreadyInitialized Code = "ALREADY_INITIALIZED"
	CodeNotInitialized     Code = "NOT_INITIALIZED"
	CodeProvisioning       Code = "PROVISIONING_FAILURE"
	CodeAgentFailure       Code = "AGENT_FAILURE"
	CodeTimeout            Code = "TIMEOUT"
)

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown: {
			Message:    "unknown error",
			Severity:   SeverityCritical,
			HTTPStatus: http.StatusInternalServerError,
		},
		CodeInvalidArgument: {
			Message:    "invalid argument",
			Severity:   SeverityInfo,
			HTTPStatus: http.StatusBadRequest,
		},
		CodeAlreadyInitialized: {
			Message:    "Agent is already initialized",
			Severity:   SeverityInfo,
			HTTPStatus: http.StatusBadRequest,
		},
		CodeNotInitialized: {
			Message:    "Agent not initialized. Please call /init endpoint first",
			Severity:   SeverityInfo,
			HTTPStatus: http.StatusBadRequest,
		},
		CodeProvisioning: {
			Message:    "Failed to initialize agent",
			Severity:   SeverityCritical,
			HTTPStatus: http.StatusInternalServerError,
			Retryable:  true,
		},
		CodeAgentFailure: {
			Message:    "Internal server error",
			Severity:   SeverityWarning,
			HTTPStatus: http.StatusInternalServerError,
			Retryable:  true,
		},
		CodeTimeout: {
			Message:    "operation timed out",
			Severity:   SeverityWarning,
			HTTPStatus: http.StatusInternalServerError,
			Retryable:  true,
		},
	}
)

// Register 允许业务模块在初始化阶段注册新的错误码描述。
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf 返回错误码对应的属性。若未注册则返回 UNKNOWN 的属性。
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error 是系统内统一的错误类型。
type Error struct {
	code          Code
	message       string
	cause         error
	metadata      map[string]string
	missingFields []string
	details       []string
	severity      *Severity
}

// Option 定义可选配置。
type Option func(*Error)

// WithMetadata 附加额外信息。
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithMissingFields 记录缺失的必填字段。
func WithMissingFields(fields ...string) Option {
	return func(e *Error) {
		e.missingFields = append(e.missingFields, fields...)
	}
}

// WithDetails 记录面向调用方的补充说明，例如逐条的校验失败原因。
func WithDetails(details ...string) Option {
	return func(e *Error) {
		e.details = append(e.details, details...)
	}
}

// WithSeverity 覆盖默认严重程度。
func WithSeverity(sev Severity) Option {
	return func(e *Error) {
		e.severity = &sev
	}
}

// New 创建一个新的错误实例。
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap 在已有错误外包裹统一错误类型。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

// Unwrap 实现 errors.Unwrap。
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 允许通过 errors.Is 判断是否相同错误码。
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Code 返回错误码。
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message 返回错误信息，不包含底层原因。
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Cause 返回底层原因的文本描述。
func (e *Error) Cause() string {
	if e == nil || e.cause == nil {
		return ""
	}
	return e.cause.Error()
}

// Metadata 返回附加信息。
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	clone := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		clone[k] = v
	}
	return clone
}

// MissingFields 返回缺失字段列表。
func (e *Error) MissingFields() []string {
	if e == nil || len(e.missingFields) == 0 {
		return nil
	}
	return append([]string(nil), e.missingFields...)
}

// Details 返回补充说明列表。
func (e *Error) Details() []string {
	if e == nil || len(e.details) == 0 {
		return nil
	}
	return append([]string(nil), e.details...)
}

// Retryable 判断是否可重试。
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	return AttributesOf(e.code).Retryable
}

// Severity 返回错误严重程度。
func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	if e.severity != nil {
		return *e.severity
	}
	return AttributesOf(e.code).Severity
}

// HTTPStatus 返回错误码映射的 HTTP 状态码。
func (e *Error) HTTPStatus() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	status := AttributesOf(e.code).HTTPStatus
	if status == 0 {
		return http.StatusInternalServerError
	}
	return status
}

// From 尝试从 error 中解析统一错误类型。
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf 返回错误对应的错误码。
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// HTTPStatusOf 返回任意 error 对应的 HTTP 状态码。
func HTTPStatusOf(err error) int {
	if e, ok := From(err); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// SeverityOf 返回错误严重程度。
func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return AttributesOf(CodeUnknown).Severity
}
