package logging

import (
	"fmt"
	"log/slog"
)

// ErrorCode enumerates the pipeline's error taxonomy (validation, transport,
// and backpressure conditions) so each condition can be logged with a
// stable identifier independent of its formatted message.
type ErrorCode string

const (
	ErrCodeMetaInvalid     ErrorCode = "META_INVALID"
	ErrCodeIllegalData     ErrorCode = "ILLEGAL_DATA"
	ErrCodeNetwork         ErrorCode = "NETWORK_ERROR"
	ErrCodeIllegalResponse ErrorCode = "ILLEGAL_DATA_RESPONSE"
	ErrCodeOversize        ErrorCode = "OVERSIZE_RESPONSE"
	ErrCodeQueueThreshold  ErrorCode = "QUEUE_THRESHOLD"
	ErrCodeQueueFull       ErrorCode = "QUEUE_FULL"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
)

// PipelineError is a structured error carrying a stable code, optional
// cause, and free-form context, implementing slog.LogValuer so it renders
// as a structured group rather than a flat string.
type PipelineError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Operation string                 `json:"operation,omitempty"`
	EventName string                 `json:"event_name,omitempty"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Severity  string                 `json:"severity"`
}

// NewError creates a PipelineError with default severity "error".
func NewError(code ErrorCode, message string) *PipelineError {
	return &PipelineError{
		Code:     code,
		Message:  message,
		Severity: "error",
		Context:  make(map[string]interface{}),
	}
}

// NewWarning creates a PipelineError with severity "warning".
func NewWarning(code ErrorCode, message string) *PipelineError {
	return &PipelineError{
		Code:     code,
		Message:  message,
		Severity: "warning",
		Context:  make(map[string]interface{}),
	}
}

func (e *PipelineError) WithOperation(op string) *PipelineError {
	e.Operation = op
	return e
}

func (e *PipelineError) WithEvent(name string) *PipelineError {
	e.EventName = name
	return e
}

func (e *PipelineError) WithCause(err error) *PipelineError {
	e.Cause = err
	return e
}

func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// LogValue implements slog.LogValuer for structured logging.
func (e *PipelineError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("error_code", string(e.Code)),
		slog.String("message", e.Message),
		slog.String("severity", e.Severity),
	}

	if e.Operation != "" {
		attrs = append(attrs, slog.String("operation", e.Operation))
	}
	if e.EventName != "" {
		attrs = append(attrs, slog.String("event_name", e.EventName))
	}
	if e.Cause != nil {
		attrs = append(attrs, slog.String("cause", e.Cause.Error()))
	}
	if len(e.Context) > 0 {
		contextAttrs := make([]any, 0, len(e.Context)*2)
		for k, v := range e.Context {
			contextAttrs = append(contextAttrs, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("context", contextAttrs...))
	}

	return slog.GroupValue(attrs...)
}

// IsRetryable reports whether this error class is worth retrying (network
// transport failures), as opposed to permanent rejections (illegal data).
func (e *PipelineError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeTimeout, ErrCodeNetwork, ErrCodeOversize:
		return true
	default:
		return false
	}
}

// Common constructors mirroring spec's error taxonomy (§7).

func ErrMetaInvalid(field, message string) *PipelineError {
	return NewError(ErrCodeMetaInvalid, message).WithContext("field", field).WithOperation("validate")
}

func ErrIllegalData(eventName, message string) *PipelineError {
	return NewError(ErrCodeIllegalData, message).WithEvent(eventName).WithOperation("validate")
}

func ErrNetwork(subcode string, cause error) *PipelineError {
	return NewError(ErrCodeNetwork, fmt.Sprintf("network error: %s", subcode)).
		WithCause(cause).
		WithOperation("post").
		WithContext("subcode", subcode)
}

func ErrIllegalResponse(message string) *PipelineError {
	return NewError(ErrCodeIllegalResponse, message).WithOperation("post")
}

func ErrOversize(receivedSize, compressedSize, maxSize int) *PipelineError {
	return NewError(ErrCodeOversize, "server rejected batch as oversize").
		WithOperation("post").
		WithContext("received_size", receivedSize).
		WithContext("compressed_size", compressedSize).
		WithContext("max_size", maxSize)
}

func ErrQueueThreshold(size, capacity int) *PipelineError {
	return NewWarning(ErrCodeQueueThreshold, "queue crossed warning threshold").
		WithContext("size", size).
		WithContext("capacity", capacity)
}

func ErrQueueFull(dropped int) *PipelineError {
	return NewError(ErrCodeQueueFull, "queue full, dropping events").
		WithContext("dropped", dropped)
}
