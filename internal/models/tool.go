package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Error kinds reported to tool callers in ErrorPayload.ErrorType.
const (
	ErrorKindRateLimit     = "rate_limit_exceeded"
	ErrorKindValidation    = "validation_error"
	ErrorKindNotFound      = "not_found"
	ErrorKindConfiguration = "configuration_error"
	ErrorKindUpstream      = "upstream_error"
	ErrorKindUnavailable   = "service_unavailable"
	ErrorKindInternal      = "internal_error"
)

// ToolArgs holds the decoded arguments of a tool call. Values arrive from JSON
// so numbers are usually float64.
type ToolArgs map[string]any

// String returns the argument as a trimmed string, or "" when absent.
func (a ToolArgs) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Int returns the argument as an int, or def when absent or unparsable.
func (a ToolArgs) Int(key string, def int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Float returns the argument as a float64 and whether it was present and
// numeric.
func (a ToolArgs) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Bool returns the argument as a bool. Absent or unparsable values are false.
func (a ToolArgs) Bool(key string) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	}
	return false
}

// ToolResult is the successful outcome of a tool call.
type ToolResult struct {
	Data        any            `json:"data"`
	DataSource  string         `json:"data_source,omitempty"`
	RetrievedAt time.Time      `json:"retrieved_at"`
	RateLimit   *RateLimitMeta `json:"rate_limit,omitempty"`
}

// RateLimitMeta is the bucket state after the call that produced a result.
type RateLimitMeta struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetTime time.Time `json:"reset_time"`
}

// ErrorPayload is the structured error returned to tool callers in place of
// a result.
type ErrorPayload struct {
	Error      string     `json:"error"`
	ErrorType  string     `json:"error_type"`
	Message    string     `json:"message,omitempty"`
	RetryAfter int        `json:"retry_after,omitempty"`
	ResetTime  *time.Time `json:"reset_time,omitempty"`
	Limit      int        `json:"limit,omitempty"`
}

// ToolError is a user-safe tool failure. Message never contains upstream
// response bodies or credentials.
type ToolError struct {
	Kind    string
	Message string
	Err     error // underlying cause, logged but never shown
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

func (e *ToolError) Payload() ErrorPayload {
	return ErrorPayload{Error: e.Message, ErrorType: e.Kind}
}

func NewValidationError(message string) *ToolError {
	return &ToolError{Kind: ErrorKindValidation, Message: message}
}

func NewNotFoundError(message string) *ToolError {
	return &ToolError{Kind: ErrorKindNotFound, Message: message}
}

func NewConfigurationError(message string) *ToolError {
	return &ToolError{Kind: ErrorKindConfiguration, Message: message}
}

// Payloader is implemented by errors that render their own ErrorPayload.
type Payloader interface {
	Payload() ErrorPayload
}

// PayloadFromError renders err for a tool caller. Errors without their own
// payload become a generic internal error so no detail leaks.
func PayloadFromError(err error) ErrorPayload {
	var p Payloader
	if errors.As(err, &p) {
		return p.Payload()
	}
	return ErrorPayload{
		Error:     "An unexpected error occurred. Please try again.",
		ErrorType: ErrorKindInternal,
	}
}
