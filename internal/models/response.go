// Package models - API response types and error handling.
// This file defines the outgoing HTTP response structures.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Optional fields use omitempty to reduce response size
// - Machine-readable error codes alongside human-readable messages
// - RFC3339 timestamps for international compatibility
package models

import (
	"time"
)

// ErrorResponse is the body of every non-2xx HTTP response outside the tool
// call endpoint.
type ErrorResponse struct {
	Error     string            `json:"error"`                // Error type (always "error")
	Message   string            `json:"message"`              // Human-readable error description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Unique request identifier
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Metrics    map[string]interface{}     `json:"metrics,omitempty"`
}

type ComponentHealth struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ToolInfo describes one registered tool.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Endpoint    string          `json:"endpoint"`
	Parameters  []ToolParameter `json:"parameters"`
}

type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

type ListToolsResponse struct {
	Tools []ToolInfo `json:"tools"`
	Count int        `json:"count"`
}

// RateLimitStatus is the non-consuming view of one endpoint bucket.
type RateLimitStatus struct {
	Endpoint  string    `json:"endpoint"`
	Available int       `json:"available"`
	Limit     int       `json:"limit"`
	ResetTime time.Time `json:"reset_time"`
}

type ListRateLimitsResponse struct {
	Limits  map[string]int    `json:"limits"`  // Configured requests per minute
	Buckets []RateLimitStatus `json:"buckets"` // Buckets created so far
}

type ResetRateLimitsRequest struct {
	Endpoint string `json:"endpoint,omitempty"` // Empty resets every bucket
}

type ResetRateLimitsResponse struct {
	Reset   []string  `json:"reset"`
	ResetAt time.Time `json:"reset_at"`
}

// Standard HTTP Error Codes
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 404: Resource doesn't exist
	ErrorCodeToolNotFound       = "TOOL_NOT_FOUND"      // 404: Tool isn't registered
	ErrorCodeBadRequest         = "BAD_REQUEST"         // 400: Invalid request format
	ErrorCodeValidation         = "VALIDATION_ERROR"    // 400: Tool argument validation failed
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500: Server-side error
	ErrorCodeUnauthorized       = "UNAUTHORIZED"        // 401: Authentication required
	ErrorCodeForbidden          = "FORBIDDEN"           // 403: Permission denied
	ErrorCodeRateLimited        = "RATE_LIMIT_EXCEEDED" // 429: Bucket empty
	ErrorCodeUpstream           = "UPSTREAM_ERROR"      // 502: Government API failed
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503: Service temporarily down
)

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
		Metrics:    make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddMetric(name string, value interface{}) {
	h.Metrics[name] = value
}
