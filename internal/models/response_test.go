package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorResponse(t *testing.T) {
	before := time.Now()
	resp := NewErrorResponse("Tool not found", ErrorCodeToolNotFound)

	assert.Equal(t, "error", resp.Error)
	assert.Equal(t, "Tool not found", resp.Message)
	assert.Equal(t, ErrorCodeToolNotFound, resp.Code)
	assert.False(t, resp.Timestamp.Before(before))
}

func TestNewHealthCheckResponse(t *testing.T) {
	resp := NewHealthCheckResponse("healthy")

	assert.Equal(t, "healthy", resp.Status)
	assert.NotNil(t, resp.Components)
	assert.NotNil(t, resp.Metrics)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestHealthCheckResponse_AddComponent(t *testing.T) {
	resp := NewHealthCheckResponse("healthy")
	resp.AddComponent("rate_limiter", "healthy", "3 buckets")

	component, ok := resp.Components["rate_limiter"]
	assert.True(t, ok)
	assert.Equal(t, "healthy", component.Status)
	assert.Equal(t, "3 buckets", component.Message)
	assert.NotNil(t, component.Details)
}

func TestHealthCheckResponse_AddMetric(t *testing.T) {
	resp := NewHealthCheckResponse("healthy")
	resp.AddMetric("tools", 12)

	assert.Equal(t, 12, resp.Metrics["tools"])
}
