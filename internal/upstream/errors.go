package upstream

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"govukmcp/internal/models"
)

// IsNotFound reports whether err is a 404 from upstream.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// Sanitize converts an upstream failure into a message that is safe to show
// a caller. The original error is logged and kept as the cause.
func Sanitize(err error) *models.ToolError {
	if err == nil {
		return nil
	}

	var toolErr *models.ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}

	slog.Warn("Upstream request failed", "error", err)

	kind, message := classify(err)
	return &models.ToolError{Kind: kind, Message: message, Err: err}
}

func classify(err error) (kind, message string) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch code := statusErr.StatusCode; {
		case code == http.StatusNotFound:
			return models.ErrorKindNotFound, "Resource not found"
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return models.ErrorKindConfiguration, "Authentication error. Please check configuration."
		case code == http.StatusTooManyRequests:
			return models.ErrorKindUnavailable, "Rate limit exceeded. Please try again later."
		case code >= 500:
			return models.ErrorKindUpstream, "External service error. Please try again later."
		default:
			return models.ErrorKindUpstream, "Request failed. Please check your input and try again."
		}
	}

	if isTimeout(err) {
		return models.ErrorKindUnavailable, "Service temporarily unavailable. Please try again."
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return models.ErrorKindUpstream, "Network error. Please check your connection and try again."
	}

	return models.ErrorKindInternal, "An unexpected error occurred. Please try again."
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
