// Package ratelimit provides per-endpoint admission control for outbound API
// calls using the token bucket algorithm. Buckets are created lazily per
// endpoint, start full and refill continuously. A decorator guards tool
// operations and an HTTP middleware applies the same limiter to inbound
// requests.
package ratelimit

import (
	"errors"
	"time"
)

// Limiter defines the rate limiting contract. Implementations must be safe for
// concurrent use.
type Limiter interface {
	// CheckLimit consumes cost tokens from the bucket named by endpoint.
	// A requestsPerMinute <= 0 selects the configured limit for the endpoint.
	// The capacity and rate of an existing bucket are never changed.
	CheckLimit(endpoint string, requestsPerMinute int, cost float64) (allowed bool, info Info)

	// Status reports the bucket state without consuming tokens.
	Status(endpoint string) Status

	// Reset refills the named bucket. Unknown endpoints are ignored.
	Reset(endpoint string)

	// ResetAll refills every bucket.
	ResetAll()
}

// Info describes the outcome of a CheckLimit call.
type Info struct {
	Limit      int       `json:"limit"`                 // Bucket capacity in requests
	Remaining  int       `json:"remaining"`             // Whole tokens left after the call
	ResetAt    time.Time `json:"reset_time"`            // Full again (granted) or enough tokens for the request (denied)
	RetryAfter int       `json:"retry_after,omitempty"` // Seconds to wait, set only when denied
}

// Status is a non-consuming snapshot of a bucket.
type Status struct {
	Available int       `json:"available"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_time"`
}

var (
	ErrInvalidCapacity = errors.New("capacity must be greater than zero")
	ErrInvalidRate     = errors.New("refill rate must be greater than zero")
	ErrInvalidLimit    = errors.New("requests per minute must be greater than zero")
)
