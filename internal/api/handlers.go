package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"govukmcp/internal/models"
	"govukmcp/internal/ratelimit"
	"govukmcp/internal/tools"
	"govukmcp/internal/version"
)

// maxToolBody caps the JSON arguments accepted by CallTool.
const maxToolBody = 64 << 10

// RateLimits is the upstream limiter as seen by the admin endpoints.
type RateLimits interface {
	ratelimit.Limiter
	Limits() map[string]int
	Endpoints() []string
}

// Handlers contains HTTP handlers for the tool API
type Handlers struct {
	registry *tools.Registry
	limits   RateLimits
	version  version.Info
	started  time.Time
	now      func() time.Time
}

// HandlerOption configures optional dependencies on Handlers.
type HandlerOption func(*Handlers)

// WithVersion sets the build info reported by the health check.
func WithVersion(info version.Info) HandlerOption {
	return func(h *Handlers) {
		h.version = info
	}
}

// WithClock replaces the clock used for uptime and reset timestamps.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handlers) {
		h.now = now
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(registry *tools.Registry, limits RateLimits, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		registry: registry,
		limits:   limits,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.started = h.now()
	return h
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version.Version
	response.Uptime = h.now().Sub(h.started).Round(time.Second).String()

	toolCount := len(h.registry.Names())
	if toolCount == 0 {
		response.Status = models.StatusDegraded
		response.AddComponent("tools", models.StatusDegraded, "No tools registered")
	} else {
		response.AddComponent("tools", models.StatusHealthy, strconv.Itoa(toolCount)+" tools registered")
	}
	response.AddComponent("rate_limiter", models.StatusHealthy, "Rate limiter is operational")

	response.AddMetric("tools_registered", toolCount)
	response.AddMetric("buckets_active", len(h.limits.Endpoints()))

	h.writeJSONResponse(w, http.StatusOK, response)
}

// ListTools handles tool listing requests
// GET /api/v1/tools
func (h *Handlers) ListTools(w http.ResponseWriter, r *http.Request) {
	list := h.registry.List()
	response := models.ListToolsResponse{
		Tools: make([]models.ToolInfo, 0, len(list)),
		Count: len(list),
	}
	for _, tool := range list {
		response.Tools = append(response.Tools, tool.Info())
	}
	h.writeJSONResponse(w, http.StatusOK, response)
}

// CallTool runs a tool with the JSON object in the request body as its
// arguments. Tool failures are returned as models.ErrorPayload.
// POST /api/v1/tools/{name}
func (h *Handlers) CallTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := h.registry.Get(name); !ok {
		h.writeErrorResponse(w, r, http.StatusNotFound, models.ErrorCodeToolNotFound, "Tool not found: "+name)
		return
	}

	args := models.ToolArgs{}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxToolBody+1))
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "Failed to read request body")
		return
	}
	if len(body) > maxToolBody {
		h.writeErrorResponse(w, r, http.StatusRequestEntityTooLarge, models.ErrorCodeBadRequest, "Request body too large")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "Arguments must be a JSON object")
			return
		}
	}

	result, err := h.registry.Call(r.Context(), name, args)
	if err != nil {
		if exceeded, ok := ratelimit.AsExceeded(err); ok {
			w.Header().Set("Retry-After", strconv.Itoa(exceeded.RetryAfter))
		}
		payload := models.PayloadFromError(err)
		status := statusForErrorType(payload.ErrorType)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "Tool call failed",
				"tool", name,
				"error_type", payload.ErrorType,
				"error", err,
				"request_id", RequestIDFromContext(r.Context()),
			)
		}
		h.writeJSONResponse(w, status, payload)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, result)
}

// statusForErrorType maps a tool error kind to its HTTP status.
func statusForErrorType(errorType string) int {
	switch errorType {
	case models.ErrorKindRateLimit:
		return http.StatusTooManyRequests
	case models.ErrorKindValidation:
		return http.StatusBadRequest
	case models.ErrorKindNotFound:
		return http.StatusNotFound
	case models.ErrorKindUpstream:
		return http.StatusBadGateway
	case models.ErrorKindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ListRateLimits reports the limit table and the state of every bucket
// created so far. Nothing is consumed.
// GET /api/v1/ratelimits
func (h *Handlers) ListRateLimits(w http.ResponseWriter, r *http.Request) {
	endpoints := h.limits.Endpoints()
	response := models.ListRateLimitsResponse{
		Limits:  h.limits.Limits(),
		Buckets: make([]models.RateLimitStatus, 0, len(endpoints)),
	}
	for _, endpoint := range endpoints {
		response.Buckets = append(response.Buckets, h.status(endpoint))
	}
	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetRateLimit reports one endpoint bucket.
// GET /api/v1/ratelimits/{endpoint}
func (h *Handlers) GetRateLimit(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, h.status(mux.Vars(r)["endpoint"]))
}

func (h *Handlers) status(endpoint string) models.RateLimitStatus {
	st := h.limits.Status(endpoint)
	return models.RateLimitStatus{
		Endpoint:  endpoint,
		Available: st.Available,
		Limit:     st.Limit,
		ResetTime: st.ResetAt,
	}
}

// ResetRateLimits refills one bucket, or all of them when no endpoint is
// given in the query string or the JSON body.
// POST /api/v1/ratelimits/reset
func (h *Handlers) ResetRateLimits(w http.ResponseWriter, r *http.Request) {
	var req models.ResetRateLimitsRequest
	if r.Body != nil {
		err := json.NewDecoder(io.LimitReader(r.Body, maxToolBody)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
			return
		}
	}
	if endpoint := r.URL.Query().Get("endpoint"); endpoint != "" {
		req.Endpoint = endpoint
	}

	response := models.ResetRateLimitsResponse{ResetAt: h.now().UTC()}
	if req.Endpoint != "" {
		h.limits.Reset(req.Endpoint)
		response.Reset = []string{req.Endpoint}
	} else {
		response.Reset = h.limits.Endpoints()
		h.limits.ResetAll()
	}

	slog.InfoContext(r.Context(), "Rate limits reset",
		"endpoints", response.Reset,
		"request_id", RequestIDFromContext(r.Context()),
	)
	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, data)
}

// writeErrorResponse writes an error response tagged with the request id.
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	errorResp := models.NewErrorResponse(message, errorCode)
	errorResp.RequestID = RequestIDFromContext(r.Context())
	h.writeJSONResponse(w, statusCode, errorResp)
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are already written
		slog.Error("Error encoding JSON response", "error", err)
	}
}
