package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"govukmcp/internal/models"
)

// MCPPath is where the streamable HTTP MCP transport is mounted.
const MCPPath = "/mcp"

// RouteOption configures optional route behavior.
type RouteOption func(*routeConfig)

type routeConfig struct {
	middleware []mux.MiddlewareFunc
	mcp        http.Handler
}

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(c *routeConfig) {
		c.middleware = append(c.middleware, otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" && r.URL.Path != "/api/v1/health"
			}),
		))
	}
}

// WithRateLimiter adds per-client rate limiting middleware to the router.
func WithRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(c *routeConfig) {
		c.middleware = append(c.middleware, middleware)
	}
}

// WithMCPHandler mounts the MCP transport at MCPPath.
func WithMCPHandler(h http.Handler) RouteOption {
	return func(c *routeConfig) {
		c.mcp = h
	}
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	var rc routeConfig
	for _, opt := range opts {
		opt(&rc)
	}

	router := mux.NewRouter()

	router.Use(requestIDMiddleware)
	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)
	for _, mw := range rc.middleware {
		router.Use(mw)
	}

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	api.HandleFunc("/tools", handlers.ListTools).Methods("GET")
	api.HandleFunc("/tools", methodNotAllowedHandler).Methods("POST", "PUT", "DELETE", "PATCH")
	api.HandleFunc("/tools/{name}", handlers.CallTool).Methods("POST")
	api.HandleFunc("/tools/{name}", methodNotAllowedHandler).Methods("GET", "PUT", "DELETE", "PATCH")
	api.HandleFunc("/ratelimits", handlers.ListRateLimits).Methods("GET")
	api.HandleFunc("/ratelimits", methodNotAllowedHandler).Methods("POST", "PUT", "DELETE", "PATCH")
	api.HandleFunc("/ratelimits/{endpoint}", handlers.GetRateLimit).Methods("GET")
	// POST is left to the reset route below.
	api.HandleFunc("/ratelimits/{endpoint}", methodNotAllowedHandler).Methods("PUT", "DELETE", "PATCH")

	admin := api.PathPrefix("/ratelimits/reset").Subrouter()
	admin.Use(adminTokenMiddleware(config.Security.AdminToken))
	admin.HandleFunc("", handlers.ResetRateLimits).Methods("POST")

	if rc.mcp != nil {
		router.Handle(MCPPath, rc.mcp)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Not found", models.ErrorCodeNotFound))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)

	return router
}

// methodNotAllowedHandler handles requests with invalid HTTP methods
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, models.NewErrorResponse("Method not allowed", models.ErrorCodeBadRequest))
}
