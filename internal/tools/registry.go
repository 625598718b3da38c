// Package tools defines the government data tools exposed by the server and
// the registry that guards each of them with the upstream rate limiter.
package tools

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"govukmcp/internal/models"
	"govukmcp/internal/ratelimit"
)

var (
	ErrToolExists  = errors.New("tool already registered")
	ErrUnknownTool = errors.New("unknown tool")
	ErrInvalidTool = errors.New("invalid tool definition")
)

// ParamType is the JSON schema type of a tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
)

// Param describes one tool argument.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// Tool is a named operation against one upstream endpoint. Handler is the
// raw operation when passed to Register and the guarded one afterwards.
type Tool struct {
	Name              string
	Description       string
	Endpoint          string // rate limit bucket shared by every tool on the same API
	RequestsPerMinute int    // used only if this tool creates the bucket; 0 selects the table
	Params            []Param
	Handler           ratelimit.Operation
}

// Info describes the tool for listings.
func (t Tool) Info() models.ToolInfo {
	params := make([]models.ToolParameter, 0, len(t.Params))
	for _, p := range t.Params {
		params = append(params, models.ToolParameter{
			Name:        p.Name,
			Type:        string(p.Type),
			Description: p.Description,
			Required:    p.Required,
		})
	}
	return models.ToolInfo{
		Name:        t.Name,
		Description: t.Description,
		Endpoint:    t.Endpoint,
		Parameters:  params,
	}
}

// Middleware decorates a guarded tool handler, outermost last.
type Middleware func(name string, next ratelimit.Operation) ratelimit.Operation

// Registry holds the registered tools. It is safe for concurrent use.
type Registry struct {
	limiter    ratelimit.Limiter
	middleware []Middleware

	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry whose tools consume tokens from limiter. A
// nil limiter selects ratelimit.Default.
func NewRegistry(limiter ratelimit.Limiter, middleware ...Middleware) *Registry {
	return &Registry{
		limiter:    limiter,
		middleware: middleware,
		tools:      make(map[string]Tool),
	}
}

// Register guards the tool handler with its endpoint bucket and adds it.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" || tool.Endpoint == "" || tool.Handler == nil {
		return fmt.Errorf("%w: %q needs a name, an endpoint and a handler", ErrInvalidTool, tool.Name)
	}

	guarded := ratelimit.Wrap(tool.Endpoint,
		ratelimit.WithLimiter(r.limiter),
		ratelimit.WithRequestsPerMinute(tool.RequestsPerMinute),
	)(tool.Handler)
	for _, mw := range r.middleware {
		guarded = mw(tool.Name, guarded)
	}
	tool.Handler = guarded

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolExists, tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Get returns the registered tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns every tool sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Tool, 0, len(r.tools))
	for _, name := range slices.Sorted(maps.Keys(r.tools)) {
		list = append(list, r.tools[name])
	}
	return list
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.tools))
}

// Call runs the named tool.
func (r *Registry) Call(ctx context.Context, name string, args models.ToolArgs) (*models.ToolResult, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if args == nil {
		args = models.ToolArgs{}
	}
	return tool.Handler(ctx, args)
}
