package tools

import (
	"fmt"
	"time"

	"govukmcp/internal/models"
	"govukmcp/internal/ratelimit"
	"govukmcp/internal/upstream"
)

// Rate limit endpoints for APIs without a dedicated entry in the limit table.
const (
	EndpointPostcodes       = "postcodes_io"
	EndpointBankHolidays    = "bank_holidays"
	EndpointFoodHygiene     = "food_hygiene"
	EndpointFloodMonitoring = "flood_monitoring"
	EndpointPolice          = "police_data"
	EndpointHansard         = "hansard"
)

// Service implements the tool handlers against the configured upstream APIs.
type Service struct {
	client *upstream.Client
	cfg    models.UpstreamConfig
	now    func() time.Time

	// limiter guards upstream calls a tool makes beyond its own endpoint.
	// RegisterAll sets it to the registry's limiter.
	limiter ratelimit.Limiter
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock replaces the clock used for retrieval timestamps and date filters.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(client *upstream.Client, cfg models.UpstreamConfig, opts ...ServiceOption) *Service {
	s := &Service{
		client: client,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tools returns the definitions of every tool the service implements.
func (s *Service) Tools() []Tool {
	var all []Tool
	all = append(all, s.postcodeTools()...)
	all = append(all, s.bankHolidayTools()...)
	all = append(all, s.transportTools()...)
	all = append(all, s.companiesHouseTools()...)
	all = append(all, s.foodHygieneTools()...)
	all = append(all, s.floodTools()...)
	all = append(all, s.policeTools()...)
	all = append(all, s.hansardTools()...)
	return all
}

// RegisterAll adds every tool of svc to reg. Secondary upstream calls made by
// the tools spend from the same limiter as the registry.
func RegisterAll(reg *Registry, svc *Service) error {
	svc.limiter = reg.limiter
	for _, tool := range svc.Tools() {
		if err := reg.Register(tool); err != nil {
			return fmt.Errorf("failed to register %s: %w", tool.Name, err)
		}
	}
	return nil
}

func (s *Service) result(data any, source string) *models.ToolResult {
	return &models.ToolResult{
		Data:        data,
		DataSource:  source,
		RetrievedAt: s.now().UTC(),
	}
}

// message is the payload of a successful call that found nothing.
type message struct {
	Message string `json:"message"`
}
