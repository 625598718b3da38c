package tools

import (
	"context"
	"strings"

	"govukmcp/internal/models"
	"govukmcp/internal/upstream"
	"govukmcp/internal/validation"
)

const sourceFloodMonitoring = "Environment Agency Flood Monitoring API"

type floodsResponse struct {
	Items []struct {
		Description         string `json:"description"`
		EAAreaName          string `json:"eaAreaName"`
		Message             string `json:"message"`
		Severity            string `json:"severity"`
		SeverityLevel       int    `json:"severityLevel"`
		TimeRaised          string `json:"timeRaised"`
		TimeSeverityChanged string `json:"timeSeverityChanged"`
	} `json:"items"`
}

// FloodWarning is an active warning or alert issued by the Environment Agency.
type FloodWarning struct {
	Severity            int    `json:"severity"`
	SeverityDescription string `json:"severity_description"`
	Area                string `json:"area"`
	Description         string `json:"description"`
	Message             string `json:"message,omitempty"`
	TimeRaised          string `json:"time_raised,omitempty"`
	TimeSeverityChanged string `json:"time_severity_changed,omitempty"`
}

func (s *Service) floodTools() []Tool {
	return []Tool{
		{
			Name:        "get_flood_warnings",
			Description: "Get active flood warnings in England, optionally filtered by postcode or area name.",
			Endpoint:    EndpointFloodMonitoring,
			Params: []Param{
				{Name: "postcode", Type: ParamString, Description: "Postcode to filter warnings by"},
				{Name: "area", Type: ParamString, Description: "Area or river name to filter warnings by"},
			},
			Handler: s.floodWarnings,
		},
	}
}

// normalizeFloodTerm upper-cases and strips spaces so "Thames Valley"
// matches "THAMESVALLEY" on either side.
func normalizeFloodTerm(s string) string {
	return strings.ReplaceAll(strings.ToUpper(s), " ", "")
}

func (s *Service) floodWarnings(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	filter := args.String("postcode")
	if filter == "" {
		filter = args.String("area")
	}
	if filter != "" {
		q, err := validation.Query(filter, validation.DefaultQueryLength)
		if err != nil {
			return nil, err
		}
		filter = q
	}

	var resp floodsResponse
	if err := s.client.GetJSON(ctx, s.cfg.BaseURLs.FloodMonitoring+"/id/floods", nil, &resp); err != nil {
		return nil, upstream.Sanitize(err)
	}
	if len(resp.Items) == 0 {
		return s.result(message{Message: "No active flood warnings in England"}, sourceFloodMonitoring), nil
	}

	term := normalizeFloodTerm(filter)
	warnings := make([]FloodWarning, 0, len(resp.Items))
	for _, item := range resp.Items {
		if term != "" &&
			!strings.Contains(normalizeFloodTerm(item.Description), term) &&
			!strings.Contains(normalizeFloodTerm(item.EAAreaName), term) {
			continue
		}
		warnings = append(warnings, FloodWarning{
			Severity:            item.SeverityLevel,
			SeverityDescription: item.Severity,
			Area:                item.EAAreaName,
			Description:         item.Description,
			Message:             item.Message,
			TimeRaised:          item.TimeRaised,
			TimeSeverityChanged: item.TimeSeverityChanged,
		})
	}
	if len(warnings) == 0 {
		return s.result(message{Message: "No flood warnings for " + filter}, sourceFloodMonitoring), nil
	}

	return s.result(map[string]any{
		"total_warnings": len(warnings),
		"warnings":       warnings,
	}, sourceFloodMonitoring), nil
}
