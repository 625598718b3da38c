package tools

import (
	"context"
	"encoding/json"
	"net/url"

	"govukmcp/internal/models"
	"govukmcp/internal/ratelimit"
	"govukmcp/internal/upstream"
	"govukmcp/internal/validation"
)

const sourceTfL = "Transport for London API"

type tflLine struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	LineStatuses []tflLineStatus `json:"lineStatuses"`
}

type tflLineStatus struct {
	StatusSeverityDescription string          `json:"statusSeverityDescription"`
	Reason                    string          `json:"reason"`
	Disruption                json.RawMessage `json:"disruption"`
}

// LineStatus is the current service level of one line.
type LineStatus struct {
	Line       string          `json:"line"`
	Status     string          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	Disruption json.RawMessage `json:"disruption,omitempty"`
}

func (l tflLine) status() LineStatus {
	status := LineStatus{Line: l.Name}
	if len(l.LineStatuses) > 0 {
		first := l.LineStatuses[0]
		status.Status = first.StatusSeverityDescription
		status.Reason = first.Reason
		status.Disruption = first.Disruption
	}
	return status
}

func (s *Service) transportTools() []Tool {
	return []Tool{
		{
			Name:        "get_tube_status",
			Description: "Get the current status of every London Underground line.",
			Endpoint:    ratelimit.EndpointTfL,
			Handler:     s.tubeStatus,
		},
		{
			Name:        "get_line_status",
			Description: "Get the current status of one TfL line, e.g. central or elizabeth.",
			Endpoint:    ratelimit.EndpointTfL,
			Params: []Param{
				{Name: "line_id", Type: ParamString, Required: true, Description: "TfL line id, e.g. central, northern, hammersmith-city"},
			},
			Handler: s.lineStatus,
		},
	}
}

// tflQuery carries the optional application key.
func (s *Service) tflQuery() url.Values {
	if s.cfg.TfLAPIKey == "" {
		return nil
	}
	return url.Values{"app_key": {s.cfg.TfLAPIKey}}
}

func (s *Service) tubeStatus(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	var lines []tflLine
	if err := s.client.GetJSON(ctx, s.cfg.BaseURLs.TfL+"/Line/Mode/tube/Status", s.tflQuery(), &lines); err != nil {
		return nil, upstream.Sanitize(err)
	}

	statuses := make([]LineStatus, 0, len(lines))
	for _, line := range lines {
		statuses = append(statuses, line.status())
	}
	return s.result(map[string]any{"lines": statuses}, sourceTfL), nil
}

func (s *Service) lineStatus(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	lineID, err := validation.TfLLine(args.String("line_id"))
	if err != nil {
		return nil, err
	}

	var lines []tflLine
	err = s.client.GetJSON(ctx, s.cfg.BaseURLs.TfL+"/Line/"+url.PathEscape(lineID)+"/Status", s.tflQuery(), &lines)
	switch {
	case upstream.IsNotFound(err):
		return nil, models.NewNotFoundError("Line not found")
	case err != nil:
		return nil, upstream.Sanitize(err)
	case len(lines) == 0:
		return nil, models.NewNotFoundError("Line not found")
	}
	return s.result(lines[0].status(), sourceTfL), nil
}
