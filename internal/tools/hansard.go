package tools

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"govukmcp/internal/models"
	"govukmcp/internal/upstream"
	"govukmcp/internal/validation"
)

const (
	sourceHansard        = "Hansard API"
	sourceHansardArchive = "Hansard Archive"

	hansardArchiveURL = "http://www.hansard-archive.parliament.uk/"
	maxDebates        = 20

	// The modern API starts in 2015 and the archive ends in 2005.
	hansardModernFrom = 2015
	hansardArchiveTo  = 2005
)

type hansardSearchResponse struct {
	TotalResults int `json:"TotalResults"`
	Results      []struct {
		SittingDate        string `json:"SittingDate"`
		House              string `json:"House"`
		DebateSection      string `json:"DebateSection"`
		Title              string `json:"Title"`
		DebateSectionExtID string `json:"DebateSectionExtId"`
	} `json:"Results"`
}

// Debate is one Hansard search hit.
type Debate struct {
	Date          string `json:"date"`
	House         string `json:"house"`
	DebateSection string `json:"debate_section,omitempty"`
	Title         string `json:"title"`
	DebateID      string `json:"debate_id,omitempty"`
	URL           string `json:"url,omitempty"`
}

// DebateDetails is a full debate with its contributions.
type DebateDetails struct {
	ID            string          `json:"id"`
	Date          string          `json:"date"`
	House         string          `json:"house"`
	Subject       string          `json:"subject"`
	Contributions json.RawMessage `json:"contributions"`
	URL           string          `json:"url,omitempty"`
}

func (s *Service) hansardTools() []Tool {
	return []Tool{
		{
			Name:        "search_hansard",
			Description: "Search parliamentary debates in Hansard (2015 to present).",
			Endpoint:    EndpointHansard,
			Params: []Param{
				{Name: "query", Type: ParamString, Description: "Search term", Required: true},
				{Name: "date_from", Type: ParamString, Description: "Start date (YYYY-MM-DD)"},
				{Name: "date_to", Type: ParamString, Description: "End date (YYYY-MM-DD)"},
				{Name: "speaker", Type: ParamString, Description: "Member name to filter by"},
			},
			Handler: s.searchHansard,
		},
		{
			Name:        "get_debate",
			Description: "Get a Hansard debate and its contributions by debate id.",
			Endpoint:    EndpointHansard,
			Params: []Param{
				{Name: "debate_id", Type: ParamString, Description: "Debate section id from search_hansard", Required: true},
			},
			Handler: s.getDebate,
		},
	}
}

func (s *Service) searchHansard(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	query, err := validation.Query(args.String("query"), validation.DefaultQueryLength)
	if err != nil {
		return nil, err
	}
	dateFrom, err := validation.Date(args.String("date_from"), "start date")
	if err != nil {
		return nil, err
	}
	dateTo, err := validation.Date(args.String("date_to"), "end date")
	if err != nil {
		return nil, err
	}

	// The archive only publishes XML, so point the caller at it.
	if dateTo != "" && year(dateTo) < hansardArchiveTo {
		return s.result(map[string]any{
			"message":    "Historic Hansard (1803-2005) is only available from the Hansard Archive",
			"query":      query,
			"date_range": "1803-2005",
			"url":        hansardArchiveURL,
		}, sourceHansardArchive), nil
	}

	params := url.Values{
		"searchTerm": {query},
		"skip":       {"0"},
		"take":       {strconv.Itoa(maxDebates)},
	}
	if dateFrom != "" {
		params.Set("startDate", dateFrom)
	}
	if dateTo != "" {
		params.Set("endDate", dateTo)
	}
	if speaker := args.String("speaker"); speaker != "" {
		name, err := validation.Query(speaker, 100)
		if err != nil {
			return nil, err
		}
		params.Set("memberName", name)
	}

	var resp hansardSearchResponse
	if err := s.client.GetJSON(ctx, s.cfg.BaseURLs.Hansard+"/search/debates.json", params, &resp); err != nil {
		return nil, upstream.Sanitize(err)
	}
	if len(resp.Results) == 0 {
		return s.result(message{Message: "No debates found matching your search"}, sourceHansard), nil
	}

	shown := resp.Results[:min(len(resp.Results), maxDebates)]
	debates := make([]Debate, 0, len(shown))
	for _, r := range shown {
		d := Debate{
			Date:          r.SittingDate,
			House:         r.House,
			DebateSection: r.DebateSection,
			Title:         r.Title,
			DebateID:      r.DebateSectionExtID,
		}
		if d.DebateID != "" {
			d.URL = s.cfg.BaseURLs.Hansard + "/debates/" + url.PathEscape(d.DebateID)
		}
		debates = append(debates, d)
	}

	total := resp.TotalResults
	if total == 0 {
		total = len(debates)
	}
	out := map[string]any{
		"query":         query,
		"total_results": total,
		"showing":       len(debates),
		"debates":       debates,
		"date_range":    "2015-present",
	}
	if dateFrom != "" && year(dateFrom) < hansardModernFrom {
		out["note"] = "Coverage between 2005 and 2015 may be limited. This search covers 2015 onwards."
	}
	return s.result(out, sourceHansard), nil
}

func (s *Service) getDebate(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	id, err := validation.Identifier(args.String("debate_id"), "Debate ID", 100)
	if err != nil {
		return nil, err
	}

	var details DebateDetails
	err = s.client.GetJSON(ctx, s.cfg.BaseURLs.Hansard+"/debates/"+url.PathEscape(id)+".json", nil, &details)
	switch {
	case upstream.IsNotFound(err):
		return nil, models.NewNotFoundError("Debate not found")
	case err != nil:
		return nil, upstream.Sanitize(err)
	}
	details.ID = id
	if len(details.Contributions) == 0 || string(details.Contributions) == "null" {
		details.Contributions = json.RawMessage("[]")
	}
	return s.result(details, sourceHansard), nil
}

// year reads the year of a validated YYYY-MM-DD date.
func year(date string) int {
	y, _ := strconv.Atoi(date[:4])
	return y
}
