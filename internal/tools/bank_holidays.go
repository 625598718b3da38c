package tools

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"govukmcp/internal/models"
	"govukmcp/internal/upstream"
)

const sourceBankHolidays = "GOV.UK Bank Holidays API"

type bankHolidayDivision struct {
	Division string        `json:"division"`
	Events   []BankHoliday `json:"events"`
}

// BankHoliday is one holiday in a UK division.
type BankHoliday struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	Notes   string `json:"notes"`
	Bunting bool   `json:"bunting"`
}

// DivisionHolidays lists the upcoming holidays of one division.
type DivisionHolidays struct {
	Country          string        `json:"country,omitempty"`
	Division         string        `json:"division,omitempty"`
	UpcomingHolidays []BankHoliday `json:"upcoming_holidays"`
}

func (s *Service) bankHolidayTools() []Tool {
	return []Tool{{
		Name:        "get_bank_holidays",
		Description: "List upcoming UK bank holidays, optionally for one country (england-and-wales, scotland, northern-ireland).",
		Endpoint:    EndpointBankHolidays,
		Params: []Param{
			{Name: "country", Type: ParamString, Description: "Optional division: england-and-wales, scotland or northern-ireland"},
		},
		Handler: s.bankHolidays,
	}}
}

func (s *Service) bankHolidays(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	var divisions map[string]bankHolidayDivision
	if err := s.client.GetJSON(ctx, s.cfg.BaseURLs.BankHolidays, nil, &divisions); err != nil {
		return nil, upstream.Sanitize(err)
	}

	today := s.now().Format(time.DateOnly)

	if country := args.String("country"); country != "" {
		key := strings.ReplaceAll(strings.ToLower(country), " ", "-")
		division, ok := divisions[key]
		if !ok {
			return nil, models.NewValidationError("Invalid country. Choose from: " +
				strings.Join(slices.Sorted(maps.Keys(divisions)), ", "))
		}
		return s.result(DivisionHolidays{
			Country:          key,
			UpcomingHolidays: upcoming(division.Events, today),
		}, sourceBankHolidays), nil
	}

	all := make(map[string]DivisionHolidays, len(divisions))
	for key, division := range divisions {
		all[key] = DivisionHolidays{
			Division:         division.Division,
			UpcomingHolidays: upcoming(division.Events, today),
		}
	}
	return s.result(all, sourceBankHolidays), nil
}

// upcoming keeps events on or after today. Dates are ISO formatted so string
// order is date order.
func upcoming(events []BankHoliday, today string) []BankHoliday {
	out := make([]BankHoliday, 0, len(events))
	for _, event := range events {
		if event.Date >= today {
			out = append(out, event)
		}
	}
	return out
}
