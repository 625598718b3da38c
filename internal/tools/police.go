package tools

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"govukmcp/internal/models"
	"govukmcp/internal/ratelimit"
	"govukmcp/internal/upstream"
	"govukmcp/internal/validation"
)

const (
	sourcePolice = "Police.uk API"

	maxCrimes = 50
)

// PoliceForce is a force id and display name.
type PoliceForce struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ForceDetails is the contact record of a police force.
type ForceDetails struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	URL               string          `json:"url,omitempty"`
	Telephone         string          `json:"telephone,omitempty"`
	EngagementMethods json.RawMessage `json:"engagement_methods,omitempty"`
}

type streetCrime struct {
	Category     string `json:"category"`
	LocationType string `json:"location_type"`
	Month        string `json:"month"`
	Location     *struct {
		Street struct {
			Name string `json:"name"`
		} `json:"street"`
	} `json:"location"`
	OutcomeStatus *struct {
		Category string `json:"category"`
	} `json:"outcome_status"`
}

// Crime is one street-level crime report.
type Crime struct {
	Category      string `json:"category"`
	LocationType  string `json:"location_type,omitempty"`
	Street        string `json:"street,omitempty"`
	Month         string `json:"month"`
	OutcomeStatus string `json:"outcome_status,omitempty"`
}

func (s *Service) policeTools() []Tool {
	return []Tool{
		{
			Name:        "get_police_forces",
			Description: "List every police force in England, Wales and Northern Ireland.",
			Endpoint:    EndpointPolice,
			Handler:     s.policeForces,
		},
		{
			Name:        "get_force_details",
			Description: "Get contact details and engagement channels for a police force.",
			Endpoint:    EndpointPolice,
			Params: []Param{
				{Name: "force_id", Type: ParamString, Required: true, Description: "Force id, e.g. metropolitan"},
			},
			Handler: s.forceDetails,
		},
		{
			Name:        "get_street_crime",
			Description: "Get street-level crimes within a mile of a location.",
			Endpoint:    EndpointPolice,
			Params: []Param{
				{Name: "lat", Type: ParamNumber, Required: true, Description: "Latitude"},
				{Name: "lng", Type: ParamNumber, Required: true, Description: "Longitude"},
				{Name: "date", Type: ParamString, Description: "Month in YYYY-MM format (default latest)"},
			},
			Handler: s.streetCrime,
		},
		{
			Name:        "get_crime_by_postcode",
			Description: "Get street-level crimes around a UK postcode.",
			Endpoint:    EndpointPolice,
			Params: []Param{
				{Name: "postcode", Type: ParamString, Required: true, Description: "UK postcode, e.g. SW1A 1AA"},
			},
			Handler: s.crimeByPostcode,
		},
	}
}

func (s *Service) policeForces(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	var forces []PoliceForce
	if err := s.client.GetJSON(ctx, s.cfg.BaseURLs.Police+"/forces", nil, &forces); err != nil {
		return nil, upstream.Sanitize(err)
	}
	if forces == nil {
		forces = []PoliceForce{}
	}
	return s.result(map[string]any{"forces": forces}, sourcePolice), nil
}

func (s *Service) forceDetails(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	forceID, err := validation.Identifier(args.String("force_id"), "Force ID", 50)
	if err != nil {
		return nil, err
	}

	var details ForceDetails
	err = s.client.GetJSON(ctx, s.cfg.BaseURLs.Police+"/forces/"+url.PathEscape(forceID), nil, &details)
	switch {
	case upstream.IsNotFound(err):
		return nil, models.NewNotFoundError("Police force not found")
	case err != nil:
		return nil, upstream.Sanitize(err)
	}
	if len(details.EngagementMethods) == 0 || string(details.EngagementMethods) == "null" {
		details.EngagementMethods = json.RawMessage("[]")
	}
	return s.result(details, sourcePolice), nil
}

func (s *Service) streetCrime(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	lat, okLat := args.Float("lat")
	lng, okLng := args.Float("lng")
	if !okLat || !okLng {
		return nil, models.NewValidationError("Latitude and longitude are required")
	}
	date, err := validation.Month(args.String("date"))
	if err != nil {
		return nil, err
	}
	return s.crimesAt(ctx, lat, lng, date)
}

func (s *Service) crimeByPostcode(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	postcode, err := validation.Postcode(args.String("postcode"))
	if err != nil {
		return nil, err
	}

	// The geocode is a postcodes.io request and spends from its bucket.
	if _, err := ratelimit.Acquire(ctx, s.limiter, EndpointPostcodes, 0); err != nil {
		return nil, err
	}
	record, err := s.fetchPostcode(ctx, postcode)
	if err != nil {
		return nil, err
	}
	if record.Latitude == nil || record.Longitude == nil {
		return nil, models.NewNotFoundError("No coordinates available for this postcode")
	}
	return s.crimesAt(ctx, *record.Latitude, *record.Longitude, "")
}

func (s *Service) crimesAt(ctx context.Context, lat, lng float64, date string) (*models.ToolResult, error) {
	if err := validation.Coordinates(lat, lng); err != nil {
		return nil, err
	}

	query := url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lng": {strconv.FormatFloat(lng, 'f', -1, 64)},
	}
	if date != "" {
		query.Set("date", date)
	}

	var reports []streetCrime
	if err := s.client.GetJSON(ctx, s.cfg.BaseURLs.Police+"/crimes-street/all-crime", query, &reports); err != nil {
		return nil, upstream.Sanitize(err)
	}
	if len(reports) == 0 {
		return s.result(message{Message: "No crime data available for this location"}, sourcePolice), nil
	}

	shown := reports[:min(len(reports), maxCrimes)]
	crimes := make([]Crime, 0, len(shown))
	for _, r := range shown {
		c := Crime{Category: r.Category, LocationType: r.LocationType, Month: r.Month}
		if r.Location != nil {
			c.Street = r.Location.Street.Name
		}
		if r.OutcomeStatus != nil {
			c.OutcomeStatus = r.OutcomeStatus.Category
		}
		crimes = append(crimes, c)
	}
	return s.result(map[string]any{
		"total_crimes": len(reports),
		"showing":      len(crimes),
		"crimes":       crimes,
	}, sourcePolice), nil
}
