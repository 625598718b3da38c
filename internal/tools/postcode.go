package tools

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"govukmcp/internal/models"
	"govukmcp/internal/upstream"
	"govukmcp/internal/validation"
)

const sourcePostcodes = "Postcodes.io API"

type postcodeResponse struct {
	Status int             `json:"status"`
	Result *postcodeRecord `json:"result"`
}

type nearestResponse struct {
	Status int              `json:"status"`
	Result []postcodeRecord `json:"result"`
}

type postcodeRecord struct {
	Postcode                  string            `json:"postcode"`
	Latitude                  *float64          `json:"latitude"`
	Longitude                 *float64          `json:"longitude"`
	AdminDistrict             string            `json:"admin_district"`
	ParliamentaryConstituency string            `json:"parliamentary_constituency"`
	Region                    string            `json:"region"`
	Country                   string            `json:"country"`
	EuropeanElectoralRegion   string            `json:"european_electoral_region"`
	PrimaryCareTrust          string            `json:"primary_care_trust"`
	AdminWard                 string            `json:"admin_ward"`
	Parish                    string            `json:"parish"`
	Codes                     map[string]string `json:"codes"`
	Distance                  *float64          `json:"distance"`
}

// PostcodeDetails is the location data returned for a postcode.
type PostcodeDetails struct {
	Postcode                  string            `json:"postcode"`
	Latitude                  *float64          `json:"latitude"`
	Longitude                 *float64          `json:"longitude"`
	AdminDistrict             string            `json:"admin_district,omitempty"`
	ParliamentaryConstituency string            `json:"parliamentary_constituency,omitempty"`
	Region                    string            `json:"region,omitempty"`
	Country                   string            `json:"country,omitempty"`
	EuropeanElectoralRegion   string            `json:"european_electoral_region,omitempty"`
	PrimaryCareTrust          string            `json:"primary_care_trust,omitempty"`
	Ward                      string            `json:"ward,omitempty"`
	Parish                    string            `json:"parish,omitempty"`
	Codes                     map[string]string `json:"codes,omitempty"`
	Distance                  *float64          `json:"distance,omitempty"` // metres, nearest lookups only
}

func (r postcodeRecord) details() PostcodeDetails {
	return PostcodeDetails{
		Postcode:                  r.Postcode,
		Latitude:                  r.Latitude,
		Longitude:                 r.Longitude,
		AdminDistrict:             r.AdminDistrict,
		ParliamentaryConstituency: r.ParliamentaryConstituency,
		Region:                    r.Region,
		Country:                   r.Country,
		EuropeanElectoralRegion:   r.EuropeanElectoralRegion,
		PrimaryCareTrust:          r.PrimaryCareTrust,
		Ward:                      r.AdminWard,
		Parish:                    r.Parish,
		Codes:                     r.Codes,
		Distance:                  r.Distance,
	}
}

func (s *Service) postcodeTools() []Tool {
	postcodeParam := Param{Name: "postcode", Type: ParamString, Required: true, Description: "UK postcode, e.g. SW1A 1AA"}
	return []Tool{
		{
			Name:        "lookup_postcode",
			Description: "Look up location, administrative area and constituency details for a UK postcode.",
			Endpoint:    EndpointPostcodes,
			Params:      []Param{postcodeParam},
			Handler:     s.lookupPostcode,
		},
		{
			Name:        "nearest_postcodes",
			Description: "Find the postcodes nearest to a UK postcode.",
			Endpoint:    EndpointPostcodes,
			Params: []Param{
				postcodeParam,
				{Name: "limit", Type: ParamNumber, Description: "Number of results, 1-100 (default 10)"},
			},
			Handler: s.nearestPostcodes,
		},
	}
}

func (s *Service) lookupPostcode(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	postcode, err := validation.Postcode(args.String("postcode"))
	if err != nil {
		return nil, err
	}

	record, err := s.fetchPostcode(ctx, postcode)
	if err != nil {
		return nil, err
	}
	return s.result(record.details(), sourcePostcodes), nil
}

// fetchPostcode resolves a validated postcode. It is shared with the crime
// lookup, which needs coordinates.
func (s *Service) fetchPostcode(ctx context.Context, postcode string) (*postcodeRecord, error) {
	var resp postcodeResponse
	err := s.client.GetJSON(ctx, s.cfg.BaseURLs.Postcodes+"/postcodes/"+url.PathEscape(postcode), nil, &resp)
	switch {
	case upstream.IsNotFound(err):
		return nil, models.NewNotFoundError("Postcode not found")
	case err != nil:
		return nil, upstream.Sanitize(err)
	case resp.Status != http.StatusOK || resp.Result == nil:
		return nil, models.NewValidationError("Invalid postcode")
	}
	return resp.Result, nil
}

func (s *Service) nearestPostcodes(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	postcode, err := validation.Postcode(args.String("postcode"))
	if err != nil {
		return nil, err
	}
	limit := min(max(args.Int("limit", 10), 1), 100)

	var resp nearestResponse
	err = s.client.GetJSON(ctx, s.cfg.BaseURLs.Postcodes+"/postcodes/"+url.PathEscape(postcode)+"/nearest",
		url.Values{"limit": {strconv.Itoa(limit)}}, &resp)
	switch {
	case upstream.IsNotFound(err):
		return nil, models.NewNotFoundError("Postcode not found")
	case err != nil:
		return nil, upstream.Sanitize(err)
	}

	nearest := make([]PostcodeDetails, 0, len(resp.Result))
	for _, record := range resp.Result {
		nearest = append(nearest, record.details())
	}
	return s.result(map[string]any{
		"postcode": postcode,
		"nearest":  nearest,
	}, sourcePostcodes), nil
}
