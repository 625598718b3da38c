package tools

import (
	"context"
	"net/url"

	"govukmcp/internal/models"
	"govukmcp/internal/upstream"
	"govukmcp/internal/validation"
)

const (
	sourceFoodHygiene = "Food Standards Agency API"

	maxEstablishments = 20
)

type establishmentsResponse struct {
	Establishments []struct {
		BusinessName       string `json:"BusinessName"`
		AddressLine1       string `json:"AddressLine1"`
		PostCode           string `json:"PostCode"`
		LocalAuthorityName string `json:"LocalAuthorityName"`
		RatingValue        string `json:"RatingValue"`
		RatingDate         string `json:"RatingDate"`
		BusinessType       string `json:"BusinessType"`
		Scores             struct {
			Hygiene                *int `json:"Hygiene"`
			Structural             *int `json:"Structural"`
			ConfidenceInManagement *int `json:"ConfidenceInManagement"`
		} `json:"scores"`
	} `json:"establishments"`
}

// Establishment is a food business and its latest hygiene inspection.
type Establishment struct {
	BusinessName           string `json:"business_name"`
	Address                string `json:"address,omitempty"`
	Postcode               string `json:"postcode,omitempty"`
	LocalAuthority         string `json:"local_authority,omitempty"`
	Rating                 string `json:"rating"`
	RatingDate             string `json:"rating_date,omitempty"`
	BusinessType           string `json:"business_type,omitempty"`
	HygieneScore           *int   `json:"hygiene_score"`
	StructuralScore        *int   `json:"structural_score"`
	ConfidenceInManagement *int   `json:"confidence_in_management"`
}

func (s *Service) foodHygieneTools() []Tool {
	return []Tool{
		{
			Name:        "search_food_establishments",
			Description: "Search food businesses and their hygiene ratings by name, postcode or local authority.",
			Endpoint:    EndpointFoodHygiene,
			Params: []Param{
				{Name: "name", Type: ParamString, Description: "Business name to search for"},
				{Name: "postcode", Type: ParamString, Description: "Postcode to search in"},
				{Name: "local_authority", Type: ParamString, Description: "Local authority id"},
			},
			Handler: s.searchFoodEstablishments,
		},
	}
}

func (s *Service) searchFoodEstablishments(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	name, postcode, authority := args.String("name"), args.String("postcode"), args.String("local_authority")
	if name == "" && postcode == "" && authority == "" {
		return nil, models.NewValidationError("Please provide at least one search parameter (name, postcode, or local_authority)")
	}

	params := url.Values{}
	if name != "" {
		q, err := validation.Query(name, validation.DefaultQueryLength)
		if err != nil {
			return nil, err
		}
		params.Set("name", q)
	}
	if postcode != "" {
		// the ratings API matches addresses with the space kept
		params.Set("address", postcode)
	}
	if authority != "" {
		id, err := validation.Identifier(authority, "Local authority", 20)
		if err != nil {
			return nil, err
		}
		params.Set("localAuthorityId", id)
	}

	var resp establishmentsResponse
	err := s.client.GetJSON(ctx, s.cfg.BaseURLs.FoodHygiene+"/Establishments", params, &resp,
		upstream.WithHeader("x-api-version", "2"))
	if err != nil {
		return nil, upstream.Sanitize(err)
	}

	if len(resp.Establishments) == 0 {
		searched := make(map[string]string, len(params))
		for k := range params {
			searched[k] = params.Get(k)
		}
		return s.result(map[string]any{
			"message":       "No establishments found",
			"search_params": searched,
		}, sourceFoodHygiene), nil
	}

	shown := resp.Establishments[:min(len(resp.Establishments), maxEstablishments)]
	establishments := make([]Establishment, 0, len(shown))
	for _, e := range shown {
		establishments = append(establishments, Establishment{
			BusinessName:           e.BusinessName,
			Address:                e.AddressLine1,
			Postcode:               e.PostCode,
			LocalAuthority:         e.LocalAuthorityName,
			Rating:                 e.RatingValue,
			RatingDate:             e.RatingDate,
			BusinessType:           e.BusinessType,
			HygieneScore:           e.Scores.Hygiene,
			StructuralScore:        e.Scores.Structural,
			ConfidenceInManagement: e.Scores.ConfidenceInManagement,
		})
	}
	return s.result(map[string]any{
		"total_results":  len(resp.Establishments),
		"showing":        len(establishments),
		"establishments": establishments,
	}, sourceFoodHygiene), nil
}
