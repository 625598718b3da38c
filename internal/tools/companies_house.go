package tools

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"govukmcp/internal/models"
	"govukmcp/internal/ratelimit"
	"govukmcp/internal/upstream"
	"govukmcp/internal/validation"
)

const sourceCompaniesHouse = "Companies House API"

type companySearchResponse struct {
	TotalResults int `json:"total_results"`
	Items        []struct {
		CompanyNumber  string         `json:"company_number"`
		Title          string         `json:"title"`
		CompanyStatus  string         `json:"company_status"`
		CompanyType    string         `json:"company_type"`
		DateOfCreation string         `json:"date_of_creation"`
		Address        companyAddress `json:"address"`
	} `json:"items"`
}

type companyAddress struct {
	Premises     string `json:"premises"`
	AddressLine1 string `json:"address_line_1"`
	Locality     string `json:"locality"`
	PostalCode   string `json:"postal_code"`
}

func (a companyAddress) full() string {
	var parts []string
	for _, p := range []string{a.Premises, a.AddressLine1, a.Locality, a.PostalCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// CompanySummary is one company search hit.
type CompanySummary struct {
	CompanyNumber  string `json:"company_number"`
	Title          string `json:"title"`
	CompanyStatus  string `json:"company_status"`
	CompanyType    string `json:"company_type"`
	DateOfCreation string `json:"date_of_creation,omitempty"`
	Address        string `json:"address,omitempty"`
	FullAddress    string `json:"full_address,omitempty"`
}

// CompanyProfile is the registered record of a company.
type CompanyProfile struct {
	CompanyNumber           string          `json:"company_number"`
	CompanyName             string          `json:"company_name"`
	CompanyStatus           string          `json:"company_status"`
	CompanyType             string          `json:"company_type"`
	DateOfCreation          string          `json:"date_of_creation,omitempty"`
	Jurisdiction            string          `json:"jurisdiction,omitempty"`
	RegisteredOfficeAddress json.RawMessage `json:"registered_office_address,omitempty"`
	SICCodes                []string        `json:"sic_codes,omitempty"`
	Accounts                json.RawMessage `json:"accounts,omitempty"`
	ConfirmationStatement   json.RawMessage `json:"confirmation_statement,omitempty"`
	HasInsolvencyHistory    bool            `json:"has_insolvency_history"`
	HasCharges              bool            `json:"has_charges"`
}

type officersResponse struct {
	TotalResults int       `json:"total_results"`
	Items        []Officer `json:"items"`
}

// Officer is a current or former director or secretary.
type Officer struct {
	Name               string          `json:"name"`
	OfficerRole        string          `json:"officer_role"`
	AppointedOn        string          `json:"appointed_on,omitempty"`
	ResignedOn         string          `json:"resigned_on,omitempty"`
	Nationality        string          `json:"nationality,omitempty"`
	Occupation         string          `json:"occupation,omitempty"`
	CountryOfResidence string          `json:"country_of_residence,omitempty"`
	Address            json.RawMessage `json:"address,omitempty"`
}

func (s *Service) companiesHouseTools() []Tool {
	numberParam := Param{Name: "company_number", Type: ParamString, Required: true, Description: "Company number, e.g. 00000006 or SC123456"}
	return []Tool{
		{
			Name:        "search_companies",
			Description: "Search UK companies by name on Companies House.",
			Endpoint:    ratelimit.EndpointCompaniesHouse,
			Params: []Param{
				{Name: "query", Type: ParamString, Required: true, Description: "Company name to search for"},
				{Name: "items_per_page", Type: ParamNumber, Description: "Number of results, 1-100 (default 20)"},
			},
			Handler: s.searchCompanies,
		},
		{
			Name:        "get_company",
			Description: "Get the Companies House profile of a company by number.",
			Endpoint:    ratelimit.EndpointCompaniesHouse,
			Params:      []Param{numberParam},
			Handler:     s.getCompany,
		},
		{
			Name:        "get_company_officers",
			Description: "List the directors and secretaries of a company.",
			Endpoint:    ratelimit.EndpointCompaniesHouse,
			Params:      []Param{numberParam},
			Handler:     s.getCompanyOfficers,
		},
	}
}

// companiesHouseAuth authenticates with the API key as the basic auth user.
func (s *Service) companiesHouseAuth() (upstream.RequestOption, error) {
	if s.cfg.CompaniesHouseAPIKey == "" {
		return nil, models.NewConfigurationError("Companies House API key not configured")
	}
	return upstream.WithBasicAuth(s.cfg.CompaniesHouseAPIKey, ""), nil
}

func (s *Service) searchCompanies(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	auth, err := s.companiesHouseAuth()
	if err != nil {
		return nil, err
	}
	query, err := validation.Query(args.String("query"), validation.DefaultQueryLength)
	if err != nil {
		return nil, err
	}
	perPage := min(max(args.Int("items_per_page", 20), 1), 100)

	var resp companySearchResponse
	err = s.client.GetJSON(ctx, s.cfg.BaseURLs.CompaniesHouse+"/search/companies",
		url.Values{"q": {query}, "items_per_page": {strconv.Itoa(perPage)}}, &resp, auth)
	if err != nil {
		return nil, upstream.Sanitize(err)
	}

	companies := make([]CompanySummary, 0, len(resp.Items))
	for _, item := range resp.Items {
		companies = append(companies, CompanySummary{
			CompanyNumber:  item.CompanyNumber,
			Title:          item.Title,
			CompanyStatus:  item.CompanyStatus,
			CompanyType:    item.CompanyType,
			DateOfCreation: item.DateOfCreation,
			Address:        item.Address.Premises,
			FullAddress:    item.Address.full(),
		})
	}
	return s.result(map[string]any{
		"total_results": resp.TotalResults,
		"companies":     companies,
	}, sourceCompaniesHouse), nil
}

func (s *Service) getCompany(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	auth, err := s.companiesHouseAuth()
	if err != nil {
		return nil, err
	}
	number, err := validation.CompanyNumber(args.String("company_number"))
	if err != nil {
		return nil, err
	}

	var profile CompanyProfile
	err = s.client.GetJSON(ctx, s.cfg.BaseURLs.CompaniesHouse+"/company/"+number, nil, &profile, auth)
	switch {
	case upstream.IsNotFound(err):
		return nil, models.NewNotFoundError("Company not found")
	case err != nil:
		return nil, upstream.Sanitize(err)
	}
	return s.result(profile, sourceCompaniesHouse), nil
}

func (s *Service) getCompanyOfficers(ctx context.Context, args models.ToolArgs) (*models.ToolResult, error) {
	auth, err := s.companiesHouseAuth()
	if err != nil {
		return nil, err
	}
	number, err := validation.CompanyNumber(args.String("company_number"))
	if err != nil {
		return nil, err
	}

	var resp officersResponse
	err = s.client.GetJSON(ctx, s.cfg.BaseURLs.CompaniesHouse+"/company/"+number+"/officers", nil, &resp, auth)
	switch {
	case upstream.IsNotFound(err):
		return nil, models.NewNotFoundError("Company not found")
	case err != nil:
		return nil, upstream.Sanitize(err)
	}

	officers := resp.Items
	if officers == nil {
		officers = []Officer{}
	}
	return s.result(map[string]any{
		"company_number": number,
		"total_officers": resp.TotalResults,
		"officers":       officers,
	}, sourceCompaniesHouse), nil
}
