package ratelimit

const (
	// DefaultEndpoint names the fallback entry of a limit table.
	DefaultEndpoint = "default"

	// FallbackRequestsPerMinute applies when a table has no entry for an
	// endpoint and no DefaultEndpoint entry either.
	FallbackRequestsPerMinute = 60
)

// Endpoint names with a dedicated limit.
const (
	EndpointMOT            = "mot_api"
	EndpointCompaniesHouse = "companies_house"
	EndpointTfL            = "tfl"
)

// DefaultLimits returns the built-in requests-per-minute table. The returned
// map is a fresh copy.
func DefaultLimits() map[string]int {
	return map[string]int{
		EndpointMOT:            120,
		EndpointCompaniesHouse: 120,
		EndpointTfL:            500,
		DefaultEndpoint:        FallbackRequestsPerMinute,
	}
}

// CheckMOTLimit consumes one token from the MOT history bucket of the
// process-wide limiter.
func CheckMOTLimit() (bool, Info) {
	return Default().CheckLimit(EndpointMOT, 0, 1)
}

// CheckCompaniesHouseLimit consumes one token from the Companies House bucket
// of the process-wide limiter.
func CheckCompaniesHouseLimit() (bool, Info) {
	return Default().CheckLimit(EndpointCompaniesHouse, 0, 1)
}

// CheckTfLLimit consumes one token from the TfL bucket of the process-wide
// limiter.
func CheckTfLLimit() (bool, Info) {
	return Default().CheckLimit(EndpointTfL, 0, 1)
}

// CheckDefaultLimit consumes one token from the bucket of endpoint, created at
// the fallback limit if endpoint has not been seen before.
func CheckDefaultLimit(endpoint string) (bool, Info) {
	return Default().CheckLimit(endpoint, FallbackRequestsPerMinute, 1)
}
