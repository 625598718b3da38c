// Package validation normalises and checks tool arguments before they reach
// an upstream API. Every failure is a validation ToolError with a message that
// is safe to return to the caller.
package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"govukmcp/internal/models"
)

// DefaultQueryLength caps free-text search terms.
const DefaultQueryLength = 200

var (
	postcodePattern      = regexp.MustCompile(`^[A-Z]{1,2}[0-9][A-Z0-9]?\s?[0-9][A-Z]{2}$`)
	companyNumberPattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)
	lineIDPattern        = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	monthPattern         = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
	digitsPattern        = regexp.MustCompile(`^[0-9]+$`)
	identifierPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// KnownTfLLines lists the line ids accepted by TfLLine, sorted.
var KnownTfLLines = []string{
	"bakerloo", "central", "circle", "district", "dlr",
	"elizabeth", "hammersmith-city", "jubilee", "london-overground",
	"metropolitan", "northern", "piccadilly", "victoria", "waterloo-city",
}

// Postcode returns the upper-cased, trimmed postcode.
func Postcode(postcode string) (string, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(postcode))
	if cleaned == "" {
		return "", models.NewValidationError("Postcode is required")
	}
	if !postcodePattern.MatchString(cleaned) {
		return "", models.NewValidationError("Invalid UK postcode format")
	}
	return cleaned, nil
}

// CompanyNumber returns the upper-cased company number. Purely numeric input
// shorter than eight digits is zero-padded.
func CompanyNumber(number string) (string, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(number))
	if cleaned == "" {
		return "", models.NewValidationError("Company number is required")
	}
	if len(cleaned) < 8 && digitsPattern.MatchString(cleaned) {
		cleaned = strings.Repeat("0", 8-len(cleaned)) + cleaned
	}
	if !companyNumberPattern.MatchString(cleaned) {
		return "", models.NewValidationError("Invalid company number format (must be 8 alphanumeric characters)")
	}
	return cleaned, nil
}

// TfLLine returns the lower-cased line id if it names a known line.
func TfLLine(lineID string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(lineID))
	if cleaned == "" {
		return "", models.NewValidationError("Line ID is required")
	}
	if !lineIDPattern.MatchString(cleaned) {
		return "", models.NewValidationError("Invalid TfL line ID format")
	}
	if !slices.Contains(KnownTfLLines, cleaned) {
		return "", models.NewValidationError("Unknown TfL line ID. Valid lines: " + strings.Join(KnownTfLLines, ", "))
	}
	return cleaned, nil
}

// Coordinates checks latitude and longitude ranges.
func Coordinates(lat, lng float64) error {
	if !(lat >= -90 && lat <= 90) {
		return models.NewValidationError("Latitude must be between -90 and 90")
	}
	if !(lng >= -180 && lng <= 180) {
		return models.NewValidationError("Longitude must be between -180 and 180")
	}
	return nil
}

// Query strips control characters and truncates to maxLength runes.
func Query(query string, maxLength int) (string, error) {
	if query == "" {
		return "", models.NewValidationError("Query is required")
	}
	if maxLength <= 0 {
		maxLength = DefaultQueryLength
	}

	var b strings.Builder
	for _, r := range query {
		if r >= 32 && r != utf8.RuneError {
			b.WriteRune(r)
		}
	}

	sanitized := b.String()
	if utf8.RuneCountInString(sanitized) > maxLength {
		sanitized = string([]rune(sanitized)[:maxLength])
	}
	sanitized = strings.TrimSpace(sanitized)

	if sanitized == "" {
		return "", models.NewValidationError("Query contains no valid characters")
	}
	return sanitized, nil
}

// Month checks a YYYY-MM value. Empty input is allowed and returned as is.
func Month(month string) (string, error) {
	cleaned := strings.TrimSpace(month)
	if cleaned == "" {
		return "", nil
	}
	if !monthPattern.MatchString(cleaned) {
		return "", models.NewValidationError(fmt.Sprintf("Invalid date format %q. Expected YYYY-MM", cleaned))
	}
	return cleaned, nil
}

// Date checks a YYYY-MM-DD calendar date. Empty input is allowed and returned
// as is.
func Date(date, name string) (string, error) {
	cleaned := strings.TrimSpace(date)
	if cleaned == "" {
		return "", nil
	}
	if _, err := time.Parse(time.DateOnly, cleaned); err != nil {
		return "", models.NewValidationError(fmt.Sprintf("Invalid %s %q. Expected YYYY-MM-DD", name, cleaned))
	}
	return cleaned, nil
}

// Identifier checks a generic id made of letters, digits, hyphens and
// underscores. name labels the value in error messages.
func Identifier(value, name string, maxLength int) (string, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return "", models.NewValidationError(name + " is required")
	}
	if len(cleaned) > maxLength {
		return "", models.NewValidationError(fmt.Sprintf("%s must not exceed %d characters", name, maxLength))
	}
	if !identifierPattern.MatchString(cleaned) {
		return "", models.NewValidationError(name + " must contain only alphanumeric characters, hyphens, and underscores")
	}
	return cleaned, nil
}
