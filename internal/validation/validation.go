package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/impactlane/vouch/internal/types"
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateEnum returns an error if the value is not in the allowed list.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateULID returns an error if the value is not a valid ULID format.
// ULIDs are 26 characters using Crockford Base32 (excludes I, L, O, U).
func ValidateULID(field, value string) *ValidationError {
	if len(value) != 26 {
		return &ValidationError{
			Field:   field,
			Message: "must be a valid ULID (26 characters)",
		}
	}

	const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	for _, r := range value {
		upper := strings.ToUpper(string(r))
		if !strings.Contains(crockfordBase32, upper) {
			return &ValidationError{
				Field:   field,
				Message: "must be a valid ULID (invalid character)",
			}
		}
	}
	return nil
}

// ValidateInterval maps interval invariant violations to a field error:
// the single-date XOR range rule and range ordering.
func ValidateInterval(field string, iv types.Interval) *ValidationError {
	err := iv.Validate()
	if err == nil {
		return nil
	}
	msg := "is invalid"
	switch {
	case errors.Is(err, types.ErrIntervalEmpty):
		msg = "requires a date or a date range"
	case errors.Is(err, types.ErrIntervalAmbiguous):
		msg = "must be a single date or a range, not both"
	case errors.Is(err, types.ErrIntervalPartial):
		msg = "range requires both start and end"
	case errors.Is(err, types.ErrIntervalInverted):
		msg = "range start must not be after end"
	}
	return &ValidationError{Field: field, Message: msg}
}

const maxTitleLength = 500

// ValidateEvidenceCreate checks a create payload. All required fields
// are enforced; errors are collected, not fail-fast.
func ValidateEvidenceCreate(p types.EvidencePayload) []ValidationError {
	var c Collector
	c.Add(ValidateRequired("initiative_id", p.InitiativeID))

	if p.Title == nil {
		c.Add(&ValidationError{Field: "title", Message: "is required"})
	} else {
		c.Add(ValidateRequired("title", *p.Title))
		c.Add(ValidateMaxLength("title", *p.Title, maxTitleLength))
	}

	if p.Type == nil {
		c.Add(&ValidationError{Field: "type", Message: "is required"})
	} else {
		c.Add(ValidateEnum("type", string(*p.Type), types.EvidenceTypes()))
	}

	if p.Interval == nil {
		c.Add(&ValidationError{Field: "interval", Message: "is required"})
	} else {
		c.Add(ValidateInterval("interval", *p.Interval))
	}

	return c.Errors()
}

// ValidateEvidenceUpdate checks an update payload: only fields present
// are validated, since absent fields leave columns untouched.
func ValidateEvidenceUpdate(p types.EvidencePayload) []ValidationError {
	var c Collector
	if p.Title != nil {
		c.Add(ValidateRequired("title", *p.Title))
		c.Add(ValidateMaxLength("title", *p.Title, maxTitleLength))
	}
	if p.Type != nil {
		c.Add(ValidateEnum("type", string(*p.Type), types.EvidenceTypes()))
	}
	if p.Interval != nil {
		c.Add(ValidateInterval("interval", *p.Interval))
	}
	return c.Errors()
}

// ValidateMatchQuery checks a matching query.
func ValidateMatchQuery(q types.MatchQuery) []ValidationError {
	var c Collector
	c.Add(ValidateRequired("initiative_id", q.InitiativeID))
	if len(q.KPIIDs) == 0 {
		c.Add(&ValidationError{Field: "kpi_ids", Message: "at least one KPI is required"})
	}
	c.Add(ValidateInterval("interval", q.Interval))
	return c.Errors()
}

// ValidateClaim checks a claim create/update payload.
func ValidateClaim(claim types.Claim) []ValidationError {
	var c Collector
	c.Add(ValidateRequired("kpi_id", claim.KPIID))
	c.Add(ValidateInterval("interval", claim.Interval))
	c.Add(ValidateMaxLength("label", claim.Label, maxTitleLength))
	return c.Errors()
}
