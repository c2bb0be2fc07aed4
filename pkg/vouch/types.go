package vouch

// Wire types for the Vouch HTTP API. Dates travel as "2006-01-02"
// strings; an interval is a single date or an inclusive range.

// Interval is a single calendar day (On) or an inclusive range
// (Start..End). Exactly one of the two forms must be set.
type Interval struct {
	On    string `json:"on,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// SingleDay returns an interval covering one calendar day.
func SingleDay(date string) Interval {
	return Interval{On: date}
}

// DateRange returns an inclusive date-range interval.
func DateRange(start, end string) Interval {
	return Interval{Start: start, End: end}
}

// KPI is an indicator claims are recorded against.
type KPI struct {
	ID           string `json:"id"`
	InitiativeID string `json:"initiative_id"`
	Title        string `json:"title"`
	Unit         string `json:"unit,omitempty"`
}

// Location is a named point referenced by claims and evidence.
type Location struct {
	ID           string  `json:"id"`
	InitiativeID string  `json:"initiative_id"`
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// Claim is a recorded observation of a KPI's value for an interval.
type Claim struct {
	ID         string   `json:"id"`
	KPIID      string   `json:"kpi_id"`
	Value      float64  `json:"value"`
	Interval   Interval `json:"interval"`
	LocationID string   `json:"location_id,omitempty"`
	Label      string   `json:"label,omitempty"`
}

// MatchedClaim is a claim that survived matching, annotated with how
// much of the query interval it covers.
type MatchedClaim struct {
	Claim
	CoveragePercent int    `json:"coverage_percent"`
	LocationName    string `json:"location_name,omitempty"`
}

// KPIMatch groups the matched claims of one KPI with their value total.
type KPIMatch struct {
	KPI    KPI            `json:"kpi"`
	Total  float64        `json:"total"`
	Claims []MatchedClaim `json:"claims"`
}

// MatchQuery asks which claims of the selected KPIs overlap an
// interval, optionally restricted to a location.
type MatchQuery struct {
	InitiativeID string   `json:"initiative_id"`
	KPIIDs       []string `json:"kpi_ids"`
	Interval     Interval `json:"interval"`
	LocationID   string   `json:"location_id,omitempty"`
}

// MatchResult is the outcome of one matching pass.
type MatchResult struct {
	PerKPI   []KPIMatch     `json:"per_kpi"`
	Claims   []MatchedClaim `json:"claims"`
	Warnings []string       `json:"warnings,omitempty"`
}

// ClaimIDs returns the matched claim ids in result order.
func (r *MatchResult) ClaimIDs() []string {
	ids := make([]string, 0, len(r.Claims))
	for _, c := range r.Claims {
		ids = append(ids, c.ID)
	}
	return ids
}

// EvidenceFile is one attached file on an evidence item.
type EvidenceFile struct {
	URL          string `json:"url"`
	Name         string `json:"name"`
	ContentType  string `json:"content_type,omitempty"`
	SizeBytes    int64  `json:"size_bytes"`
	DisplayOrder int    `json:"display_order"`
}

// NewEvidenceFile describes a file being attached on create or update.
type NewEvidenceFile struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Evidence is a stored evidence item with its link sets.
type Evidence struct {
	ID           string         `json:"id"`
	InitiativeID string         `json:"initiative_id"`
	Type         string         `json:"type"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Interval     Interval       `json:"interval"`
	FileURL      string         `json:"file_url,omitempty"`
	Files        []EvidenceFile `json:"files"`
	KPIIDs       []string       `json:"kpi_ids"`
	ClaimIDs     []string       `json:"claim_ids"`
	LocationIDs  []string       `json:"location_ids"`
}

// EvidencePayload is a create or update request. Scalar fields are
// pointers so an update can leave them untouched; link fields are
// slice pointers where nil means "leave links alone" and an empty
// slice clears them.
type EvidencePayload struct {
	InitiativeID string            `json:"initiative_id,omitempty"`
	Title        *string           `json:"title,omitempty"`
	Description  *string           `json:"description,omitempty"`
	Type         *string           `json:"type,omitempty"`
	Interval     *Interval         `json:"interval,omitempty"`
	KPIIDs       *[]string         `json:"kpi_ids,omitempty"`
	ClaimIDs     *[]string         `json:"claim_ids,omitempty"`
	LocationIDs  *[]string         `json:"location_ids,omitempty"`
	Files        []NewEvidenceFile `json:"files,omitempty"`
}

// LinkFailure reports one link type that could not be applied.
type LinkFailure struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// EvidenceResult is the server's create/update response: the evidence
// item plus any link types that need retry (HTTP 207).
type EvidenceResult struct {
	Evidence *Evidence     `json:"evidence"`
	Failures []LinkFailure `json:"failures,omitempty"`
}

// Partial reports whether some link types failed to apply.
func (r *EvidenceResult) Partial() bool {
	return r != nil && len(r.Failures) > 0
}

// UsageStats reports an initiative's stored-file accounting.
type UsageStats struct {
	InitiativeID string `json:"initiative_id"`
	FileCount    int64  `json:"file_count"`
	UsedBytes    int64  `json:"used_bytes"`
}

// HealthStatus is the service health payload.
type HealthStatus struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	EvidenceCount int64  `json:"evidence_count"`
	ClaimCount    int64  `json:"claim_count"`
}
