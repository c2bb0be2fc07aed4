package types

import (
	"encoding/json"
	"time"
)

// EvidenceType classifies how a piece of evidence substantiates a claim.
type EvidenceType string

const (
	EvidenceVisualProof   EvidenceType = "visual-proof"
	EvidenceDocumentation EvidenceType = "documentation"
	EvidenceTestimony     EvidenceType = "testimony"
	EvidenceFinancials    EvidenceType = "financials"
)

// EvidenceTypes lists the allowed evidence type values.
func EvidenceTypes() []string {
	return []string{
		string(EvidenceVisualProof),
		string(EvidenceDocumentation),
		string(EvidenceTestimony),
		string(EvidenceFinancials),
	}
}

// KPI is a named metric definition that claims report values against.
type KPI struct {
	ID           string `json:"id"`
	InitiativeID string `json:"initiative_id"`
	Title        string `json:"title"`
	Unit         string `json:"unit,omitempty"`
}

// Location is a named point referenced optionally by claims and evidence.
type Location struct {
	ID           string  `json:"id"`
	InitiativeID string  `json:"initiative_id"`
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// Claim is a single recorded observation of a KPI's value for a date
// or date range (a KPI update).
type Claim struct {
	ID         string    `json:"id"`
	KPIID      string    `json:"kpi_id"`
	Value      float64   `json:"value"`
	Interval   Interval  `json:"interval"`
	LocationID string    `json:"location_id,omitempty"`
	Label      string    `json:"label,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EvidenceFile is one attached file, ordered within its evidence item.
// Name, content type and size are carried for storage accounting.
type EvidenceFile struct {
	URL          string `json:"url"`
	Name         string `json:"name"`
	ContentType  string `json:"content_type,omitempty"`
	SizeBytes    int64  `json:"size_bytes"`
	DisplayOrder int    `json:"display_order"`
}

// Evidence is a file/link/testimony item asserting support for one or
// more claims. Link sets are loaded alongside the row; the legacy
// single FileURL mirrors the first attached file.
type Evidence struct {
	ID           string         `json:"id"`
	InitiativeID string         `json:"initiative_id"`
	Type         EvidenceType   `json:"type"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Interval     Interval       `json:"interval"`
	FileURL      string         `json:"file_url,omitempty"`
	Files        []EvidenceFile `json:"files"`
	KPIIDs       []string       `json:"kpi_ids"`
	ClaimIDs     []string       `json:"claim_ids"`
	LocationIDs  []string       `json:"location_ids"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// MarshalJSON ensures nil slices in Evidence marshal as [] not null.
func (e Evidence) MarshalJSON() ([]byte, error) {
	if e.Files == nil {
		e.Files = []EvidenceFile{}
	}
	if e.KPIIDs == nil {
		e.KPIIDs = []string{}
	}
	if e.ClaimIDs == nil {
		e.ClaimIDs = []string{}
	}
	if e.LocationIDs == nil {
		e.LocationIDs = []string{}
	}
	type Alias Evidence
	return json.Marshal(Alias(e))
}

// LinkPatch is a tagged three-state option for one link type in an
// evidence payload: omitted (leave persisted links untouched), empty
// (clear all links of this type), or a replacement id set.
type LinkPatch struct {
	present bool
	ids     []string
}

// OmitLinks returns a patch that leaves persisted links untouched.
func OmitLinks() LinkPatch { return LinkPatch{} }

// ClearLinks returns a patch that removes all links of its type.
func ClearLinks() LinkPatch { return LinkPatch{present: true, ids: []string{}} }

// SetLinks returns a patch that replaces links with the given ids.
func SetLinks(ids []string) LinkPatch {
	if ids == nil {
		ids = []string{}
	}
	return LinkPatch{present: true, ids: ids}
}

// Present reports whether the field was included in the payload.
func (p LinkPatch) Present() bool { return p.present }

// IDs returns the replacement id set. Only meaningful when Present.
func (p LinkPatch) IDs() []string { return p.ids }

// UnmarshalJSON marks the patch present for any array value, including
// the empty array. JSON null is treated the same as an absent field.
func (p *LinkPatch) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = LinkPatch{}
		return nil
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*p = SetLinks(ids)
	return nil
}

// MarshalJSON encodes an absent patch as null and a present one as its array.
func (p LinkPatch) MarshalJSON() ([]byte, error) {
	if !p.present {
		return []byte("null"), nil
	}
	return json.Marshal(p.ids)
}

// NewEvidenceFile describes an uploaded file being attached to evidence.
// Upload order in the slice becomes the persisted display order.
type NewEvidenceFile struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
}

// EvidencePayload is the create/update contract for evidence. For
// updates, nil scalar pointers leave the column unchanged, and each
// LinkPatch independently controls whether its link type is rewritten.
type EvidencePayload struct {
	InitiativeID string            `json:"initiative_id,omitempty"`
	Title        *string           `json:"title,omitempty"`
	Description  *string           `json:"description,omitempty"`
	Type         *EvidenceType     `json:"type,omitempty"`
	Interval     *Interval         `json:"interval,omitempty"`
	FileURL      *string           `json:"file_url,omitempty"`
	KPIs         LinkPatch         `json:"kpi_ids,omitempty"`
	Claims       LinkPatch         `json:"claim_ids,omitempty"`
	Locations    LinkPatch         `json:"location_ids,omitempty"`
	Files        []NewEvidenceFile `json:"files,omitempty"`
}

// MatchQuery asks which claims of the selected KPIs overlap an
// interval, optionally restricted to a location.
type MatchQuery struct {
	InitiativeID string   `json:"initiative_id"`
	KPIIDs       []string `json:"kpi_ids"`
	Interval     Interval `json:"interval"`
	LocationID   string   `json:"location_id,omitempty"`
}

// MatchedClaim is a claim that survived matching, annotated with its
// coverage by the query interval and display metadata.
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

// MatchResult is the full outcome of one matching pass. Warnings carry
// per-KPI fetch failures that did not abort the match.
type MatchResult struct {
	PerKPI   []KPIMatch     `json:"per_kpi"`
	Claims   []MatchedClaim `json:"claims"`
	Warnings []string       `json:"warnings,omitempty"`
}

// MarshalJSON ensures nil slices in MatchResult marshal as [] not null.
func (m MatchResult) MarshalJSON() ([]byte, error) {
	if m.PerKPI == nil {
		m.PerKPI = []KPIMatch{}
	}
	if m.Claims == nil {
		m.Claims = []MatchedClaim{}
	}
	type Alias MatchResult
	return json.Marshal(Alias(m))
}

// UsageStats reports an initiative's stored-file accounting.
type UsageStats struct {
	InitiativeID string `json:"initiative_id"`
	FileCount    int64  `json:"file_count"`
	UsedBytes    int64  `json:"used_bytes"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	EvidenceCount int64  `json:"evidence_count"`
	ClaimCount    int64  `json:"claim_count"`
}
