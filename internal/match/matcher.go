package match

import (
	"context"
	"fmt"
	"sort"

	"github.com/impactlane/vouch/internal/types"
)

// Source provides the candidate data a matching pass reads. Implemented
// by the sqlite store; test doubles implement it directly.
type Source interface {
	// ClaimsForKPI returns the full claim set of one KPI.
	ClaimsForKPI(ctx context.Context, kpiID string) ([]types.Claim, error)

	// KPI returns a KPI's display metadata.
	KPI(ctx context.Context, id string) (types.KPI, error)

	// Locations returns an initiative's location list.
	Locations(ctx context.Context, initiativeID string) ([]types.Location, error)
}

// Matcher filters candidate claims to those overlapping a query
// interval, optionally at a query location, and annotates survivors
// with coverage and display metadata. Every pass is derived from
// scratch; the Matcher holds no state between queries.
type Matcher struct {
	source Source
}

// NewMatcher creates a Matcher reading from the given Source.
func NewMatcher(source Source) *Matcher {
	return &Matcher{source: source}
}

// Match runs one matching pass. A fetch failure for a single KPI
// contributes no claims and is reported as a warning rather than
// failing the pass; only an invalid query interval is a hard error.
func (m *Matcher) Match(ctx context.Context, q types.MatchQuery) (*types.MatchResult, error) {
	if err := q.Interval.Validate(); err != nil {
		return nil, fmt.Errorf("match query interval: %w", err)
	}

	result := &types.MatchResult{
		PerKPI: []types.KPIMatch{},
		Claims: []types.MatchedClaim{},
	}

	locationName := map[string]string{}
	locations, err := m.source.Locations(ctx, q.InitiativeID)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("locations unavailable: %s", err))
	}
	for _, loc := range locations {
		locationName[loc.ID] = loc.Name
	}

	for _, kpiID := range q.KPIIDs {
		claims, err := m.source.ClaimsForKPI(ctx, kpiID)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("claims for KPI %s unavailable: %s", kpiID, err))
			continue
		}

		matched := filterClaims(claims, q)
		if len(matched) == 0 {
			continue
		}

		kpi, err := m.source.KPI(ctx, kpiID)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("KPI %s metadata unavailable: %s", kpiID, err))
			kpi = types.KPI{ID: kpiID}
		}

		group := types.KPIMatch{KPI: kpi, Claims: make([]types.MatchedClaim, 0, len(matched))}
		for _, c := range matched {
			group.Total += c.Value
			group.Claims = append(group.Claims, types.MatchedClaim{
				Claim:           c,
				CoveragePercent: CoveragePercent(c.Interval, q.Interval),
				LocationName:    locationName[c.LocationID],
			})
		}
		result.PerKPI = append(result.PerKPI, group)
		result.Claims = append(result.Claims, group.Claims...)
	}

	return result, nil
}

// filterClaims applies the location filter then the overlap filter,
// returning survivors in deterministic order.
func filterClaims(claims []types.Claim, q types.MatchQuery) []types.Claim {
	var matched []types.Claim
	for _, c := range claims {
		if q.LocationID != "" && c.LocationID != q.LocationID {
			continue
		}
		if c.Interval.Validate() != nil {
			continue
		}
		if !c.Interval.Overlaps(q.Interval) {
			continue
		}
		matched = append(matched, c)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, _ := matched[i].Interval.Bounds()
		b, _ := matched[j].Interval.Bounds()
		if !a.Equal(b) {
			return a.Before(b)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}
