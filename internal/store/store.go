// Package store persists KPIs, claims, locations, evidence and the
// association rows connecting them, backed by SQLite.
package store

import (
	"context"

	"github.com/impactlane/vouch/internal/types"
)

// Store is the full persistence contract. Consumers (matcher, linker,
// API handlers) depend on narrower interfaces they define themselves;
// SQLiteStore satisfies all of them.
type Store interface {
	// KPIs
	CreateKPI(ctx context.Context, kpi types.KPI) (*types.KPI, error)
	KPI(ctx context.Context, id string) (types.KPI, error)
	ListKPIs(ctx context.Context, initiativeID string) ([]types.KPI, error)

	// Locations
	CreateLocation(ctx context.Context, loc types.Location) (*types.Location, error)
	Locations(ctx context.Context, initiativeID string) ([]types.Location, error)
	DeleteLocation(ctx context.Context, id string) error

	// Claims (KPI updates)
	CreateClaim(ctx context.Context, claim types.Claim) (*types.Claim, error)
	UpdateClaim(ctx context.Context, claim types.Claim) (*types.Claim, error)
	DeleteClaim(ctx context.Context, id string) error
	Claim(ctx context.Context, id string) (types.Claim, error)
	ClaimsForKPI(ctx context.Context, kpiID string) ([]types.Claim, error)

	// Evidence rows
	InsertEvidence(ctx context.Context, ev types.Evidence) (*types.Evidence, error)
	UpdateEvidenceRow(ctx context.Context, id string, p types.EvidencePayload) error
	Evidence(ctx context.Context, id string) (*types.Evidence, error)
	ListEvidence(ctx context.Context, initiativeID string) ([]types.Evidence, error)
	DeleteEvidence(ctx context.Context, id string) ([]types.EvidenceFile, error)

	// Evidence links and files
	InsertEvidenceKPILinks(ctx context.Context, evidenceID string, kpiIDs []string) error
	InsertEvidenceClaimLinks(ctx context.Context, evidenceID string, claimIDs []string) error
	InsertEvidenceLocationLinks(ctx context.Context, evidenceID string, locationIDs []string) error
	InsertEvidenceFiles(ctx context.Context, evidenceID string, files []types.EvidenceFile) error
	ReplaceEvidenceKPILinks(ctx context.Context, evidenceID string, kpiIDs []string) error
	ReplaceEvidenceClaimLinks(ctx context.Context, evidenceID string, claimIDs []string) error
	ReplaceEvidenceLocationLinks(ctx context.Context, evidenceID string, locationIDs []string) error

	// Storage accounting
	AdjustStorageUsage(ctx context.Context, initiativeID string, deltaBytes int64) error
	Usage(ctx context.Context, initiativeID string) (types.UsageStats, error)
	RecomputeStorageUsage(ctx context.Context) (int64, error)

	// Health
	Counts(ctx context.Context) (evidence, claims int64, err error)

	Close() error
}
