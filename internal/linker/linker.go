// Package linker reconciles the association rows around an evidence
// item (KPI links, claim links, location links, file rows) across
// create, update and delete, and drives the dependent storage
// accounting. It is the sole writer of the association tables.
package linker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/impactlane/vouch/internal/types"
)

// EvidenceStore is the persistence surface the linker writes through.
// Satisfied by store.SQLiteStore.
type EvidenceStore interface {
	InsertEvidence(ctx context.Context, ev types.Evidence) (*types.Evidence, error)
	UpdateEvidenceRow(ctx context.Context, id string, p types.EvidencePayload) error
	Evidence(ctx context.Context, id string) (*types.Evidence, error)
	DeleteEvidence(ctx context.Context, id string) ([]types.EvidenceFile, error)

	InsertEvidenceKPILinks(ctx context.Context, evidenceID string, kpiIDs []string) error
	InsertEvidenceClaimLinks(ctx context.Context, evidenceID string, claimIDs []string) error
	InsertEvidenceLocationLinks(ctx context.Context, evidenceID string, locationIDs []string) error
	InsertEvidenceFiles(ctx context.Context, evidenceID string, files []types.EvidenceFile) error
	ReplaceEvidenceKPILinks(ctx context.Context, evidenceID string, kpiIDs []string) error
	ReplaceEvidenceClaimLinks(ctx context.Context, evidenceID string, claimIDs []string) error
	ReplaceEvidenceLocationLinks(ctx context.Context, evidenceID string, locationIDs []string) error

	AdjustStorageUsage(ctx context.Context, initiativeID string, deltaBytes int64) error
}

// FileRemover deletes stored objects backing evidence files.
type FileRemover interface {
	Remove(ctx context.Context, url string) error
}

// LinkFailure reports one link-type operation that failed while the
// evidence row itself survived.
type LinkFailure struct {
	Kind  string `json:"kind"` // "kpis", "claims", "locations", "files", "usage"
	Error string `json:"error"`
}

// Partial collects the link-type failures of one create or update.
// An empty Partial means every link type was applied.
type Partial struct {
	Failures []LinkFailure `json:"failures,omitempty"`
}

// Failed reports whether any link-type operation failed.
func (p *Partial) Failed() bool { return p != nil && len(p.Failures) > 0 }

// Manager is the link consistency manager.
type Manager struct {
	store EvidenceStore
	files FileRemover
}

// NewManager creates a Manager writing through store and cleaning up
// stored files through files.
func NewManager(store EvidenceStore, files FileRemover) *Manager {
	return &Manager{store: store, files: files}
}

// Create inserts the evidence row, then independently inserts each
// link type. The row insert is fatal; each link-type insert is
// best-effort from the others' perspective and failures come back as a
// Partial so the caller can report which part needs retry. The legacy
// file_url column mirrors the first uploaded file.
func (m *Manager) Create(ctx context.Context, p types.EvidencePayload) (*types.Evidence, *Partial, error) {
	if p.Interval == nil {
		return nil, nil, types.ErrIntervalEmpty
	}
	if err := p.Interval.Validate(); err != nil {
		return nil, nil, err
	}

	ev := types.Evidence{
		InitiativeID: p.InitiativeID,
		Interval:     *p.Interval,
	}
	if p.Title != nil {
		ev.Title = *p.Title
	}
	if p.Description != nil {
		ev.Description = *p.Description
	}
	if p.Type != nil {
		ev.Type = *p.Type
	}
	if p.FileURL != nil {
		ev.FileURL = *p.FileURL
	}
	if len(p.Files) > 0 {
		ev.FileURL = p.Files[0].URL
	}

	created, err := m.store.InsertEvidence(ctx, ev)
	if err != nil {
		return nil, nil, fmt.Errorf("insert evidence: %w", err)
	}

	partial := &Partial{}
	var mu sync.Mutex
	fail := func(kind string, err error) {
		slog.Error("evidence link insert failed",
			"evidence_id", created.ID, "kind", kind, "error", err)
		mu.Lock()
		partial.Failures = append(partial.Failures, LinkFailure{Kind: kind, Error: err.Error()})
		mu.Unlock()
	}

	// Link-type inserts are independent of each other and may run
	// concurrently; the whole set completes before Create returns.
	var wg sync.WaitGroup
	runLink := func(kind string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				fail(kind, err)
			}
		}()
	}

	if ids := p.KPIs.IDs(); p.KPIs.Present() && len(ids) > 0 {
		runLink("kpis", func() error {
			return m.store.InsertEvidenceKPILinks(ctx, created.ID, ids)
		})
	}
	if ids := p.Claims.IDs(); p.Claims.Present() && len(ids) > 0 {
		runLink("claims", func() error {
			return m.store.InsertEvidenceClaimLinks(ctx, created.ID, ids)
		})
	}
	if ids := p.Locations.IDs(); p.Locations.Present() && len(ids) > 0 {
		runLink("locations", func() error {
			return m.store.InsertEvidenceLocationLinks(ctx, created.ID, ids)
		})
	}
	if len(p.Files) > 0 {
		runLink("files", func() error {
			files := make([]types.EvidenceFile, len(p.Files))
			var total int64
			for i, f := range p.Files {
				files[i] = types.EvidenceFile{
					URL:          f.URL,
					Name:         f.Name,
					ContentType:  f.ContentType,
					SizeBytes:    f.SizeBytes,
					DisplayOrder: i,
				}
				total += f.SizeBytes
			}
			if err := m.store.InsertEvidenceFiles(ctx, created.ID, files); err != nil {
				return err
			}
			if err := m.store.AdjustStorageUsage(ctx, created.InitiativeID, total); err != nil {
				// Accounting drift is corrected by the usage sweep.
				slog.Warn("storage usage increment failed",
					"evidence_id", created.ID, "error", err)
			}
			return nil
		})
	}
	wg.Wait()

	return m.reload(ctx, created), partial, nil
}

// Update replaces the scalar columns present in the payload and, for
// each link type the payload includes, rewrites that link set with
// delete-all-then-insert-new. An omitted link field leaves its
// persisted links untouched; a present-but-empty one clears them. A
// changed primary file URL schedules the old stored file for deletion.
func (m *Manager) Update(ctx context.Context, id string, p types.EvidencePayload) (*types.Evidence, *Partial, error) {
	current, err := m.store.Evidence(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if err := m.store.UpdateEvidenceRow(ctx, id, p); err != nil {
		return nil, nil, err
	}

	partial := &Partial{}
	var mu sync.Mutex
	fail := func(kind string, err error) {
		slog.Error("evidence link replace failed",
			"evidence_id", id, "kind", kind, "error", err)
		mu.Lock()
		partial.Failures = append(partial.Failures, LinkFailure{Kind: kind, Error: err.Error()})
		mu.Unlock()
	}

	var wg sync.WaitGroup
	runLink := func(kind string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				fail(kind, err)
			}
		}()
	}

	if p.KPIs.Present() {
		runLink("kpis", func() error {
			return m.store.ReplaceEvidenceKPILinks(ctx, id, p.KPIs.IDs())
		})
	}
	if p.Claims.Present() {
		runLink("claims", func() error {
			return m.store.ReplaceEvidenceClaimLinks(ctx, id, p.Claims.IDs())
		})
	}
	if p.Locations.Present() {
		runLink("locations", func() error {
			return m.store.ReplaceEvidenceLocationLinks(ctx, id, p.Locations.IDs())
		})
	}
	wg.Wait()

	if p.FileURL != nil && current.FileURL != "" && *p.FileURL != current.FileURL {
		if err := m.files.Remove(ctx, current.FileURL); err != nil {
			slog.Warn("previous evidence file removal failed",
				"evidence_id", id, "url", current.FileURL, "error", err)
		}
	}

	return m.reload(ctx, current), partial, nil
}

// Delete removes the evidence row with its link and file rows; that
// removal failing is fatal. Stored-file deletion and the storage-usage
// decrement afterwards are best-effort bookkeeping.
func (m *Manager) Delete(ctx context.Context, id string) error {
	current, err := m.store.Evidence(ctx, id)
	if err != nil {
		return err
	}

	files, err := m.store.DeleteEvidence(ctx, id)
	if err != nil {
		return err
	}

	var freed int64
	for _, f := range files {
		freed += f.SizeBytes
		if err := m.files.Remove(ctx, f.URL); err != nil {
			slog.Warn("stored file removal failed",
				"evidence_id", id, "url", f.URL, "error", err)
		}
	}
	if current.FileURL != "" && len(files) == 0 {
		// Legacy single-file evidence has no file rows, only file_url.
		if err := m.files.Remove(ctx, current.FileURL); err != nil {
			slog.Warn("stored file removal failed",
				"evidence_id", id, "url", current.FileURL, "error", err)
		}
	}

	if freed > 0 {
		if err := m.store.AdjustStorageUsage(ctx, current.InitiativeID, -freed); err != nil {
			slog.Warn("storage usage decrement failed",
				"evidence_id", id, "error", err)
		}
	}
	return nil
}

// reload fetches the evidence with its final link sets; if the reload
// fails the already-known row is returned so the caller still sees the
// created/updated item.
func (m *Manager) reload(ctx context.Context, known *types.Evidence) *types.Evidence {
	ev, err := m.store.Evidence(ctx, known.ID)
	if err != nil {
		slog.Warn("evidence reload failed", "evidence_id", known.ID, "error", err)
		return known
	}
	return ev
}
