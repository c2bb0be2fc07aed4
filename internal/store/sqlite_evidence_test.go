package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/impactlane/vouch/internal/types"
)

func seedEvidence(t *testing.T, db *SQLiteStore) *types.Evidence {
	t.Helper()
	ev, err := db.InsertEvidence(context.Background(), types.Evidence{
		InitiativeID: "init-1",
		Type:         types.EvidenceVisualProof,
		Title:        "Planting photos",
		Interval:     types.SingleDay(d(t, "2024-03-05")),
	})
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestStore_InsertEvidence(t *testing.T) {
	db := newTestStore(t)
	ev := seedEvidence(t, db)

	if ev.ID == "" {
		t.Error("Expected ID to be set")
	}
	if ev.CreatedAt.IsZero() || ev.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}

	got, err := db.Evidence(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Planting photos" || got.Type != types.EvidenceVisualProof {
		t.Errorf("Unexpected evidence: %+v", got)
	}
	// Link sets load as empty, never nil
	if got.KPIIDs == nil || got.ClaimIDs == nil || got.LocationIDs == nil || got.Files == nil {
		t.Error("Expected empty link sets, got nil")
	}
}

func TestStore_InsertEvidence_InvalidInterval(t *testing.T) {
	db := newTestStore(t)
	_, err := db.InsertEvidence(context.Background(), types.Evidence{
		InitiativeID: "init-1",
		Title:        "No dates",
	})
	if !errors.Is(err, types.ErrIntervalEmpty) {
		t.Errorf("Expected ErrIntervalEmpty, got %v", err)
	}
}

func TestStore_UpdateEvidenceRow_PartialFields(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	ev := seedEvidence(t, db)

	title := "Renamed"
	if err := db.UpdateEvidenceRow(ctx, ev.ID, types.EvidencePayload{Title: &title}); err != nil {
		t.Fatal(err)
	}

	got, err := db.Evidence(ctx, ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Renamed" {
		t.Errorf("Expected renamed title, got %q", got.Title)
	}
	// Untouched fields keep their values
	if got.Type != types.EvidenceVisualProof || got.Interval.IsRange() {
		t.Errorf("Expected other fields untouched: %+v", got)
	}
}

func TestStore_UpdateEvidenceRow_SwitchIntervalForm(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	ev := seedEvidence(t, db)

	iv := types.DateRange(d(t, "2024-03-01"), d(t, "2024-03-31"))
	if err := db.UpdateEvidenceRow(ctx, ev.ID, types.EvidencePayload{Interval: &iv}); err != nil {
		t.Fatal(err)
	}

	got, err := db.Evidence(ctx, ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Interval.IsRange() || got.Interval.Days() != 31 {
		t.Errorf("Expected 31-day range, got %+v", got.Interval)
	}
}

func TestStore_UpdateEvidenceRow_NotFound(t *testing.T) {
	db := newTestStore(t)
	title := "x"
	err := db.UpdateEvidenceRow(context.Background(), "missing", types.EvidencePayload{Title: &title})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_EvidenceLinks_InsertAndLoad(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	kpi := seedKPI(t, db)
	claim := seedClaim(t, db, kpi.ID, types.SingleDay(d(t, "2024-03-05")))
	loc, err := db.CreateLocation(ctx, types.Location{InitiativeID: "init-1", Name: "Site"})
	if err != nil {
		t.Fatal(err)
	}
	ev := seedEvidence(t, db)

	if err := db.InsertEvidenceKPILinks(ctx, ev.ID, []string{kpi.ID}); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertEvidenceClaimLinks(ctx, ev.ID, []string{claim.ID}); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertEvidenceLocationLinks(ctx, ev.ID, []string{loc.ID}); err != nil {
		t.Fatal(err)
	}

	got, err := db.Evidence(ctx, ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.KPIIDs, []string{kpi.ID}) ||
		!reflect.DeepEqual(got.ClaimIDs, []string{claim.ID}) ||
		!reflect.DeepEqual(got.LocationIDs, []string{loc.ID}) {
		t.Errorf("Unexpected link sets: %+v", got)
	}
}

func TestStore_EvidenceLinks_InsertDuplicateIgnored(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	kpi := seedKPI(t, db)
	ev := seedEvidence(t, db)

	if err := db.InsertEvidenceKPILinks(ctx, ev.ID, []string{kpi.ID, kpi.ID}); err != nil {
		t.Fatal(err)
	}

	got, err := db.Evidence(ctx, ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.KPIIDs) != 1 {
		t.Errorf("Expected 1 link, got %v", got.KPIIDs)
	}
}

func TestStore_EvidenceLinks_UnknownChildIsForeignKey(t *testing.T) {
	db := newTestStore(t)
	ev := seedEvidence(t, db)

	err := db.InsertEvidenceClaimLinks(context.Background(), ev.ID, []string{"missing"})
	if !errors.Is(err, ErrForeignKey) {
		t.Errorf("Expected ErrForeignKey, got %v", err)
	}
}

func TestStore_ReplaceEvidenceClaimLinks(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	kpi := seedKPI(t, db)
	c1 := seedClaim(t, db, kpi.ID, types.SingleDay(d(t, "2024-03-01")))
	c2 := seedClaim(t, db, kpi.ID, types.SingleDay(d(t, "2024-03-02")))
	ev := seedEvidence(t, db)

	if err := db.InsertEvidenceClaimLinks(ctx, ev.ID, []string{c1.ID}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceEvidenceClaimLinks(ctx, ev.ID, []string{c2.ID}); err != nil {
		t.Fatal(err)
	}

	got, err := db.Evidence(ctx, ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.ClaimIDs, []string{c2.ID}) {
		t.Errorf("Expected replacement, got %v", got.ClaimIDs)
	}

	// Empty replacement clears
	if err := db.ReplaceEvidenceClaimLinks(ctx, ev.ID, nil); err != nil {
		t.Fatal(err)
	}
	got, err = db.Evidence(ctx, ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.ClaimIDs) != 0 {
		t.Errorf("Expected cleared links, got %v", got.ClaimIDs)
	}
}

func TestStore_InsertEvidenceFiles_DisplayOrder(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	ev := seedEvidence(t, db)

	files := []types.EvidenceFile{
		{URL: "https://s3/z.jpg", Name: "z.jpg", SizeBytes: 10},
		{URL: "https://s3/a.jpg", Name: "a.jpg", SizeBytes: 20},
	}
	if err := db.InsertEvidenceFiles(ctx, ev.ID, files); err != nil {
		t.Fatal(err)
	}

	got, err := db.Evidence(ctx, ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(got.Files))
	}
	// Upload order wins over URL order
	if got.Files[0].URL != "https://s3/z.jpg" || got.Files[0].DisplayOrder != 0 {
		t.Errorf("Unexpected first file: %+v", got.Files[0])
	}
	if got.Files[1].DisplayOrder != 1 {
		t.Errorf("Unexpected second file: %+v", got.Files[1])
	}
}

func TestStore_ListEvidence(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	seedEvidence(t, db)
	seedEvidence(t, db)

	items, err := db.ListEvidence(ctx, "init-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(items))
	}

	items, err = db.ListEvidence(ctx, "other")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("Expected no items for other initiative, got %d", len(items))
	}
}

func TestStore_DeleteEvidence_ReturnsFiles(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	kpi := seedKPI(t, db)
	ev := seedEvidence(t, db)

	if err := db.InsertEvidenceKPILinks(ctx, ev.ID, []string{kpi.ID}); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertEvidenceFiles(ctx, ev.ID, []types.EvidenceFile{
		{URL: "https://s3/a.jpg", Name: "a.jpg", SizeBytes: 123},
	}); err != nil {
		t.Fatal(err)
	}

	files, err := db.DeleteEvidence(ctx, ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].SizeBytes != 123 {
		t.Errorf("Unexpected deleted files: %+v", files)
	}

	if _, err := db.Evidence(ctx, ev.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_DeleteEvidence_NotFound(t *testing.T) {
	db := newTestStore(t)
	if _, err := db.DeleteEvidence(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_StorageUsage_AdjustAndRead(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	if err := db.AdjustStorageUsage(ctx, "init-1", 1000); err != nil {
		t.Fatal(err)
	}
	if err := db.AdjustStorageUsage(ctx, "init-1", 500); err != nil {
		t.Fatal(err)
	}
	if err := db.AdjustStorageUsage(ctx, "init-1", -200); err != nil {
		t.Fatal(err)
	}

	stats, err := db.Usage(ctx, "init-1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.UsedBytes != 1300 {
		t.Errorf("Expected 1300 bytes, got %d", stats.UsedBytes)
	}
}

func TestStore_StorageUsage_FloorsAtZero(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	if err := db.AdjustStorageUsage(ctx, "init-1", 100); err != nil {
		t.Fatal(err)
	}
	if err := db.AdjustStorageUsage(ctx, "init-1", -500); err != nil {
		t.Fatal(err)
	}

	stats, err := db.Usage(ctx, "init-1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.UsedBytes != 0 {
		t.Errorf("Expected floor at 0, got %d", stats.UsedBytes)
	}
}

func TestStore_RecomputeStorageUsage_CorrectsDrift(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	ev := seedEvidence(t, db)

	if err := db.InsertEvidenceFiles(ctx, ev.ID, []types.EvidenceFile{
		{URL: "https://s3/a.jpg", Name: "a.jpg", SizeBytes: 700},
		{URL: "https://s3/b.jpg", Name: "b.jpg", SizeBytes: 300},
	}); err != nil {
		t.Fatal(err)
	}

	// Counter drifted: only 100 recorded
	if err := db.AdjustStorageUsage(ctx, "init-1", 100); err != nil {
		t.Fatal(err)
	}

	corrected, err := db.RecomputeStorageUsage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if corrected == 0 {
		t.Error("Expected a corrected counter")
	}

	stats, err := db.Usage(ctx, "init-1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.UsedBytes != 1000 {
		t.Errorf("Expected recomputed 1000, got %d", stats.UsedBytes)
	}
	if stats.FileCount != 2 {
		t.Errorf("Expected 2 files, got %d", stats.FileCount)
	}
}

func TestStore_RecomputeStorageUsage_ZeroesOrphanedCounters(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	// Counter left behind after the initiative's evidence was deleted.
	if err := db.AdjustStorageUsage(ctx, "gone", 999); err != nil {
		t.Fatal(err)
	}

	if _, err := db.RecomputeStorageUsage(ctx); err != nil {
		t.Fatal(err)
	}

	stats, err := db.Usage(ctx, "gone")
	if err != nil {
		t.Fatal(err)
	}
	if stats.UsedBytes != 0 {
		t.Errorf("Expected orphaned counter zeroed, got %d", stats.UsedBytes)
	}
}

func TestStore_RecomputeStorageUsage_NoDriftNoChanges(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	ev := seedEvidence(t, db)

	if err := db.InsertEvidenceFiles(ctx, ev.ID, []types.EvidenceFile{
		{URL: "https://s3/a.jpg", Name: "a.jpg", SizeBytes: 50},
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.AdjustStorageUsage(ctx, "init-1", 50); err != nil {
		t.Fatal(err)
	}

	if _, err := db.RecomputeStorageUsage(ctx); err != nil {
		t.Fatal(err)
	}

	corrected, err := db.RecomputeStorageUsage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if corrected != 0 {
		t.Errorf("Expected no corrections on a consistent database, got %d", corrected)
	}
}
