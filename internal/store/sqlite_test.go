package store

import (
	"context"
	"errors"
	"testing"

	"github.com/impactlane/vouch/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func d(t *testing.T, s string) types.Date {
	t.Helper()
	parsed, err := types.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}

func seedKPI(t *testing.T, db *SQLiteStore) *types.KPI {
	t.Helper()
	kpi, err := db.CreateKPI(context.Background(), types.KPI{
		InitiativeID: "init-1",
		Title:        "Trees planted",
		Unit:         "trees",
	})
	if err != nil {
		t.Fatal(err)
	}
	return kpi
}

func seedClaim(t *testing.T, db *SQLiteStore, kpiID string, iv types.Interval) *types.Claim {
	t.Helper()
	claim, err := db.CreateClaim(context.Background(), types.Claim{
		KPIID:    kpiID,
		Value:    100,
		Interval: iv,
	})
	if err != nil {
		t.Fatal(err)
	}
	return claim
}

func TestStore_NewSQLiteStore(t *testing.T) {
	newTestStore(t)
}

func TestStore_CreateKPI(t *testing.T) {
	db := newTestStore(t)
	kpi := seedKPI(t, db)

	if kpi.ID == "" {
		t.Error("Expected ID to be set")
	}

	got, err := db.KPI(context.Background(), kpi.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Trees planted" || got.Unit != "trees" {
		t.Errorf("Unexpected KPI: %+v", got)
	}
}

func TestStore_ListKPIs_ScopedToInitiative(t *testing.T) {
	db := newTestStore(t)
	seedKPI(t, db)
	if _, err := db.CreateKPI(context.Background(), types.KPI{
		InitiativeID: "other", Title: "Wells",
	}); err != nil {
		t.Fatal(err)
	}

	kpis, err := db.ListKPIs(context.Background(), "init-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(kpis) != 1 {
		t.Errorf("Expected 1 KPI, got %d", len(kpis))
	}
}

func TestStore_KPI_NotFound(t *testing.T) {
	db := newTestStore(t)
	if _, err := db.KPI(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_CreateClaim_SingleDay(t *testing.T) {
	db := newTestStore(t)
	kpi := seedKPI(t, db)
	claim := seedClaim(t, db, kpi.ID, types.SingleDay(d(t, "2024-03-05")))

	got, err := db.Claim(context.Background(), claim.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Interval.IsRange() {
		t.Error("Expected single-day interval")
	}
	day, _ := got.Interval.Bounds()
	if !day.Equal(d(t, "2024-03-05")) {
		t.Errorf("Unexpected date %s", day)
	}
}

func TestStore_CreateClaim_Range(t *testing.T) {
	db := newTestStore(t)
	kpi := seedKPI(t, db)
	claim := seedClaim(t, db, kpi.ID,
		types.DateRange(d(t, "2024-03-01"), d(t, "2024-03-10")))

	got, err := db.Claim(context.Background(), claim.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Interval.IsRange() || got.Interval.Days() != 10 {
		t.Errorf("Unexpected interval: %+v", got.Interval)
	}
}

func TestStore_CreateClaim_InvalidInterval(t *testing.T) {
	db := newTestStore(t)
	kpi := seedKPI(t, db)

	_, err := db.CreateClaim(context.Background(), types.Claim{KPIID: kpi.ID})
	if !errors.Is(err, types.ErrIntervalEmpty) {
		t.Errorf("Expected ErrIntervalEmpty, got %v", err)
	}
}

func TestStore_CreateClaim_UnknownKPI(t *testing.T) {
	db := newTestStore(t)

	_, err := db.CreateClaim(context.Background(), types.Claim{
		KPIID:    "missing",
		Interval: types.SingleDay(d(t, "2024-03-05")),
	})
	if !errors.Is(err, ErrForeignKey) {
		t.Errorf("Expected ErrForeignKey, got %v", err)
	}
}

func TestStore_UpdateClaim(t *testing.T) {
	db := newTestStore(t)
	kpi := seedKPI(t, db)
	claim := seedClaim(t, db, kpi.ID, types.SingleDay(d(t, "2024-03-05")))

	claim.Value = 250
	claim.Interval = types.DateRange(d(t, "2024-03-01"), d(t, "2024-03-31"))
	updated, err := db.UpdateClaim(context.Background(), *claim)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Value != 250 || !updated.Interval.IsRange() {
		t.Errorf("Unexpected claim: %+v", updated)
	}
}

func TestStore_UpdateClaim_NotFound(t *testing.T) {
	db := newTestStore(t)
	seedKPI(t, db)

	_, err := db.UpdateClaim(context.Background(), types.Claim{
		ID:       "missing",
		Interval: types.SingleDay(d(t, "2024-03-05")),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_DeleteClaim(t *testing.T) {
	db := newTestStore(t)
	kpi := seedKPI(t, db)
	claim := seedClaim(t, db, kpi.ID, types.SingleDay(d(t, "2024-03-05")))

	if err := db.DeleteClaim(context.Background(), claim.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Claim(context.Background(), claim.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_DeleteClaim_CascadesEvidenceLinks(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	kpi := seedKPI(t, db)
	claim := seedClaim(t, db, kpi.ID, types.SingleDay(d(t, "2024-03-05")))
	ev := seedEvidence(t, db)

	if err := db.InsertEvidenceClaimLinks(ctx, ev.ID, []string{claim.ID}); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteClaim(ctx, claim.ID); err != nil {
		t.Fatal(err)
	}

	reloaded, err := db.Evidence(ctx, ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(reloaded.ClaimIDs) != 0 {
		t.Errorf("Expected claim link removed by cascade, got %v", reloaded.ClaimIDs)
	}
}

func TestStore_ClaimsForKPI_OrderedByStart(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	kpi := seedKPI(t, db)

	late := seedClaim(t, db, kpi.ID, types.SingleDay(d(t, "2024-05-01")))
	early := seedClaim(t, db, kpi.ID, types.DateRange(d(t, "2024-03-01"), d(t, "2024-03-10")))

	claims, err := db.ClaimsForKPI(ctx, kpi.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 2 {
		t.Fatalf("Expected 2 claims, got %d", len(claims))
	}
	if claims[0].ID != early.ID || claims[1].ID != late.ID {
		t.Errorf("Expected start-date order, got %s then %s", claims[0].ID, claims[1].ID)
	}
}

func TestStore_Locations(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	loc, err := db.CreateLocation(ctx, types.Location{
		InitiativeID: "init-1",
		Name:         "North site",
		Latitude:     52.1,
		Longitude:    4.3,
	})
	if err != nil {
		t.Fatal(err)
	}

	locs, err := db.Locations(ctx, "init-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 1 || locs[0].Name != "North site" {
		t.Errorf("Unexpected locations: %+v", locs)
	}

	if err := db.DeleteLocation(ctx, loc.ID); err != nil {
		t.Fatal(err)
	}
	locs, err = db.Locations(ctx, "init-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 0 {
		t.Errorf("Expected no locations after delete, got %d", len(locs))
	}
}

func TestStore_DeleteLocation_ClaimKeepsRowWithNullLocation(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	kpi := seedKPI(t, db)

	loc, err := db.CreateLocation(ctx, types.Location{InitiativeID: "init-1", Name: "Site"})
	if err != nil {
		t.Fatal(err)
	}

	claim, err := db.CreateClaim(ctx, types.Claim{
		KPIID:      kpi.ID,
		Interval:   types.SingleDay(d(t, "2024-03-05")),
		LocationID: loc.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteLocation(ctx, loc.ID); err != nil {
		t.Fatal(err)
	}

	got, err := db.Claim(ctx, claim.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LocationID != "" {
		t.Errorf("Expected location reference cleared, got %q", got.LocationID)
	}
}

func TestStore_Counts(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	kpi := seedKPI(t, db)
	seedClaim(t, db, kpi.ID, types.SingleDay(d(t, "2024-03-05")))
	seedEvidence(t, db)

	evidence, claims, err := db.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if evidence != 1 || claims != 1 {
		t.Errorf("Expected 1/1, got %d/%d", evidence, claims)
	}
}
