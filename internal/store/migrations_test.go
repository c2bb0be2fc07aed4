package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrations_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	tables := []string{
		"kpis", "locations", "kpi_updates", "evidence",
		"evidence_kpis", "evidence_kpi_updates", "evidence_locations",
		"evidence_files", "storage_usage",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s to exist: %v", table, err)
		}
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := RunMigrations(db); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
}

func TestRunMigrations_PreservesData(t *testing.T) {
	db := openTestDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO kpis (id, initiative_id, title, unit, created_at, updated_at)
		VALUES ('k1', 'init-1', 'Trees', 'trees', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')
	`)
	if err != nil {
		t.Fatal(err)
	}

	if err := RunMigrations(db); err != nil {
		t.Fatalf("re-run failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM kpis").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected data preserved, got %d rows", count)
	}
}
