package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/impactlane/vouch/internal/types"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the SQLite-backed impact database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each pooled connection to :memory: would get its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isForeignKeyErr detects sqlite foreign key violations without
// depending on driver-specific error types.
func isForeignKeyErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// intervalColumns splits an interval into the three nullable date
// columns (date_represented, date_range_start, date_range_end).
func intervalColumns(iv types.Interval) (rep, start, end sql.NullString) {
	if iv.On != nil {
		rep = sql.NullString{String: iv.On.String(), Valid: true}
		return
	}
	if iv.Start != nil && iv.End != nil {
		start = sql.NullString{String: iv.Start.String(), Valid: true}
		end = sql.NullString{String: iv.End.String(), Valid: true}
	}
	return
}

// scanInterval rebuilds an interval from the three nullable date columns.
func scanInterval(rep, start, end sql.NullString) (types.Interval, error) {
	if rep.Valid {
		d, err := types.ParseDate(rep.String)
		if err != nil {
			return types.Interval{}, err
		}
		return types.SingleDay(d), nil
	}
	if start.Valid && end.Valid {
		s, err := types.ParseDate(start.String)
		if err != nil {
			return types.Interval{}, err
		}
		e, err := types.ParseDate(end.String)
		if err != nil {
			return types.Interval{}, err
		}
		return types.DateRange(s, e), nil
	}
	return types.Interval{}, fmt.Errorf("row has no interval")
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// --- KPIs ---

// CreateKPI stores a new KPI definition.
func (s *SQLiteStore) CreateKPI(ctx context.Context, kpi types.KPI) (*types.KPI, error) {
	kpi.ID = ulid.Make().String()
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kpis (id, initiative_id, title, unit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, kpi.ID, kpi.InitiativeID, kpi.Title, kpi.Unit, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert kpi: %w", err)
	}
	return &kpi, nil
}

// KPI retrieves a KPI by ID.
func (s *SQLiteStore) KPI(ctx context.Context, id string) (types.KPI, error) {
	var kpi types.KPI
	err := s.db.QueryRowContext(ctx, `
		SELECT id, initiative_id, title, unit FROM kpis WHERE id = ?
	`, id).Scan(&kpi.ID, &kpi.InitiativeID, &kpi.Title, &kpi.Unit)
	if err == sql.ErrNoRows {
		return types.KPI{}, ErrNotFound
	}
	if err != nil {
		return types.KPI{}, fmt.Errorf("scan kpi: %w", err)
	}
	return kpi, nil
}

// ListKPIs returns an initiative's KPIs ordered by title.
func (s *SQLiteStore) ListKPIs(ctx context.Context, initiativeID string) ([]types.KPI, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, initiative_id, title, unit FROM kpis
		WHERE initiative_id = ? ORDER BY title, id
	`, initiativeID)
	if err != nil {
		return nil, fmt.Errorf("query kpis: %w", err)
	}
	defer rows.Close()

	var kpis []types.KPI
	for rows.Next() {
		var kpi types.KPI
		if err := rows.Scan(&kpi.ID, &kpi.InitiativeID, &kpi.Title, &kpi.Unit); err != nil {
			return nil, fmt.Errorf("scan kpi: %w", err)
		}
		kpis = append(kpis, kpi)
	}
	return kpis, rows.Err()
}

// --- Locations ---

// CreateLocation stores a new location.
func (s *SQLiteStore) CreateLocation(ctx context.Context, loc types.Location) (*types.Location, error) {
	loc.ID = ulid.Make().String()
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, initiative_id, name, latitude, longitude, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, loc.ID, loc.InitiativeID, loc.Name, loc.Latitude, loc.Longitude, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}
	return &loc, nil
}

// Locations returns an initiative's locations ordered by name.
func (s *SQLiteStore) Locations(ctx context.Context, initiativeID string) ([]types.Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, initiative_id, name, latitude, longitude FROM locations
		WHERE initiative_id = ? ORDER BY name, id
	`, initiativeID)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var locs []types.Location
	for rows.Next() {
		var loc types.Location
		if err := rows.Scan(&loc.ID, &loc.InitiativeID, &loc.Name, &loc.Latitude, &loc.Longitude); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

// DeleteLocation removes a location. Evidence links cascade; claims
// referencing it fall back to no location.
func (s *SQLiteStore) DeleteLocation(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Storage accounting ---

// AdjustStorageUsage adds deltaBytes (may be negative) to an
// initiative's stored-file counter, flooring at zero.
func (s *SQLiteStore) AdjustStorageUsage(ctx context.Context, initiativeID string, deltaBytes int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO storage_usage (initiative_id, used_bytes, updated_at)
		VALUES (?, MAX(0, ?), ?)
		ON CONFLICT(initiative_id) DO UPDATE SET
			used_bytes = MAX(0, storage_usage.used_bytes + ?),
			updated_at = excluded.updated_at
	`, initiativeID, deltaBytes, now, deltaBytes)
	if err != nil {
		return fmt.Errorf("adjust storage usage: %w", err)
	}
	return nil
}

// Usage returns an initiative's stored-file accounting.
func (s *SQLiteStore) Usage(ctx context.Context, initiativeID string) (types.UsageStats, error) {
	stats := types.UsageStats{InitiativeID: initiativeID}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM evidence_files f
		JOIN evidence e ON e.id = f.evidence_id
		WHERE e.initiative_id = ?
	`, initiativeID).Scan(&stats.FileCount)
	if err != nil {
		return stats, fmt.Errorf("count files: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(used_bytes, 0) FROM storage_usage WHERE initiative_id = ?
	`, initiativeID).Scan(&stats.UsedBytes)
	if err != nil && err != sql.ErrNoRows {
		return stats, fmt.Errorf("read usage: %w", err)
	}
	return stats, nil
}

// RecomputeStorageUsage rewrites every initiative's usage counter from
// the evidence_files table, returning how many counters changed. The
// linker's decrement on delete is best-effort, so counters drift; this
// is the corrective sweep.
func (s *SQLiteStore) RecomputeStorageUsage(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO storage_usage (initiative_id, used_bytes, updated_at)
		SELECT e.initiative_id, COALESCE(SUM(f.size_bytes), 0), ?
		FROM evidence e
		LEFT JOIN evidence_files f ON f.evidence_id = e.id
		GROUP BY e.initiative_id
		ON CONFLICT(initiative_id) DO UPDATE SET
			used_bytes = excluded.used_bytes,
			updated_at = excluded.updated_at
		WHERE used_bytes <> excluded.used_bytes
	`, now)
	if err != nil {
		return 0, fmt.Errorf("recompute usage: %w", err)
	}

	changed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	// Initiatives whose last evidence was deleted no longer group above;
	// zero their counters explicitly.
	result, err = tx.ExecContext(ctx, `
		UPDATE storage_usage SET used_bytes = 0, updated_at = ?
		WHERE used_bytes <> 0
		  AND initiative_id NOT IN (SELECT DISTINCT initiative_id FROM evidence)
	`, now)
	if err != nil {
		return 0, fmt.Errorf("zero orphaned usage: %w", err)
	}
	zeroed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return changed + zeroed, nil
}

// Counts returns the evidence and claim row counts for health reporting.
func (s *SQLiteStore) Counts(ctx context.Context) (int64, int64, error) {
	var evidence, claims int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM evidence").Scan(&evidence); err != nil {
		return 0, 0, fmt.Errorf("count evidence: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kpi_updates").Scan(&claims); err != nil {
		return 0, 0, fmt.Errorf("count claims: %w", err)
	}
	return evidence, claims, nil
}
