package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/impactlane/vouch/internal/types"
	"github.com/oklog/ulid/v2"
)

// InsertEvidence stores a new evidence row. Link rows and file rows are
// inserted separately by the link manager; a failure there leaves the
// evidence row in place.
func (s *SQLiteStore) InsertEvidence(ctx context.Context, ev types.Evidence) (*types.Evidence, error) {
	if err := ev.Interval.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ev.ID = ulid.Make().String()
	ev.CreatedAt = now
	ev.UpdatedAt = now

	rep, start, end := intervalColumns(ev.Interval)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence (id, initiative_id, type, title, description,
			date_represented, date_range_start, date_range_end, file_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.InitiativeID, string(ev.Type), ev.Title, ev.Description,
		rep, start, end, ev.FileURL, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert evidence: %w", err)
	}
	return &ev, nil
}

// UpdateEvidenceRow replaces the scalar columns present in the payload.
// Link rewrites are handled separately by the link manager; this method
// never touches association tables.
func (s *SQLiteStore) UpdateEvidenceRow(ctx context.Context, id string, p types.EvidencePayload) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Format(time.RFC3339)}

	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, string(*p.Type))
	}
	if p.Interval != nil {
		if err := p.Interval.Validate(); err != nil {
			return err
		}
		rep, start, end := intervalColumns(*p.Interval)
		sets = append(sets, "date_represented = ?", "date_range_start = ?", "date_range_end = ?")
		args = append(args, rep, start, end)
	}
	if p.FileURL != nil {
		sets = append(sets, "file_url = ?")
		args = append(args, *p.FileURL)
	}

	args = append(args, id)
	result, err := s.db.ExecContext(ctx,
		"UPDATE evidence SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update evidence: %w", err)
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

// scanEvidenceRow scans the scalar columns of one evidence row.
func scanEvidenceRow(scanner interface{ Scan(...any) error }) (*types.Evidence, error) {
	var ev types.Evidence
	var evType string
	var rep, start, end sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&ev.ID,
		&ev.InitiativeID,
		&evType,
		&ev.Title,
		&ev.Description,
		&rep,
		&start,
		&end,
		&ev.FileURL,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	ev.Type = types.EvidenceType(evType)
	ev.Interval, err = scanInterval(rep, start, end)
	if err != nil {
		return nil, fmt.Errorf("evidence %s: %w", ev.ID, err)
	}
	ev.CreatedAt = parseTime(createdAt)
	ev.UpdatedAt = parseTime(updatedAt)
	return &ev, nil
}

const evidenceColumns = `id, initiative_id, type, title, description,
	date_represented, date_range_start, date_range_end, file_url, created_at, updated_at`

// Evidence retrieves an evidence item with its link sets and files.
func (s *SQLiteStore) Evidence(ctx context.Context, id string) (*types.Evidence, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+evidenceColumns+` FROM evidence WHERE id = ?
	`, id)

	ev, err := scanEvidenceRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan evidence: %w", err)
	}

	if err := s.loadEvidenceAssociations(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// ListEvidence returns an initiative's evidence, newest first, each
// with its link sets and files.
func (s *SQLiteStore) ListEvidence(ctx context.Context, initiativeID string) ([]types.Evidence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+evidenceColumns+` FROM evidence
		WHERE initiative_id = ?
		ORDER BY created_at DESC, id DESC
	`, initiativeID)
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	var items []types.Evidence
	for rows.Next() {
		ev, err := scanEvidenceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		items = append(items, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	for i := range items {
		if err := s.loadEvidenceAssociations(ctx, &items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// loadEvidenceAssociations fills an evidence item's link id sets and files.
func (s *SQLiteStore) loadEvidenceAssociations(ctx context.Context, ev *types.Evidence) error {
	var err error
	ev.KPIIDs, err = s.linkIDs(ctx, "evidence_kpis", "kpi_id", ev.ID)
	if err != nil {
		return err
	}
	ev.ClaimIDs, err = s.linkIDs(ctx, "evidence_kpi_updates", "kpi_update_id", ev.ID)
	if err != nil {
		return err
	}
	ev.LocationIDs, err = s.linkIDs(ctx, "evidence_locations", "location_id", ev.ID)
	if err != nil {
		return err
	}
	ev.Files, err = s.evidenceFiles(ctx, ev.ID)
	return err
}

// linkIDs reads one association table's child ids for an evidence item.
func (s *SQLiteStore) linkIDs(ctx context.Context, table, column, evidenceID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE evidence_id = ? ORDER BY %s", column, table, column),
		evidenceID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// evidenceFiles reads an evidence item's file rows in display order.
func (s *SQLiteStore) evidenceFiles(ctx context.Context, evidenceID string) ([]types.EvidenceFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, name, content_type, size_bytes, display_order
		FROM evidence_files WHERE evidence_id = ?
		ORDER BY display_order, url
	`, evidenceID)
	if err != nil {
		return nil, fmt.Errorf("query evidence files: %w", err)
	}
	defer rows.Close()

	files := []types.EvidenceFile{}
	for rows.Next() {
		var f types.EvidenceFile
		if err := rows.Scan(&f.URL, &f.Name, &f.ContentType, &f.SizeBytes, &f.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan evidence file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteEvidence removes an evidence row together with its link rows
// and file rows in one transaction, returning the deleted file rows so
// the caller can clean up stored objects and decrement usage. Link rows
// go before the parent row so a partial failure never leaves orphans.
func (s *SQLiteStore) DeleteEvidence(ctx context.Context, id string) ([]types.EvidenceFile, error) {
	files, err := s.evidenceFiles(ctx, id)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"evidence_kpis", "evidence_kpi_updates", "evidence_locations", "evidence_files"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE evidence_id = ?", table), id); err != nil {
			return nil, fmt.Errorf("delete %s: %w", table, err)
		}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM evidence WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("delete evidence: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return files, nil
}

// --- Link inserts and replaces ---

// insertLinks inserts (evidence_id, child_id) rows into one association table.
func (s *SQLiteStore) insertLinks(ctx context.Context, execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, table, column, evidenceID string, ids []string) error {
	for _, childID := range ids {
		_, err := execer.ExecContext(ctx,
			fmt.Sprintf("INSERT OR IGNORE INTO %s (evidence_id, %s) VALUES (?, ?)", table, column),
			evidenceID, childID)
		if err != nil {
			if isForeignKeyErr(err) {
				return ErrForeignKey
			}
			return fmt.Errorf("insert %s link: %w", table, err)
		}
	}
	return nil
}

// replaceLinks atomically rewrites one association table's rows for an
// evidence item: delete-all-then-insert-new in a single transaction.
func (s *SQLiteStore) replaceLinks(ctx context.Context, table, column, evidenceID string, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE evidence_id = ?", table), evidenceID); err != nil {
		return fmt.Errorf("clear %s links: %w", table, err)
	}
	if err := s.insertLinks(ctx, tx, table, column, evidenceID, ids); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// InsertEvidenceKPILinks links evidence to KPIs.
func (s *SQLiteStore) InsertEvidenceKPILinks(ctx context.Context, evidenceID string, kpiIDs []string) error {
	return s.insertLinks(ctx, s.db, "evidence_kpis", "kpi_id", evidenceID, kpiIDs)
}

// InsertEvidenceClaimLinks links evidence to specific claims.
func (s *SQLiteStore) InsertEvidenceClaimLinks(ctx context.Context, evidenceID string, claimIDs []string) error {
	return s.insertLinks(ctx, s.db, "evidence_kpi_updates", "kpi_update_id", evidenceID, claimIDs)
}

// InsertEvidenceLocationLinks links evidence to locations.
func (s *SQLiteStore) InsertEvidenceLocationLinks(ctx context.Context, evidenceID string, locationIDs []string) error {
	return s.insertLinks(ctx, s.db, "evidence_locations", "location_id", evidenceID, locationIDs)
}

// InsertEvidenceFiles inserts file rows preserving the given order as
// display_order.
func (s *SQLiteStore) InsertEvidenceFiles(ctx context.Context, evidenceID string, files []types.EvidenceFile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, f := range files {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO evidence_files (evidence_id, url, name, content_type, size_bytes, display_order)
			VALUES (?, ?, ?, ?, ?, ?)
		`, evidenceID, f.URL, f.Name, f.ContentType, f.SizeBytes, i)
		if err != nil {
			if isForeignKeyErr(err) {
				return ErrForeignKey
			}
			return fmt.Errorf("insert evidence file: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ReplaceEvidenceKPILinks rewrites the KPI link set.
func (s *SQLiteStore) ReplaceEvidenceKPILinks(ctx context.Context, evidenceID string, kpiIDs []string) error {
	return s.replaceLinks(ctx, "evidence_kpis", "kpi_id", evidenceID, kpiIDs)
}

// ReplaceEvidenceClaimLinks rewrites the claim link set.
func (s *SQLiteStore) ReplaceEvidenceClaimLinks(ctx context.Context, evidenceID string, claimIDs []string) error {
	return s.replaceLinks(ctx, "evidence_kpi_updates", "kpi_update_id", evidenceID, claimIDs)
}

// ReplaceEvidenceLocationLinks rewrites the location link set.
func (s *SQLiteStore) ReplaceEvidenceLocationLinks(ctx context.Context, evidenceID string, locationIDs []string) error {
	return s.replaceLinks(ctx, "evidence_locations", "location_id", evidenceID, locationIDs)
}
