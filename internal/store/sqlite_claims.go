package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/impactlane/vouch/internal/types"
	"github.com/oklog/ulid/v2"
)

// scanClaim scans a kpi_updates row, rebuilding the interval from its
// three nullable date columns.
func scanClaim(scanner interface{ Scan(...any) error }) (types.Claim, error) {
	var c types.Claim
	var rep, start, end, locationID sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&c.ID,
		&c.KPIID,
		&c.Value,
		&rep,
		&start,
		&end,
		&locationID,
		&c.Label,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return types.Claim{}, err
	}

	c.Interval, err = scanInterval(rep, start, end)
	if err != nil {
		return types.Claim{}, fmt.Errorf("claim %s: %w", c.ID, err)
	}
	if locationID.Valid {
		c.LocationID = locationID.String
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

const claimColumns = `id, kpi_id, value, date_represented, date_range_start, date_range_end,
	location_id, label, created_at, updated_at`

// CreateClaim stores a new claim (KPI update). The interval must
// already satisfy the XOR invariant.
func (s *SQLiteStore) CreateClaim(ctx context.Context, claim types.Claim) (*types.Claim, error) {
	if err := claim.Interval.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	claim.ID = ulid.Make().String()
	claim.CreatedAt = now
	claim.UpdatedAt = now

	rep, start, end := intervalColumns(claim.Interval)
	locationID := sql.NullString{String: claim.LocationID, Valid: claim.LocationID != ""}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kpi_updates (id, kpi_id, value, date_represented, date_range_start,
			date_range_end, location_id, label, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, claim.ID, claim.KPIID, claim.Value, rep, start, end, locationID, claim.Label,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		if isForeignKeyErr(err) {
			return nil, ErrForeignKey
		}
		return nil, fmt.Errorf("insert claim: %w", err)
	}
	return &claim, nil
}

// UpdateClaim rewrites a claim's value, interval, location and label.
func (s *SQLiteStore) UpdateClaim(ctx context.Context, claim types.Claim) (*types.Claim, error) {
	if err := claim.Interval.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rep, start, end := intervalColumns(claim.Interval)
	locationID := sql.NullString{String: claim.LocationID, Valid: claim.LocationID != ""}

	result, err := s.db.ExecContext(ctx, `
		UPDATE kpi_updates
		SET value = ?, date_represented = ?, date_range_start = ?, date_range_end = ?,
			location_id = ?, label = ?, updated_at = ?
		WHERE id = ?
	`, claim.Value, rep, start, end, locationID, claim.Label,
		now.Format(time.RFC3339), claim.ID)
	if err != nil {
		if isForeignKeyErr(err) {
			return nil, ErrForeignKey
		}
		return nil, fmt.Errorf("update claim: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	updated, err := s.Claim(ctx, claim.ID)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteClaim removes a claim. Evidence links referencing it are
// cascade-cleaned by the schema's foreign keys.
func (s *SQLiteStore) DeleteClaim(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM kpi_updates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete claim: %w", err)
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

// Claim retrieves a claim by ID.
func (s *SQLiteStore) Claim(ctx context.Context, id string) (types.Claim, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+claimColumns+` FROM kpi_updates WHERE id = ?
	`, id)

	claim, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return types.Claim{}, ErrNotFound
	}
	if err != nil {
		return types.Claim{}, fmt.Errorf("scan claim: %w", err)
	}
	return claim, nil
}

// ClaimsForKPI returns a KPI's full claim set ordered by date.
func (s *SQLiteStore) ClaimsForKPI(ctx context.Context, kpiID string) ([]types.Claim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+claimColumns+` FROM kpi_updates
		WHERE kpi_id = ?
		ORDER BY COALESCE(date_represented, date_range_start), id
	`, kpiID)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	var claims []types.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}
