package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pratik-mahalle/assetwatch/internal/domain/asset"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/errors"
)

// SnapshotRepository reads asset-tracking tables for rule evaluation
type SnapshotRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSnapshotRepository(db *sql.DB, dialect Dialect) *SnapshotRepository {
	return &SnapshotRepository{db: db, dialect: dialect, now: time.Now}
}

func (r *SnapshotRepository) ListAssets(ctx context.Context) ([]asset.Asset, error) {
	defer observe("list", "assets", time.Now())

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, asset_tag, department, category, current_condition, available_status,
			custodian_staff_id, next_maintenance_due, warranty_expiry
		FROM assets ORDER BY id`)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list assets", err)
	}
	defer rows.Close()

	var out []asset.Asset
	for rows.Next() {
		var a asset.Asset
		var due, warranty sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &a.AssetTag, &a.Department, &a.Category, &a.CurrentCondition,
			&a.AvailableStatus, &a.CustodianStaffID, &due, &warranty); err != nil {
			return nil, errors.DatabaseError("Failed to scan asset", err)
		}
		if a.NextMaintenanceDue, err = parseTimePtr(due); err != nil {
			return nil, errors.DatabaseError("Invalid maintenance date for asset "+a.ID, err)
		}
		if a.WarrantyExpiry, err = parseTimePtr(warranty); err != nil {
			return nil, errors.DatabaseError("Invalid warranty date for asset "+a.ID, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list assets", err)
	}
	return out, nil
}

func (r *SnapshotRepository) ListPendingRequests(ctx context.Context) ([]asset.Request, error) {
	defer observe("list", "asset_requests", time.Now())

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(`
		SELECT id, asset_id, requester_id, status, requested_at
		FROM asset_requests WHERE status = ? ORDER BY requested_at`), asset.RequestPending)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list requests", err)
	}
	defer rows.Close()

	var out []asset.Request
	for rows.Next() {
		var req asset.Request
		var requestedAt string
		if err := rows.Scan(&req.ID, &req.AssetID, &req.RequesterID, &req.Status, &requestedAt); err != nil {
			return nil, errors.DatabaseError("Failed to scan request", err)
		}
		if req.RequestedAt, err = parseTime(requestedAt); err != nil {
			return nil, errors.DatabaseError("Invalid request date for request "+req.ID, err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list requests", err)
	}
	return out, nil
}

func (r *SnapshotRepository) ListOpenIssues(ctx context.Context) ([]asset.Issue, error) {
	defer observe("list", "asset_issues", time.Now())

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, asset_id, issue_type, severity, status, reported_at
		FROM asset_issues WHERE status NOT IN ('RESOLVED', 'CLOSED') ORDER BY reported_at`)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list issues", err)
	}
	defer rows.Close()

	var out []asset.Issue
	for rows.Next() {
		var is asset.Issue
		var reportedAt string
		if err := rows.Scan(&is.ID, &is.AssetID, &is.IssueType, &is.Severity, &is.Status, &reportedAt); err != nil {
			return nil, errors.DatabaseError("Failed to scan issue", err)
		}
		if is.ReportedAt, err = parseTime(reportedAt); err != nil {
			return nil, errors.DatabaseError("Invalid report date for issue "+is.ID, err)
		}
		out = append(out, is)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list issues", err)
	}
	return out, nil
}

func (r *SnapshotRepository) ListOverdueReturns(ctx context.Context) ([]asset.Return, error) {
	defer observe("list", "asset_returns", time.Now())

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(`
		SELECT id, asset_id, asset_name, department, staff_id, expected_return_date
		FROM asset_returns
		WHERE returned_at IS NULL AND expected_return_date < ?
		ORDER BY expected_return_date`), formatTime(r.now()))
	if err != nil {
		return nil, errors.DatabaseError("Failed to list returns", err)
	}
	defer rows.Close()

	var out []asset.Return
	for rows.Next() {
		var ret asset.Return
		var expected string
		if err := rows.Scan(&ret.ID, &ret.AssetID, &ret.AssetName, &ret.Department, &ret.StaffID, &expected); err != nil {
			return nil, errors.DatabaseError("Failed to scan return", err)
		}
		if ret.ExpectedReturnDate, err = parseTime(expected); err != nil {
			return nil, errors.DatabaseError("Invalid expected return date for return "+ret.ID, err)
		}
		out = append(out, ret)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list returns", err)
	}
	return out, nil
}
