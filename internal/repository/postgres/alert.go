package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/errors"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/metrics"
)

type AlertRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewAlertRepository(db *sql.DB, dialect Dialect) alert.Repository {
	return &AlertRepository{db: db, dialect: dialect}
}

const alertColumns = `id, type, priority, status, title, message, subject_kind, subject_id, department,
	acknowledged_by, acknowledged_at, resolved_by, resolved_at, resolution,
	dismissed_by, dismissed_at, dismiss_reason, escalated_by, escalated_at, escalation_notes,
	assigned_to, assigned_by, assigned_at, created_at, updated_at`

const alertPlaceholders = `(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// untouched matches alerts no action was ever applied to
const untouched = `status = 'new' AND NOT EXISTS (SELECT 1 FROM alert_history h WHERE h.alert_id = alerts.id)`

func (r *AlertRepository) Get(ctx context.Context, id string) (*alert.Alert, error) {
	defer observe("get", "alerts", time.Now())

	query := r.dialect.Rebind(`SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`)
	a, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.AlertNotFound(id)
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get alert", err)
	}

	history, err := r.history(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	a.History = history
	return a, nil
}

func (r *AlertRepository) Upsert(ctx context.Context, a *alert.Alert) error {
	defer observe("upsert", "alerts", time.Now())

	if a == nil || a.ID == "" {
		return errors.BadRequest("alert id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("Failed to begin transaction", err)
	}
	defer tx.Rollback()

	query := r.dialect.Rebind(`
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ` + alertPlaceholders + `
		ON CONFLICT (id) DO UPDATE SET
			type = excluded.type,
			priority = excluded.priority,
			status = excluded.status,
			title = excluded.title,
			message = excluded.message,
			subject_kind = excluded.subject_kind,
			subject_id = excluded.subject_id,
			department = excluded.department,
			acknowledged_by = excluded.acknowledged_by,
			acknowledged_at = excluded.acknowledged_at,
			resolved_by = excluded.resolved_by,
			resolved_at = excluded.resolved_at,
			resolution = excluded.resolution,
			dismissed_by = excluded.dismissed_by,
			dismissed_at = excluded.dismissed_at,
			dismiss_reason = excluded.dismiss_reason,
			escalated_by = excluded.escalated_by,
			escalated_at = excluded.escalated_at,
			escalation_notes = excluded.escalation_notes,
			assigned_to = excluded.assigned_to,
			assigned_by = excluded.assigned_by,
			assigned_at = excluded.assigned_at,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`)

	if _, err = tx.ExecContext(ctx, query, alertArgs(a)...); err != nil {
		return errors.DatabaseError("Failed to upsert alert", err)
	}

	if err := r.appendHistory(ctx, tx, a.ID, a.History); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("Failed to commit alert", err)
	}
	return nil
}

func (r *AlertRepository) All(ctx context.Context) ([]*alert.Alert, error) {
	defer observe("list", "alerts", time.Now())

	rows, err := r.db.QueryContext(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY id`)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list alerts", err)
	}

	var alerts []*alert.Alert
	index := make(map[string]*alert.Alert)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			rows.Close()
			return nil, errors.DatabaseError("Failed to scan alert", err)
		}
		a.History = []alert.HistoryEntry{}
		alerts = append(alerts, a)
		index[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.DatabaseError("Failed to list alerts", err)
	}
	rows.Close()

	hrows, err := r.db.QueryContext(ctx, `
		SELECT alert_id, id, action, performed_by, performed_at, notes
		FROM alert_history ORDER BY alert_id, position`)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list alert history", err)
	}
	defer hrows.Close()

	for hrows.Next() {
		var alertID string
		h, err := scanHistory(hrows, &alertID)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan alert history", err)
		}
		if a, ok := index[alertID]; ok {
			a.History = append(a.History, h)
		}
	}
	if err := hrows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list alert history", err)
	}

	return alerts, nil
}

func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	defer observe("delete", "alerts", time.Now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("Failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM alert_history WHERE alert_id = ?`), id); err != nil {
		return errors.DatabaseError("Failed to delete alert history", err)
	}

	result, err := tx.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM alerts WHERE id = ?`), id)
	if err != nil {
		return errors.DatabaseError("Failed to delete alert", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.DatabaseError("Failed to get affected rows", err)
	}
	if rows == 0 {
		return errors.AlertNotFound(id)
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("Failed to commit delete", err)
	}
	return nil
}

func (r *AlertRepository) Create(ctx context.Context, a *alert.Alert) (bool, error) {
	defer observe("create", "alerts", time.Now())

	if a == nil || a.ID == "" {
		return false, errors.BadRequest("alert id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.DatabaseError("Failed to begin transaction", err)
	}
	defer tx.Rollback()

	query := r.dialect.Rebind(`INSERT INTO alerts (` + alertColumns + `) VALUES ` + alertPlaceholders +
		` ON CONFLICT (id) DO NOTHING`)
	result, err := tx.ExecContext(ctx, query, alertArgs(a)...)
	if err != nil {
		return false, errors.DatabaseError("Failed to create alert", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.DatabaseError("Failed to get affected rows", err)
	}
	if n == 0 {
		return false, nil
	}

	if err := r.appendHistory(ctx, tx, a.ID, a.History); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, errors.DatabaseError("Failed to commit alert", err)
	}
	return true, nil
}

func (r *AlertRepository) RefreshText(ctx context.Context, a *alert.Alert) (bool, error) {
	defer observe("refresh", "alerts", time.Now())

	query := r.dialect.Rebind(`
		UPDATE alerts SET title = ?, message = ?, priority = ?, department = ?, updated_at = ?
		WHERE id = ? AND ` + untouched)
	result, err := r.db.ExecContext(ctx, query,
		a.Title, a.Message, a.Priority, a.Department, formatTime(a.UpdatedAt), a.ID)
	if err != nil {
		return false, errors.DatabaseError("Failed to refresh alert", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.DatabaseError("Failed to get affected rows", err)
	}
	return n > 0, nil
}

// DeleteUntouched needs no history cleanup: an untouched alert has none
func (r *AlertRepository) DeleteUntouched(ctx context.Context, id string) (bool, error) {
	defer observe("prune", "alerts", time.Now())

	result, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM alerts WHERE id = ? AND `+untouched), id)
	if err != nil {
		return false, errors.DatabaseError("Failed to prune alert", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.DatabaseError("Failed to get affected rows", err)
	}
	return n > 0, nil
}

func alertArgs(a *alert.Alert) []interface{} {
	updatedAt := a.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = a.Timestamp
	}
	return []interface{}{
		a.ID, a.Type, a.Priority, a.Status, a.Title, a.Message, a.Subject.Kind, a.Subject.ID, a.Department,
		a.AcknowledgedBy, formatTimePtr(a.AcknowledgedAt), a.ResolvedBy, formatTimePtr(a.ResolvedAt), a.Resolution,
		a.DismissedBy, formatTimePtr(a.DismissedAt), a.DismissReason,
		a.EscalatedBy, formatTimePtr(a.EscalatedAt), a.EscalationNotes,
		a.AssignedTo, a.AssignedBy, formatTimePtr(a.AssignedAt),
		formatTime(a.Timestamp), formatTime(updatedAt),
	}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (r *AlertRepository) history(ctx context.Context, q querier, alertID string) ([]alert.HistoryEntry, error) {
	rows, err := q.QueryContext(ctx, r.dialect.Rebind(`
		SELECT alert_id, id, action, performed_by, performed_at, notes
		FROM alert_history WHERE alert_id = ? ORDER BY position`), alertID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to get alert history", err)
	}
	defer rows.Close()

	history := []alert.HistoryEntry{}
	for rows.Next() {
		var owner string
		h, err := scanHistory(rows, &owner)
		if err != nil {
			return nil, errors.DatabaseError("Failed to scan alert history", err)
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to get alert history", err)
	}
	return history, nil
}

// appendHistory inserts the entries not stored yet, after the stored ones
func (r *AlertRepository) appendHistory(ctx context.Context, tx *sql.Tx, alertID string, incoming []alert.HistoryEntry) error {
	if len(incoming) == 0 {
		return nil
	}

	stored, err := r.history(ctx, tx, alertID)
	if err != nil {
		return err
	}
	merged := alert.MergeHistory(stored, incoming)

	insert := r.dialect.Rebind(`
		INSERT INTO alert_history (id, alert_id, position, action, performed_by, performed_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for pos := len(stored); pos < len(merged); pos++ {
		h := merged[pos]
		if _, err := tx.ExecContext(ctx, insert,
			h.ID, alertID, pos, h.Action, h.PerformedBy, formatTime(h.PerformedAt), h.Notes,
		); err != nil {
			return errors.DatabaseError("Failed to append alert history", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(s scanner) (*alert.Alert, error) {
	var a alert.Alert
	var ackAt, resolvedAt, dismissedAt, escalatedAt, assignedAt sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(
		&a.ID, &a.Type, &a.Priority, &a.Status, &a.Title, &a.Message, &a.Subject.Kind, &a.Subject.ID, &a.Department,
		&a.AcknowledgedBy, &ackAt, &a.ResolvedBy, &resolvedAt, &a.Resolution,
		&a.DismissedBy, &dismissedAt, &a.DismissReason,
		&a.EscalatedBy, &escalatedAt, &a.EscalationNotes,
		&a.AssignedTo, &a.AssignedBy, &assignedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if a.Timestamp, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		src sql.NullString
		dst **time.Time
	}{
		{ackAt, &a.AcknowledgedAt},
		{resolvedAt, &a.ResolvedAt},
		{dismissedAt, &a.DismissedAt},
		{escalatedAt, &a.EscalatedAt},
		{assignedAt, &a.AssignedAt},
	} {
		if *f.dst, err = parseTimePtr(f.src); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

func scanHistory(s scanner, alertID *string) (alert.HistoryEntry, error) {
	var h alert.HistoryEntry
	var performedAt string
	if err := s.Scan(alertID, &h.ID, &h.Action, &h.PerformedBy, &performedAt, &h.Notes); err != nil {
		return h, err
	}
	t, err := parseTime(performedAt)
	if err != nil {
		return h, err
	}
	h.PerformedAt = t
	return h, nil
}

func observe(operation, table string, start time.Time) {
	metrics.RecordDBQuery(operation, table, time.Since(start))
}
