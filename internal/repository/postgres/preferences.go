package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/errors"
)

type PreferenceRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewPreferenceRepository(db *sql.DB, dialect Dialect) alert.PreferenceRepository {
	return &PreferenceRepository{db: db, dialect: dialect}
}

func (r *PreferenceRepository) Get(ctx context.Context, recipientID string) (*alert.Preferences, error) {
	defer observe("get", "alert_preferences", time.Now())

	var raw string
	err := r.db.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT preferences FROM alert_preferences WHERE recipient_id = ?`), recipientID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.DatabaseError("Failed to get preferences", err)
	}

	return decodePreferences(recipientID, raw)
}

func (r *PreferenceRepository) Save(ctx context.Context, p *alert.Preferences) error {
	defer observe("upsert", "alert_preferences", time.Now())

	if p == nil || p.RecipientID == "" {
		return errors.BadRequest("recipient id is required")
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return errors.Internal("Failed to encode preferences", err)
	}

	_, err = r.db.ExecContext(ctx, r.dialect.Rebind(`
		INSERT INTO alert_preferences (recipient_id, preferences, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (recipient_id) DO UPDATE SET
			preferences = excluded.preferences,
			updated_at = excluded.updated_at
	`), p.RecipientID, string(raw), formatTime(p.UpdatedAt))
	if err != nil {
		return errors.DatabaseError("Failed to save preferences", err)
	}
	return nil
}

func (r *PreferenceRepository) List(ctx context.Context) ([]*alert.Preferences, error) {
	defer observe("list", "alert_preferences", time.Now())

	rows, err := r.db.QueryContext(ctx, `SELECT recipient_id, preferences FROM alert_preferences ORDER BY recipient_id`)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list preferences", err)
	}
	defer rows.Close()

	var out []*alert.Preferences
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, errors.DatabaseError("Failed to scan preferences", err)
		}
		p, err := decodePreferences(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError("Failed to list preferences", err)
	}
	return out, nil
}

func decodePreferences(recipientID, raw string) (*alert.Preferences, error) {
	var p alert.Preferences
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, errors.DatabaseError("Failed to decode preferences", err)
	}
	p.RecipientID = recipientID
	return &p, nil
}
