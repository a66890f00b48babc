package alert

import "context"

// Repository is the keyed alert store
type Repository interface {
	// Get retrieves an alert by id
	Get(ctx context.Context, id string) (*Alert, error)

	// Upsert inserts or overwrites an alert. History is appended, never replaced.
	Upsert(ctx context.Context, alert *Alert) error

	// All returns every stored alert
	All(ctx context.Context) ([]*Alert, error)

	// Delete removes an alert and its history
	Delete(ctx context.Context, id string) error

	// Create inserts an alert only when the id is not stored yet
	Create(ctx context.Context, alert *Alert) (bool, error)

	// RefreshText overwrites title, message, priority, department and
	// updatedAt only while the stored alert is untouched.
	RefreshText(ctx context.Context, alert *Alert) (bool, error)

	// DeleteUntouched removes an alert only while it is untouched
	DeleteUntouched(ctx context.Context, id string) (bool, error)
}

// IsUntouched reports whether no action was ever applied to a
func (a *Alert) IsUntouched() bool {
	return !a.HasHistory() && a.Status == StatusNew
}

// PreferenceRepository stores per-recipient notification preferences
type PreferenceRepository interface {
	// Get returns the recipient's preferences, or nil when none are stored
	Get(ctx context.Context, recipientID string) (*Preferences, error)

	// Save inserts or replaces the recipient's preferences
	Save(ctx context.Context, prefs *Preferences) error

	// List returns the preferences of every recipient
	List(ctx context.Context) ([]*Preferences, error)
}
