package alert

import (
	"context"
	"time"
)

// Service defines the alert engine operations
type Service interface {
	// ListAlerts evaluates the live snapshot, merges it with stored alerts
	// and returns the filtered, sorted page with statistics
	ListAlerts(ctx context.Context, filter Filter, page Page) (*ListResult, error)

	// GetAlert returns one alert from the store or a fresh evaluation
	GetAlert(ctx context.Context, id string) (*Alert, error)

	// PerformAction applies an operator action and records it in history
	PerformAction(ctx context.Context, req ActionRequest) (*Alert, error)

	// GetPreferences returns stored preferences or the defaults
	GetPreferences(ctx context.Context, recipientID string) (*Preferences, error)

	// UpdatePreferences validates and stores a recipient's preferences
	UpdatePreferences(ctx context.Context, recipientID string, prefs *Preferences) (*Preferences, error)

	// Refresh evaluates the live snapshot and persists the merged result,
	// returning the number of first-seen alerts
	Refresh(ctx context.Context) (int, error)

	// SweepEscalations escalates alerts left unaddressed past their rule's timeout
	SweepEscalations(ctx context.Context, now time.Time) (*SweepResult, error)
}
