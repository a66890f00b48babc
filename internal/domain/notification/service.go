package notification

import (
	"context"
	"time"

	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
)

// Sender delivers a message on one channel
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, msg *Message) error
}

// Publisher pushes realtime events to subscribers
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Dispatcher decides whether and how to notify a recipient about an alert
type Dispatcher interface {
	// Decide applies allow-lists, quiet hours and channel toggles
	Decide(a *alert.Alert, prefs *alert.Preferences, now time.Time) Decision

	// Dispatch sends on every decided channel. Channel failures are logged
	// and reported in the result, never returned as an error.
	Dispatch(ctx context.Context, a *alert.Alert, prefs *alert.Preferences) *Result

	// Publish emits a realtime event; failures are logged
	Publish(ctx context.Context, eventType EventType, a *alert.Alert)
}
