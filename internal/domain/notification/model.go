package notification

import (
	"time"

	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
)

// Channel represents a notification channel
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
)

// IsValid checks if the channel is valid
func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelPush, ChannelSMS:
		return true
	default:
		return false
	}
}

// DeliveryStatus represents the outcome of one channel delivery
type DeliveryStatus string

const (
	DeliveryStatusSent       DeliveryStatus = "sent"
	DeliveryStatusFailed     DeliveryStatus = "failed"
	DeliveryStatusSuppressed DeliveryStatus = "suppressed"
)

// EventType names a realtime event
type EventType string

const (
	EventAlertCreated   EventType = "alert.created"
	EventAlertUpdated   EventType = "alert.updated"
	EventAlertEscalated EventType = "alert.escalated"
	EventAlertNotified  EventType = "alert.notified"
)

// Recipient is the addressee of a notification
type Recipient struct {
	ID      string
	Contact alert.Contact
}

// Message is what a channel sender delivers
type Message struct {
	Recipient Recipient
	Alert     *alert.Alert
	Subject   string
	Body      string
}

// Event is published to realtime subscribers
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"event"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Decision is the outcome of evaluating preferences for one alert
type Decision struct {
	Suppressed bool
	Reason     string
	Channels   []Channel
}

// Suppression reasons
const (
	ReasonTypeFiltered     = "type not in allow-list"
	ReasonPriorityFiltered = "priority not in allow-list"
	ReasonQuietHours       = "quiet hours"
	ReasonNoChannels       = "no channel enabled"
)

// Delivery records the result of sending on one channel
type Delivery struct {
	Channel Channel        `json:"channel"`
	Status  DeliveryStatus `json:"status"`
	Error   string         `json:"error,omitempty"`
}

// Result summarises a dispatch to one recipient
type Result struct {
	RecipientID string     `json:"recipientId"`
	AlertID     string     `json:"alertId"`
	Decision    Decision   `json:"-"`
	Deliveries  []Delivery `json:"deliveries"`
}

// Failed reports whether any channel failed
func (r *Result) Failed() bool {
	for _, d := range r.Deliveries {
		if d.Status == DeliveryStatusFailed {
			return true
		}
	}
	return false
}
