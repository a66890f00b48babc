package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/domain/notification"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/logger"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/metrics"
)

var _ notification.Dispatcher = (*NotificationService)(nil)

// NotificationService decides and delivers alert notifications
type NotificationService struct {
	senders   map[notification.Channel]notification.Sender
	publisher notification.Publisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewNotificationService creates a dispatcher over the given channel senders.
// A nil publisher discards events.
func NewNotificationService(
	senders []notification.Sender,
	publisher notification.Publisher,
	log *logger.Logger,
) *NotificationService {
	log = log.Component("notifications")
	byChannel := make(map[notification.Channel]notification.Sender, len(senders))
	for _, s := range senders {
		ch := s.Channel()
		if !ch.IsValid() {
			log.With("channel", string(ch)).Warn("Ignoring sender for unknown channel")
			continue
		}
		byChannel[ch] = s
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &NotificationService{
		senders:   byChannel,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// SetClock replaces the wall clock used for quiet hours
func (s *NotificationService) SetClock(now func() time.Time) {
	s.now = now
}

// Decide applies allow-lists, quiet hours and channel toggles
func (s *NotificationService) Decide(a *alert.Alert, prefs *alert.Preferences, now time.Time) notification.Decision {
	if !prefs.AllowsType(a.Type) {
		return notification.Decision{Suppressed: true, Reason: notification.ReasonTypeFiltered}
	}
	if !prefs.AllowsPriority(a.Priority) {
		return notification.Decision{Suppressed: true, Reason: notification.ReasonPriorityFiltered}
	}
	if prefs.QuietHours.Contains(now) {
		return notification.Decision{Suppressed: true, Reason: notification.ReasonQuietHours}
	}

	var channels []notification.Channel
	if prefs.Channels.Email {
		channels = append(channels, notification.ChannelEmail)
	}
	if prefs.Channels.Push {
		channels = append(channels, notification.ChannelPush)
	}
	if prefs.Channels.SMS && a.Priority == alert.PriorityCritical {
		channels = append(channels, notification.ChannelSMS)
	}
	if len(channels) == 0 {
		return notification.Decision{Suppressed: true, Reason: notification.ReasonNoChannels}
	}
	return notification.Decision{Channels: channels}
}

// Dispatch sends the alert on every decided channel. A failing channel does
// not stop the others.
func (s *NotificationService) Dispatch(ctx context.Context, a *alert.Alert, prefs *alert.Preferences) *notification.Result {
	decision := s.Decide(a, prefs, s.now())
	result := &notification.Result{
		RecipientID: prefs.RecipientID,
		AlertID:     a.ID,
		Decision:    decision,
	}

	log := s.logger.WithFields(map[string]interface{}{
		"alert_id":     a.ID,
		"recipient_id": prefs.RecipientID,
	})

	if decision.Suppressed {
		log.With("reason", decision.Reason).Debug("Notification suppressed")
		return result
	}

	msg := &notification.Message{
		Recipient: notification.Recipient{ID: prefs.RecipientID, Contact: prefs.Contact},
		Alert:     a,
		Subject:   fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Priority)), a.Title),
		Body:      messageBody(a),
	}

	sent := 0
	for _, ch := range decision.Channels {
		sender, ok := s.senders[ch]
		if !ok {
			result.Deliveries = append(result.Deliveries, notification.Delivery{
				Channel: ch,
				Status:  notification.DeliveryStatusSuppressed,
				Error:   "channel not configured",
			})
			metrics.RecordNotification(string(ch), string(notification.DeliveryStatusSuppressed))
			continue
		}

		if err := sender.Send(ctx, msg); err != nil {
			log.With("channel", ch).ErrorWithErr(err, "Notification delivery failed")
			result.Deliveries = append(result.Deliveries, notification.Delivery{
				Channel: ch,
				Status:  notification.DeliveryStatusFailed,
				Error:   err.Error(),
			})
			metrics.RecordNotification(string(ch), string(notification.DeliveryStatusFailed))
			continue
		}

		sent++
		result.Deliveries = append(result.Deliveries, notification.Delivery{Channel: ch, Status: notification.DeliveryStatusSent})
		metrics.RecordNotification(string(ch), string(notification.DeliveryStatusSent))
	}

	if sent > 0 {
		log.With("channels", sent).Info("Alert notification sent")
		s.publish(ctx, notification.EventAlertNotified, a, map[string]interface{}{
			"recipientId": prefs.RecipientID,
			"deliveries":  result.Deliveries,
		})
	}

	return result
}

// Publish emits a realtime event about an alert
func (s *NotificationService) Publish(ctx context.Context, eventType notification.EventType, a *alert.Alert) {
	s.publish(ctx, eventType, a, nil)
}

func (s *NotificationService) publish(ctx context.Context, eventType notification.EventType, a *alert.Alert, extra map[string]interface{}) {
	data := map[string]interface{}{
		"alertId":  a.ID,
		"type":     a.Type,
		"priority": a.Priority,
		"status":   a.Status,
		"title":    a.Title,
	}
	for k, v := range extra {
		data[k] = v
	}

	event := &notification.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: s.now().UTC(),
		Data:      data,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"alert_id": a.ID,
			"event":    eventType,
		}).WarnWithErr(err, "Failed to publish alert event")
	}
}

func messageBody(a *alert.Alert) string {
	var b strings.Builder
	b.WriteString(a.Message)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Alert: %s\n", a.ID)
	fmt.Fprintf(&b, "Priority: %s\n", a.Priority)
	fmt.Fprintf(&b, "Status: %s\n", a.Status)
	if a.Department != "" {
		fmt.Fprintf(&b, "Department: %s\n", a.Department)
	}
	if a.AssignedTo != "" {
		fmt.Fprintf(&b, "Assigned to: %s\n", a.AssignedTo)
	}
	if a.EscalationNotes != "" {
		fmt.Fprintf(&b, "Escalation: %s\n", a.EscalationNotes)
	}
	return b.String()
}
