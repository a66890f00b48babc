package dto

import (
	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
)

// AlertActionRequest is the body of POST /alerts.
// Action and alertId are checked by the service so errors surface in a fixed order.
type AlertActionRequest struct {
	AlertID    string `json:"alertId"`
	Action     string `json:"action"`
	Notes      string `json:"notes,omitempty" validate:"max=2000"`
	AssignTo   string `json:"assignTo,omitempty" validate:"max=128"`
	Resolution string `json:"resolution,omitempty" validate:"max=2000"`
}

// ToDomain converts the body into a service request performed by actor
func (r AlertActionRequest) ToDomain(actor string) alert.ActionRequest {
	return alert.ActionRequest{
		AlertID:    r.AlertID,
		Action:     r.Action,
		Actor:      actor,
		Notes:      r.Notes,
		AssignTo:   r.AssignTo,
		Resolution: r.Resolution,
	}
}

// AlertListResponse is the body of GET /alerts
type AlertListResponse struct {
	Alerts     []*alert.Alert   `json:"alerts"`
	Total      int              `json:"total"`
	Statistics alert.Statistics `json:"statistics"`
	Pagination alert.Pagination `json:"pagination"`
}

// FromListResult converts a service list result. Alerts is never null.
func FromListResult(res *alert.ListResult) AlertListResponse {
	alerts := res.Alerts
	if alerts == nil {
		alerts = []*alert.Alert{}
	}
	return AlertListResponse{
		Alerts:     alerts,
		Total:      res.Total,
		Statistics: res.Statistics,
		Pagination: res.Pagination,
	}
}

// PreferencesRequest is the body of PUT /alerts/preferences
type PreferencesRequest struct {
	Channels        alert.Channels         `json:"channels"`
	AlertTypes      []alert.Type           `json:"alertTypes"`
	Priorities      []alert.Priority       `json:"priorities"`
	QuietHours      alert.QuietHours       `json:"quietHours"`
	EscalationRules []alert.EscalationRule `json:"escalationRules"`
	Contact         alert.Contact          `json:"contact"`
}

// ToDomain converts the body into preferences for recipientID
func (r PreferencesRequest) ToDomain(recipientID string) *alert.Preferences {
	return &alert.Preferences{
		RecipientID:     recipientID,
		Channels:        r.Channels,
		AlertTypes:      r.AlertTypes,
		Priorities:      r.Priorities,
		QuietHours:      r.QuietHours,
		EscalationRules: r.EscalationRules,
		Contact:         r.Contact,
	}
}
