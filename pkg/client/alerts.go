package client

import (
	"context"
	"net/url"
	"strconv"
)

const alertsPath = "/api/v1/alerts"

// AlertService handles alert-related API calls
type AlertService struct {
	client *Client
}

// AlertListOptions contains options for listing alerts. Empty fields are not sent.
type AlertListOptions struct {
	Type       string
	Priority   string
	Status     string
	Department string
	AssignedTo string
	DateRange  string // today, 7d, 30d or 90d
	Limit      int
	Offset     int
}

func (o *AlertListOptions) query() url.Values {
	q := url.Values{}
	if o == nil {
		return q
	}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("type", o.Type)
	set("priority", o.Priority)
	set("status", o.Status)
	set("department", o.Department)
	set("assignedTo", o.AssignedTo)
	set("dateRange", o.DateRange)
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	return q
}

// ActionRequest is an operator action on an alert
type ActionRequest struct {
	AlertID    string `json:"alertId"`
	Action     string `json:"action"`
	Notes      string `json:"notes,omitempty"`
	AssignTo   string `json:"assignTo,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

// List retrieves one page of alerts
func (s *AlertService) List(ctx context.Context, opts *AlertListOptions) (*AlertList, error) {
	path := alertsPath
	if q := opts.query(); len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list AlertList
	if err := s.client.doRequest(ctx, "GET", path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Get retrieves a single alert by ID
func (s *AlertService) Get(ctx context.Context, id string) (*Alert, error) {
	var alert Alert
	if err := s.client.doRequest(ctx, "GET", alertsPath+"/"+url.PathEscape(id), nil, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

// Act performs an action and returns the updated alert
func (s *AlertService) Act(ctx context.Context, req ActionRequest) (*Alert, error) {
	var alert Alert
	if err := s.client.doRequest(ctx, "POST", alertsPath, req, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

// Acknowledge acknowledges an alert
func (s *AlertService) Acknowledge(ctx context.Context, id, notes string) (*Alert, error) {
	return s.Act(ctx, ActionRequest{AlertID: id, Action: "acknowledge", Notes: notes})
}

// StartProgress marks an alert as being worked on
func (s *AlertService) StartProgress(ctx context.Context, id, notes string) (*Alert, error) {
	return s.Act(ctx, ActionRequest{AlertID: id, Action: "in_progress", Notes: notes})
}

// Assign hands an alert to assignee
func (s *AlertService) Assign(ctx context.Context, id, assignee, notes string) (*Alert, error) {
	return s.Act(ctx, ActionRequest{AlertID: id, Action: "assign", AssignTo: assignee, Notes: notes})
}

// Resolve resolves an alert
func (s *AlertService) Resolve(ctx context.Context, id, resolution string) (*Alert, error) {
	return s.Act(ctx, ActionRequest{AlertID: id, Action: "resolve", Resolution: resolution})
}

// Escalate raises an alert's priority one step
func (s *AlertService) Escalate(ctx context.Context, id, notes string) (*Alert, error) {
	return s.Act(ctx, ActionRequest{AlertID: id, Action: "escalate", Notes: notes})
}

// Dismiss dismisses an alert with an optional reason
func (s *AlertService) Dismiss(ctx context.Context, id, reason string) (*Alert, error) {
	path := alertsPath + "/" + url.PathEscape(id)
	if reason != "" {
		path += "?" + url.Values{"reason": {reason}}.Encode()
	}

	var alert Alert
	if err := s.client.doRequest(ctx, "DELETE", path, nil, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

// GetPreferences returns the caller's preferences
func (s *AlertService) GetPreferences(ctx context.Context) (*Preferences, error) {
	var prefs Preferences
	if err := s.client.doRequest(ctx, "GET", alertsPath+"/preferences", nil, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

// UpdatePreferences replaces the caller's preferences
func (s *AlertService) UpdatePreferences(ctx context.Context, prefs *Preferences) (*Preferences, error) {
	// read-only fields are dropped through omitempty
	body := *prefs
	body.RecipientID = ""
	body.UpdatedAt = nil

	var stored Preferences
	if err := s.client.doRequest(ctx, "PUT", alertsPath+"/preferences", body, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// Sweep runs an escalation sweep on the server
func (s *AlertService) Sweep(ctx context.Context) (*SweepResult, error) {
	var result SweepResult
	if err := s.client.doRequest(ctx, "POST", alertsPath+"/escalations/sweep", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
