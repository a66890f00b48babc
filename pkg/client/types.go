package client

import "time"

// HistoryEntry records one action on an alert
type HistoryEntry struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	PerformedBy string    `json:"performedBy"`
	PerformedAt time.Time `json:"performedAt"`
	Notes       string    `json:"notes,omitempty"`
}

// Subject references the record an alert concerns
type Subject struct {
	Kind string `json:"kind,omitempty"`
	ID   string `json:"id,omitempty"`
}

// Alert is an alert as returned by the API
type Alert struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Priority   string         `json:"priority"`
	Status     string         `json:"status"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Subject    Subject        `json:"subject"`
	Department string         `json:"department,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	History    []HistoryEntry `json:"history"`

	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`
	ResolvedBy     string     `json:"resolvedBy,omitempty"`
	Resolution     string     `json:"resolution,omitempty"`
	DismissReason  string     `json:"dismissReason,omitempty"`
	EscalatedAt    *time.Time `json:"escalatedAt,omitempty"`
	AssignedTo     string     `json:"assignedTo,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Statistics aggregates the filtered alert set
type Statistics struct {
	Total      int            `json:"total"`
	ByPriority map[string]int `json:"byPriority"`
	ByType     map[string]int `json:"byType"`
	ByStatus   map[string]int `json:"byStatus"`
	Critical   int            `json:"critical"`
	Unresolved int            `json:"unresolved"`
	Today      int            `json:"today"`
	LastWeek   int            `json:"last7Days"`
}

// Pagination describes the returned window
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// AlertList is one page of alerts
type AlertList struct {
	Alerts     []Alert    `json:"alerts"`
	Total      int        `json:"total"`
	Statistics Statistics `json:"statistics"`
	Pagination Pagination `json:"pagination"`
}

// Channels holds per-channel notification toggles
type Channels struct {
	Email bool `json:"email" yaml:"email"`
	Push  bool `json:"push" yaml:"push"`
	SMS   bool `json:"sms" yaml:"sms"`
}

// QuietHours is a daily window without notifications
type QuietHours struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Start    string `json:"start,omitempty" yaml:"start,omitempty"`
	End      string `json:"end,omitempty" yaml:"end,omitempty"`
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// EscalationRule escalates alerts of a priority left unaddressed too long
type EscalationRule struct {
	Priority             string   `json:"priority" yaml:"priority"`
	EscalateAfterMinutes int      `json:"escalateAfterMinutes" yaml:"escalateAfterMinutes"`
	EscalateTo           []string `json:"escalateTo,omitempty" yaml:"escalateTo,omitempty"`
}

// Contact holds delivery addresses
type Contact struct {
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
	Phone string `json:"phone,omitempty" yaml:"phone,omitempty"`
}

// Preferences are the caller's notification settings
type Preferences struct {
	RecipientID     string           `json:"recipientId,omitempty" yaml:"recipientId,omitempty"`
	Channels        Channels         `json:"channels" yaml:"channels"`
	AlertTypes      []string         `json:"alertTypes" yaml:"alertTypes"`
	Priorities      []string         `json:"priorities" yaml:"priorities"`
	QuietHours      QuietHours       `json:"quietHours" yaml:"quietHours"`
	EscalationRules []EscalationRule `json:"escalationRules" yaml:"escalationRules"`
	Contact         Contact          `json:"contact" yaml:"contact"`
	UpdatedAt       *time.Time       `json:"updatedAt,omitempty" yaml:"-"`
}

// SweepResult summarises one escalation sweep
type SweepResult struct {
	Checked    int       `json:"checked"`
	Escalated  int       `json:"escalated"`
	Skipped    bool      `json:"skipped"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// FieldError describes one invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// HealthResponse is returned by the health probes
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}
