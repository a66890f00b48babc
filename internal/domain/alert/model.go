package alert

import (
	"strings"
	"time"
)

// Type identifies the condition an alert reports
type Type string

// Alert types
const (
	TypeMaintenanceOverdue  Type = "maintenance_overdue"
	TypeMaintenanceDue      Type = "maintenance_due"
	TypeAssetDamaged        Type = "asset_damaged"
	TypeAssetUnassigned     Type = "asset_unassigned"
	TypeRequestPending      Type = "request_pending"
	TypeReturnOverdue       Type = "return_overdue"
	TypeLowAvailability     Type = "low_availability"
	TypeHighUtilization     Type = "high_utilization"
	TypeWarrantyExpiring    Type = "warranty_expiring"
	TypeComplianceViolation Type = "compliance_violation"
	TypeSystemError         Type = "system_error"
)

// Types lists every alert type
var Types = []Type{
	TypeMaintenanceOverdue,
	TypeMaintenanceDue,
	TypeAssetDamaged,
	TypeAssetUnassigned,
	TypeRequestPending,
	TypeReturnOverdue,
	TypeLowAvailability,
	TypeHighUtilization,
	TypeWarrantyExpiring,
	TypeComplianceViolation,
	TypeSystemError,
}

// IsValid reports whether t is a known alert type
func (t Type) IsValid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Priority is the urgency of an alert
type Priority string

// Alert priorities, most urgent first
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityInfo     Priority = "info"
)

// Priorities is ordered by urgency; the index is the sort rank
var Priorities = []Priority{
	PriorityCritical,
	PriorityHigh,
	PriorityMedium,
	PriorityLow,
	PriorityInfo,
}

// Rank returns the sort index of p. Unknown priorities sort last.
func (p Priority) Rank() int {
	for i, known := range Priorities {
		if p == known {
			return i
		}
	}
	return len(Priorities)
}

// IsValid reports whether p is a known priority
func (p Priority) IsValid() bool {
	return p.Rank() < len(Priorities)
}

// Raise returns the priority one step closer to critical.
// Critical stays critical.
func (p Priority) Raise() Priority {
	rank := p.Rank()
	if rank == 0 || rank >= len(Priorities) {
		return p
	}
	return Priorities[rank-1]
}

// Status is the lifecycle state of an alert
type Status string

// Alert statuses
const (
	StatusNew          Status = "new"
	StatusAcknowledged Status = "acknowledged"
	StatusInProgress   Status = "in_progress"
	StatusResolved     Status = "resolved"
	StatusDismissed    Status = "dismissed"
	StatusEscalated    Status = "escalated"
)

// Statuses lists every alert status
var Statuses = []Status{
	StatusNew,
	StatusAcknowledged,
	StatusInProgress,
	StatusResolved,
	StatusDismissed,
	StatusEscalated,
}

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions apply
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

// Subject kinds
const (
	SubjectAsset   = "asset"
	SubjectReturn  = "return"
	SubjectRequest = "request"
	SubjectIssue   = "issue"
)

// AggregateSubject is the id suffix of alerts that summarise many records
const AggregateSubject = "aggregate"

// Subject is a loose reference to the record an alert concerns.
// Aggregate alerts have an empty subject.
type Subject struct {
	Kind string `json:"kind,omitempty"`
	ID   string `json:"id,omitempty"`
}

// HistoryEntry records one action performed on an alert
type HistoryEntry struct {
	ID          string    `json:"id"`
	Action      Action    `json:"action"`
	PerformedBy string    `json:"performedBy"`
	PerformedAt time.Time `json:"performedAt"`
	Notes       string    `json:"notes,omitempty"`
}

// Alert is a normalised alert record
type Alert struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	Priority   Priority       `json:"priority"`
	Status     Status         `json:"status"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Subject    Subject        `json:"subject"`
	Department string         `json:"department,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	History    []HistoryEntry `json:"history"`

	AcknowledgedBy  string     `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt  *time.Time `json:"acknowledgedAt,omitempty"`
	ResolvedBy      string     `json:"resolvedBy,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	Resolution      string     `json:"resolution,omitempty"`
	DismissedBy     string     `json:"dismissedBy,omitempty"`
	DismissedAt     *time.Time `json:"dismissedAt,omitempty"`
	DismissReason   string     `json:"dismissReason,omitempty"`
	EscalatedBy     string     `json:"escalatedBy,omitempty"`
	EscalatedAt     *time.Time `json:"escalatedAt,omitempty"`
	EscalationNotes string     `json:"escalationNotes,omitempty"`
	AssignedTo      string     `json:"assignedTo,omitempty"`
	AssignedBy      string     `json:"assignedBy,omitempty"`
	AssignedAt      *time.Time `json:"assignedAt,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// NewID builds the deterministic id of a generated alert
func NewID(t Type, subject string) string {
	if subject == "" {
		subject = AggregateSubject
	}
	return string(t) + ":" + subject
}

// SplitID returns the type and subject parts of an id built by NewID
func SplitID(id string) (Type, string, bool) {
	t, subject, ok := strings.Cut(id, ":")
	if !ok || subject == "" {
		return "", "", false
	}
	return Type(t), subject, Type(t).IsValid()
}

// IsTerminal reports whether the alert was resolved or dismissed
func (a *Alert) IsTerminal() bool {
	return a.Status.IsTerminal()
}

// HasHistory reports whether any action was recorded on the alert
func (a *Alert) HasHistory() bool {
	return len(a.History) > 0
}

// Clone returns a deep copy
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}
	c := *a
	if a.History != nil {
		c.History = make([]HistoryEntry, len(a.History))
		copy(c.History, a.History)
	}
	c.AcknowledgedAt = cloneTime(a.AcknowledgedAt)
	c.ResolvedAt = cloneTime(a.ResolvedAt)
	c.DismissedAt = cloneTime(a.DismissedAt)
	c.EscalatedAt = cloneTime(a.EscalatedAt)
	c.AssignedAt = cloneTime(a.AssignedAt)
	return &c
}

// MergeHistory appends the entries of incoming that stored does not have yet.
// Stored entries are never replaced or dropped.
func MergeHistory(stored, incoming []HistoryEntry) []HistoryEntry {
	seen := make(map[string]bool, len(stored))
	merged := make([]HistoryEntry, 0, len(stored)+len(incoming))
	for _, h := range stored {
		seen[h.ID] = true
		merged = append(merged, h)
	}
	for _, h := range incoming {
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		merged = append(merged, h)
	}
	return merged
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
