package alert

import (
	"fmt"
	"time"
)

// Channels holds per-channel notification toggles
type Channels struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
	SMS   bool `json:"sms"`
}

// QuietHours suppresses notifications inside a daily window.
// Start after End wraps past midnight.
type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start,omitempty" validate:"required_if=Enabled true,hhmm"`
	End      string `json:"end,omitempty" validate:"required_if=Enabled true,hhmm"`
	Timezone string `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

// EscalationRule escalates alerts of a priority left unaddressed too long
type EscalationRule struct {
	Priority             Priority `json:"priority" validate:"required,oneof=critical high medium low info"`
	EscalateAfterMinutes int      `json:"escalateAfterMinutes" validate:"gte=1"`
	EscalateTo           []string `json:"escalateTo" validate:"omitempty,dive,required"`
}

// After returns the rule's timeout as a duration
func (r EscalationRule) After() time.Duration {
	return time.Duration(r.EscalateAfterMinutes) * time.Minute
}

// Contact holds delivery addresses for a recipient
type Contact struct {
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty" validate:"omitempty,e164"`
}

// Preferences are a recipient's notification settings
type Preferences struct {
	RecipientID     string           `json:"recipientId"`
	Channels        Channels         `json:"channels"`
	AlertTypes      []Type           `json:"alertTypes" validate:"omitempty,unique,dive,oneof=maintenance_overdue maintenance_due asset_damaged asset_unassigned request_pending return_overdue low_availability high_utilization warranty_expiring compliance_violation system_error"`
	Priorities      []Priority       `json:"priorities" validate:"omitempty,unique,dive,oneof=critical high medium low info"`
	QuietHours      QuietHours       `json:"quietHours"`
	EscalationRules []EscalationRule `json:"escalationRules" validate:"omitempty,dive"`
	Contact         Contact          `json:"contact"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// DefaultPreferences applies to recipients that never saved preferences:
// email only, every type and priority.
func DefaultPreferences(recipientID string) *Preferences {
	return &Preferences{
		RecipientID: recipientID,
		Channels:    Channels{Email: true},
		AlertTypes:  append([]Type(nil), Types...),
		Priorities:  append([]Priority(nil), Priorities...),
	}
}

// AllowsType reports whether t is in the allow-list. An empty list allows all.
func (p *Preferences) AllowsType(t Type) bool {
	if len(p.AlertTypes) == 0 {
		return true
	}
	for _, allowed := range p.AlertTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// AllowsPriority reports whether pr is in the allow-list. An empty list allows all.
func (p *Preferences) AllowsPriority(pr Priority) bool {
	if len(p.Priorities) == 0 {
		return true
	}
	for _, allowed := range p.Priorities {
		if allowed == pr {
			return true
		}
	}
	return false
}

// ParseClock converts "HH:MM" (24-hour) to minutes since midnight
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != 5 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Location resolves the window's timezone, UTC when unset or unknown
func (q QuietHours) Location() *time.Location {
	if q.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Contains reports whether now falls inside the window at minute resolution.
// A disabled or malformed window contains nothing.
func (q QuietHours) Contains(now time.Time) bool {
	if !q.Enabled {
		return false
	}
	start, err := ParseClock(q.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(q.End)
	if err != nil {
		return false
	}
	local := now.In(q.Location())
	minute := local.Hour()*60 + local.Minute()
	if start <= end {
		return minute >= start && minute <= end
	}
	return minute >= start || minute <= end
}
