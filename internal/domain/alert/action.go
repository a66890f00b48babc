package alert

import (
	"errors"
	"fmt"
	"time"
)

// Action is an operator action on an alert
type Action string

// Alert actions
const (
	ActionAcknowledge Action = "acknowledge"
	ActionInProgress  Action = "in_progress"
	ActionAssign      Action = "assign"
	ActionResolve     Action = "resolve"
	ActionDismiss     Action = "dismiss"
	ActionEscalate    Action = "escalate"
)

// Actions lists every accepted action
var Actions = []Action{
	ActionAcknowledge,
	ActionInProgress,
	ActionAssign,
	ActionResolve,
	ActionDismiss,
	ActionEscalate,
}

// SystemActor performs automatic transitions
const SystemActor = "system"

var (
	// ErrInvalidAction is returned for an unrecognised action token
	ErrInvalidAction = errors.New("invalid action")
	// ErrTerminal is returned when acting on a resolved or dismissed alert
	ErrTerminal = errors.New("alert is closed")
	// ErrAssigneeRequired is returned when assign has no target
	ErrAssigneeRequired = errors.New("assignTo is required for assign")
)

// ParseAction validates an action token
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if Action(s) == a {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// ActionRequest carries an operator action
type ActionRequest struct {
	AlertID    string
	Action     string
	Actor      string
	Notes      string
	AssignTo   string
	Resolution string
}

// Apply transitions the alert and appends one history entry with id entryID.
func (a *Alert) Apply(action Action, req ActionRequest, entryID string, now time.Time) error {
	if a.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, a.ID, a.Status)
	}

	at := now
	switch action {
	case ActionAcknowledge:
		a.Status = StatusAcknowledged
		a.AcknowledgedBy = req.Actor
		a.AcknowledgedAt = &at
	case ActionInProgress:
		a.Status = StatusInProgress
	case ActionAssign:
		if req.AssignTo == "" {
			return ErrAssigneeRequired
		}
		a.Status = StatusInProgress
		a.AssignedTo = req.AssignTo
		a.AssignedBy = req.Actor
		a.AssignedAt = &at
	case ActionResolve:
		a.Status = StatusResolved
		a.ResolvedBy = req.Actor
		a.ResolvedAt = &at
		a.Resolution = req.Resolution
		if a.Resolution == "" {
			a.Resolution = req.Notes
		}
	case ActionDismiss:
		a.Status = StatusDismissed
		a.DismissedBy = req.Actor
		a.DismissedAt = &at
		a.DismissReason = req.Notes
	case ActionEscalate:
		a.Escalate(entryID, req.Actor, req.Notes, now)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	a.History = append(a.History, HistoryEntry{
		ID:          entryID,
		Action:      action,
		PerformedBy: req.Actor,
		PerformedAt: now,
		Notes:       req.Notes,
	})
	a.UpdatedAt = now
	return nil
}

// Escalate raises the priority one step, marks the alert escalated and logs
// the reason. A critical alert keeps its priority.
func (a *Alert) Escalate(entryID, actor, notes string, now time.Time) {
	at := now
	a.Priority = a.Priority.Raise()
	a.Status = StatusEscalated
	a.EscalatedBy = actor
	a.EscalatedAt = &at
	a.EscalationNotes = notes
	a.History = append(a.History, HistoryEntry{
		ID:          entryID,
		Action:      ActionEscalate,
		PerformedBy: actor,
		PerformedAt: now,
		Notes:       notes,
	})
	a.UpdatedAt = now
}
