package alert

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateRange restricts alerts by creation time
type DateRange string

// Supported date ranges
const (
	DateRangeToday   DateRange = "today"
	DateRangeWeek    DateRange = "7d"
	DateRangeMonth   DateRange = "30d"
	DateRangeQuarter DateRange = "90d"
)

// Since returns the lower bound of the range relative to now.
// The second result is false when no range is set.
func (d DateRange) Since(now time.Time) (time.Time, bool) {
	switch d {
	case DateRangeToday:
		return StartOfDay(now), true
	case DateRangeWeek:
		return now.AddDate(0, 0, -7), true
	case DateRangeMonth:
		return now.AddDate(0, 0, -30), true
	case DateRangeQuarter:
		return now.AddDate(0, 0, -90), true
	default:
		return time.Time{}, false
	}
}

// IsValid reports whether d is empty or a supported range
func (d DateRange) IsValid() bool {
	switch d {
	case "", DateRangeToday, DateRangeWeek, DateRangeMonth, DateRangeQuarter:
		return true
	}
	return false
}

// StartOfDay truncates t to midnight in its own location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Filter contains alert filtering options. Empty fields match everything.
type Filter struct {
	Type       Type
	Priority   Priority
	Status     Status
	Department string
	AssignedTo string
	DateRange  DateRange
}

// Pagination defaults
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Page selects a window of the sorted result
type Page struct {
	Limit  int
	Offset int
}

// FieldError describes one invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// FieldErrors is returned when input fails validation
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// Validate checks enum membership and pagination bounds
func (f Filter) Validate(p Page) error {
	var errs FieldErrors
	if f.Type != "" && !f.Type.IsValid() {
		errs = append(errs, enumError("type", string(f.Type)))
	}
	if f.Priority != "" && !f.Priority.IsValid() {
		errs = append(errs, enumError("priority", string(f.Priority)))
	}
	if f.Status != "" && !f.Status.IsValid() {
		errs = append(errs, enumError("status", string(f.Status)))
	}
	if !f.DateRange.IsValid() {
		errs = append(errs, enumError("dateRange", string(f.DateRange)))
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		errs = append(errs, FieldError{
			Field:   "limit",
			Tag:     "range",
			Value:   fmt.Sprint(p.Limit),
			Message: fmt.Sprintf("limit must be between 1 and %d", MaxLimit),
		})
	}
	if p.Offset < 0 {
		errs = append(errs, FieldError{
			Field:   "offset",
			Tag:     "gte",
			Value:   fmt.Sprint(p.Offset),
			Message: "offset must be greater than or equal to 0",
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Matches reports whether a passes every set field of the filter
func (f Filter) Matches(a *Alert, now time.Time) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Priority != "" && a.Priority != f.Priority {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Department != "" && !strings.EqualFold(a.Department, f.Department) {
		return false
	}
	if f.AssignedTo != "" && a.AssignedTo != f.AssignedTo {
		return false
	}
	if since, ok := f.DateRange.Since(now); ok && a.Timestamp.Before(since) {
		return false
	}
	return true
}

// SortByUrgency orders alerts by priority, newest first within a priority
func SortByUrgency(alerts []*Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Priority.Rank(), alerts[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		if !alerts[i].Timestamp.Equal(alerts[j].Timestamp) {
			return alerts[i].Timestamp.After(alerts[j].Timestamp)
		}
		return alerts[i].ID < alerts[j].ID
	})
}

func enumError(field, value string) FieldError {
	return FieldError{
		Field:   field,
		Tag:     "oneof",
		Value:   value,
		Message: fmt.Sprintf("%s has unsupported value %q", field, value),
	}
}

// Statistics aggregates a set of alerts
type Statistics struct {
	Total      int              `json:"total"`
	ByPriority map[Priority]int `json:"byPriority"`
	ByType     map[Type]int     `json:"byType"`
	ByStatus   map[Status]int   `json:"byStatus"`
	Critical   int              `json:"critical"`
	Unresolved int              `json:"unresolved"`
	Today      int              `json:"today"`
	LastWeek   int              `json:"last7Days"`
}

// ComputeStatistics counts alerts by priority, type and status
func ComputeStatistics(alerts []*Alert, now time.Time) Statistics {
	stats := Statistics{
		Total:      len(alerts),
		ByPriority: make(map[Priority]int),
		ByType:     make(map[Type]int),
		ByStatus:   make(map[Status]int),
	}
	today := StartOfDay(now)
	weekAgo := now.AddDate(0, 0, -7)
	for _, a := range alerts {
		stats.ByPriority[a.Priority]++
		stats.ByType[a.Type]++
		stats.ByStatus[a.Status]++
		if a.Priority == PriorityCritical {
			stats.Critical++
		}
		if !a.IsTerminal() {
			stats.Unresolved++
		}
		if !a.Timestamp.Before(today) {
			stats.Today++
		}
		if !a.Timestamp.Before(weekAgo) {
			stats.LastWeek++
		}
	}
	return stats
}

// Pagination describes the returned window
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// ListResult is the response of a list query
type ListResult struct {
	Alerts     []*Alert   `json:"alerts"`
	Total      int        `json:"total"`
	Statistics Statistics `json:"statistics"`
	Pagination Pagination `json:"pagination"`
}

// SweepResult summarises one escalation sweep
type SweepResult struct {
	Checked    int       `json:"checked"`
	Escalated  int       `json:"escalated"`
	Skipped    bool      `json:"skipped"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}
