package alert

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestPriority_Raise(t *testing.T) {
	tests := []struct {
		in, want Priority
	}{
		{PriorityInfo, PriorityLow},
		{PriorityLow, PriorityMedium},
		{PriorityMedium, PriorityHigh},
		{PriorityHigh, PriorityCritical},
		{PriorityCritical, PriorityCritical},
		{Priority("bogus"), Priority("bogus")},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Raise())
		})
	}
}

func TestNewIDAndSplitID(t *testing.T) {
	assert.Equal(t, "maintenance_overdue:asset-42", NewID(TypeMaintenanceOverdue, "asset-42"))
	assert.Equal(t, "low_availability:aggregate", NewID(TypeLowAvailability, ""))

	typ, subject, ok := SplitID("return_overdue:r-7")
	assert.True(t, ok)
	assert.Equal(t, TypeReturnOverdue, typ)
	assert.Equal(t, "r-7", subject)

	for _, id := range []string{"nocolon", "maintenance_due:", "unknown_type:x"} {
		_, _, ok := SplitID(id)
		assert.False(t, ok, id)
	}
}

func TestApply_Transitions(t *testing.T) {
	tests := []struct {
		name       string
		action     Action
		req        ActionRequest
		wantStatus Status
		check      func(t *testing.T, a *Alert)
	}{
		{
			name:       "acknowledge",
			action:     ActionAcknowledge,
			req:        ActionRequest{Actor: "u1"},
			wantStatus: StatusAcknowledged,
			check: func(t *testing.T, a *Alert) {
				assert.Equal(t, "u1", a.AcknowledgedBy)
				require.NotNil(t, a.AcknowledgedAt)
			},
		},
		{
			name:       "in progress",
			action:     ActionInProgress,
			req:        ActionRequest{Actor: "u1"},
			wantStatus: StatusInProgress,
		},
		{
			name:       "assign",
			action:     ActionAssign,
			req:        ActionRequest{Actor: "u1", AssignTo: "tech-7"},
			wantStatus: StatusInProgress,
			check: func(t *testing.T, a *Alert) {
				assert.Equal(t, "tech-7", a.AssignedTo)
				assert.Equal(t, "u1", a.AssignedBy)
			},
		},
		{
			name:       "resolve falls back to notes",
			action:     ActionResolve,
			req:        ActionRequest{Actor: "u1", Notes: "serviced"},
			wantStatus: StatusResolved,
			check: func(t *testing.T, a *Alert) {
				assert.Equal(t, "serviced", a.Resolution)
				require.NotNil(t, a.ResolvedAt)
			},
		},
		{
			name:       "dismiss",
			action:     ActionDismiss,
			req:        ActionRequest{Actor: "u1", Notes: "duplicate"},
			wantStatus: StatusDismissed,
			check: func(t *testing.T, a *Alert) {
				assert.Equal(t, "duplicate", a.DismissReason)
			},
		},
		{
			name:       "escalate raises one step",
			action:     ActionEscalate,
			req:        ActionRequest{Actor: "u1", Notes: "customer waiting"},
			wantStatus: StatusEscalated,
			check: func(t *testing.T, a *Alert) {
				assert.Equal(t, PriorityHigh, a.Priority)
				assert.Equal(t, "customer waiting", a.EscalationNotes)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Alert{ID: "asset_damaged:a1", Priority: PriorityMedium, Status: StatusNew, Timestamp: now}
			require.NoError(t, a.Apply(tt.action, tt.req, "h1", now))

			assert.Equal(t, tt.wantStatus, a.Status)
			require.Len(t, a.History, 1)
			assert.Equal(t, tt.action, a.History[0].Action)
			assert.Equal(t, "u1", a.History[0].PerformedBy)
			assert.Equal(t, now, a.UpdatedAt)
			if tt.check != nil {
				tt.check(t, a)
			}
		})
	}
}

func TestApply_Rejections(t *testing.T) {
	resolved := &Alert{ID: "x:1", Status: StatusResolved}
	err := resolved.Apply(ActionAcknowledge, ActionRequest{Actor: "u1"}, "h1", now)
	assert.True(t, errors.Is(err, ErrTerminal))
	assert.Empty(t, resolved.History)

	open := &Alert{ID: "x:2", Status: StatusNew}
	err = open.Apply(ActionAssign, ActionRequest{Actor: "u1"}, "h1", now)
	assert.True(t, errors.Is(err, ErrAssigneeRequired))
	assert.Equal(t, StatusNew, open.Status)

	_, err = ParseAction("snooze")
	assert.True(t, errors.Is(err, ErrInvalidAction))
}

func TestEscalate_CriticalKeepsPriority(t *testing.T) {
	a := &Alert{ID: "maintenance_overdue:a1", Priority: PriorityCritical, Status: StatusNew}
	a.Escalate("h1", SystemActor, "Auto-escalated after 15 minutes without resolution", now)

	assert.Equal(t, PriorityCritical, a.Priority)
	assert.Equal(t, StatusEscalated, a.Status)
	require.Len(t, a.History, 1)
	assert.Equal(t, SystemActor, a.History[0].PerformedBy)
}

func TestMergeHistory(t *testing.T) {
	stored := []HistoryEntry{{ID: "h1", Notes: "stored"}}
	incoming := []HistoryEntry{{ID: "h1", Notes: "rewritten"}, {ID: "h2"}}

	merged := MergeHistory(stored, incoming)
	require.Len(t, merged, 2)
	assert.Equal(t, "stored", merged[0].Notes)
	assert.Equal(t, "h2", merged[1].ID)
}

func TestFilter_Validate(t *testing.T) {
	tests := []struct {
		name       string
		filter     Filter
		page       Page
		wantFields []string
	}{
		{name: "empty filter", page: Page{Limit: 20}},
		{name: "all valid", filter: Filter{Type: TypeReturnOverdue, Priority: PriorityHigh, Status: StatusNew, DateRange: DateRangeWeek}, page: Page{Limit: 100}},
		{name: "bad enums", filter: Filter{Type: "fire", Priority: "urgent", Status: "open", DateRange: "1y"}, page: Page{Limit: 20}, wantFields: []string{"type", "priority", "status", "dateRange"}},
		{name: "limit zero", page: Page{Limit: 0}, wantFields: []string{"limit"}},
		{name: "limit too large", page: Page{Limit: 101}, wantFields: []string{"limit"}},
		{name: "negative offset", page: Page{Limit: 10, Offset: -1}, wantFields: []string{"offset"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate(tt.page)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			var fe FieldErrors
			require.True(t, errors.As(err, &fe))
			var fields []string
			for _, f := range fe {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestFilter_Matches(t *testing.T) {
	a := &Alert{
		Type:       TypeAssetDamaged,
		Priority:   PriorityHigh,
		Status:     StatusNew,
		Department: "IT",
		AssignedTo: "tech-7",
		Timestamp:  now.AddDate(0, 0, -3),
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "empty", filter: Filter{}, want: true},
		{name: "department is case-insensitive", filter: Filter{Department: "it"}, want: true},
		{name: "other department", filter: Filter{Department: "HR"}, want: false},
		{name: "assignee", filter: Filter{AssignedTo: "tech-7"}, want: true},
		{name: "within 7d", filter: Filter{DateRange: DateRangeWeek}, want: true},
		{name: "not today", filter: Filter{DateRange: DateRangeToday}, want: false},
		{name: "wrong priority", filter: Filter{Priority: PriorityCritical}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(a, now))
		})
	}
}

func TestSortByUrgency(t *testing.T) {
	alerts := []*Alert{
		{ID: "b", Priority: PriorityLow, Timestamp: now},
		{ID: "c", Priority: PriorityCritical, Timestamp: now.Add(-time.Hour)},
		{ID: "d", Priority: PriorityCritical, Timestamp: now},
		{ID: "a", Priority: PriorityCritical, Timestamp: now},
	}
	SortByUrgency(alerts)

	var ids []string
	for _, a := range alerts {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"a", "d", "c", "b"}, ids)
}

func TestComputeStatistics(t *testing.T) {
	alerts := []*Alert{
		{Type: TypeMaintenanceOverdue, Priority: PriorityCritical, Status: StatusNew, Timestamp: now.Add(-time.Hour)},
		{Type: TypeAssetDamaged, Priority: PriorityHigh, Status: StatusResolved, Timestamp: now.AddDate(0, 0, -2)},
		{Type: TypeAssetDamaged, Priority: PriorityMedium, Status: StatusDismissed, Timestamp: now.AddDate(0, 0, -10)},
	}

	stats := ComputeStatistics(alerts, now)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Critical)
	assert.Equal(t, 1, stats.Unresolved)
	assert.Equal(t, 1, stats.Today)
	assert.Equal(t, 2, stats.LastWeek)
	assert.Equal(t, 2, stats.ByType[TypeAssetDamaged])
	assert.Equal(t, 1, stats.ByStatus[StatusResolved])
}

func TestQuietHours_Contains(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC) }

	overnight := QuietHours{Enabled: true, Start: "22:00", End: "07:00"}
	daytime := QuietHours{Enabled: true, Start: "09:00", End: "17:30"}
	tokyo := QuietHours{Enabled: true, Start: "22:00", End: "07:00", Timezone: "Asia/Tokyo"}

	tests := []struct {
		name string
		q    QuietHours
		now  time.Time
		want bool
	}{
		{name: "overnight late", q: overnight, now: at(23, 30), want: true},
		{name: "overnight early", q: overnight, now: at(6, 59), want: true},
		{name: "overnight end is inclusive", q: overnight, now: at(7, 0), want: true},
		{name: "overnight morning", q: overnight, now: at(8, 0), want: false},
		{name: "daytime inside", q: daytime, now: at(12, 0), want: true},
		{name: "daytime outside", q: daytime, now: at(18, 0), want: false},
		{name: "disabled", q: QuietHours{Start: "00:00", End: "23:59"}, now: at(12, 0), want: false},
		{name: "malformed", q: QuietHours{Enabled: true, Start: "7:00", End: "08:00"}, now: at(7, 30), want: false},
		// 14:00 UTC is 23:00 in Tokyo
		{name: "timezone applied", q: tokyo, now: at(14, 0), want: true},
		{name: "timezone outside", q: tokyo, now: at(3, 0), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.Contains(tt.now))
		})
	}
}

func TestPreferences_AllowLists(t *testing.T) {
	p := &Preferences{}
	assert.True(t, p.AllowsType(TypeSystemError))
	assert.True(t, p.AllowsPriority(PriorityInfo))

	p.AlertTypes = []Type{TypeReturnOverdue}
	p.Priorities = []Priority{PriorityCritical}
	assert.False(t, p.AllowsType(TypeSystemError))
	assert.True(t, p.AllowsType(TypeReturnOverdue))
	assert.False(t, p.AllowsPriority(PriorityHigh))

	def := DefaultPreferences("u1")
	assert.True(t, def.Channels.Email)
	assert.False(t, def.Channels.SMS)
	assert.Len(t, def.AlertTypes, len(Types))
}
