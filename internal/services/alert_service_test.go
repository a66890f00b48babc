package services

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/assetwatch/internal/detector"
	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/domain/asset"
	"github.com/pratik-mahalle/assetwatch/internal/domain/notification"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/errors"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/logger"
	"github.com/pratik-mahalle/assetwatch/internal/repository/memory"
	"github.com/pratik-mahalle/assetwatch/internal/testutil"
)

var serviceNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type alertFixture struct {
	svc        *AlertService
	repo       *memory.AlertRepository
	prefs      *memory.PreferenceRepository
	provider   *testutil.FakeSnapshotProvider
	dispatcher *testutil.RecordingDispatcher
	clock      *testutil.Clock
}

func newAlertFixture(t *testing.T, opts ...AlertServiceOption) *alertFixture {
	t.Helper()
	f := &alertFixture{
		repo:       memory.NewAlertRepository(),
		prefs:      memory.NewPreferenceRepository(),
		provider:   testutil.NewFakeSnapshotProvider(),
		dispatcher: &testutil.RecordingDispatcher{},
		clock:      testutil.NewClock(serviceNow),
	}
	opts = append([]AlertServiceOption{WithClock(f.clock.Now)}, opts...)
	f.svc = NewAlertService(f.repo, f.prefs, f.provider, f.dispatcher, logger.Nop(), opts...)
	t.Cleanup(f.svc.Wait)
	return f
}

func defaultPage() alert.Page {
	return alert.Page{Limit: alert.DefaultLimit}
}

func overdueAsset(id string, overdue time.Duration) asset.Asset {
	return asset.Asset{
		ID:                 id,
		Name:               "Asset " + id,
		AvailableStatus:    asset.StatusAvailable,
		NextMaintenanceDue: testutil.TimePtr(serviceNow.Add(-overdue)),
	}
}

func TestAlertService_ListAlerts_MaintenanceOverdue(t *testing.T) {
	f := newAlertFixture(t)
	f.provider.SetAssets(overdueAsset("a1", 48*time.Hour), overdueAsset("a2", time.Hour))

	res, err := f.svc.ListAlerts(context.Background(), alert.Filter{Type: alert.TypeMaintenanceOverdue}, defaultPage())
	require.NoError(t, err)

	require.Equal(t, 2, res.Total)
	for _, a := range res.Alerts {
		assert.Equal(t, alert.PriorityCritical, a.Priority)
		assert.Equal(t, alert.StatusNew, a.Status)
	}
	assert.ElementsMatch(t, []string{"maintenance_overdue:a1", "maintenance_overdue:a2"}, alertIDs(res.Alerts))
	assert.Equal(t, 2, res.Statistics.Critical)
}

func TestAlertService_ListAlerts_TimestampSetOnce(t *testing.T) {
	f := newAlertFixture(t)
	f.provider.SetAssets(overdueAsset("a1", 48*time.Hour))
	ctx := context.Background()

	first, err := f.svc.ListAlerts(ctx, alert.Filter{}, defaultPage())
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	second, err := f.svc.ListAlerts(ctx, alert.Filter{}, defaultPage())
	require.NoError(t, err)

	assert.Equal(t, alertIDs(first.Alerts), alertIDs(second.Alerts))
	got := findAlert(t, second.Alerts, "maintenance_overdue:a1")
	assert.True(t, serviceNow.Equal(got.Timestamp), "timestamp moved to %s", got.Timestamp)
	// Message is re-derived while the timestamp stays
	assert.Contains(t, got.Message, "3 days")
}

func TestAlertService_ListAlerts_Validation(t *testing.T) {
	f := newAlertFixture(t)

	tests := []struct {
		name   string
		filter alert.Filter
		page   alert.Page
	}{
		{"unknown priority", alert.Filter{Priority: "urgent"}, defaultPage()},
		{"unknown type", alert.Filter{Type: "fire"}, defaultPage()},
		{"unknown status", alert.Filter{Status: "open"}, defaultPage()},
		{"unknown date range", alert.Filter{DateRange: "1y"}, defaultPage()},
		{"zero limit", alert.Filter{}, alert.Page{Limit: 0}},
		{"limit too large", alert.Filter{}, alert.Page{Limit: 101}},
		{"negative offset", alert.Filter{}, alert.Page{Limit: 10, Offset: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ListAlerts(context.Background(), tt.filter, tt.page)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeValidation), "got %v", err)
		})
	}

	assert.Zero(t, f.provider.Calls[asset.SourceAssets], "validation must happen before any read")
}

func TestAlertService_ListAlerts_FilterSortPaginate(t *testing.T) {
	f := newAlertFixture(t)
	f.provider.SetAssets(
		overdueAsset("a1", 24*time.Hour),
		asset.Asset{ID: "a2", Department: "Lab", CurrentCondition: asset.ConditionPoor, AvailableStatus: asset.StatusAvailable},
		asset.Asset{ID: "a3", Department: "lab", CurrentCondition: asset.ConditionDamaged, AvailableStatus: asset.StatusAvailable},
		asset.Asset{ID: "a4", AvailableStatus: asset.StatusAvailable, WarrantyExpiry: testutil.TimePtr(serviceNow.Add(5 * 24 * time.Hour))},
	)
	ctx := context.Background()

	all, err := f.svc.ListAlerts(ctx, alert.Filter{}, defaultPage())
	require.NoError(t, err)
	require.Equal(t, 4, all.Total)
	assert.Equal(t, []alert.Priority{alert.PriorityCritical, alert.PriorityHigh, alert.PriorityMedium, alert.PriorityLow},
		[]alert.Priority{all.Alerts[0].Priority, all.Alerts[1].Priority, all.Alerts[2].Priority, all.Alerts[3].Priority})
	assert.Equal(t, 4, all.Statistics.Unresolved)
	assert.Equal(t, 4, all.Statistics.Today)
	assert.Equal(t, 2, all.Statistics.ByType[alert.TypeAssetDamaged])

	lab, err := f.svc.ListAlerts(ctx, alert.Filter{Department: "LAB"}, defaultPage())
	require.NoError(t, err)
	assert.Equal(t, 2, lab.Total)
	assert.Equal(t, 2, lab.Statistics.Total)

	page, err := f.svc.ListAlerts(ctx, alert.Filter{}, alert.Page{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page.Alerts, 1)
	assert.Equal(t, alert.PriorityHigh, page.Alerts[0].Priority)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 4, page.Statistics.Total)
	assert.True(t, page.Pagination.HasMore)

	past, err := f.svc.ListAlerts(ctx, alert.Filter{}, alert.Page{Limit: 10, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past.Alerts)
	assert.False(t, past.Pagination.HasMore)
}

func TestAlertService_ListAlerts_PartialFailure(t *testing.T) {
	t.Run("failed source", func(t *testing.T) {
		f := newAlertFixture(t)
		f.provider.SetAssets(overdueAsset("a1", 24*time.Hour))
		f.provider.Fail(asset.SourceReturns, fmt.Errorf("returns collection unavailable"))

		res, err := f.svc.ListAlerts(context.Background(), alert.Filter{}, defaultPage())
		require.NoError(t, err)
		assert.Contains(t, alertIDs(res.Alerts), "maintenance_overdue:a1")
	})

	t.Run("panicking evaluator", func(t *testing.T) {
		evaluators := detector.DefaultEvaluators()
		for i := range evaluators {
			if evaluators[i].Name == detector.EvaluatorOverdueReturns {
				evaluators[i].Evaluate = func(*asset.Snapshot, time.Time) []*alert.Alert { panic("bad record") }
			}
		}
		f := newAlertFixture(t, WithEngine(detector.NewEngine(evaluators...)))
		f.provider.SetAssets(overdueAsset("a1", 24*time.Hour))
		f.provider.Returns = []asset.Return{{ID: "r1", ExpectedReturnDate: serviceNow.Add(-time.Hour)}}

		res, err := f.svc.ListAlerts(context.Background(), alert.Filter{}, defaultPage())
		require.NoError(t, err)
		assert.Equal(t, []string{"maintenance_overdue:a1"}, alertIDs(res.Alerts))
	})
}

func TestAlertService_ListAlerts_Pruning(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()
	f.provider.SetAssets(
		asset.Asset{ID: "a1", CurrentCondition: asset.ConditionDamaged, AvailableStatus: asset.StatusAvailable},
		asset.Asset{ID: "a2", CurrentCondition: asset.ConditionDamaged, AvailableStatus: asset.StatusAvailable},
	)

	_, err := f.svc.ListAlerts(ctx, alert.Filter{}, defaultPage())
	require.NoError(t, err)
	_, err = f.svc.PerformAction(ctx, alert.ActionRequest{AlertID: "asset_damaged:a2", Action: "acknowledge", Actor: "ops"})
	require.NoError(t, err)

	// Both repaired; only the untouched alert disappears
	f.provider.SetAssets(
		asset.Asset{ID: "a1", CurrentCondition: asset.ConditionGood, AvailableStatus: asset.StatusAvailable},
		asset.Asset{ID: "a2", CurrentCondition: asset.ConditionGood, AvailableStatus: asset.StatusAvailable},
	)
	res, err := f.svc.ListAlerts(ctx, alert.Filter{}, defaultPage())
	require.NoError(t, err)
	assert.Equal(t, []string{"asset_damaged:a2"}, alertIDs(res.Alerts))

	_, err = f.repo.Get(ctx, "asset_damaged:a1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeAlertNotFound))
}

func TestAlertService_ListAlerts_KeepsAlertsWhenEvaluatorFails(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()
	f.provider.SetAssets(overdueAsset("a1", 24*time.Hour))

	_, err := f.svc.ListAlerts(ctx, alert.Filter{}, defaultPage())
	require.NoError(t, err)

	f.provider.Fail(asset.SourceAssets, fmt.Errorf("timeout"))
	res, err := f.svc.ListAlerts(ctx, alert.Filter{}, defaultPage())
	require.NoError(t, err)
	assert.Equal(t, []string{"maintenance_overdue:a1"}, alertIDs(res.Alerts))
}

func TestAlertService_ListAlerts_NotifiesNewAlerts(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()
	require.NoError(t, f.prefs.Save(ctx, alert.DefaultPreferences("ops")))
	require.NoError(t, f.prefs.Save(ctx, alert.DefaultPreferences("lead")))
	f.provider.SetAssets(overdueAsset("a1", 24*time.Hour))

	_, err := f.svc.ListAlerts(ctx, alert.Filter{}, defaultPage())
	require.NoError(t, err)
	_, err = f.svc.ListAlerts(ctx, alert.Filter{}, defaultPage())
	require.NoError(t, err)
	f.svc.Wait()

	calls := f.dispatcher.Calls()
	require.Len(t, calls, 2, "only the first sighting is dispatched")
	assert.ElementsMatch(t, []string{"ops", "lead"}, []string{calls[0].RecipientID, calls[1].RecipientID})
	assert.Contains(t, f.dispatcher.Events(), notification.EventAlertCreated)
}

func TestAlertService_PerformAction_Transitions(t *testing.T) {
	tests := []struct {
		name       string
		req        alert.ActionRequest
		wantStatus alert.Status
		check      func(t *testing.T, a *alert.Alert)
	}{
		{
			name:       "acknowledge",
			req:        alert.ActionRequest{Action: "acknowledge", Actor: "ops"},
			wantStatus: alert.StatusAcknowledged,
			check: func(t *testing.T, a *alert.Alert) {
				assert.Equal(t, "ops", a.AcknowledgedBy)
				require.NotNil(t, a.AcknowledgedAt)
			},
		},
		{
			name:       "in progress",
			req:        alert.ActionRequest{Action: "in_progress", Actor: "ops"},
			wantStatus: alert.StatusInProgress,
		},
		{
			name:       "assign",
			req:        alert.ActionRequest{Action: "assign", Actor: "ops", AssignTo: "tech-1"},
			wantStatus: alert.StatusInProgress,
			check: func(t *testing.T, a *alert.Alert) {
				assert.Equal(t, "tech-1", a.AssignedTo)
				assert.Equal(t, "ops", a.AssignedBy)
			},
		},
		{
			name:       "resolve falls back to notes",
			req:        alert.ActionRequest{Action: "resolve", Actor: "ops", Notes: "replaced cable"},
			wantStatus: alert.StatusResolved,
			check: func(t *testing.T, a *alert.Alert) {
				assert.Equal(t, "replaced cable", a.Resolution)
				require.NotNil(t, a.ResolvedAt)
			},
		},
		{
			name:       "dismiss",
			req:        alert.ActionRequest{Action: "dismiss", Actor: "ops", Notes: "false positive"},
			wantStatus: alert.StatusDismissed,
			check: func(t *testing.T, a *alert.Alert) {
				assert.Equal(t, "false positive", a.DismissReason)
			},
		},
		{
			name:       "escalate raises priority one step",
			req:        alert.ActionRequest{Action: "escalate", Actor: "ops", Notes: "blocking class"},
			wantStatus: alert.StatusEscalated,
			check: func(t *testing.T, a *alert.Alert) {
				assert.Equal(t, alert.PriorityHigh, a.Priority)
				assert.Equal(t, "blocking class", a.EscalationNotes)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAlertFixture(t)
			f.provider.SetAssets(asset.Asset{ID: "a1", CurrentCondition: asset.ConditionPoor, AvailableStatus: asset.StatusAvailable})

			req := tt.req
			req.AlertID = "asset_damaged:a1"
			got, err := f.svc.PerformAction(context.Background(), req)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, got.Status)
			require.Len(t, got.History, 1)
			assert.Equal(t, alert.Action(tt.req.Action), got.History[0].Action)
			assert.Equal(t, "ops", got.History[0].PerformedBy)
			if tt.check != nil {
				tt.check(t, got)
			}

			stored, err := f.repo.Get(context.Background(), req.AlertID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
		})
	}
}

func TestAlertService_PerformAction_EscalateCritical(t *testing.T) {
	f := newAlertFixture(t)
	f.provider.SetAssets(overdueAsset("a1", 24*time.Hour))

	got, err := f.svc.PerformAction(context.Background(), alert.ActionRequest{
		AlertID: "maintenance_overdue:a1", Action: "escalate", Actor: "ops",
	})
	require.NoError(t, err)
	assert.Equal(t, alert.PriorityCritical, got.Priority)
	assert.Equal(t, alert.StatusEscalated, got.Status)
	require.Len(t, got.History, 1)
	assert.Equal(t, alert.ActionEscalate, got.History[0].Action)
}

func TestAlertService_PerformAction_ResolvedStaysResolved(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()
	f.provider.SetAssets(overdueAsset("a1", 24*time.Hour))

	_, err := f.svc.PerformAction(ctx, alert.ActionRequest{AlertID: "maintenance_overdue:a1", Action: "resolve", Actor: "ops"})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	res, err := f.svc.ListAlerts(ctx, alert.Filter{}, defaultPage())
	require.NoError(t, err)

	got := findAlert(t, res.Alerts, "maintenance_overdue:a1")
	assert.Equal(t, alert.StatusResolved, got.Status)
	resolves := 0
	for _, h := range got.History {
		if h.Action == alert.ActionResolve {
			resolves++
		}
	}
	assert.Equal(t, 1, resolves)

	_, err = f.svc.PerformAction(ctx, alert.ActionRequest{AlertID: "maintenance_overdue:a1", Action: "acknowledge", Actor: "ops"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeConflict), "got %v", err)
}

func TestAlertService_PerformAction_Errors(t *testing.T) {
	f := newAlertFixture(t)
	f.provider.SetAssets(overdueAsset("a1", 24*time.Hour))

	tests := []struct {
		name     string
		req      alert.ActionRequest
		wantCode string
	}{
		{"unknown action", alert.ActionRequest{AlertID: "maintenance_overdue:a1", Action: "snooze", Actor: "ops"}, errors.ErrCodeInvalidAction},
		{"unknown alert", alert.ActionRequest{AlertID: "maintenance_overdue:zz", Action: "acknowledge", Actor: "ops"}, errors.ErrCodeAlertNotFound},
		{"assign without target", alert.ActionRequest{AlertID: "maintenance_overdue:a1", Action: "assign", Actor: "ops"}, errors.ErrCodeValidation},
		{"missing alert id", alert.ActionRequest{Action: "acknowledge", Actor: "ops"}, errors.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PerformAction(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestAlertService_PerformAction_AssignNotifiesAssignee(t *testing.T) {
	f := newAlertFixture(t)
	f.provider.SetAssets(overdueAsset("a1", 24*time.Hour))

	_, err := f.svc.PerformAction(context.Background(), alert.ActionRequest{
		AlertID: "maintenance_overdue:a1", Action: "assign", Actor: "ops", AssignTo: "tech-7",
	})
	require.NoError(t, err)
	f.svc.Wait()

	calls := f.dispatcher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "tech-7", calls[0].RecipientID)
	assert.Contains(t, f.dispatcher.Events(), notification.EventAlertUpdated)
}

func TestAlertService_SweepEscalations(t *testing.T) {
	rules := []alert.EscalationRule{
		{Priority: alert.PriorityCritical, EscalateAfterMinutes: 15, EscalateTo: []string{"admin"}},
		{Priority: alert.PriorityMedium, EscalateAfterMinutes: 60, EscalateTo: []string{"admin"}},
	}
	f := newAlertFixture(t, WithEscalationRules(rules))
	ctx := context.Background()

	seed := []*alert.Alert{
		{ID: "maintenance_overdue:a1", Type: alert.TypeMaintenanceOverdue, Priority: alert.PriorityCritical,
			Status: alert.StatusNew, Timestamp: serviceNow.Add(-20 * time.Minute)},
		{ID: "maintenance_overdue:a2", Type: alert.TypeMaintenanceOverdue, Priority: alert.PriorityCritical,
			Status: alert.StatusResolved, Timestamp: serviceNow.Add(-20 * time.Minute),
			History: []alert.HistoryEntry{{ID: "h", Action: alert.ActionResolve, PerformedBy: "ops", PerformedAt: serviceNow}}},
		{ID: "asset_damaged:a3", Type: alert.TypeAssetDamaged, Priority: alert.PriorityMedium,
			Status: alert.StatusNew, Timestamp: serviceNow.Add(-30 * time.Minute)},
	}
	for _, a := range seed {
		require.NoError(t, f.repo.Upsert(ctx, a))
	}

	res, err := f.svc.SweepEscalations(ctx, serviceNow)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 1, res.Escalated)

	escalated, err := f.repo.Get(ctx, "maintenance_overdue:a1")
	require.NoError(t, err)
	assert.Equal(t, alert.StatusEscalated, escalated.Status)
	assert.Equal(t, alert.PriorityCritical, escalated.Priority)
	assert.Equal(t, alert.SystemActor, escalated.EscalatedBy)
	require.Len(t, escalated.History, 1)
	assert.Equal(t, "Auto-escalated after 15 minutes without resolution", escalated.History[0].Notes)

	resolved, err := f.repo.Get(ctx, "maintenance_overdue:a2")
	require.NoError(t, err)
	assert.Equal(t, alert.StatusResolved, resolved.Status)
	assert.Len(t, resolved.History, 1)

	medium, err := f.repo.Get(ctx, "asset_damaged:a3")
	require.NoError(t, err)
	assert.Equal(t, alert.StatusNew, medium.Status)

	f.svc.Wait()
	calls := f.dispatcher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "admin", calls[0].RecipientID)

	// An escalated critical alert is not escalated again
	again, err := f.svc.SweepEscalations(ctx, serviceNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, again.Escalated, "only the medium alert crosses its threshold")
}

func TestAlertService_SweepEscalations_PreferenceRules(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()

	prefs := alert.DefaultPreferences("lead")
	prefs.EscalationRules = []alert.EscalationRule{{Priority: alert.PriorityLow, EscalateAfterMinutes: 5, EscalateTo: []string{"lead", "ops"}}}
	require.NoError(t, f.prefs.Save(ctx, prefs))

	escalatedAt := serviceNow.Add(-3 * time.Minute)
	require.NoError(t, f.repo.Upsert(ctx, &alert.Alert{ID: "warranty_expiring:a1", Type: alert.TypeWarrantyExpiring,
		Priority: alert.PriorityLow, Status: alert.StatusNew, Timestamp: serviceNow.Add(-10 * time.Minute)}))
	require.NoError(t, f.repo.Upsert(ctx, &alert.Alert{ID: "warranty_expiring:a2", Type: alert.TypeWarrantyExpiring,
		Priority: alert.PriorityLow, Status: alert.StatusEscalated, Timestamp: serviceNow.Add(-10 * time.Minute), EscalatedAt: &escalatedAt}))

	res, err := f.svc.SweepEscalations(ctx, serviceNow)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Escalated)

	got, err := f.repo.Get(ctx, "warranty_expiring:a1")
	require.NoError(t, err)
	assert.Equal(t, alert.PriorityMedium, got.Priority)

	f.svc.Wait()
	assert.Len(t, f.dispatcher.Calls(), 2)
}

func TestAlertService_SweepEscalations_Reentrancy(t *testing.T) {
	f := newAlertFixture(t)
	f.svc.sweeping.Store(true)

	res, err := f.svc.SweepEscalations(context.Background(), serviceNow)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	f.svc.sweeping.Store(false)
	res, err = f.svc.SweepEscalations(context.Background(), serviceNow)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
}

func TestAlertService_Preferences(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()

	defaults, err := f.svc.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, defaults.Channels.Email)
	assert.False(t, defaults.Channels.SMS)

	tests := []struct {
		name    string
		prefs   alert.Preferences
		wantErr bool
	}{
		{
			name: "valid",
			prefs: alert.Preferences{
				Channels:        alert.Channels{Email: true, SMS: true},
				AlertTypes:      []alert.Type{alert.TypeMaintenanceOverdue},
				Priorities:      []alert.Priority{alert.PriorityCritical, alert.PriorityHigh},
				QuietHours:      alert.QuietHours{Enabled: true, Start: "22:00", End: "07:00", Timezone: "UTC"},
				EscalationRules: []alert.EscalationRule{{Priority: alert.PriorityHigh, EscalateAfterMinutes: 30}},
			},
		},
		{"bad clock", alert.Preferences{QuietHours: alert.QuietHours{Enabled: true, Start: "25:00", End: "07:00"}}, true},
		{"missing end", alert.Preferences{QuietHours: alert.QuietHours{Enabled: true, Start: "22:00"}}, true},
		{"unknown type", alert.Preferences{AlertTypes: []alert.Type{"fire"}}, true},
		{"unknown priority", alert.Preferences{Priorities: []alert.Priority{"urgent"}}, true},
		{"zero minute rule", alert.Preferences{EscalationRules: []alert.EscalationRule{{Priority: alert.PriorityHigh}}}, true},
		{"unknown timezone", alert.Preferences{QuietHours: alert.QuietHours{Timezone: "Mars/Olympus"}}, true},
		{"bad phone", alert.Preferences{Contact: alert.Contact{Phone: "555"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.prefs
			got, err := f.svc.UpdatePreferences(ctx, "u1", &p)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeValidation), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", got.RecipientID)
			assert.True(t, serviceNow.Equal(got.UpdatedAt))

			stored, err := f.svc.GetPreferences(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, got.QuietHours, stored.QuietHours)
		})
	}
}

func TestAlertService_GetAlert(t *testing.T) {
	f := newAlertFixture(t)
	f.provider.SetAssets(overdueAsset("a1", 24*time.Hour))
	ctx := context.Background()

	got, err := f.svc.GetAlert(ctx, "maintenance_overdue:a1")
	require.NoError(t, err)
	assert.Equal(t, alert.PriorityCritical, got.Priority)

	_, err = f.svc.GetAlert(ctx, "maintenance_overdue:missing")
	assert.True(t, errors.HasCode(err, errors.ErrCodeAlertNotFound))
}

func TestAlertService_Refresh(t *testing.T) {
	f := newAlertFixture(t)
	f.provider.SetAssets(overdueAsset("a1", 24*time.Hour), overdueAsset("a2", 24*time.Hour))
	ctx := context.Background()

	n, err := f.svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, err := f.repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func alertIDs(alerts []*alert.Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.ID
	}
	return out
}

func findAlert(t *testing.T, alerts []*alert.Alert, id string) *alert.Alert {
	t.Helper()
	for _, a := range alerts {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("alert %s not found in %v", id, alertIDs(alerts))
	return nil
}

// racingRepo runs a hook inside the first conditional write of each kind,
// standing in for an operator action that lands between read and write.
type racingRepo struct {
	*memory.AlertRepository
	beforeCreate  func()
	beforeRefresh func()
	beforePrune   func()
}

func runOnce(hook *func()) {
	if fn := *hook; fn != nil {
		*hook = nil
		fn()
	}
}

func (r *racingRepo) Create(ctx context.Context, a *alert.Alert) (bool, error) {
	runOnce(&r.beforeCreate)
	return r.AlertRepository.Create(ctx, a)
}

func (r *racingRepo) RefreshText(ctx context.Context, a *alert.Alert) (bool, error) {
	runOnce(&r.beforeRefresh)
	return r.AlertRepository.RefreshText(ctx, a)
}

func (r *racingRepo) DeleteUntouched(ctx context.Context, id string) (bool, error) {
	runOnce(&r.beforePrune)
	return r.AlertRepository.DeleteUntouched(ctx, id)
}

func TestAlertService_ListAlerts_ConcurrentActionSurvives(t *testing.T) {
	damaged := func(cond string) asset.Asset {
		return asset.Asset{ID: "a1", CurrentCondition: cond, AvailableStatus: asset.StatusAvailable}
	}

	tests := []struct {
		name    string
		alertID string
		setup   func(t *testing.T, repo *racingRepo, provider *testutil.FakeSnapshotProvider, clock *testutil.Clock, list func(), resolve func())
	}{
		{
			name:    "resolved while first seen",
			alertID: "maintenance_overdue:a1",
			setup: func(t *testing.T, repo *racingRepo, provider *testutil.FakeSnapshotProvider, clock *testutil.Clock, list func(), resolve func()) {
				provider.SetAssets(overdueAsset("a1", 48*time.Hour))
				repo.beforeCreate = resolve
				list()
			},
		},
		{
			name:    "resolved while text refreshes",
			alertID: "maintenance_overdue:a1",
			setup: func(t *testing.T, repo *racingRepo, provider *testutil.FakeSnapshotProvider, clock *testutil.Clock, list func(), resolve func()) {
				provider.SetAssets(overdueAsset("a1", 48*time.Hour))
				list()
				repo.beforeRefresh = resolve
				clock.Advance(24 * time.Hour)
				list()
			},
		},
		{
			name:    "resolved while cleared alert is pruned",
			alertID: "asset_damaged:a1",
			setup: func(t *testing.T, repo *racingRepo, provider *testutil.FakeSnapshotProvider, clock *testutil.Clock, list func(), resolve func()) {
				provider.SetAssets(damaged(asset.ConditionDamaged))
				list()
				provider.SetAssets(damaged(asset.ConditionGood))
				repo.beforePrune = resolve
				list()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := &racingRepo{AlertRepository: memory.NewAlertRepository()}
			provider := testutil.NewFakeSnapshotProvider()
			clock := testutil.NewClock(serviceNow)
			svc := NewAlertService(repo, memory.NewPreferenceRepository(), provider, &testutil.RecordingDispatcher{}, logger.Nop(), WithClock(clock.Now))
			t.Cleanup(svc.Wait)

			list := func() {
				_, err := svc.ListAlerts(ctx, alert.Filter{}, defaultPage())
				require.NoError(t, err)
			}
			resolve := func() {
				_, err := svc.PerformAction(ctx, alert.ActionRequest{AlertID: tt.alertID, Action: "resolve", Actor: "ops"})
				require.NoError(t, err)
			}
			tt.setup(t, repo, provider, clock, list, resolve)

			got, err := repo.Get(ctx, tt.alertID)
			require.NoError(t, err)
			assert.Equal(t, alert.StatusResolved, got.Status)
			assert.Equal(t, "ops", got.ResolvedBy)
			require.Len(t, got.History, 1)
			assert.Equal(t, alert.ActionResolve, got.History[0].Action)
		})
	}
}

func TestAlertService_NotifyNew_LogsFailedDeliveries(t *testing.T) {
	var buf bytes.Buffer
	dispatcher := &testutil.RecordingDispatcher{FailWith: "smtp timeout"}
	prefs := memory.NewPreferenceRepository()
	provider := testutil.NewFakeSnapshotProvider()
	clock := testutil.NewClock(serviceNow)
	log := logger.New(logger.Config{Level: "warn", Output: &buf})
	svc := NewAlertService(memory.NewAlertRepository(), prefs, provider, dispatcher, log, WithClock(clock.Now))

	ctx := context.Background()
	require.NoError(t, prefs.Save(ctx, alert.DefaultPreferences("ops")))
	provider.SetAssets(overdueAsset("a1", 24*time.Hour))

	_, err := svc.ListAlerts(ctx, alert.Filter{}, defaultPage())
	require.NoError(t, err)
	svc.Wait()

	out := buf.String()
	assert.Contains(t, out, "Notification delivery failed")
	assert.Contains(t, out, `"alert_id":"maintenance_overdue:a1"`)
	assert.Contains(t, out, `"recipient_id":"ops"`)
	assert.Contains(t, out, "smtp timeout")
}
