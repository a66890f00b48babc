package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/errors"
)

func TestAlertRepository_UpsertAppendsHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertRepository()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	a := &alert.Alert{ID: "maintenance_due:a1", Status: alert.StatusNew, Timestamp: now}
	require.NoError(t, repo.Upsert(ctx, a))

	a.Status = alert.StatusAcknowledged
	a.History = []alert.HistoryEntry{{ID: "h1", Action: alert.ActionAcknowledge, PerformedAt: now}}
	require.NoError(t, repo.Upsert(ctx, a))

	// A stale copy without the first entry must not drop it
	stale := &alert.Alert{ID: a.ID, Status: alert.StatusResolved, Timestamp: now,
		History: []alert.HistoryEntry{{ID: "h2", Action: alert.ActionResolve, PerformedAt: now}}}
	require.NoError(t, repo.Upsert(ctx, stale))

	got, err := repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.StatusResolved, got.Status)
	require.Len(t, got.History, 2)
	assert.Equal(t, "h1", got.History[0].ID)
	assert.Equal(t, "h2", got.History[1].ID)
}

func TestAlertRepository_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertRepository()
	require.NoError(t, repo.Upsert(ctx, &alert.Alert{ID: "x", Title: "original"}))

	got, err := repo.Get(ctx, "x")
	require.NoError(t, err)
	got.Title = "changed"

	again, err := repo.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Title)
}

func TestAlertRepository_Missing(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertRepository()

	_, err := repo.Get(ctx, "nope")
	assert.True(t, errors.HasCode(err, errors.ErrCodeAlertNotFound))

	err = repo.Delete(ctx, "nope")
	assert.True(t, errors.HasCode(err, errors.ErrCodeAlertNotFound))
}

func TestAlertRepository_AllAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertRepository()
	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, repo.Upsert(ctx, &alert.Alert{ID: id}))
	}

	require.NoError(t, repo.Delete(ctx, "b"))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "c", all[1].ID)
}

func TestPreferenceRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPreferenceRepository()

	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	p := alert.DefaultPreferences("u1")
	p.EscalationRules = []alert.EscalationRule{{Priority: alert.PriorityHigh, EscalateAfterMinutes: 30, EscalateTo: []string{"lead"}}}
	require.NoError(t, repo.Save(ctx, p))
	p.EscalationRules[0].EscalateTo[0] = "mutated"

	got, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "lead", got.EscalationRules[0].EscalateTo[0])

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.Error(t, repo.Save(ctx, &alert.Preferences{}))
}

func TestAlertRepository_ConditionalWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertRepository()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	a := &alert.Alert{ID: "maintenance_due:a1", Status: alert.StatusNew, Message: "due in 3 days", Timestamp: now}
	created, err := repo.Create(ctx, a)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, &alert.Alert{ID: a.ID, Status: alert.StatusNew, Message: "other"})
	require.NoError(t, err)
	assert.False(t, created)

	ok, err := repo.RefreshText(ctx, &alert.Alert{ID: a.ID, Message: "due in 2 days", Status: alert.StatusResolved})
	require.NoError(t, err)
	assert.True(t, ok)
	got, _ := repo.Get(ctx, a.ID)
	assert.Equal(t, "due in 2 days", got.Message)
	assert.Equal(t, alert.StatusNew, got.Status, "refresh never writes status")

	got.Status = alert.StatusDismissed
	got.History = []alert.HistoryEntry{{ID: "h1", Action: alert.ActionDismiss, PerformedAt: now}}
	require.NoError(t, repo.Upsert(ctx, got))

	ok, err = repo.RefreshText(ctx, &alert.Alert{ID: a.ID, Message: "due in 1 day"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeleteUntouched(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.StatusDismissed, got.Status)
	assert.Len(t, got.History, 1)

	ok, err = repo.DeleteUntouched(ctx, "maintenance_due:missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
