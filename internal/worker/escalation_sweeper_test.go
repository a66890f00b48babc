package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/logger"
)

type stubAlertService struct {
	alert.Service

	mu         sync.Mutex
	calls      []string
	refreshErr error
	sweepErr   error
	sweepAt    time.Time
}

func (s *stubAlertService) Refresh(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "refresh")
	return 2, s.refreshErr
}

func (s *stubAlertService) SweepEscalations(ctx context.Context, now time.Time) (*alert.SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "sweep")
	s.sweepAt = now
	if s.sweepErr != nil {
		return nil, s.sweepErr
	}
	return &alert.SweepResult{Checked: 3, Escalated: 1, StartedAt: now, FinishedAt: now}, nil
}

func (s *stubAlertService) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func TestEscalationSweeper_RunOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		refreshErr error
		sweepErr   error
		wantNil    bool
	}{
		{name: "refresh then sweep"},
		{name: "refresh failure still sweeps", refreshErr: errors.New("snapshot down")},
		{name: "sweep failure", sweepErr: errors.New("store down"), wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubAlertService{refreshErr: tt.refreshErr, sweepErr: tt.sweepErr}
			s := NewEscalationSweeper(svc, "", logger.Nop())
			s.now = func() time.Time { return now }

			result := s.RunOnce(context.Background())

			assert.Equal(t, []string{"refresh", "sweep"}, svc.Calls())
			assert.Equal(t, now, svc.sweepAt)
			if tt.wantNil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, 1, result.Escalated)
		})
	}
}

func TestEscalationSweeper_Schedule(t *testing.T) {
	t.Run("invalid schedule", func(t *testing.T) {
		s := NewEscalationSweeper(&stubAlertService{}, "not a schedule", logger.Nop())
		assert.Error(t, s.Start())
	})

	t.Run("runs on schedule", func(t *testing.T) {
		svc := &stubAlertService{}
		s := NewEscalationSweeper(svc, "@every 1s", logger.Nop())
		require.NoError(t, s.Start())

		assert.Eventually(t, func() bool { return len(svc.Calls()) >= 2 }, 3*time.Second, 50*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})

	assert.Equal(t, "@every 5m", DefaultSchedule)
}
