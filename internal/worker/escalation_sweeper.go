package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/logger"
)

// DefaultSchedule runs the sweep every five minutes
const DefaultSchedule = "@every 5m"

// EscalationSweeper periodically refreshes stored alerts and escalates the
// ones left unaddressed past their rule's timeout
type EscalationSweeper struct {
	alerts   alert.Service
	schedule string
	timeout  time.Duration
	now      func() time.Time
	cron     *cron.Cron
	logger   *logger.Logger
}

// NewEscalationSweeper creates a new escalation sweeper worker
func NewEscalationSweeper(alerts alert.Service, schedule string, log *logger.Logger) *EscalationSweeper {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	log = log.Component("escalation_sweeper")
	return &EscalationSweeper{
		alerts:   alerts,
		schedule: schedule,
		timeout:  2 * time.Minute,
		now:      time.Now,
		logger:   log,
		cron: cron.New(
			cron.WithLogger(log.Cron()),
			cron.WithChain(
				cron.Recover(log.Cron()),
				cron.SkipIfStillRunning(log.Cron()),
			),
		),
	}
}

// Start registers the sweep job and starts the scheduler
func (s *EscalationSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithFields(map[string]interface{}{
		"schedule": s.schedule,
	}).Info("Starting escalation sweeper worker")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish or ctx to expire
func (s *EscalationSweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Escalation sweeper worker stopped")
	case <-ctx.Done():
		s.logger.Warn("Escalation sweeper did not stop before deadline")
	}
}

// RunOnce refreshes the store from a live evaluation, then sweeps escalations.
// A failed refresh does not prevent the sweep over what is already stored.
func (s *EscalationSweeper) RunOnce(ctx context.Context) *alert.SweepResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	created, err := s.alerts.Refresh(ctx)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to refresh alerts before sweep")
	} else if created > 0 {
		s.logger.WithFields(map[string]interface{}{
			"created": created,
		}).Info("Refreshed alerts")
	}

	result, err := s.alerts.SweepEscalations(ctx, s.now())
	if err != nil {
		s.logger.ErrorWithErr(err, "Escalation sweep failed")
		return nil
	}
	if result.Skipped {
		s.logger.Debug("Escalation sweep already running, skipped")
		return result
	}

	s.logger.WithFields(map[string]interface{}{
		"checked":     result.Checked,
		"escalated":   result.Escalated,
		"duration_ms": result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}).Info("Completed escalation sweep")
	return result
}
