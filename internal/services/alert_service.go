package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pratik-mahalle/assetwatch/internal/detector"
	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/domain/asset"
	"github.com/pratik-mahalle/assetwatch/internal/domain/notification"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/errors"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/logger"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/metrics"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/validator"
)

const notifyTimeout = 30 * time.Second

var _ alert.Service = (*AlertService)(nil)

// AlertService implements alert.Service
type AlertService struct {
	repo       alert.Repository
	prefs      alert.PreferenceRepository
	snapshots  asset.SnapshotProvider
	dispatcher notification.Dispatcher
	engine     *detector.Engine
	validator  *validator.Validator
	logger     *logger.Logger

	escalationRules []alert.EscalationRule
	now             func() time.Time
	newID           func() string

	sweeping atomic.Bool
	pending  sync.WaitGroup
}

// AlertServiceOption customises an AlertService
type AlertServiceOption func(*AlertService)

// WithClock replaces the wall clock
func WithClock(now func() time.Time) AlertServiceOption {
	return func(s *AlertService) { s.now = now }
}

// WithEscalationRules sets the rules applied to every alert regardless of
// stored preferences
func WithEscalationRules(rules []alert.EscalationRule) AlertServiceOption {
	return func(s *AlertService) { s.escalationRules = rules }
}

// WithEngine replaces the default rule set
func WithEngine(engine *detector.Engine) AlertServiceOption {
	return func(s *AlertService) { s.engine = engine }
}

// NewAlertService creates a new alert service
func NewAlertService(
	repo alert.Repository,
	prefs alert.PreferenceRepository,
	snapshots asset.SnapshotProvider,
	dispatcher notification.Dispatcher,
	log *logger.Logger,
	opts ...AlertServiceOption,
) *AlertService {
	s := &AlertService{
		repo:       repo,
		prefs:      prefs,
		snapshots:  snapshots,
		dispatcher: dispatcher,
		engine:     detector.NewEngine(),
		validator:  validator.New(),
		logger:     log.Component("alert_service"),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListAlerts returns the filtered, sorted page of current alerts
func (s *AlertService) ListAlerts(ctx context.Context, filter alert.Filter, page alert.Page) (*alert.ListResult, error) {
	if err := filter.Validate(page); err != nil {
		return nil, errors.ValidationError("Invalid alert query", err)
	}

	alerts, fresh, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	s.notifyNew(ctx, fresh)

	now := s.now()
	filtered := make([]*alert.Alert, 0, len(alerts))
	for _, a := range alerts {
		if filter.Matches(a, now) {
			filtered = append(filtered, a)
		}
	}
	alert.SortByUrgency(filtered)

	total := len(filtered)
	start, end := page.Offset, page.Offset+page.Limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &alert.ListResult{
		Alerts:     filtered[start:end],
		Total:      total,
		Statistics: alert.ComputeStatistics(filtered, now),
		Pagination: alert.Pagination{
			Limit:   page.Limit,
			Offset:  page.Offset,
			Total:   total,
			HasMore: end < total,
		},
	}, nil
}

// GetAlert returns a stored alert, or one produced by a fresh evaluation
func (s *AlertService) GetAlert(ctx context.Context, id string) (*alert.Alert, error) {
	return s.lookup(ctx, id)
}

// Refresh evaluates and persists current alerts
func (s *AlertService) Refresh(ctx context.Context) (int, error) {
	_, fresh, err := s.current(ctx)
	if err != nil {
		return 0, err
	}
	s.notifyNew(ctx, fresh)
	return len(fresh), nil
}

// PerformAction applies an operator action to an alert
func (s *AlertService) PerformAction(ctx context.Context, req alert.ActionRequest) (*alert.Alert, error) {
	action, err := alert.ParseAction(req.Action)
	if err != nil {
		return nil, errors.InvalidAction(req.Action, alert.Actions)
	}
	if req.AlertID == "" {
		return nil, errors.ValidationError("alertId is required", alert.FieldErrors{
			{Field: "alertId", Tag: "required", Message: "alertId is required"},
		})
	}
	if req.Actor == "" {
		return nil, errors.Unauthorized("An authenticated actor is required")
	}
	if action == alert.ActionAssign && req.AssignTo == "" {
		return nil, errors.ValidationError("assignTo is required for assign", alert.FieldErrors{
			{Field: "assignTo", Tag: "required", Message: "assignTo is required for assign"},
		})
	}

	a, err := s.lookup(ctx, req.AlertID)
	if err != nil {
		return nil, err
	}

	if err := a.Apply(action, req, s.newID(), s.now()); err != nil {
		switch {
		case stderrors.Is(err, alert.ErrTerminal):
			return nil, errors.Conflict(fmt.Sprintf("Alert %s is already %s", a.ID, a.Status))
		case stderrors.Is(err, alert.ErrAssigneeRequired):
			return nil, errors.ValidationError(err.Error(), nil)
		default:
			return nil, errors.InvalidAction(req.Action, alert.Actions)
		}
	}

	if err := s.repo.Upsert(ctx, a); err != nil {
		return nil, err
	}

	metrics.RecordAction(string(action))
	s.logger.WithFields(map[string]interface{}{
		"alert_id": a.ID,
		"action":   action,
		"actor":    req.Actor,
		"status":   a.Status,
	}).Info("Alert action performed")

	snapshot := a.Clone()
	s.background(ctx, func(ctx context.Context) {
		s.dispatcher.Publish(ctx, notification.EventAlertUpdated, snapshot)
		switch action {
		case alert.ActionEscalate:
			metrics.RecordEscalation("manual")
			s.dispatcher.Publish(ctx, notification.EventAlertEscalated, snapshot)
		case alert.ActionAssign:
			s.dispatchTo(ctx, snapshot, []string{snapshot.AssignedTo})
		}
	})

	return a, nil
}

// GetPreferences returns stored preferences or the defaults
func (s *AlertService) GetPreferences(ctx context.Context, recipientID string) (*alert.Preferences, error) {
	p, err := s.prefs.Get(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return alert.DefaultPreferences(recipientID), nil
	}
	return p, nil
}

// UpdatePreferences validates and stores a recipient's preferences
func (s *AlertService) UpdatePreferences(ctx context.Context, recipientID string, prefs *alert.Preferences) (*alert.Preferences, error) {
	if prefs == nil {
		return nil, errors.BadRequest("Preferences are required")
	}
	if recipientID == "" {
		return nil, errors.Unauthorized("A recipient is required")
	}

	if errs := s.validator.Validate(prefs); len(errs) > 0 {
		return nil, errors.ValidationError("Invalid preferences", errs)
	}

	stored := *prefs
	stored.RecipientID = recipientID
	stored.UpdatedAt = s.now()
	if err := s.prefs.Save(ctx, &stored); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"recipient_id": recipientID,
		"rules":        len(stored.EscalationRules),
	}).Info("Alert preferences updated")

	return &stored, nil
}

// SweepEscalations escalates alerts left unaddressed past their timeout.
// A call made while another sweep runs returns immediately with Skipped set.
func (s *AlertService) SweepEscalations(ctx context.Context, now time.Time) (*alert.SweepResult, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Debug("Escalation sweep already running, skipping")
		return &alert.SweepResult{Skipped: true, StartedAt: now, FinishedAt: now}, nil
	}
	defer s.sweeping.Store(false)

	started := time.Now()
	defer func() { metrics.RecordSweep(time.Since(started)) }()

	alerts, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	rules := s.rulesByPriority(ctx)
	res := &alert.SweepResult{StartedAt: now}

	for _, a := range alerts {
		if ctx.Err() != nil {
			break
		}
		if a.IsTerminal() {
			continue
		}
		res.Checked++

		if a.Priority == alert.PriorityCritical && a.Status == alert.StatusEscalated {
			continue
		}

		since := a.Timestamp
		if a.EscalatedAt != nil {
			since = *a.EscalatedAt
		}
		elapsed := now.Sub(since)

		var (
			matched    bool
			minutes    int
			recipients []string
		)
		for _, rule := range rules[a.Priority] {
			if elapsed < rule.After() {
				continue
			}
			if !matched || rule.EscalateAfterMinutes < minutes {
				minutes = rule.EscalateAfterMinutes
			}
			matched = true
			recipients = appendUnique(recipients, rule.EscalateTo...)
		}
		if !matched {
			continue
		}

		from := a.Priority
		notes := fmt.Sprintf("Auto-escalated after %d minutes without resolution", minutes)
		a.Escalate(s.newID(), alert.SystemActor, notes, now)

		if err := s.repo.Upsert(ctx, a); err != nil {
			s.logger.WithFields(map[string]interface{}{"alert_id": a.ID}).ErrorWithErr(err, "Failed to store escalated alert")
			continue
		}
		res.Escalated++
		metrics.RecordEscalation("sweep")

		s.logger.WithFields(map[string]interface{}{
			"alert_id":   a.ID,
			"from":       from,
			"to":         a.Priority,
			"recipients": recipients,
		}).Info("Alert auto-escalated")

		escalated := a.Clone()
		targets := recipients
		s.background(ctx, func(ctx context.Context) {
			s.dispatcher.Publish(ctx, notification.EventAlertEscalated, escalated)
			s.dispatchTo(ctx, escalated, targets)
		})
	}

	res.FinishedAt = s.now()
	return res, nil
}

// Wait blocks until background notifications have finished
func (s *AlertService) Wait() {
	s.pending.Wait()
}

// current evaluates the snapshot and merges it with the store. The second
// result holds alerts seen for the first time.
func (s *AlertService) current(ctx context.Context) ([]*alert.Alert, []*alert.Alert, error) {
	now := s.now()
	snap := s.snapshot(ctx)

	started := time.Now()
	res := s.engine.Run(snap, now)
	metrics.RecordEvaluation(time.Since(started))

	for _, f := range res.Failures {
		metrics.RecordEvaluatorFailure(f.Evaluator)
		s.logger.WithFields(map[string]interface{}{"evaluator": f.Evaluator}).WarnWithErr(f.Err, "Alert evaluator failed")
	}

	stored, err := s.repo.All(ctx)
	if err != nil {
		return nil, nil, err
	}
	storedByID := make(map[string]*alert.Alert, len(stored))
	for _, a := range stored {
		storedByID[a.ID] = a
	}

	merged := make([]*alert.Alert, 0, len(res.Alerts)+len(stored))
	var fresh []*alert.Alert
	produced := make(map[string]bool, len(res.Alerts))

	for _, candidate := range res.Alerts {
		produced[candidate.ID] = true
		existing, ok := storedByID[candidate.ID]

		switch {
		case !ok:
			created, err := s.repo.Create(ctx, candidate)
			if err != nil {
				s.logger.WithFields(map[string]interface{}{"alert_id": candidate.ID}).WarnWithErr(err, "Failed to record new alert")
			}
			if err == nil && !created {
				// stored by a concurrent action since the read
				merged = append(merged, s.reload(ctx, candidate))
				continue
			}
			metrics.RecordAlertGenerated(string(candidate.Type), string(candidate.Priority))
			fresh = append(fresh, candidate)
			merged = append(merged, candidate)

		case existing.HasHistory():
			merged = append(merged, existing)

		default:
			if refresh(existing, candidate, now) {
				ok, err := s.repo.RefreshText(ctx, existing)
				if err != nil {
					s.logger.WithFields(map[string]interface{}{"alert_id": existing.ID}).WarnWithErr(err, "Failed to refresh alert")
				} else if !ok {
					existing = s.reload(ctx, existing)
				}
			}
			merged = append(merged, existing)
		}
	}

	for _, a := range stored {
		if produced[a.ID] {
			continue
		}
		if a.IsUntouched() && s.cleared(a, res) {
			pruned, err := s.repo.DeleteUntouched(ctx, a.ID)
			switch {
			case err != nil:
				s.logger.WithFields(map[string]interface{}{"alert_id": a.ID}).WarnWithErr(err, "Failed to prune cleared alert")
				merged = append(merged, a)
			case !pruned:
				if current, err := s.repo.Get(ctx, a.ID); err == nil {
					merged = append(merged, current)
				}
			}
			continue
		}
		merged = append(merged, a)
	}

	setActiveGauge(merged)
	return merged, fresh, nil
}

// reload returns the stored version of a, or a itself when it cannot be read
func (s *AlertService) reload(ctx context.Context, a *alert.Alert) *alert.Alert {
	stored, err := s.repo.Get(ctx, a.ID)
	if err != nil {
		return a
	}
	return stored
}

// cleared reports whether the rule owning a ran successfully without producing it
func (s *AlertService) cleared(a *alert.Alert, res *detector.Result) bool {
	t, subject, ok := alert.SplitID(a.ID)
	if !ok {
		return false
	}
	ev, ok := s.engine.Owner(t, subject)
	return ok && res.Succeeded[ev.Name]
}

// refresh copies re-derived text onto a stored alert, keeping its timestamp
func refresh(existing, candidate *alert.Alert, now time.Time) bool {
	if existing.Title == candidate.Title &&
		existing.Message == candidate.Message &&
		existing.Priority == candidate.Priority &&
		existing.Department == candidate.Department {
		return false
	}
	existing.Title = candidate.Title
	existing.Message = candidate.Message
	existing.Priority = candidate.Priority
	existing.Department = candidate.Department
	existing.UpdatedAt = now
	return true
}

// snapshot reads every source in parallel. A failing source is recorded in
// the snapshot and does not stop the others.
func (s *AlertService) snapshot(ctx context.Context) *asset.Snapshot {
	snap := &asset.Snapshot{Failed: make(map[asset.Source]error)}
	var mu sync.Mutex

	var g errgroup.Group
	fetch := func(src asset.Source, read func() error) {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic reading %s: %v\n%s", src, r, debug.Stack())
				}
				if err != nil {
					mu.Lock()
					snap.Failed[src] = err
					mu.Unlock()
					metrics.RecordSnapshotFailure(string(src))
					s.logger.WithFields(map[string]interface{}{"source": src}).WarnWithErr(err, "Snapshot source unavailable")
				}
			}()
			return read()
		})
	}

	fetch(asset.SourceAssets, func() (err error) {
		snap.Assets, err = s.snapshots.ListAssets(ctx)
		return err
	})
	fetch(asset.SourceRequests, func() (err error) {
		snap.PendingRequests, err = s.snapshots.ListPendingRequests(ctx)
		return err
	})
	fetch(asset.SourceIssues, func() (err error) {
		snap.OpenIssues, err = s.snapshots.ListOpenIssues(ctx)
		return err
	})
	fetch(asset.SourceReturns, func() (err error) {
		snap.OverdueReturns, err = s.snapshots.ListOverdueReturns(ctx)
		return err
	})

	// Failures are already recorded per source
	_ = g.Wait()
	return snap
}

// lookup finds an alert in the store, falling back to a fresh evaluation
func (s *AlertService) lookup(ctx context.Context, id string) (*alert.Alert, error) {
	a, err := s.repo.Get(ctx, id)
	if err == nil {
		return a, nil
	}
	if !errors.HasCode(err, errors.ErrCodeAlertNotFound) {
		return nil, err
	}

	alerts, fresh, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	s.notifyNew(ctx, fresh)

	for _, candidate := range alerts {
		if candidate.ID == id {
			return candidate.Clone(), nil
		}
	}
	return nil, errors.AlertNotFound(id)
}

func (s *AlertService) rulesByPriority(ctx context.Context) map[alert.Priority][]alert.EscalationRule {
	rules := make(map[alert.Priority][]alert.EscalationRule)
	for _, r := range s.escalationRules {
		rules[r.Priority] = append(rules[r.Priority], r)
	}

	prefs, err := s.prefs.List(ctx)
	if err != nil {
		s.logger.WarnWithErr(err, "Failed to load escalation rules from preferences")
		return rules
	}
	for _, p := range prefs {
		for _, r := range p.EscalationRules {
			rules[r.Priority] = append(rules[r.Priority], r)
		}
	}
	return rules
}

// notifyNew hands first-seen alerts to every recipient with stored preferences
func (s *AlertService) notifyNew(ctx context.Context, fresh []*alert.Alert) {
	if len(fresh) == 0 {
		return
	}
	alerts := make([]*alert.Alert, len(fresh))
	for i, a := range fresh {
		alerts[i] = a.Clone()
	}

	s.background(ctx, func(ctx context.Context) {
		recipients, err := s.prefs.List(ctx)
		if err != nil {
			s.logger.WarnWithErr(err, "Failed to load recipients for new alerts")
			return
		}
		for _, a := range alerts {
			s.dispatcher.Publish(ctx, notification.EventAlertCreated, a)
			for _, p := range recipients {
				s.deliver(ctx, a, p)
			}
		}
	})
}

// dispatchTo notifies named recipients, using defaults for unknown ones
func (s *AlertService) dispatchTo(ctx context.Context, a *alert.Alert, recipientIDs []string) {
	for _, id := range recipientIDs {
		p, err := s.GetPreferences(ctx, id)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{"recipient_id": id}).WarnWithErr(err, "Failed to load preferences")
			p = alert.DefaultPreferences(id)
		}
		s.deliver(ctx, a, p)
	}
}

// deliver dispatches a to one recipient and logs channels that failed
func (s *AlertService) deliver(ctx context.Context, a *alert.Alert, p *alert.Preferences) {
	res := s.dispatcher.Dispatch(ctx, a, p)
	if res == nil || !res.Failed() {
		return
	}
	for _, d := range res.Deliveries {
		if d.Status != notification.DeliveryStatusFailed {
			continue
		}
		s.logger.WithFields(map[string]interface{}{
			"alert_id":     a.ID,
			"recipient_id": p.RecipientID,
			"channel":      string(d.Channel),
			"error":        d.Error,
		}).Warn("Notification delivery failed")
	}
}

// background runs fn detached from the caller's cancellation
func (s *AlertService) background(ctx context.Context, fn func(ctx context.Context)) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error(fmt.Sprintf("notification task panicked: %v", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func setActiveGauge(alerts []*alert.Alert) {
	counts := make(map[alert.Priority]int, len(alert.Priorities))
	for _, a := range alerts {
		if !a.IsTerminal() {
			counts[a.Priority]++
		}
	}
	for _, p := range alert.Priorities {
		metrics.SetActiveAlerts(string(p), float64(counts[p]))
	}
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}
