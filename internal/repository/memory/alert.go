package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/errors"
)

// AlertRepository is an in-process alert store
type AlertRepository struct {
	mu     sync.RWMutex
	alerts map[string]*alert.Alert
}

// NewAlertRepository creates an empty store
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{alerts: make(map[string]*alert.Alert)}
}

func (r *AlertRepository) Get(ctx context.Context, id string) (*alert.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, errors.AlertNotFound(id)
	}
	return a.Clone(), nil
}

func (r *AlertRepository) Upsert(ctx context.Context, a *alert.Alert) error {
	if a == nil || a.ID == "" {
		return errors.BadRequest("alert id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := a.Clone()
	if stored, ok := r.alerts[a.ID]; ok {
		next.History = alert.MergeHistory(stored.History, a.History)
	} else if next.History == nil {
		next.History = []alert.HistoryEntry{}
	}
	r.alerts[a.ID] = next
	return nil
}

func (r *AlertRepository) All(ctx context.Context) ([]*alert.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*alert.Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.alerts[id]; !ok {
		return errors.AlertNotFound(id)
	}
	delete(r.alerts, id)
	return nil
}

func (r *AlertRepository) Create(ctx context.Context, a *alert.Alert) (bool, error) {
	if a == nil || a.ID == "" {
		return false, errors.BadRequest("alert id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.alerts[a.ID]; ok {
		return false, nil
	}
	next := a.Clone()
	if next.History == nil {
		next.History = []alert.HistoryEntry{}
	}
	r.alerts[a.ID] = next
	return true, nil
}

func (r *AlertRepository) RefreshText(ctx context.Context, a *alert.Alert) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.alerts[a.ID]
	if !ok || !stored.IsUntouched() {
		return false, nil
	}
	stored.Title = a.Title
	stored.Message = a.Message
	stored.Priority = a.Priority
	stored.Department = a.Department
	stored.UpdatedAt = a.UpdatedAt
	return true, nil
}

func (r *AlertRepository) DeleteUntouched(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.alerts[id]
	if !ok || !stored.IsUntouched() {
		return false, nil
	}
	delete(r.alerts, id)
	return true, nil
}

// PreferenceRepository is an in-process preferences store
type PreferenceRepository struct {
	mu    sync.RWMutex
	prefs map[string]*alert.Preferences
}

// NewPreferenceRepository creates an empty store
func NewPreferenceRepository() *PreferenceRepository {
	return &PreferenceRepository{prefs: make(map[string]*alert.Preferences)}
}

func (r *PreferenceRepository) Get(ctx context.Context, recipientID string) (*alert.Preferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.prefs[recipientID]
	if !ok {
		return nil, nil
	}
	return clonePreferences(p), nil
}

func (r *PreferenceRepository) Save(ctx context.Context, p *alert.Preferences) error {
	if p == nil || p.RecipientID == "" {
		return errors.BadRequest("recipient id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs[p.RecipientID] = clonePreferences(p)
	return nil
}

func (r *PreferenceRepository) List(ctx context.Context) ([]*alert.Preferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*alert.Preferences, 0, len(r.prefs))
	for _, p := range r.prefs {
		out = append(out, clonePreferences(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecipientID < out[j].RecipientID })
	return out, nil
}

func clonePreferences(p *alert.Preferences) *alert.Preferences {
	c := *p
	c.AlertTypes = append([]alert.Type(nil), p.AlertTypes...)
	c.Priorities = append([]alert.Priority(nil), p.Priorities...)
	c.EscalationRules = make([]alert.EscalationRule, len(p.EscalationRules))
	for i, rule := range p.EscalationRules {
		rule.EscalateTo = append([]string(nil), rule.EscalateTo...)
		c.EscalationRules[i] = rule
	}
	return &c
}
