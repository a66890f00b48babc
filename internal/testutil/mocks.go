package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/domain/asset"
	"github.com/pratik-mahalle/assetwatch/internal/domain/notification"
)

// FakeSnapshotProvider is a settable asset.SnapshotProvider
type FakeSnapshotProvider struct {
	mu       sync.Mutex
	Assets   []asset.Asset
	Requests []asset.Request
	Issues   []asset.Issue
	Returns  []asset.Return
	Errors   map[asset.Source]error
	Calls    map[asset.Source]int
}

func NewFakeSnapshotProvider() *FakeSnapshotProvider {
	return &FakeSnapshotProvider{
		Errors: make(map[asset.Source]error),
		Calls:  make(map[asset.Source]int),
	}
}

// Fail makes reads of src return err
func (f *FakeSnapshotProvider) Fail(src asset.Source, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[src] = err
}

// SetAssets replaces the asset list
func (f *FakeSnapshotProvider) SetAssets(assets ...asset.Asset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Assets = assets
}

func (f *FakeSnapshotProvider) record(src asset.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[src]++
	return f.Errors[src]
}

func (f *FakeSnapshotProvider) ListAssets(ctx context.Context) ([]asset.Asset, error) {
	if err := f.record(asset.SourceAssets); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]asset.Asset(nil), f.Assets...), nil
}

func (f *FakeSnapshotProvider) ListPendingRequests(ctx context.Context) ([]asset.Request, error) {
	if err := f.record(asset.SourceRequests); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]asset.Request(nil), f.Requests...), nil
}

func (f *FakeSnapshotProvider) ListOpenIssues(ctx context.Context) ([]asset.Issue, error) {
	if err := f.record(asset.SourceIssues); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]asset.Issue(nil), f.Issues...), nil
}

func (f *FakeSnapshotProvider) ListOverdueReturns(ctx context.Context) ([]asset.Return, error) {
	if err := f.record(asset.SourceReturns); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]asset.Return(nil), f.Returns...), nil
}

// RecordingSender captures messages for one channel
type RecordingSender struct {
	mu       sync.Mutex
	channel  notification.Channel
	Messages []*notification.Message
	Err      error
}

func NewRecordingSender(channel notification.Channel) *RecordingSender {
	return &RecordingSender{channel: channel}
}

func (s *RecordingSender) Channel() notification.Channel {
	return s.channel
}

func (s *RecordingSender) Send(ctx context.Context, msg *notification.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Messages = append(s.Messages, msg)
	return nil
}

// Sent returns a copy of the captured messages
func (s *RecordingSender) Sent() []*notification.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*notification.Message(nil), s.Messages...)
}

// RecordingPublisher captures published events
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []*notification.Event
}

func (p *RecordingPublisher) Publish(ctx context.Context, e *notification.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, e)
	return nil
}

// Types returns the event types in publish order
func (p *RecordingPublisher) Types() []notification.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notification.EventType, len(p.Events))
	for i, e := range p.Events {
		out[i] = e.Type
	}
	return out
}

// RecordingDispatcher captures dispatch and publish calls
type RecordingDispatcher struct {
	mu         sync.Mutex
	Dispatched []Dispatched
	Published  []notification.EventType
	// FailWith, when set, is reported as a failed delivery on every dispatch
	FailWith string
}

// Dispatched is one captured Dispatch call
type Dispatched struct {
	AlertID     string
	RecipientID string
	Priority    alert.Priority
}

func (d *RecordingDispatcher) Decide(a *alert.Alert, prefs *alert.Preferences, now time.Time) notification.Decision {
	return notification.Decision{}
}

func (d *RecordingDispatcher) Dispatch(ctx context.Context, a *alert.Alert, prefs *alert.Preferences) *notification.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Dispatched = append(d.Dispatched, Dispatched{AlertID: a.ID, RecipientID: prefs.RecipientID, Priority: a.Priority})
	res := &notification.Result{RecipientID: prefs.RecipientID, AlertID: a.ID}
	if d.FailWith != "" {
		res.Deliveries = []notification.Delivery{{
			Channel: notification.ChannelEmail,
			Status:  notification.DeliveryStatusFailed,
			Error:   d.FailWith,
		}}
	}
	return res
}

func (d *RecordingDispatcher) Publish(ctx context.Context, t notification.EventType, a *alert.Alert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Published = append(d.Published, t)
}

// Calls returns a copy of the captured dispatches
func (d *RecordingDispatcher) Calls() []Dispatched {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Dispatched(nil), d.Dispatched...)
}

// Events returns a copy of the captured event types
func (d *RecordingDispatcher) Events() []notification.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notification.EventType(nil), d.Published...)
}
