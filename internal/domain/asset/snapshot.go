package asset

import "context"

// Source names one snapshot read
type Source string

// Snapshot sources
const (
	SourceAssets   Source = "assets"
	SourceRequests Source = "pending_requests"
	SourceIssues   Source = "open_issues"
	SourceReturns  Source = "overdue_returns"
)

// SnapshotProvider reads the domain state the alert rules inspect.
// Each read may be issued concurrently and may fail on its own.
type SnapshotProvider interface {
	ListAssets(ctx context.Context) ([]Asset, error)
	ListPendingRequests(ctx context.Context) ([]Request, error)
	ListOpenIssues(ctx context.Context) ([]Issue, error)
	ListOverdueReturns(ctx context.Context) ([]Return, error)
}

// Snapshot is a read-only view of the domain at one instant
type Snapshot struct {
	Assets          []Asset
	PendingRequests []Request
	OpenIssues      []Issue
	OverdueReturns  []Return

	// Failed holds the error of every source that could not be read
	Failed map[Source]error
}

// Available reports whether every listed source was read successfully
func (s *Snapshot) Available(sources ...Source) bool {
	for _, src := range sources {
		if _, failed := s.Failed[src]; failed {
			return false
		}
	}
	return true
}
