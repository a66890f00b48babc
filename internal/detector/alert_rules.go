package detector

import (
	"fmt"
	"math"
	"time"

	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/domain/asset"
)

// Evaluator names
const (
	EvaluatorMaintenanceOverdue = "maintenance_overdue"
	EvaluatorMaintenanceDue     = "maintenance_due"
	EvaluatorAssetCondition     = "asset_condition"
	EvaluatorUnassigned         = "asset_unassigned"
	EvaluatorWarranty           = "warranty_expiring"
	EvaluatorPendingRequests    = "pending_requests"
	EvaluatorOverdueReturns     = "overdue_returns"
	EvaluatorLowAvailability    = "low_availability"
	EvaluatorUnresolvedIssues   = "unresolved_issues"
)

// Rule thresholds
const (
	MaintenanceDueWindowDays = 7
	WarrantyWindowDays       = 30
	PendingRequestMaxAge     = 72 * time.Hour
	ReturnHighPriorityAfter  = 7 * 24 * time.Hour
	LowAvailabilityRatio     = 0.20
	UnresolvedIssueThreshold = 10
)

// IssuesSubject is the id subject of the unresolved-issues aggregate
const IssuesSubject = "issues"

// DefaultEvaluators returns the full rule set in evaluation order
func DefaultEvaluators() []Evaluator {
	return []Evaluator{
		{
			Name:     EvaluatorMaintenanceOverdue,
			Sources:  []asset.Source{asset.SourceAssets},
			Produces: []alert.Type{alert.TypeMaintenanceOverdue},
			Evaluate: MaintenanceOverdue,
		},
		{
			Name:     EvaluatorMaintenanceDue,
			Sources:  []asset.Source{asset.SourceAssets},
			Produces: []alert.Type{alert.TypeMaintenanceDue},
			Evaluate: MaintenanceDue,
		},
		{
			Name:     EvaluatorAssetCondition,
			Sources:  []asset.Source{asset.SourceAssets},
			Produces: []alert.Type{alert.TypeAssetDamaged},
			Evaluate: AssetCondition,
		},
		{
			Name:     EvaluatorUnassigned,
			Sources:  []asset.Source{asset.SourceAssets},
			Produces: []alert.Type{alert.TypeAssetUnassigned},
			Evaluate: UnassignedInUse,
		},
		{
			Name:     EvaluatorWarranty,
			Sources:  []asset.Source{asset.SourceAssets},
			Produces: []alert.Type{alert.TypeWarrantyExpiring},
			Evaluate: WarrantyExpiring,
		},
		{
			Name:     EvaluatorPendingRequests,
			Sources:  []asset.Source{asset.SourceRequests},
			Produces: []alert.Type{alert.TypeRequestPending},
			Evaluate: PendingRequests,
		},
		{
			Name:     EvaluatorOverdueReturns,
			Sources:  []asset.Source{asset.SourceReturns},
			Produces: []alert.Type{alert.TypeReturnOverdue},
			Evaluate: OverdueReturns,
		},
		{
			Name:     EvaluatorLowAvailability,
			Sources:  []asset.Source{asset.SourceAssets},
			Produces: []alert.Type{alert.TypeLowAvailability},
			Evaluate: LowAvailability,
		},
		{
			Name:     EvaluatorUnresolvedIssues,
			Sources:  []asset.Source{asset.SourceIssues},
			Produces: []alert.Type{alert.TypeAssetDamaged},
			Evaluate: UnresolvedIssues,
		},
	}
}

// Days rounds a duration up to whole days
func Days(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}

// MaintenanceOverdue flags assets whose next maintenance date has passed
func MaintenanceOverdue(snap *asset.Snapshot, now time.Time) []*alert.Alert {
	var out []*alert.Alert
	for _, a := range snap.Assets {
		if a.NextMaintenanceDue == nil || !a.NextMaintenanceDue.Before(now) {
			continue
		}
		days := Days(now.Sub(*a.NextMaintenanceDue))
		out = append(out, newAssetAlert(a, alert.TypeMaintenanceOverdue, alert.PriorityCritical, now,
			"Maintenance Overdue",
			fmt.Sprintf("%s is %s overdue for maintenance", a.DisplayName(), plural(days, "day"))))
	}
	return out
}

// MaintenanceDue flags assets due for maintenance within the next week
func MaintenanceDue(snap *asset.Snapshot, now time.Time) []*alert.Alert {
	var out []*alert.Alert
	for _, a := range snap.Assets {
		if a.NextMaintenanceDue == nil || a.NextMaintenanceDue.Before(now) {
			continue
		}
		days := Days(a.NextMaintenanceDue.Sub(now))
		if days < 0 || days > MaintenanceDueWindowDays {
			continue
		}
		msg := fmt.Sprintf("%s is due for maintenance in %s", a.DisplayName(), plural(days, "day"))
		if days == 0 {
			msg = fmt.Sprintf("%s is due for maintenance today", a.DisplayName())
		}
		out = append(out, newAssetAlert(a, alert.TypeMaintenanceDue, alert.PriorityHigh, now,
			"Maintenance Due Soon", msg))
	}
	return out
}

// AssetCondition flags damaged and poor-condition assets
func AssetCondition(snap *asset.Snapshot, now time.Time) []*alert.Alert {
	var out []*alert.Alert
	for _, a := range snap.Assets {
		switch a.CurrentCondition {
		case asset.ConditionDamaged:
			out = append(out, newAssetAlert(a, alert.TypeAssetDamaged, alert.PriorityHigh, now,
				"Asset Damaged",
				fmt.Sprintf("%s is reported as damaged and needs repair or replacement", a.DisplayName())))
		case asset.ConditionPoor:
			out = append(out, newAssetAlert(a, alert.TypeAssetDamaged, alert.PriorityMedium, now,
				"Asset in Poor Condition",
				fmt.Sprintf("%s is in poor condition and should be inspected", a.DisplayName())))
		}
	}
	return out
}

// UnassignedInUse flags in-use assets that have no custodian
func UnassignedInUse(snap *asset.Snapshot, now time.Time) []*alert.Alert {
	var out []*alert.Alert
	for _, a := range snap.Assets {
		if a.AvailableStatus != asset.StatusInUse || a.CustodianStaffID != "" {
			continue
		}
		out = append(out, newAssetAlert(a, alert.TypeAssetUnassigned, alert.PriorityMedium, now,
			"In-Use Asset Without Custodian",
			fmt.Sprintf("%s is marked in use but has no assigned custodian", a.DisplayName())))
	}
	return out
}

// WarrantyExpiring flags warranties ending within the next 30 days
func WarrantyExpiring(snap *asset.Snapshot, now time.Time) []*alert.Alert {
	var out []*alert.Alert
	for _, a := range snap.Assets {
		if a.WarrantyExpiry == nil {
			continue
		}
		days := Days(a.WarrantyExpiry.Sub(now))
		if days <= 0 || days > WarrantyWindowDays {
			continue
		}
		out = append(out, newAssetAlert(a, alert.TypeWarrantyExpiring, alert.PriorityLow, now,
			"Warranty Expiring",
			fmt.Sprintf("Warranty for %s expires in %s", a.DisplayName(), plural(days, "day"))))
	}
	return out
}

// PendingRequests emits one aggregate when requests wait longer than 72 hours
func PendingRequests(snap *asset.Snapshot, now time.Time) []*alert.Alert {
	count := 0
	for _, r := range snap.PendingRequests {
		if r.Status != "" && r.Status != asset.RequestPending {
			continue
		}
		if now.Sub(r.RequestedAt) > PendingRequestMaxAge {
			count++
		}
	}
	if count == 0 {
		return nil
	}
	return []*alert.Alert{newAlert(alert.TypeRequestPending, alert.PriorityMedium, alert.Subject{}, "", now,
		"Pending Requests Awaiting Review",
		fmt.Sprintf("%s pending for more than 72 hours", plural(count, "request")))}
}

// OverdueReturns flags each loan past its expected return date
func OverdueReturns(snap *asset.Snapshot, now time.Time) []*alert.Alert {
	var out []*alert.Alert
	for _, r := range snap.OverdueReturns {
		if r.ReturnedAt != nil || !r.ExpectedReturnDate.Before(now) {
			continue
		}
		late := now.Sub(r.ExpectedReturnDate)
		priority := alert.PriorityMedium
		if late > ReturnHighPriorityAfter {
			priority = alert.PriorityHigh
		}
		name := r.AssetName
		if name == "" {
			name = r.AssetID
		}
		out = append(out, newAlert(alert.TypeReturnOverdue, priority,
			alert.Subject{Kind: alert.SubjectReturn, ID: r.ID}, r.Department, now,
			"Asset Return Overdue",
			fmt.Sprintf("%s is %s overdue for return", name, plural(Days(late), "day"))))
	}
	return out
}

// LowAvailability emits one aggregate when fewer than 20% of assets are available
func LowAvailability(snap *asset.Snapshot, now time.Time) []*alert.Alert {
	total := len(snap.Assets)
	if total == 0 {
		return nil
	}
	available := 0
	for _, a := range snap.Assets {
		if a.AvailableStatus == asset.StatusAvailable {
			available++
		}
	}
	ratio := float64(available) / float64(total)
	if ratio >= LowAvailabilityRatio {
		return nil
	}
	return []*alert.Alert{newAlert(alert.TypeLowAvailability, alert.PriorityHigh, alert.Subject{}, "", now,
		"Low Asset Availability",
		fmt.Sprintf("Only %d of %d assets (%.0f%%) are available", available, total, ratio*100))}
}

// UnresolvedIssues emits one aggregate when more than 10 issues are open.
// It is critical when any open issue is critical or a breakdown.
func UnresolvedIssues(snap *asset.Snapshot, now time.Time) []*alert.Alert {
	count := len(snap.OpenIssues)
	if count <= UnresolvedIssueThreshold {
		return nil
	}
	priority := alert.PriorityMedium
	for _, is := range snap.OpenIssues {
		if is.Severity == asset.SeverityCritical || is.IssueType == asset.IssueTypeBreakdown {
			priority = alert.PriorityCritical
			break
		}
	}
	a := newAlert(alert.TypeAssetDamaged, priority, alert.Subject{}, "", now,
		"Multiple Unresolved Issues",
		fmt.Sprintf("%d asset issues are still unresolved", count))
	a.ID = alert.NewID(alert.TypeAssetDamaged, IssuesSubject)
	return []*alert.Alert{a}
}

func newAssetAlert(a asset.Asset, t alert.Type, p alert.Priority, now time.Time, title, msg string) *alert.Alert {
	return newAlert(t, p, alert.Subject{Kind: alert.SubjectAsset, ID: a.ID}, a.Department, now, title, msg)
}

func newAlert(t alert.Type, p alert.Priority, subject alert.Subject, department string, now time.Time, title, msg string) *alert.Alert {
	return &alert.Alert{
		ID:         alert.NewID(t, subject.ID),
		Type:       t,
		Priority:   p,
		Status:     alert.StatusNew,
		Title:      title,
		Message:    msg,
		Subject:    subject,
		Department: department,
		Timestamp:  now,
		History:    []alert.HistoryEntry{},
		UpdatedAt:  now,
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
