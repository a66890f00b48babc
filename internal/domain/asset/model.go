package asset

import "time"

// Condition values of Asset.CurrentCondition
const (
	ConditionExcellent = "EXCELLENT"
	ConditionGood      = "GOOD"
	ConditionFair      = "FAIR"
	ConditionPoor      = "POOR"
	ConditionDamaged   = "DAMAGED"
)

// Availability values of Asset.AvailableStatus
const (
	StatusAvailable   = "AVAILABLE"
	StatusInUse       = "IN_USE"
	StatusMaintenance = "MAINTENANCE"
	StatusRetired     = "RETIRED"
)

// Issue severities and types referenced by the rules
const (
	SeverityCritical   = "CRITICAL"
	SeverityHigh       = "HIGH"
	SeverityMedium     = "MEDIUM"
	SeverityLow        = "LOW"
	IssueTypeBreakdown = "BREAKDOWN"
)

// Request status
const (
	RequestPending = "PENDING"
)

// Asset is a tracked physical item
type Asset struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	AssetTag           string     `json:"assetTag,omitempty"`
	Department         string     `json:"department,omitempty"`
	Category           string     `json:"category,omitempty"`
	CurrentCondition   string     `json:"currentCondition"`
	AvailableStatus    string     `json:"availableStatus"`
	CustodianStaffID   string     `json:"custodianStaffId,omitempty"`
	NextMaintenanceDue *time.Time `json:"nextMaintenanceDue,omitempty"`
	WarrantyExpiry     *time.Time `json:"warrantyExpiry,omitempty"`
}

// DisplayName prefers the asset tag in messages
func (a Asset) DisplayName() string {
	if a.AssetTag != "" && a.Name != "" {
		return a.Name + " (" + a.AssetTag + ")"
	}
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// Request is a staff request for an asset
type Request struct {
	ID          string    `json:"id"`
	AssetID     string    `json:"assetId,omitempty"`
	RequesterID string    `json:"requesterId,omitempty"`
	Status      string    `json:"status"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Issue is a reported problem with an asset
type Issue struct {
	ID         string    `json:"id"`
	AssetID    string    `json:"assetId,omitempty"`
	IssueType  string    `json:"issueType"`
	Severity   string    `json:"severity"`
	Status     string    `json:"status"`
	ReportedAt time.Time `json:"reportedAt"`
}

// Return is an outstanding asset loan
type Return struct {
	ID                 string     `json:"id"`
	AssetID            string     `json:"assetId"`
	AssetName          string     `json:"assetName,omitempty"`
	Department         string     `json:"department,omitempty"`
	StaffID            string     `json:"staffId,omitempty"`
	ExpectedReturnDate time.Time  `json:"expectedReturnDate"`
	ReturnedAt         *time.Time `json:"returnedAt,omitempty"`
}
