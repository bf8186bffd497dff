package domain

import "time"

// IssueKind classifies a data-quality problem.
type IssueKind string

const (
	IssueMissingField     IssueKind = "missing_field"
	IssueInvalidValue     IssueKind = "invalid_value"
	IssueStaleData        IssueKind = "stale_data"
	IssueInconsistentData IssueKind = "inconsistent_data"
	IssueTransformError   IssueKind = "transform_error"
	IssueAPIError         IssueKind = "api_error"
	IssueDuplicateData    IssueKind = "duplicate_data"
	IssueOutOfRange       IssueKind = "out_of_range"
)

// IssueSeverity grades how serious a detected problem is.
type IssueSeverity string

const (
	SeverityWarn     IssueSeverity = "warn"
	SeverityCritical IssueSeverity = "critical"
)

// IssueStatus tracks the operator-facing lifecycle of an issue.
type IssueStatus string

const (
	IssueStatusOpen         IssueStatus = "open"
	IssueStatusAcknowledged IssueStatus = "acknowledged"
	IssueStatusResolved     IssueStatus = "resolved"
	IssueStatusIgnored      IssueStatus = "ignored"
)

// DQIssue is one detected data-quality problem. Issues never block ingestion;
// they are created after each run and auto-resolved once a later run produces
// clean data for the same item.
type DQIssue struct {
	ID            string        `gorm:"type:text;primaryKey" json:"id"`
	ASIN          string        `gorm:"type:text;not null;index:idx_dq_issues_item" json:"asin"`
	MarketplaceID int           `gorm:"not null;index:idx_dq_issues_item" json:"marketplace_id"`
	RunID         *string       `gorm:"type:text" json:"run_id,omitempty"`
	SnapshotID    *string       `gorm:"type:text" json:"snapshot_id,omitempty"`
	Kind          IssueKind     `gorm:"type:text;not null;index" json:"kind"`
	Field         string        `gorm:"type:text" json:"field"`
	Severity      IssueSeverity `gorm:"type:text;not null" json:"severity"`
	Status        IssueStatus   `gorm:"type:text;default:open;index" json:"status"`
	Message       string        `gorm:"type:text" json:"message"`
	Details       JSONMap       `gorm:"type:text" json:"details"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TableName returns the database table name for DQIssue.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (DQIssue) TableName() string {
	return "dq_issues"
}
