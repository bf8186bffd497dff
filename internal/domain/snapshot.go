package domain

import "time"

// Snapshot is one append-only ledger row per (item, run) holding the full
// derived record, its fingerprint, and the transform version that produced it.
// Snapshots are never updated or deleted in normal operation; comparing a
// snapshot's fingerprint to its immediate predecessor detects material change.
type Snapshot struct {
	ID               string     `gorm:"type:text;primaryKey" json:"id"`
	ASIN             string     `gorm:"type:text;not null;index:idx_snapshots_item" json:"asin"`
	MarketplaceID    int        `gorm:"not null;index:idx_snapshots_item" json:"marketplace_id"`
	RunID            string     `gorm:"type:text;not null;index" json:"run_id"`
	Record           ItemRecord `gorm:"type:text" json:"record"`
	Fingerprint      string     `gorm:"type:text;size:64;index" json:"fingerprint"`
	TransformVersion string     `gorm:"type:text" json:"transform_version"`
	AsOf             time.Time  `gorm:"index:idx_snapshots_item" json:"as_of"`
	CreatedAt        time.Time  `json:"created_at"`
}

// TableName returns the database table name for Snapshot.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Snapshot) TableName() string {
	return "snapshots"
}
