package domain

import "time"

// SourceType identifies which external marketplace source a payload came from.
type SourceType string

const (
	SourceSellerAPI SourceType = "seller_api"
	SourceMarketAPI SourceType = "market_api"
)

// RawPayload is the immutable landing record for one external payload.
// Rows are keyed by (asin, marketplace, source, run); a duplicate insert is a
// no-op so retried tasks never fail merely because the data already landed.
type RawPayload struct {
	ID            string     `gorm:"type:text;primaryKey" json:"id"`
	ASIN          string     `gorm:"type:text;not null;uniqueIndex:idx_raw_payloads_key" json:"asin"`
	MarketplaceID int        `gorm:"not null;uniqueIndex:idx_raw_payloads_key" json:"marketplace_id"`
	Source        SourceType `gorm:"type:text;not null;uniqueIndex:idx_raw_payloads_key" json:"source"`
	RunID         string     `gorm:"type:text;not null;uniqueIndex:idx_raw_payloads_key;index" json:"run_id"`
	Payload       JSONMap    `gorm:"type:text" json:"payload"`
	CapturedAt    time.Time  `json:"captured_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName returns the database table name for RawPayload.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (RawPayload) TableName() string {
	return "raw_payloads"
}
