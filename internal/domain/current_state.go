package domain

import "time"

// CurrentState is the single materialized row per item, always referencing the
// most recent snapshot that passed the freshness guard. AsOf is monotonically
// non-decreasing per item: an upsert with an older as-of time is silently
// discarded by the store.
type CurrentState struct {
	ASIN          string `gorm:"type:text;primaryKey" json:"asin"`
	MarketplaceID int    `gorm:"primaryKey" json:"marketplace_id"`

	Title            *string    `gorm:"type:text" json:"title,omitempty"`
	Brand            *string    `gorm:"type:text" json:"brand,omitempty"`
	CategoryPath     *string    `gorm:"type:text" json:"category_path,omitempty"`
	PriceIncVAT      *float64   `json:"price_inc_vat,omitempty"`
	PriceExVAT       *float64   `json:"price_ex_vat,omitempty"`
	TotalStock       *int       `json:"total_stock,omitempty"`
	Units30d         *int       `gorm:"column:units_30d" json:"units_30d,omitempty"`
	DaysOfCover      *float64   `json:"days_of_cover,omitempty"`
	OutOfStock       *bool      `json:"out_of_stock,omitempty"`
	BuyBoxPrice      *float64   `json:"buy_box_price,omitempty"`
	BuyBoxSellerID   *string    `gorm:"type:text" json:"buy_box_seller_id,omitempty"`
	BuyBoxLost       *bool      `json:"buy_box_lost,omitempty"`
	SalesRank        *int       `json:"sales_rank,omitempty"`
	SellerCount      *int       `json:"seller_count,omitempty"`
	KeepaPriceP2590d *int       `gorm:"column:keepa_price_p25_90d" json:"keepa_price_p25_90d,omitempty"`
	Volatility90d    *float64   `gorm:"column:volatility_90d" json:"volatility_90d,omitempty"`
	MarketDataAt     *time.Time `json:"market_data_at,omitempty"`

	SnapshotID       string    `gorm:"type:text" json:"snapshot_id"`
	Fingerprint      string    `gorm:"type:text;size:64" json:"fingerprint"`
	TransformVersion string    `gorm:"type:text" json:"transform_version"`
	AsOf             time.Time `gorm:"not null" json:"as_of"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for CurrentState.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (CurrentState) TableName() string {
	return "current_states"
}
