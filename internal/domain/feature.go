package domain

import "time"

// ItemFeature holds per-item rolling features recomputed by follow-up tasks
// after a material change. Downstream consumers read this table only; it never
// feeds back into ingestion.
type ItemFeature struct {
	ASIN             string     `gorm:"type:text;primaryKey" json:"asin"`
	MarketplaceID    int        `gorm:"primaryKey" json:"marketplace_id"`
	PriceChange7d    *float64   `json:"price_change_7d,omitempty"`
	StockVelocity    *float64   `json:"stock_velocity,omitempty"`
	BuyBoxLossStreak int        `gorm:"default:0" json:"buy_box_loss_streak"`
	ComputedAt       time.Time  `json:"computed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ItemFeature.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (ItemFeature) TableName() string {
	return "item_features"
}
