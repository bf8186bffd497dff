package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ItemRecord is the common field set both marketplace sources are flattened
// into, plus the derived fields computed after merging. All observation fields
// are pointers so that "unknown" stays distinguishable from a legitimate
// zero or false value.
type ItemRecord struct {
	ASIN          string `json:"asin"`
	MarketplaceID int    `json:"marketplace_id"`

	// First-party commercial state.
	Title       *string  `json:"title,omitempty"`
	Brand       *string  `json:"brand,omitempty"`
	PriceIncVAT *float64 `json:"price_inc_vat,omitempty"`
	PriceExVAT  *float64 `json:"price_ex_vat,omitempty"`
	TotalStock  *int     `json:"total_stock,omitempty"`
	Units30d    *int     `json:"units_30d,omitempty"`
	OurSellerID *string  `json:"our_seller_id,omitempty"`

	// External market observations.
	CategoryPath     *string    `json:"category_path,omitempty"`
	BuyBoxPrice      *float64   `json:"buy_box_price,omitempty"`
	BuyBoxSellerID   *string    `json:"buy_box_seller_id,omitempty"`
	SalesRank        *int       `json:"sales_rank,omitempty"`
	SellerCount      *int       `json:"seller_count,omitempty"`
	KeepaPriceP2590d *int       `json:"keepa_price_p25_90d,omitempty"`
	Volatility90d    *float64   `json:"volatility_90d,omitempty"`
	MarketDataAt     *time.Time `json:"market_data_at,omitempty"`

	// Derived fields.
	DaysOfCover *float64 `json:"days_of_cover,omitempty"`
	OutOfStock  *bool    `json:"out_of_stock,omitempty"`
	BuyBoxLost  *bool    `json:"buy_box_lost,omitempty"`
}

// Value implements the driver.Valuer interface for database serialization.
func (r ItemRecord) Value() (driver.Value, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (r *ItemRecord) Scan(value interface{}) error {
	if value == nil {
		*r = ItemRecord{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan ItemRecord")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, r)
}
