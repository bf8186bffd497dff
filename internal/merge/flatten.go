// Package merge flattens each marketplace source's raw payload into the common
// record schema, merges the two under field-level precedence, and computes
// derived fields. Every function here is pure: identical inputs always produce
// identical outputs, and nothing reads the clock.
package merge

import (
	"github.com/calum/marketsync/internal/coerce"
	"github.com/calum/marketsync/internal/domain"
)

// TransformVersion is stamped on every snapshot produced by this package.
// Bump it whenever flatten/merge/derive semantics change, so old snapshots
// remain attributable to the logic that built them.
const TransformVersion = "v3"

// FlattenSellerAPI maps a first-party seller API payload onto the common
// record schema. Coercion preserves legitimate zero/false values.
// Parameters:
//   - asin: item identifier.
//   - marketplaceID: marketplace identifier.
//   - payload: raw seller API payload.
// Returns:
//   - domain.ItemRecord: partial record with first-party fields populated.
func FlattenSellerAPI(asin string, marketplaceID int, payload domain.JSONMap) domain.ItemRecord {
	rec := domain.ItemRecord{ASIN: asin, MarketplaceID: marketplaceID}
	if payload == nil {
		return rec
	}
	rec.Title = coerce.ToString(payload["title"])
	rec.Brand = coerce.ToString(payload["brand"])
	rec.CategoryPath = coerce.ToString(payload["category"])
	rec.PriceIncVAT = coerce.ToFloat(payload["price_inc_vat"])
	rec.PriceExVAT = coerce.ToFloat(payload["price_ex_vat"])
	rec.TotalStock = coerce.ToInt(payload["total_stock"])
	rec.Units30d = coerce.ToInt(payload["units_30d"])
	rec.OurSellerID = coerce.ToString(payload["seller_id"])
	return rec
}

// FlattenMarketAPI maps a third-party market observation payload onto the
// common record schema.
// Parameters:
//   - asin: item identifier.
//   - marketplaceID: marketplace identifier.
//   - payload: raw market API payload.
// Returns:
//   - domain.ItemRecord: partial record with market fields populated.
func FlattenMarketAPI(asin string, marketplaceID int, payload domain.JSONMap) domain.ItemRecord {
	rec := domain.ItemRecord{ASIN: asin, MarketplaceID: marketplaceID}
	if payload == nil {
		return rec
	}
	rec.Title = coerce.ToString(payload["title"])
	rec.Brand = coerce.ToString(payload["brand"])
	rec.CategoryPath = coerce.ToString(payload["category_path"])
	rec.PriceIncVAT = coerce.ToFloat(payload["listed_price"])
	rec.TotalStock = coerce.ToInt(payload["listed_stock"])
	rec.BuyBoxPrice = coerce.ToFloat(payload["buy_box_price"])
	rec.BuyBoxSellerID = coerce.ToString(payload["buy_box_seller_id"])
	rec.SalesRank = coerce.ToInt(payload["sales_rank"])
	rec.SellerCount = coerce.ToInt(payload["seller_count"])
	rec.KeepaPriceP2590d = coerce.ToInt(payload["keepa_price_p25_90d"])
	rec.Volatility90d = coerce.ToFloat(payload["volatility_90d"])
	rec.MarketDataAt = coerce.ToTime(payload["data_at"])
	return rec
}
