package merge

import "github.com/calum/marketsync/internal/domain"

// first returns a when present, else b. Presence means non-nil; a pointer to a
// zero value is a real observation and wins.
func first[T any](a, b *T) *T {
	if a != nil {
		return a
	}
	return b
}

// Merge combines the two flattened records under field-level precedence:
// fields describing our own commercial state come from the seller API first,
// fields describing external market observations come from the market API
// first, each falling back to the other source when absent.
// Parameters:
//   - own: record flattened from the first-party seller API.
//   - market: record flattened from the third-party market API.
// Returns:
//   - domain.ItemRecord: merged record (derived fields not yet computed).
func Merge(own, market domain.ItemRecord) domain.ItemRecord {
	merged := domain.ItemRecord{
		ASIN:          own.ASIN,
		MarketplaceID: own.MarketplaceID,
	}
	if merged.ASIN == "" {
		merged.ASIN = market.ASIN
	}
	if merged.MarketplaceID == 0 {
		merged.MarketplaceID = market.MarketplaceID
	}

	// Our commercial state: first party wins.
	merged.Title = first(own.Title, market.Title)
	merged.Brand = first(own.Brand, market.Brand)
	merged.PriceIncVAT = first(own.PriceIncVAT, market.PriceIncVAT)
	merged.PriceExVAT = first(own.PriceExVAT, market.PriceExVAT)
	merged.TotalStock = first(own.TotalStock, market.TotalStock)
	merged.Units30d = first(own.Units30d, market.Units30d)
	merged.OurSellerID = first(own.OurSellerID, market.OurSellerID)

	// Market observations: third party wins.
	merged.CategoryPath = first(market.CategoryPath, own.CategoryPath)
	merged.BuyBoxPrice = first(market.BuyBoxPrice, own.BuyBoxPrice)
	merged.BuyBoxSellerID = first(market.BuyBoxSellerID, own.BuyBoxSellerID)
	merged.SalesRank = first(market.SalesRank, own.SalesRank)
	merged.SellerCount = first(market.SellerCount, own.SellerCount)
	merged.KeepaPriceP2590d = first(market.KeepaPriceP2590d, own.KeepaPriceP2590d)
	merged.Volatility90d = first(market.Volatility90d, own.Volatility90d)
	merged.MarketDataAt = first(market.MarketDataAt, own.MarketDataAt)

	return merged
}
