package merge

import (
	"testing"
	"time"

	"github.com/calum/marketsync/internal/domain"
)

func strPtr(s string) *string     { return &s }
func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }

func TestFlattenSellerAPIPreservesFalsyValues(t *testing.T) {
	payload := domain.JSONMap{
		"title":         "Widget",
		"brand":         "Acme",
		"price_inc_vat": float64(0),
		"total_stock":   float64(0),
		"units_30d":     float64(90),
		"seller_id":     "S1",
	}
	rec := FlattenSellerAPI("B001", 1, payload)

	if rec.PriceIncVAT == nil || *rec.PriceIncVAT != 0 {
		t.Errorf("zero price collapsed: %v", rec.PriceIncVAT)
	}
	if rec.TotalStock == nil || *rec.TotalStock != 0 {
		t.Errorf("zero stock collapsed: %v", rec.TotalStock)
	}
	if rec.Title == nil || *rec.Title != "Widget" {
		t.Errorf("title = %v", rec.Title)
	}
	if rec.PriceExVAT != nil {
		t.Errorf("absent price_ex_vat should be nil, got %v", *rec.PriceExVAT)
	}
}

func TestFlattenMarketAPI(t *testing.T) {
	dataAt := "2026-05-01T10:00:00Z"
	payload := domain.JSONMap{
		"buy_box_price":       float64(22.5),
		"buy_box_seller_id":   "COMP-9",
		"sales_rank":          float64(1543),
		"seller_count":        float64(5),
		"keepa_price_p25_90d": float64(2000),
		"volatility_90d":      float64(0.12),
		"category_path":       "Home/Kitchen",
		"data_at":             dataAt,
	}
	rec := FlattenMarketAPI("B001", 1, payload)

	if rec.BuyBoxSellerID == nil || *rec.BuyBoxSellerID != "COMP-9" {
		t.Errorf("buy box seller = %v", rec.BuyBoxSellerID)
	}
	if rec.SalesRank == nil || *rec.SalesRank != 1543 {
		t.Errorf("sales rank = %v", rec.SalesRank)
	}
	want, _ := time.Parse(time.RFC3339, dataAt)
	if rec.MarketDataAt == nil || !rec.MarketDataAt.Equal(want) {
		t.Errorf("market data at = %v, want %v", rec.MarketDataAt, want)
	}

	empty := FlattenMarketAPI("B001", 1, nil)
	if empty.BuyBoxPrice != nil || empty.MarketDataAt != nil {
		t.Error("nil payload should flatten to an empty record")
	}
}

func TestMergePrecedence(t *testing.T) {
	own := domain.ItemRecord{
		ASIN:          "B001",
		MarketplaceID: 1,
		Title:         strPtr("Our Title"),
		PriceIncVAT:   floatPtr(24.99),
		TotalStock:    intPtr(100),
		OurSellerID:   strPtr("S1"),
		SalesRank:     intPtr(9999),
	}
	market := domain.ItemRecord{
		ASIN:           "B001",
		MarketplaceID:  1,
		Title:          strPtr("Market Title"),
		PriceIncVAT:    floatPtr(23.00),
		BuyBoxSellerID: strPtr("COMP-9"),
		SalesRank:      intPtr(1543),
		CategoryPath:   strPtr("Home/Kitchen"),
	}

	merged := Merge(own, market)

	// First-party fields: seller API wins.
	if *merged.Title != "Our Title" {
		t.Errorf("title = %q, want first-party value", *merged.Title)
	}
	if *merged.PriceIncVAT != 24.99 {
		t.Errorf("price = %v, want first-party value", *merged.PriceIncVAT)
	}

	// Market observations: market API wins, seller API is fallback only.
	if *merged.SalesRank != 1543 {
		t.Errorf("sales rank = %d, want market value", *merged.SalesRank)
	}
	if *merged.CategoryPath != "Home/Kitchen" {
		t.Errorf("category = %q", *merged.CategoryPath)
	}
	if *merged.BuyBoxSellerID != "COMP-9" {
		t.Errorf("buy box seller = %q", *merged.BuyBoxSellerID)
	}
}

func TestMergeFallback(t *testing.T) {
	own := domain.ItemRecord{ASIN: "B001", MarketplaceID: 1, TotalStock: intPtr(0)}
	market := domain.ItemRecord{
		ASIN:          "B001",
		MarketplaceID: 1,
		Title:         strPtr("Market Title"),
		TotalStock:    intPtr(50),
	}

	merged := Merge(own, market)

	// Missing first-party title falls back to the market observation.
	if merged.Title == nil || *merged.Title != "Market Title" {
		t.Errorf("title fallback failed: %v", merged.Title)
	}
	// A real zero from the seller API beats the market's 50.
	if merged.TotalStock == nil || *merged.TotalStock != 0 {
		t.Errorf("zero stock lost precedence: %v", merged.TotalStock)
	}
}

func TestDeriveDaysOfCover(t *testing.T) {
	rec := Derive(domain.ItemRecord{TotalStock: intPtr(300), Units30d: intPtr(90)})
	if rec.DaysOfCover == nil || *rec.DaysOfCover != 100 {
		t.Errorf("days_of_cover = %v, want 100", rec.DaysOfCover)
	}

	rec = Derive(domain.ItemRecord{TotalStock: intPtr(300), Units30d: intPtr(0)})
	if rec.DaysOfCover != nil {
		t.Errorf("days_of_cover with zero velocity = %v, want nil", *rec.DaysOfCover)
	}

	rec = Derive(domain.ItemRecord{TotalStock: intPtr(300)})
	if rec.DaysOfCover != nil {
		t.Errorf("days_of_cover with unknown velocity = %v, want nil", *rec.DaysOfCover)
	}
}

func TestDeriveOutOfStock(t *testing.T) {
	rec := Derive(domain.ItemRecord{TotalStock: intPtr(0)})
	if rec.OutOfStock == nil || !*rec.OutOfStock {
		t.Errorf("out_of_stock for stock=0 = %v, want true", rec.OutOfStock)
	}

	rec = Derive(domain.ItemRecord{TotalStock: intPtr(12)})
	if rec.OutOfStock == nil || *rec.OutOfStock {
		t.Errorf("out_of_stock for stock=12 = %v, want false (not nil)", rec.OutOfStock)
	}

	rec = Derive(domain.ItemRecord{})
	if rec.OutOfStock != nil {
		t.Errorf("out_of_stock for unknown stock = %v, want nil", *rec.OutOfStock)
	}
}

func TestDeriveBuyBoxLost(t *testing.T) {
	rec := Derive(domain.ItemRecord{BuyBoxSellerID: strPtr("COMP-9"), OurSellerID: strPtr("S1")})
	if rec.BuyBoxLost == nil || !*rec.BuyBoxLost {
		t.Errorf("buy_box_lost = %v, want true", rec.BuyBoxLost)
	}

	rec = Derive(domain.ItemRecord{BuyBoxSellerID: strPtr("S1"), OurSellerID: strPtr("S1")})
	if rec.BuyBoxLost == nil || *rec.BuyBoxLost {
		t.Errorf("buy_box_lost holding the box = %v, want false", rec.BuyBoxLost)
	}

	rec = Derive(domain.ItemRecord{OurSellerID: strPtr("S1")})
	if rec.BuyBoxLost != nil {
		t.Errorf("buy_box_lost with unknown holder = %v, want nil", *rec.BuyBoxLost)
	}
}

// Derive must be pure: calling it twice on the same input yields equal output
// and never mutates its argument.
func TestDeriveDeterministic(t *testing.T) {
	in := domain.ItemRecord{TotalStock: intPtr(300), Units30d: intPtr(90)}
	a := Derive(in)
	b := Derive(in)
	if *a.DaysOfCover != *b.DaysOfCover {
		t.Error("Derive is not deterministic")
	}
	if in.DaysOfCover != nil {
		t.Error("Derive mutated its input")
	}
}
