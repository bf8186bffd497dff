package merge

import "github.com/calum/marketsync/internal/domain"

// Derive computes the derived fields on a merged record:
//   - days_of_cover = stock / (units_30d / 30); nil when velocity <= 0
//   - out_of_stock  = stock <= 0; false (not nil) for a valid non-positive
//     stock count, nil when stock is unknown
//   - buy_box_lost  = buy-box holder != our seller id when both are known
//
// Parameters:
//   - rec: merged record.
// Returns:
//   - domain.ItemRecord: copy of rec with derived fields populated.
func Derive(rec domain.ItemRecord) domain.ItemRecord {
	out := rec

	if rec.TotalStock != nil && rec.Units30d != nil {
		velocity := float64(*rec.Units30d) / 30.0
		if velocity > 0 {
			doc := float64(*rec.TotalStock) / velocity
			out.DaysOfCover = &doc
		}
	}

	if rec.TotalStock != nil {
		oos := *rec.TotalStock <= 0
		out.OutOfStock = &oos
	}

	if rec.BuyBoxSellerID != nil && rec.OurSellerID != nil {
		lost := *rec.BuyBoxSellerID != *rec.OurSellerID
		out.BuyBoxLost = &lost
	}

	return out
}
