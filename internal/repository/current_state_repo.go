package repository

import (
	"context"
	"errors"

	"github.com/calum/marketsync/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CurrentStateRepository materializes the single current row per item.
type CurrentStateRepository struct {
	db *gorm.DB
}

// NewCurrentStateRepository creates a new CurrentStateRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *CurrentStateRepository: repository instance bound to db.
func NewCurrentStateRepository(db *gorm.DB) *CurrentStateRepository {
	return &CurrentStateRepository{db: db}
}

// Upsert writes the current-state row for an item behind the freshness guard:
// the update fires only when the incoming as-of time is not older than the
// stored one (ties allowed, so re-delivery of the same run is safe). A stale
// write is silently discarded, which is what makes concurrent and out-of-order
// task completion safe without table locks. First-party text fields coalesce
// against the previous row so they never regress to null; numeric and boolean
// fields that can legitimately be zero or false are written verbatim.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - state: current-state row to insert or update.
// Returns:
//   - error: non-nil if the write fails.
func (r *CurrentStateRepository) Upsert(ctx context.Context, state *domain.CurrentState) error {
	assignments := map[string]interface{}{
		// Our fields: keep the last known value when the incoming one is absent.
		"title":         gorm.Expr("COALESCE(excluded.title, current_states.title)"),
		"brand":         gorm.Expr("COALESCE(excluded.brand, current_states.brand)"),
		"category_path": gorm.Expr("COALESCE(excluded.category_path, current_states.category_path)"),

		// Observations: zero and false are legitimate values, write verbatim.
		"price_inc_vat":       gorm.Expr("excluded.price_inc_vat"),
		"price_ex_vat":        gorm.Expr("excluded.price_ex_vat"),
		"total_stock":         gorm.Expr("excluded.total_stock"),
		"units_30d":           gorm.Expr("excluded.units_30d"),
		"days_of_cover":       gorm.Expr("excluded.days_of_cover"),
		"out_of_stock":        gorm.Expr("excluded.out_of_stock"),
		"buy_box_price":       gorm.Expr("excluded.buy_box_price"),
		"buy_box_seller_id":   gorm.Expr("excluded.buy_box_seller_id"),
		"buy_box_lost":        gorm.Expr("excluded.buy_box_lost"),
		"sales_rank":          gorm.Expr("excluded.sales_rank"),
		"seller_count":        gorm.Expr("excluded.seller_count"),
		"keepa_price_p25_90d": gorm.Expr("excluded.keepa_price_p25_90d"),
		"volatility_90d":      gorm.Expr("excluded.volatility_90d"),
		"market_data_at":      gorm.Expr("excluded.market_data_at"),

		"snapshot_id":       gorm.Expr("excluded.snapshot_id"),
		"fingerprint":       gorm.Expr("excluded.fingerprint"),
		"transform_version": gorm.Expr("excluded.transform_version"),
		"as_of":             gorm.Expr("excluded.as_of"),
		"updated_at":        gorm.Expr("excluded.updated_at"),
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asin"}, {Name: "marketplace_id"}},
			DoUpdates: clause.Assignments(assignments),
			Where: clause.Where{Exprs: []clause.Expression{
				gorm.Expr("excluded.as_of >= current_states.as_of"),
			}},
		}).
		Create(state).Error
}

// Get retrieves the current-state row for one item.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - asin: item identifier.
//   - marketplaceID: marketplace identifier.
// Returns:
//   - *domain.CurrentState: row if found, nil if absent.
//   - error: non-nil if the lookup fails.
func (r *CurrentStateRepository) Get(ctx context.Context, asin string, marketplaceID int) (*domain.CurrentState, error) {
	var state domain.CurrentState
	err := r.db.WithContext(ctx).
		First(&state, "asin = ? AND marketplace_id = ?", asin, marketplaceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingRelation(err) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// List retrieves current-state rows ordered by item, paged.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: page size.
//   - offset: page offset.
// Returns:
//   - []domain.CurrentState: matching rows.
//   - error: non-nil if the query fails.
func (r *CurrentStateRepository) List(ctx context.Context, limit, offset int) ([]domain.CurrentState, error) {
	var states []domain.CurrentState
	if err := r.db.WithContext(ctx).
		Order("asin ASC, marketplace_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&states).Error; err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, err
	}
	return states, nil
}
