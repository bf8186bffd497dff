package repository

import (
	"context"
	"errors"

	"github.com/calum/marketsync/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeatureRepository handles the materialized per-item feature rows.
type FeatureRepository struct {
	db *gorm.DB
}

// NewFeatureRepository creates a new FeatureRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *FeatureRepository: repository instance bound to db.
func NewFeatureRepository(db *gorm.DB) *FeatureRepository {
	return &FeatureRepository{db: db}
}

// Upsert creates or replaces the feature row for an item.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - feature: feature row to persist.
// Returns:
//   - error: non-nil if the write fails.
func (r *FeatureRepository) Upsert(ctx context.Context, feature *domain.ItemFeature) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asin"}, {Name: "marketplace_id"}},
			UpdateAll: true,
		}).
		Create(feature).Error
}

// Get retrieves the feature row for one item.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - asin: item identifier.
//   - marketplaceID: marketplace identifier.
// Returns:
//   - *domain.ItemFeature: row if found, nil if absent.
//   - error: non-nil if the lookup fails.
func (r *FeatureRepository) Get(ctx context.Context, asin string, marketplaceID int) (*domain.ItemFeature, error) {
	var feature domain.ItemFeature
	err := r.db.WithContext(ctx).
		First(&feature, "asin = ? AND marketplace_id = ?", asin, marketplaceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingRelation(err) {
			return nil, nil
		}
		return nil, err
	}
	return &feature, nil
}
