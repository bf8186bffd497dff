package service

import (
	"context"
	"fmt"
	"time"

	"github.com/calum/marketsync/internal/domain"
	"github.com/calum/marketsync/internal/logger"
	"github.com/calum/marketsync/internal/queue"
)

// snapshotWindow bounds how much history a recompute reads. 64 snapshots
// comfortably covers a week of hourly syncs plus streak counting.
const snapshotWindow = 64

// FeatureStore persists per-item rolling features.
type FeatureStore interface {
	Upsert(ctx context.Context, feature *domain.ItemFeature) error
}

// FeatureService recomputes rolling features from the snapshot ledger after a
// material change. It reads snapshots only, never raw payloads, so features
// always reflect exactly what the pipeline derived.
type FeatureService struct {
	snaps    SnapshotStore
	features FeatureStore
	now      func() time.Time
}

// NewFeatureService creates a feature service.
// Parameters:
//   - snaps: snapshot ledger store.
//   - features: feature store.
// Returns:
//   - *FeatureService: initialized service.
func NewFeatureService(snaps SnapshotStore, features FeatureStore) *FeatureService {
	return &FeatureService{
		snaps:    snaps,
		features: features,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandleFeatureRecompute executes one feature_recompute task: load the item's
// recent snapshots and rebuild its rolling features.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - task: claimed task whose payload names the item.
// Returns:
//   - *queue.Result: computed feature values.
//   - error: non-nil to trigger retry or terminal failure.
func (s *FeatureService) HandleFeatureRecompute(ctx context.Context, task *domain.Task) (*queue.Result, error) {
	asin, marketplaceID, err := parseItemPayload(task.Payload)
	if err != nil {
		return nil, err
	}

	snaps, err := s.snaps.ListByItem(ctx, asin, marketplaceID, snapshotWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("no snapshots for %s", itemEntityID(asin, marketplaceID))
	}

	latest := snaps[0]
	feature := &domain.ItemFeature{
		ASIN:             asin,
		MarketplaceID:    marketplaceID,
		PriceChange7d:    priceChange7d(snaps),
		StockVelocity:    stockVelocity(latest.Record),
		BuyBoxLossStreak: buyBoxLossStreak(snaps),
		ComputedAt:       s.now(),
	}
	if err := s.features.Upsert(ctx, feature); err != nil {
		return nil, fmt.Errorf("failed to upsert features: %w", err)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldASIN: asin,
		"snapshots":      len(snaps),
	}).Info("Features recomputed")

	output := domain.JSONMap{
		"buy_box_loss_streak": feature.BuyBoxLossStreak,
		"snapshots_read":      len(snaps),
	}
	if feature.PriceChange7d != nil {
		output["price_change_7d"] = *feature.PriceChange7d
	}
	if feature.StockVelocity != nil {
		output["stock_velocity"] = *feature.StockVelocity
	}
	return &queue.Result{Output: output}, nil
}

// priceChange7d computes the latest price minus the price in the most recent
// snapshot at least seven days older. Nil when either endpoint lacks a price
// or no snapshot that old exists.
func priceChange7d(snaps []domain.Snapshot) *float64 {
	latest := snaps[0]
	if latest.Record.PriceIncVAT == nil {
		return nil
	}
	cutoff := latest.AsOf.Add(-7 * 24 * time.Hour)
	for _, snap := range snaps[1:] {
		if snap.AsOf.After(cutoff) {
			continue
		}
		if snap.Record.PriceIncVAT == nil {
			return nil
		}
		change := *latest.Record.PriceIncVAT - *snap.Record.PriceIncVAT
		return &change
	}
	return nil
}

// stockVelocity converts the trailing 30-day unit count into units per day.
func stockVelocity(rec domain.ItemRecord) *float64 {
	if rec.Units30d == nil {
		return nil
	}
	v := float64(*rec.Units30d) / 30.0
	return &v
}

// buyBoxLossStreak counts consecutive snapshots, newest first, where the buy
// box was lost. An unknown buy-box state breaks the streak.
func buyBoxLossStreak(snaps []domain.Snapshot) int {
	streak := 0
	for _, snap := range snaps {
		if snap.Record.BuyBoxLost == nil || !*snap.Record.BuyBoxLost {
			break
		}
		streak++
	}
	return streak
}
