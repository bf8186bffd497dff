package service

import (
	"context"
	"testing"
	"time"

	"github.com/calum/marketsync/internal/domain"
)

type fakeFeatureStore struct {
	last    *domain.ItemFeature
	upserts int
}

func (s *fakeFeatureStore) Upsert(ctx context.Context, feature *domain.ItemFeature) error {
	s.last = feature
	s.upserts++
	return nil
}

func featureTask(asin string, marketplaceID int) *domain.Task {
	return &domain.Task{
		ID:   "task-f1",
		Type: domain.TaskTypeFeatureRecompute,
		Payload: domain.JSONMap{
			"asin":           asin,
			"marketplace_id": marketplaceID,
		},
	}
}

func snapshotAt(asin string, marketplaceID int, asOf time.Time, rec domain.ItemRecord) domain.Snapshot {
	rec.ASIN = asin
	rec.MarketplaceID = marketplaceID
	return domain.Snapshot{
		ID:            "snap-" + asOf.Format("20060102T150405"),
		ASIN:          asin,
		MarketplaceID: marketplaceID,
		Record:        rec,
		AsOf:          asOf,
	}
}

func fPtr(f float64) *float64 { return &f }
func iPtr(i int) *int         { return &i }
func bPtr(b bool) *bool       { return &b }

func TestFeatureRecompute(t *testing.T) {
	now := time.Now().UTC()
	snaps := &fakeSnapshotStore{snaps: []domain.Snapshot{
		snapshotAt("B00FEAT01", 1, now.Add(-9*24*time.Hour), domain.ItemRecord{
			PriceIncVAT: fPtr(15.00), Units30d: iPtr(60), BuyBoxLost: bPtr(true),
		}),
		snapshotAt("B00FEAT01", 1, now.Add(-8*24*time.Hour), domain.ItemRecord{
			PriceIncVAT: fPtr(16.00), Units30d: iPtr(60), BuyBoxLost: bPtr(false),
		}),
		snapshotAt("B00FEAT01", 1, now.Add(-24*time.Hour), domain.ItemRecord{
			PriceIncVAT: fPtr(18.00), Units30d: iPtr(90), BuyBoxLost: bPtr(true),
		}),
		snapshotAt("B00FEAT01", 1, now, domain.ItemRecord{
			PriceIncVAT: fPtr(21.00), Units30d: iPtr(90), BuyBoxLost: bPtr(true),
		}),
	}}
	features := &fakeFeatureStore{}
	svc := NewFeatureService(snaps, features)

	result, err := svc.HandleFeatureRecompute(context.Background(), featureTask("B00FEAT01", 1))
	if err != nil {
		t.Fatalf("HandleFeatureRecompute failed: %v", err)
	}
	if features.upserts != 1 {
		t.Fatalf("upserted %d times, want 1", features.upserts)
	}

	got := features.last
	// Latest price 21.00 against the 8-day-old snapshot at 16.00; the
	// 1-day-old snapshot is too recent to anchor a 7-day change.
	if got.PriceChange7d == nil || *got.PriceChange7d != 5.00 {
		t.Errorf("price change 7d = %v, want 5.00", got.PriceChange7d)
	}
	if got.StockVelocity == nil || *got.StockVelocity != 3.0 {
		t.Errorf("stock velocity = %v, want 3.0 (90 units / 30 days)", got.StockVelocity)
	}
	// Newest two snapshots lost the buy box; the 8-day-old one held it.
	if got.BuyBoxLossStreak != 2 {
		t.Errorf("buy box loss streak = %d, want 2", got.BuyBoxLossStreak)
	}
	if result.Output["snapshots_read"] != 4 {
		t.Errorf("snapshots_read = %v, want 4", result.Output["snapshots_read"])
	}
}

func TestFeatureRecomputeNoHistoryOldEnough(t *testing.T) {
	now := time.Now().UTC()
	snaps := &fakeSnapshotStore{snaps: []domain.Snapshot{
		snapshotAt("B00FEAT02", 1, now.Add(-48*time.Hour), domain.ItemRecord{PriceIncVAT: fPtr(10.00)}),
		snapshotAt("B00FEAT02", 1, now, domain.ItemRecord{PriceIncVAT: fPtr(12.00)}),
	}}
	features := &fakeFeatureStore{}
	svc := NewFeatureService(snaps, features)

	if _, err := svc.HandleFeatureRecompute(context.Background(), featureTask("B00FEAT02", 1)); err != nil {
		t.Fatalf("HandleFeatureRecompute failed: %v", err)
	}
	if features.last.PriceChange7d != nil {
		t.Errorf("price change = %v, want nil without a 7-day-old snapshot", features.last.PriceChange7d)
	}
}

func TestFeatureRecomputeUnknownBuyBoxBreaksStreak(t *testing.T) {
	now := time.Now().UTC()
	snaps := &fakeSnapshotStore{snaps: []domain.Snapshot{
		snapshotAt("B00FEAT03", 1, now.Add(-2*time.Hour), domain.ItemRecord{BuyBoxLost: bPtr(true)}),
		snapshotAt("B00FEAT03", 1, now.Add(-time.Hour), domain.ItemRecord{}),
		snapshotAt("B00FEAT03", 1, now, domain.ItemRecord{BuyBoxLost: bPtr(true)}),
	}}
	features := &fakeFeatureStore{}
	svc := NewFeatureService(snaps, features)

	if _, err := svc.HandleFeatureRecompute(context.Background(), featureTask("B00FEAT03", 1)); err != nil {
		t.Fatalf("HandleFeatureRecompute failed: %v", err)
	}
	if features.last.BuyBoxLossStreak != 1 {
		t.Errorf("streak = %d, want 1 when the second-newest state is unknown", features.last.BuyBoxLossStreak)
	}
}

func TestFeatureRecomputeMissingUnitsYieldsNilVelocity(t *testing.T) {
	now := time.Now().UTC()
	snaps := &fakeSnapshotStore{snaps: []domain.Snapshot{
		snapshotAt("B00FEAT04", 1, now, domain.ItemRecord{PriceIncVAT: fPtr(9.99)}),
	}}
	features := &fakeFeatureStore{}
	svc := NewFeatureService(snaps, features)

	if _, err := svc.HandleFeatureRecompute(context.Background(), featureTask("B00FEAT04", 1)); err != nil {
		t.Fatalf("HandleFeatureRecompute failed: %v", err)
	}
	if features.last.StockVelocity != nil {
		t.Errorf("stock velocity = %v, want nil without units_30d", features.last.StockVelocity)
	}
}

func TestFeatureRecomputeNoSnapshots(t *testing.T) {
	svc := NewFeatureService(&fakeSnapshotStore{}, &fakeFeatureStore{})
	if _, err := svc.HandleFeatureRecompute(context.Background(), featureTask("B00NONE01", 1)); err == nil {
		t.Fatal("want an error when the item has no snapshots")
	}
}
