package repository

import (
	"context"
	"errors"
	"time"

	"github.com/calum/marketsync/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SnapshotRepository handles the append-only snapshot ledger.
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new SnapshotRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *SnapshotRepository: repository instance bound to db.
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Append inserts a snapshot row. Snapshots are never updated or deleted.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - snap: snapshot to persist; ID is filled in if empty.
// Returns:
//   - error: non-nil if the insert fails.
func (r *SnapshotRepository) Append(ctx context.Context, snap *domain.Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(snap).Error
}

// PreviousFingerprint returns the fingerprint of the item's most recent
// snapshot strictly before the given as-of time. An empty string means the
// item has no earlier snapshot.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - asin: item identifier.
//   - marketplaceID: marketplace identifier.
//   - before: exclusive upper bound on the predecessor's as-of time.
// Returns:
//   - string: predecessor fingerprint or "".
//   - error: non-nil if the lookup fails.
func (r *SnapshotRepository) PreviousFingerprint(ctx context.Context, asin string, marketplaceID int, before time.Time) (string, error) {
	var snap domain.Snapshot
	err := r.db.WithContext(ctx).
		Where("asin = ? AND marketplace_id = ? AND as_of < ?", asin, marketplaceID, before).
		Order("as_of DESC").
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingRelation(err) {
			return "", nil
		}
		return "", err
	}
	return snap.Fingerprint, nil
}

// ListByItem retrieves an item's snapshots, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - asin: item identifier.
//   - marketplaceID: marketplace identifier.
//   - limit: maximum rows to return.
// Returns:
//   - []domain.Snapshot: matching snapshots.
//   - error: non-nil if the query fails.
func (r *SnapshotRepository) ListByItem(ctx context.Context, asin string, marketplaceID int, limit int) ([]domain.Snapshot, error) {
	var snaps []domain.Snapshot
	if err := r.db.WithContext(ctx).
		Where("asin = ? AND marketplace_id = ?", asin, marketplaceID).
		Order("as_of DESC").
		Limit(limit).
		Find(&snaps).Error; err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, err
	}
	return snaps, nil
}
