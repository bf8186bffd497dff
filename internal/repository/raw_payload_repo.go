package repository

import (
	"context"

	"github.com/calum/marketsync/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RawPayloadRepository handles the immutable raw landing store.
type RawPayloadRepository struct {
	db *gorm.DB
}

// NewRawPayloadRepository creates a new RawPayloadRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *RawPayloadRepository: repository instance bound to db.
func NewRawPayloadRepository(db *gorm.DB) *RawPayloadRepository {
	return &RawPayloadRepository{db: db}
}

// Insert lands one raw payload. A duplicate (asin, marketplace, source, run)
// key is success-with-no-op, not an error: retried tasks must not fail merely
// because the data was already landed.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - payload: raw payload row; ID is filled in if empty.
// Returns:
//   - bool: true if a row was inserted, false if it was a duplicate.
//   - error: non-nil if the insert fails.
func (r *RawPayloadRepository) Insert(ctx context.Context, payload *domain.RawPayload) (bool, error) {
	if payload.ID == "" {
		payload.ID = uuid.New().String()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "asin"}, {Name: "marketplace_id"}, {Name: "source"}, {Name: "run_id"},
			},
			DoNothing: true,
		}).
		Create(payload)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// InsertBatch lands many raw payloads in one round trip.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - payloads: raw payload rows; IDs are filled in if empty.
// Returns:
//   - inserted: number of rows actually written.
//   - skipped: number of rows skipped as duplicates.
//   - err: non-nil if the insert fails.
func (r *RawPayloadRepository) InsertBatch(ctx context.Context, payloads []domain.RawPayload) (inserted, skipped int, err error) {
	if len(payloads) == 0 {
		return 0, 0, nil
	}
	for i := range payloads {
		if payloads[i].ID == "" {
			payloads[i].ID = uuid.New().String()
		}
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "asin"}, {Name: "marketplace_id"}, {Name: "source"}, {Name: "run_id"},
			},
			DoNothing: true,
		}).
		Create(&payloads)
	if res.Error != nil {
		return 0, 0, res.Error
	}
	inserted = int(res.RowsAffected)
	skipped = len(payloads) - inserted
	return inserted, skipped, nil
}

// ListByRun retrieves every raw payload landed by one ingestion run.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - runID: ingestion run id.
// Returns:
//   - []domain.RawPayload: matching rows.
//   - error: non-nil if the query fails.
func (r *RawPayloadRepository) ListByRun(ctx context.Context, runID string) ([]domain.RawPayload, error) {
	var rows []domain.RawPayload
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("captured_at ASC").
		Find(&rows).Error; err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, err
	}
	return rows, nil
}
