package repository

import (
	"context"
	"time"

	"github.com/calum/marketsync/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DQIssueRepository handles data-quality issue rows.
type DQIssueRepository struct {
	db *gorm.DB
}

// NewDQIssueRepository creates a new DQIssueRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *DQIssueRepository: repository instance bound to db.
func NewDQIssueRepository(db *gorm.DB) *DQIssueRepository {
	return &DQIssueRepository{db: db}
}

// CreateBatch persists the issues detected by one run. IDs are filled in if
// empty.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - issues: issues to persist; no-op when empty.
// Returns:
//   - error: non-nil if the insert fails.
func (r *DQIssueRepository) CreateBatch(ctx context.Context, issues []domain.DQIssue) error {
	if len(issues) == 0 {
		return nil
	}
	for i := range issues {
		if issues[i].ID == "" {
			issues[i].ID = uuid.New().String()
		}
		if issues[i].Status == "" {
			issues[i].Status = domain.IssueStatusOpen
		}
	}
	return r.db.WithContext(ctx).Create(&issues).Error
}

// AutoResolve transitions matching open issues to resolved after a clean run.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - asin: item identifier.
//   - marketplaceID: marketplace identifier.
//   - kinds: issue kinds to resolve; nil resolves every kind.
//   - now: resolution timestamp.
// Returns:
//   - int64: number of issues resolved.
//   - error: non-nil if the update fails.
func (r *DQIssueRepository) AutoResolve(ctx context.Context, asin string, marketplaceID int, kinds []domain.IssueKind, now time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.DQIssue{}).
		Where("asin = ? AND marketplace_id = ? AND status = ?", asin, marketplaceID, domain.IssueStatusOpen)
	if len(kinds) > 0 {
		q = q.Where("kind IN ?", kinds)
	}
	res := q.Updates(map[string]interface{}{
		"status":      domain.IssueStatusResolved,
		"resolved_at": now,
	})
	if res.Error != nil {
		if isMissingRelation(res.Error) {
			return 0, nil
		}
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// SetStatus moves one issue to a new operator-chosen status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: issue ID.
//   - status: target status.
//   - now: transition timestamp, recorded as resolved_at for resolved/ignored.
// Returns:
//   - bool: true if the issue was updated.
//   - error: non-nil if the update fails.
func (r *DQIssueRepository) SetStatus(ctx context.Context, id string, status domain.IssueStatus, now time.Time) (bool, error) {
	updates := map[string]interface{}{"status": status}
	if status == domain.IssueStatusResolved || status == domain.IssueStatusIgnored {
		updates["resolved_at"] = now
	}
	res := r.db.WithContext(ctx).Model(&domain.DQIssue{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List retrieves issues, optionally filtered by status and item, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - status: status filter; empty matches all.
//   - asin: item filter; empty matches all.
//   - limit: page size.
//   - offset: page offset.
// Returns:
//   - []domain.DQIssue: matching issues.
//   - error: non-nil if the query fails.
func (r *DQIssueRepository) List(ctx context.Context, status domain.IssueStatus, asin string, limit, offset int) ([]domain.DQIssue, error) {
	q := r.db.WithContext(ctx).Model(&domain.DQIssue{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if asin != "" {
		q = q.Where("asin = ?", asin)
	}
	var issues []domain.DQIssue
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&issues).Error; err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, err
	}
	return issues, nil
}
