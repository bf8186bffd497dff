// Package service orchestrates the ingestion pipeline: fetch, land, merge,
// fingerprint, snapshot, upsert, and data-quality checks. Services consume
// narrow store interfaces so tests can drive them without a database.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calum/marketsync/internal/coerce"
	"github.com/calum/marketsync/internal/domain"
	"github.com/calum/marketsync/internal/dq"
	"github.com/calum/marketsync/internal/fingerprint"
	"github.com/calum/marketsync/internal/logger"
	"github.com/calum/marketsync/internal/merge"
	"github.com/calum/marketsync/internal/queue"
	"github.com/calum/marketsync/internal/source"
)

// RawPayloadStore lands external payloads immutably.
type RawPayloadStore interface {
	InsertBatch(ctx context.Context, payloads []domain.RawPayload) (inserted, skipped int, err error)
}

// SnapshotStore is the append-only snapshot ledger.
type SnapshotStore interface {
	Append(ctx context.Context, snap *domain.Snapshot) error
	PreviousFingerprint(ctx context.Context, asin string, marketplaceID int, before time.Time) (string, error)
	ListByItem(ctx context.Context, asin string, marketplaceID int, limit int) ([]domain.Snapshot, error)
}

// CurrentStateStore materializes the freshness-guarded current row per item.
type CurrentStateStore interface {
	Upsert(ctx context.Context, state *domain.CurrentState) error
}

// DQIssueStore records and resolves data-quality issues.
type DQIssueStore interface {
	CreateBatch(ctx context.Context, issues []domain.DQIssue) error
	AutoResolve(ctx context.Context, asin string, marketplaceID int, kinds []domain.IssueKind, now time.Time) (int64, error)
}

// SyncService runs one full ingestion pass for an item: fetch both sources,
// land the raw payloads, merge and derive, fingerprint, append a snapshot,
// upsert current state, and record data-quality issues.
type SyncService struct {
	seller   source.Client
	market   source.Client
	raw      RawPayloadStore
	snaps    SnapshotStore
	current  CurrentStateStore
	issues   DQIssueStore
	dqEngine *dq.Engine
	now      func() time.Time
}

// NewSyncService creates a sync service.
// Parameters:
//   - seller: first-party seller API client.
//   - market: third-party market API client.
//   - raw: raw payload landing store.
//   - snaps: snapshot ledger store.
//   - current: current-state store.
//   - issues: data-quality issue store.
//   - dqEngine: rule engine.
// Returns:
//   - *SyncService: initialized service.
func NewSyncService(seller, market source.Client, raw RawPayloadStore, snaps SnapshotStore, current CurrentStateStore, issues DQIssueStore, dqEngine *dq.Engine) *SyncService {
	return &SyncService{
		seller:   seller,
		market:   market,
		raw:      raw,
		snaps:    snaps,
		current:  current,
		issues:   issues,
		dqEngine: dqEngine,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandleItemSync executes one item_sync task end to end. The whole pass is
// idempotent: re-running with the same inputs lands no duplicate payloads,
// produces the same fingerprint, and the freshness guard makes the current-state
// write safe against reordering.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - task: claimed task whose payload names the item.
// Returns:
//   - *queue.Result: run summary and follow-ups.
//   - error: non-nil to trigger retry or terminal failure.
func (s *SyncService) HandleItemSync(ctx context.Context, task *domain.Task) (*queue.Result, error) {
	asin, marketplaceID, err := parseItemPayload(task.Payload)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	asOf := s.now()
	log := logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldRunID: runID,
		logger.FieldASIN:  asin,
	})

	// Fetch both sources. The seller API is authoritative: its absence fails
	// the run. A missing market observation is normal for new items and only
	// degrades the record.
	sellerPayload, err := s.seller.Fetch(ctx, asin, marketplaceID)
	if err != nil {
		return nil, wrapSourceErr("seller api", err)
	}

	marketPayload, err := s.market.Fetch(ctx, asin, marketplaceID)
	marketMissing := false
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			marketMissing = true
			log.Debug("No market observation for item")
		} else {
			return nil, wrapSourceErr("market api", err)
		}
	}

	// Land raw payloads before any transformation so a later bug can always
	// be replayed from what was actually received.
	rawRows := []domain.RawPayload{{
		ID:            uuid.New().String(),
		ASIN:          asin,
		MarketplaceID: marketplaceID,
		Source:        s.seller.Source(),
		RunID:         runID,
		Payload:       sellerPayload,
		CapturedAt:    asOf,
	}}
	if !marketMissing {
		rawRows = append(rawRows, domain.RawPayload{
			ID:            uuid.New().String(),
			ASIN:          asin,
			MarketplaceID: marketplaceID,
			Source:        s.market.Source(),
			RunID:         runID,
			Payload:       marketPayload,
			CapturedAt:    asOf,
		})
	}
	inserted, skipped, err := s.raw.InsertBatch(ctx, rawRows)
	if err != nil {
		return nil, fmt.Errorf("failed to land raw payloads: %w", err)
	}

	own := merge.FlattenSellerAPI(asin, marketplaceID, sellerPayload)
	observed := merge.FlattenMarketAPI(asin, marketplaceID, marketPayload)
	record := merge.Derive(merge.Merge(own, observed))

	fp, err := fingerprint.Generate(record)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint record: %w", err)
	}

	prevFP, err := s.snaps.PreviousFingerprint(ctx, asin, marketplaceID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous fingerprint: %w", err)
	}
	changed := prevFP != fp

	snap := &domain.Snapshot{
		ID:               uuid.New().String(),
		ASIN:             asin,
		MarketplaceID:    marketplaceID,
		RunID:            runID,
		Record:           record,
		Fingerprint:      fp,
		TransformVersion: merge.TransformVersion,
		AsOf:             asOf,
	}
	if err := s.snaps.Append(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to append snapshot: %w", err)
	}

	if err := s.current.Upsert(ctx, currentStateFrom(record, snap)); err != nil {
		return nil, fmt.Errorf("failed to upsert current state: %w", err)
	}

	// DQ never blocks ingestion: the snapshot and current state are already
	// durable by the time rules run.
	issues := s.dqEngine.RunChecks(record, runID, asOf)
	for i := range issues {
		issues[i].SnapshotID = &snap.ID
	}
	if len(issues) > 0 {
		if err := s.issues.CreateBatch(ctx, issues); err != nil {
			log.WithError(err).Error("Failed to record data-quality issues")
		}
	} else {
		resolved, err := s.issues.AutoResolve(ctx, asin, marketplaceID, nil, asOf)
		if err != nil {
			log.WithError(err).Error("Failed to auto-resolve data-quality issues")
		} else if resolved > 0 {
			log.WithField(logger.FieldCount, resolved).Info("Auto-resolved open issues after clean run")
		}
	}

	log.WithFields(logger.Fields{
		"fingerprint": fp,
		"changed":     changed,
		"dq_issues":   len(issues),
	}).Info("Item sync completed")

	result := &queue.Result{
		Output: domain.JSONMap{
			"run_id":       runID,
			"snapshot_id":  snap.ID,
			"fingerprint":  fp,
			"changed":      changed,
			"dq_issues":    len(issues),
			"raw_inserted": inserted,
			"raw_skipped":  skipped,
		},
	}
	if changed {
		result.FollowUps = append(result.FollowUps, queue.FollowUp{
			Type:       domain.TaskTypeFeatureRecompute,
			EntityType: "item",
			EntityID:   itemEntityID(asin, marketplaceID),
			Payload: domain.JSONMap{
				"asin":           asin,
				"marketplace_id": marketplaceID,
			},
		})
	}
	return result, nil
}

// parseItemPayload extracts the item scope from a task payload.
func parseItemPayload(payload domain.JSONMap) (string, int, error) {
	asin := coerce.ToString(payload["asin"])
	if asin == nil || *asin == "" {
		return "", 0, fmt.Errorf("task payload missing asin")
	}
	marketplaceID := coerce.ToInt(payload["marketplace_id"])
	if marketplaceID == nil {
		return "", 0, fmt.Errorf("task payload missing marketplace_id")
	}
	return *asin, *marketplaceID, nil
}

// itemEntityID builds the task scope key for one item.
func itemEntityID(asin string, marketplaceID int) string {
	return fmt.Sprintf("%s:%d", asin, marketplaceID)
}

// wrapSourceErr converts provider throttling into a retry hint the worker
// honors over its own backoff; everything else passes through annotated.
func wrapSourceErr(name string, err error) error {
	var rl *source.RateLimitError
	if errors.As(err, &rl) {
		return &queue.RetryAfterError{After: rl.RetryAfter, Err: fmt.Errorf("%s: %w", name, err)}
	}
	return fmt.Errorf("%s: %w", name, err)
}

// currentStateFrom projects a derived record plus its snapshot identity onto
// the current-state row shape.
func currentStateFrom(rec domain.ItemRecord, snap *domain.Snapshot) *domain.CurrentState {
	return &domain.CurrentState{
		ASIN:             rec.ASIN,
		MarketplaceID:    rec.MarketplaceID,
		Title:            rec.Title,
		Brand:            rec.Brand,
		CategoryPath:     rec.CategoryPath,
		PriceIncVAT:      rec.PriceIncVAT,
		PriceExVAT:       rec.PriceExVAT,
		TotalStock:       rec.TotalStock,
		Units30d:         rec.Units30d,
		DaysOfCover:      rec.DaysOfCover,
		OutOfStock:       rec.OutOfStock,
		BuyBoxPrice:      rec.BuyBoxPrice,
		BuyBoxSellerID:   rec.BuyBoxSellerID,
		BuyBoxLost:       rec.BuyBoxLost,
		SalesRank:        rec.SalesRank,
		SellerCount:      rec.SellerCount,
		KeepaPriceP2590d: rec.KeepaPriceP2590d,
		Volatility90d:    rec.Volatility90d,
		MarketDataAt:     rec.MarketDataAt,
		SnapshotID:       snap.ID,
		Fingerprint:      snap.Fingerprint,
		TransformVersion: snap.TransformVersion,
		AsOf:             snap.AsOf,
		UpdatedAt:        snap.AsOf,
	}
}
