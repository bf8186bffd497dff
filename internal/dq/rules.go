// Package dq inspects derived item records and emits typed data-quality
// issues. The engine is pure and total: bad upstream data becomes issue rows,
// never errors, so one broken item can never halt ingestion for the rest.
package dq

import (
	"fmt"
	"strings"
	"time"

	"github.com/calum/marketsync/internal/domain"
)

// Config tunes the rule thresholds.
type Config struct {
	// StalenessThreshold is the maximum acceptable age of third-party market
	// data before a stale_data issue is raised.
	StalenessThreshold time.Duration
	// VolatilityThreshold is the 90-day volatility score above which an
	// out_of_range issue is raised.
	VolatilityThreshold float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		StalenessThreshold:  72 * time.Hour,
		VolatilityThreshold: 0.35,
	}
}

// Engine evaluates data-quality rules against derived records.
type Engine struct {
	cfg Config
}

// NewEngine creates a rule engine. Zero-valued config fields fall back to
// DefaultConfig.
// Parameters:
//   - cfg: rule thresholds.
// Returns:
//   - *Engine: initialized engine.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = def.StalenessThreshold
	}
	if cfg.VolatilityThreshold <= 0 {
		cfg.VolatilityThreshold = def.VolatilityThreshold
	}
	return &Engine{cfg: cfg}
}

// RunChecks evaluates every rule against a derived record and returns the
// detected issues. It never returns an error and never panics on nil fields;
// the caller persists the issues and decides about auto-resolution.
// Parameters:
//   - rec: derived item record.
//   - runID: ingestion run that produced the record.
//   - asOf: the record's as-of time, injected so staleness checks stay
//     deterministic.
// Returns:
//   - []domain.DQIssue: zero or more issues, IDs unset.
func (e *Engine) RunChecks(rec domain.ItemRecord, runID string, asOf time.Time) []domain.DQIssue {
	var issues []domain.DQIssue
	add := func(kind domain.IssueKind, severity domain.IssueSeverity, field, message string, details domain.JSONMap) {
		issues = append(issues, domain.DQIssue{
			ASIN:          rec.ASIN,
			MarketplaceID: rec.MarketplaceID,
			RunID:         &runID,
			Kind:          kind,
			Field:         field,
			Severity:      severity,
			Status:        domain.IssueStatusOpen,
			Message:       message,
			Details:       details,
		})
	}

	if rec.Title == nil || strings.TrimSpace(*rec.Title) == "" {
		add(domain.IssueMissingField, domain.SeverityWarn, "title", "required field title is missing or blank", nil)
	}
	if rec.PriceIncVAT == nil {
		add(domain.IssueMissingField, domain.SeverityWarn, "price_inc_vat", "required field price_inc_vat is missing", nil)
	}
	if rec.TotalStock == nil {
		add(domain.IssueMissingField, domain.SeverityWarn, "total_stock", "required field total_stock is missing", nil)
	}

	if rec.TotalStock != nil && *rec.TotalStock < 0 {
		add(domain.IssueInvalidValue, domain.SeverityCritical, "total_stock",
			fmt.Sprintf("stock count is negative: %d", *rec.TotalStock),
			domain.JSONMap{"value": *rec.TotalStock})
	}
	if rec.PriceIncVAT != nil && *rec.PriceIncVAT <= 0 {
		add(domain.IssueInvalidValue, domain.SeverityWarn, "price_inc_vat",
			fmt.Sprintf("price is non-positive: %v", *rec.PriceIncVAT),
			domain.JSONMap{"value": *rec.PriceIncVAT})
	}

	if e.hasMarketData(rec) {
		if rec.MarketDataAt != nil {
			age := asOf.Sub(*rec.MarketDataAt)
			if age > e.cfg.StalenessThreshold {
				add(domain.IssueStaleData, domain.SeverityWarn, "market_data_at",
					fmt.Sprintf("third-party data is %.0f hours old", age.Hours()),
					domain.JSONMap{"age_hours": age.Hours(), "threshold_hours": e.cfg.StalenessThreshold.Hours()})
			}
		}
		if rec.Volatility90d != nil && *rec.Volatility90d > e.cfg.VolatilityThreshold {
			add(domain.IssueOutOfRange, domain.SeverityWarn, "volatility_90d",
				fmt.Sprintf("volatility score %.3f exceeds threshold %.3f", *rec.Volatility90d, e.cfg.VolatilityThreshold),
				domain.JSONMap{"value": *rec.Volatility90d, "threshold": e.cfg.VolatilityThreshold})
		}
	} else {
		// Sentinel field: there was no third-party observation at all.
		add(domain.IssueMissingField, domain.SeverityWarn, "market_data",
			"no third-party market data available for this item", nil)
	}

	return issues
}

// hasMarketData reports whether the record carries any third-party
// observation at all.
func (e *Engine) hasMarketData(rec domain.ItemRecord) bool {
	return rec.MarketDataAt != nil ||
		rec.BuyBoxPrice != nil ||
		rec.BuyBoxSellerID != nil ||
		rec.SalesRank != nil ||
		rec.SellerCount != nil ||
		rec.KeepaPriceP2590d != nil
}
