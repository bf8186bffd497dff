package dq

import (
	"testing"
	"time"

	"github.com/calum/marketsync/internal/domain"
)

func strPtr(s string) *string     { return &s }
func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }
func timePtr(t time.Time) *time.Time {
	return &t
}

var asOf = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func cleanRecord() domain.ItemRecord {
	return domain.ItemRecord{
		ASIN:          "B001",
		MarketplaceID: 1,
		Title:         strPtr("Widget"),
		PriceIncVAT:   floatPtr(24.99),
		TotalStock:    intPtr(100),
		SalesRank:     intPtr(1543),
		SellerCount:   intPtr(5),
		Volatility90d: floatPtr(0.1),
		MarketDataAt:  timePtr(asOf.Add(-2 * time.Hour)),
	}
}

func findIssue(issues []domain.DQIssue, kind domain.IssueKind, field string) *domain.DQIssue {
	for i := range issues {
		if issues[i].Kind == kind && issues[i].Field == field {
			return &issues[i]
		}
	}
	return nil
}

func TestRunChecksCleanRecord(t *testing.T) {
	e := NewEngine(DefaultConfig())
	issues := e.RunChecks(cleanRecord(), "run-1", asOf)
	if len(issues) != 0 {
		t.Errorf("clean record produced %d issues: %+v", len(issues), issues)
	}
}

func TestRunChecksNegativeStock(t *testing.T) {
	rec := cleanRecord()
	rec.TotalStock = intPtr(-10)

	e := NewEngine(DefaultConfig())
	issues := e.RunChecks(rec, "run-1", asOf)

	issue := findIssue(issues, domain.IssueInvalidValue, "total_stock")
	if issue == nil {
		t.Fatalf("no invalid_value issue for negative stock; got %+v", issues)
	}
	if issue.Severity != domain.SeverityCritical {
		t.Errorf("severity = %s, want critical", issue.Severity)
	}
}

func TestRunChecksNonPositivePrice(t *testing.T) {
	rec := cleanRecord()
	rec.PriceIncVAT = floatPtr(0)

	e := NewEngine(DefaultConfig())
	issues := e.RunChecks(rec, "run-1", asOf)

	issue := findIssue(issues, domain.IssueInvalidValue, "price_inc_vat")
	if issue == nil {
		t.Fatalf("no invalid_value issue for zero price; got %+v", issues)
	}
	if issue.Severity != domain.SeverityWarn {
		t.Errorf("severity = %s, want warn", issue.Severity)
	}
}

func TestRunChecksMissingFields(t *testing.T) {
	rec := cleanRecord()
	rec.Title = strPtr("   ")
	rec.PriceIncVAT = nil
	rec.TotalStock = nil

	e := NewEngine(DefaultConfig())
	issues := e.RunChecks(rec, "run-1", asOf)

	for _, field := range []string{"title", "price_inc_vat", "total_stock"} {
		issue := findIssue(issues, domain.IssueMissingField, field)
		if issue == nil {
			t.Errorf("no missing_field issue for %s", field)
			continue
		}
		if issue.Severity != domain.SeverityWarn {
			t.Errorf("%s severity = %s, want warn", field, issue.Severity)
		}
	}
}

func TestRunChecksStaleMarketData(t *testing.T) {
	rec := cleanRecord()
	rec.MarketDataAt = timePtr(asOf.Add(-80 * time.Hour))

	e := NewEngine(DefaultConfig())
	issues := e.RunChecks(rec, "run-1", asOf)

	if findIssue(issues, domain.IssueStaleData, "market_data_at") == nil {
		t.Errorf("no stale_data issue for 80h-old data; got %+v", issues)
	}

	// Inside the window: no issue.
	rec.MarketDataAt = timePtr(asOf.Add(-71 * time.Hour))
	issues = e.RunChecks(rec, "run-1", asOf)
	if findIssue(issues, domain.IssueStaleData, "market_data_at") != nil {
		t.Error("stale_data issue raised inside the 72h window")
	}
}

func TestRunChecksVolatility(t *testing.T) {
	rec := cleanRecord()
	rec.Volatility90d = floatPtr(0.9)

	e := NewEngine(DefaultConfig())
	issues := e.RunChecks(rec, "run-1", asOf)
	if findIssue(issues, domain.IssueOutOfRange, "volatility_90d") == nil {
		t.Errorf("no out_of_range issue for volatility 0.9; got %+v", issues)
	}
}

func TestRunChecksMissingMarketData(t *testing.T) {
	rec := domain.ItemRecord{
		ASIN:          "B001",
		MarketplaceID: 1,
		Title:         strPtr("Widget"),
		PriceIncVAT:   floatPtr(24.99),
		TotalStock:    intPtr(100),
	}

	e := NewEngine(DefaultConfig())
	issues := e.RunChecks(rec, "run-1", asOf)

	issue := findIssue(issues, domain.IssueMissingField, "market_data")
	if issue == nil {
		t.Fatalf("no sentinel issue for absent market data; got %+v", issues)
	}
	if issue.Severity != domain.SeverityWarn {
		t.Errorf("severity = %s, want warn", issue.Severity)
	}
}

// RunChecks is total: an entirely empty record must produce issues, not panic.
func TestRunChecksEmptyRecord(t *testing.T) {
	e := NewEngine(Config{})
	issues := e.RunChecks(domain.ItemRecord{ASIN: "B002", MarketplaceID: 2}, "run-9", asOf)
	if len(issues) == 0 {
		t.Error("empty record produced no issues")
	}
	for _, iss := range issues {
		if iss.Status != domain.IssueStatusOpen {
			t.Errorf("issue created with status %s, want open", iss.Status)
		}
		if iss.ASIN != "B002" || iss.MarketplaceID != 2 {
			t.Errorf("issue not bound to the item: %+v", iss)
		}
	}
}
