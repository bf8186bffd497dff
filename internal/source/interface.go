package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/calum/marketsync/internal/domain"
)

// ErrNotFound indicates the item does not exist at the provider.
var ErrNotFound = errors.New("item not found at source")

// RateLimitError indicates the provider throttled the request. RetryAfter
// carries the provider's hint when present, zero otherwise.
type RateLimitError struct {
	Source     domain.SourceType
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited, retry after %s", e.Source, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Source)
}

// ClientConfig holds the connection settings shared by provider clients.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
}

// ParseRetryAfter interprets a Retry-After header value, accepting both
// delta-seconds and HTTP-date forms. Returns zero when absent or malformed.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// Client defines the interface for marketplace data providers.
type Client interface {
	// Source returns the provider identity used for raw payload attribution.
	// Parameters: none.
	// Returns:
	//   - domain.SourceType: stable source identifier.
	Source() domain.SourceType

	// Fetch retrieves the provider's current view of one item.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - asin: item identifier.
	//   - marketplaceID: marketplace scope.
	// Returns:
	//   - domain.JSONMap: provider payload exactly as received.
	//   - error: ErrNotFound, *RateLimitError, or a transport/server error.
	Fetch(ctx context.Context, asin string, marketplaceID int) (domain.JSONMap, error)
}
