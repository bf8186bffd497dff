package sellerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/calum/marketsync/internal/domain"
	"github.com/calum/marketsync/internal/source"
)

// itemResponse enumerates every field the seller API may send. Decoding is
// strict: an unknown field means the provider changed its contract, and that
// must surface as an error instead of silently passing through.
type itemResponse struct {
	ASIN          string   `json:"asin"`
	MarketplaceID *int     `json:"marketplace_id"`
	Title         *string  `json:"title"`
	Brand         *string  `json:"brand"`
	Category      *string  `json:"category"`
	PriceIncVAT   *float64 `json:"price_inc_vat"`
	PriceExVAT    *float64 `json:"price_ex_vat"`
	TotalStock    *int     `json:"total_stock"`
	Units30d      *int     `json:"units_30d"`
	SellerID      *string  `json:"seller_id"`
	UpdatedAt     *string  `json:"updated_at"`
}

// Client fetches first-party catalogue data from the seller API.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient creates a seller API client with a client-side token bucket so a
// burst of sync tasks cannot exhaust the provider quota.
// Parameters:
//   - cfg: connection settings.
// Returns:
//   - *Client: initialized client.
func NewClient(cfg *source.ClientConfig) *Client {
	httpClient := resty.New()
	httpClient.SetBaseURL(cfg.BaseURL)
	httpClient.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	httpClient.SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

// Source returns the provider identity for raw payload attribution.
func (c *Client) Source() domain.SourceType {
	return domain.SourceSellerAPI
}

// Fetch retrieves the seller API's current view of one item.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - asin: item identifier.
//   - marketplaceID: marketplace scope.
// Returns:
//   - domain.JSONMap: payload exactly as received.
//   - error: source.ErrNotFound, *source.RateLimitError, or transport error.
func (c *Client) Fetch(ctx context.Context, asin string, marketplaceID int) (domain.JSONMap, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("asin", asin).
		SetQueryParam("marketplace_id", fmt.Sprintf("%d", marketplaceID)).
		Get("/v1/items/{asin}")
	if err != nil {
		return nil, fmt.Errorf("seller api request failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		// Validate against the known schema first; unknown fields are a
		// contract change, not data to pass through.
		strict := json.NewDecoder(bytes.NewReader(resp.Body()))
		strict.DisallowUnknownFields()
		var checked itemResponse
		if err := strict.Decode(&checked); err != nil {
			return nil, fmt.Errorf("seller api payload rejected: %w", err)
		}

		// Land the payload as received. UseNumber keeps integral values as
		// json.Number instead of collapsing them to float64.
		dec := json.NewDecoder(bytes.NewReader(resp.Body()))
		dec.UseNumber()
		var payload domain.JSONMap
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("seller api returned invalid JSON: %w", err)
		}
		return payload, nil
	case http.StatusNotFound:
		return nil, source.ErrNotFound
	case http.StatusTooManyRequests:
		return nil, &source.RateLimitError{
			Source:     domain.SourceSellerAPI,
			RetryAfter: source.ParseRetryAfter(resp.Header().Get("Retry-After")),
		}
	default:
		return nil, fmt.Errorf("seller api error: status %d", resp.StatusCode())
	}
}
