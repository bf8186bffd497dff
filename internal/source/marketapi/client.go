package marketapi

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

// observationResponse enumerates every field the market API may send.
// Decoding is strict so provider contract changes fail loudly.
type observationResponse struct {
	ASIN             string   `json:"asin"`
	Marketplace      *int     `json:"marketplace"`
	Title            *string  `json:"title"`
	Brand            *string  `json:"brand"`
	CategoryPath     *string  `json:"category_path"`
	ListedPrice      *float64 `json:"listed_price"`
	ListedStock      *int     `json:"listed_stock"`
	BuyBoxPrice      *float64 `json:"buy_box_price"`
	BuyBoxSellerID   *string  `json:"buy_box_seller_id"`
	SalesRank        *int     `json:"sales_rank"`
	SellerCount      *int     `json:"seller_count"`
	KeepaPriceP2590d *int     `json:"keepa_price_p25_90d"`
	Volatility90d    *float64 `json:"volatility_90d"`
	DataAt           *string  `json:"data_at"`
}

// Client fetches third-party market observations (buy box, sales rank,
// competitor counts, Keepa-style price history aggregates).
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient creates a market API client with a client-side token bucket.
// Parameters:
//   - cfg: connection settings.
// Returns:
//   - *Client: initialized client.
func NewClient(cfg *source.ClientConfig) *Client {
	httpClient := resty.New()
	httpClient.SetBaseURL(cfg.BaseURL)
	httpClient.SetHeader("X-Api-Key", cfg.APIKey)
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
	return domain.SourceMarketAPI
}

// Fetch retrieves the market API's latest observation for one item. A 404
// means the item simply has no market observation yet; callers decide whether
// that is acceptable.
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
		SetQueryParam("marketplace", fmt.Sprintf("%d", marketplaceID)).
		Get("/v2/observations/{asin}")
	if err != nil {
		return nil, fmt.Errorf("market api request failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		strict := json.NewDecoder(bytes.NewReader(resp.Body()))
		strict.DisallowUnknownFields()
		var checked observationResponse
		if err := strict.Decode(&checked); err != nil {
			return nil, fmt.Errorf("market api payload rejected: %w", err)
		}

		dec := json.NewDecoder(bytes.NewReader(resp.Body()))
		dec.UseNumber()
		var payload domain.JSONMap
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("market api returned invalid JSON: %w", err)
		}
		return payload, nil
	case http.StatusNotFound:
		return nil, source.ErrNotFound
	case http.StatusTooManyRequests:
		return nil, &source.RateLimitError{
			Source:     domain.SourceMarketAPI,
			RetryAfter: source.ParseRetryAfter(resp.Header().Get("Retry-After")),
		}
	default:
		return nil, fmt.Errorf("market api error: status %d", resp.StatusCode())
	}
}
