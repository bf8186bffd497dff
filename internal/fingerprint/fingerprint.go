// Package fingerprint computes a deterministic content digest over the
// canonical subset of an item record. The digest is used to detect "nothing
// materially changed" between ingestion runs; collision resistance matters for
// integrity, not security.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/calum/marketsync/internal/domain"
)

// Canonical field keys. Every key is always present in the serialized input;
// a missing value is an explicit null so that omission and null hash the same.
const (
	keyASIN           = "asin"
	keyMarketplaceID  = "marketplace_id"
	keyPriceMinor     = "price_minor"
	keyTotalStock     = "total_stock"
	keyBuyBoxSellerID = "buy_box_seller_id"
	keyKeepaP2590d    = "keepa_price_p25_90d"
	keySellerCount    = "seller_count"
)

// MinorUnits converts a monetary amount to integer minor currency units,
// rounding half away from zero. Converting before hashing means floating-point
// representation error (0.1+0.2 vs 0.3) can never change the fingerprint.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// BuildCanonicalInput projects the fixed canonical field set out of a record.
// Parameters:
//   - rec: derived item record.
// Returns:
//   - map[string]interface{}: canonical input with every key present.
func BuildCanonicalInput(rec domain.ItemRecord) map[string]interface{} {
	in := map[string]interface{}{
		keyASIN:           rec.ASIN,
		keyMarketplaceID:  rec.MarketplaceID,
		keyPriceMinor:     nil,
		keyTotalStock:     nil,
		keyBuyBoxSellerID: nil,
		keyKeepaP2590d:    nil,
		keySellerCount:    nil,
	}
	if rec.PriceIncVAT != nil {
		in[keyPriceMinor] = MinorUnits(*rec.PriceIncVAT)
	}
	if rec.TotalStock != nil {
		in[keyTotalStock] = *rec.TotalStock
	}
	if rec.BuyBoxSellerID != nil {
		in[keyBuyBoxSellerID] = *rec.BuyBoxSellerID
	}
	if rec.KeepaPriceP2590d != nil {
		in[keyKeepaP2590d] = *rec.KeepaPriceP2590d
	}
	if rec.SellerCount != nil {
		in[keySellerCount] = *rec.SellerCount
	}
	return in
}

// Serialize produces the canonical byte string for hashing. encoding/json
// sorts map keys lexicographically, so source field order never affects the
// result.
func Serialize(input map[string]interface{}) ([]byte, error) {
	b, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize canonical input: %w", err)
	}
	return b, nil
}

// Hash returns the 64-hex-character SHA-256 digest of b.
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Generate computes the fingerprint for a record.
// Parameters:
//   - rec: derived item record.
// Returns:
//   - string: 64-hex-character digest.
//   - error: non-nil if canonical serialization fails.
func Generate(rec domain.ItemRecord) (string, error) {
	b, err := Serialize(BuildCanonicalInput(rec))
	if err != nil {
		return "", err
	}
	return Hash(b), nil
}

// Verify reports whether the record's fingerprint matches digest.
func Verify(rec domain.ItemRecord, digest string) bool {
	fp, err := Generate(rec)
	if err != nil {
		return false
	}
	return fp == digest
}
