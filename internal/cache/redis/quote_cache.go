package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arbot-io/arbot/internal/domain"
)

// defaultQuoteTTL bounds how stale a cached book may get before readers see
// a miss instead of old prices.
const defaultQuoteTTL = 10 * time.Second

// QuoteCache implements domain.QuoteCache. Each venue+symbol book is stored
// as one JSON blob and replaced wholesale on every poll; books are never
// merged across polls.
//
// Key schema:
//
//	quote:{venue}:{symbol}  - JSON-encoded domain.VenueQuote, with TTL
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache. A non-positive ttl selects the default.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = defaultQuoteTTL
	}
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(venue, symbol string) string {
	return "quote:" + strings.ToLower(venue) + ":" + strings.ToUpper(symbol)
}

// SetQuote stores the quote, replacing any previous book for the same
// venue+symbol.
func (qc *QuoteCache) SetQuote(ctx context.Context, quote domain.VenueQuote) error {
	payload, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("redis: marshal quote %s %s: %w", quote.Venue, quote.Symbol, err)
	}
	key := quoteKey(quote.Venue, quote.Symbol)
	if err := qc.rdb.Set(ctx, key, payload, qc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", key, err)
	}
	return nil
}

// GetQuote returns the cached quote, or domain.ErrNotFound when the key is
// missing or expired.
func (qc *QuoteCache) GetQuote(ctx context.Context, venue, symbol string) (domain.VenueQuote, error) {
	key := quoteKey(venue, symbol)
	payload, err := qc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.VenueQuote{}, fmt.Errorf("redis: quote %s: %w", key, domain.ErrNotFound)
		}
		return domain.VenueQuote{}, fmt.Errorf("redis: get quote %s: %w", key, err)
	}
	var quote domain.VenueQuote
	if err := json.Unmarshal(payload, &quote); err != nil {
		return domain.VenueQuote{}, fmt.Errorf("redis: unmarshal quote %s: %w", key, err)
	}
	return quote, nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
