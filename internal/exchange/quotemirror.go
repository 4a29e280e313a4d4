package exchange

import (
	"context"
	"log/slog"

	"github.com/arbot-io/arbot/internal/domain"
)

// QuoteMirror decorates an ExchangeClient so every fetched order book is
// written through to the shared quote cache. Cache failures never fail the
// fetch; the book in hand is always authoritative.
type QuoteMirror struct {
	domain.ExchangeClient
	cache  domain.QuoteCache
	logger *slog.Logger
}

// WithQuoteMirror wraps client with the given cache. A nil cache returns the
// client unchanged.
func WithQuoteMirror(client domain.ExchangeClient, cache domain.QuoteCache, logger *slog.Logger) domain.ExchangeClient {
	if cache == nil {
		return client
	}
	return &QuoteMirror{
		ExchangeClient: client,
		cache:          cache,
		logger:         logger.With(slog.String("component", "quote_mirror")),
	}
}

// FetchOrderBook delegates and mirrors the result to the cache.
func (m *QuoteMirror) FetchOrderBook(ctx context.Context, symbol string, depth int) (domain.VenueQuote, error) {
	book, err := m.ExchangeClient.FetchOrderBook(ctx, symbol, depth)
	if err != nil {
		return book, err
	}
	if cacheErr := m.cache.SetQuote(ctx, book); cacheErr != nil {
		m.logger.Debug("quote cache write failed",
			slog.String("venue", book.Venue),
			slog.String("symbol", symbol),
			slog.String("error", cacheErr.Error()),
		)
	}
	return book, nil
}

var _ domain.ExchangeClient = (*QuoteMirror)(nil)
