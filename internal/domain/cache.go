package domain

import (
	"context"
	"time"
)

// RateLimiter gates outbound calls per venue. Allow counts the request when
// permitted; Wait blocks until a slot is available or the context ends.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// QuoteCache holds the latest VenueQuote per venue+symbol. Quotes are
// replaced wholesale; stale entries expire via TTL.
type QuoteCache interface {
	SetQuote(ctx context.Context, quote VenueQuote) error
	GetQuote(ctx context.Context, venue, symbol string) (VenueQuote, error)
}

// StreamMessage is a single entry read from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub for ephemeral events and durable streams for
// opportunity and trade records.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
