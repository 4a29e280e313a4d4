package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/arbot-io/arbot/internal/domain"
)

// BlobWriter is the narrow upload capability the archiver needs.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver exports aged ledger entries to object storage as JSONL, keyed by
// year-month. Deletion from the primary store is a separate explicit step,
// performed only after the archive upload is verified.
type Archiver struct {
	writer BlobWriter
	trades domain.TradeStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver over the given writer and trade store.
func NewArchiver(writer BlobWriter, trades domain.TradeStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		trades: trades,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveTrades uploads all ledger entries older than cutoff to
// archive/trades/YYYY-MM.jsonl and returns the archived count.
func (a *Archiver) ArchiveTrades(ctx context.Context, cutoff time.Time) (int64, error) {
	entries, err := a.trades.ListOlderThan(ctx, cutoff, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", cutoff)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	count := int64(len(entries))
	a.logger.Info("trades archived",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.String("cutoff", cutoff.Format(time.RFC3339)),
	)
	return count, nil
}

// Run archives on the given interval until the context ends. Entries older
// than retention are exported each pass.
func (a *Archiver) Run(ctx context.Context, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			if _, err := a.ArchiveTrades(ctx, cutoff); err != nil {
				a.logger.Error("archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// archivePath builds the object key, partitioned by cutoff year-month:
//
//	archive/trades/2025-01.jsonl
func archivePath(kind string, cutoff time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, cutoff.Format("2006-01"))
}

// marshalJSONL serializes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
