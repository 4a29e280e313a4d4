// Package notify delivers operator alerts over external channels. The relay
// subscribes to the engine's alert and trade channels on the signal bus and
// fans events out to the configured senders.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arbot-io/arbot/internal/domain"
	"github.com/arbot-io/arbot/internal/engine"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns the sender identifier (e.g. "telegram").
	Name() string
}

// Notifier dispatches to all senders, filtered by event kind. An empty kind
// list allows everything.
type Notifier struct {
	senders []Sender
	kinds   map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only events
// whose kind appears in kinds are forwarded; an empty list forwards all.
func NewNotifier(senders []Sender, kinds []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		allowed[strings.TrimSpace(k)] = true
	}
	return &Notifier{
		senders: senders,
		kinds:   allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers one event to all senders if its kind passes the filter.
// A failing sender does not block the others; failures are combined into one
// error.
func (n *Notifier) Notify(ctx context.Context, kind, title, message string) error {
	if len(n.kinds) > 0 && !n.kinds[kind] {
		n.logger.Debug("event filtered out", slog.String("kind", kind))
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.Error("sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// Relay consumes engine events from the signal bus and turns them into
// operator notifications.
type Relay struct {
	notifier *Notifier
	bus      domain.SignalBus
	logger   *slog.Logger
}

// NewRelay creates a Relay over the given bus and notifier.
func NewRelay(notifier *Notifier, bus domain.SignalBus, logger *slog.Logger) *Relay {
	return &Relay{
		notifier: notifier,
		bus:      bus,
		logger:   logger.With(slog.String("component", "notify_relay")),
	}
}

// Run consumes alerts and trade settlements until the context ends.
func (r *Relay) Run(ctx context.Context) error {
	alerts, err := r.bus.Subscribe(ctx, engine.ChannelAlerts)
	if err != nil {
		return fmt.Errorf("notify: subscribe alerts: %w", err)
	}
	trades, err := r.bus.Subscribe(ctx, engine.ChannelTrades)
	if err != nil {
		return fmt.Errorf("notify: subscribe trades: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-alerts:
			if !ok {
				return fmt.Errorf("notify: alert channel closed")
			}
			r.handleAlert(ctx, payload)
		case payload, ok := <-trades:
			if !ok {
				return fmt.Errorf("notify: trade channel closed")
			}
			r.handleTrade(ctx, payload)
		}
	}
}

func (r *Relay) handleAlert(ctx context.Context, payload []byte) {
	var alert engine.Alert
	if err := json.Unmarshal(payload, &alert); err != nil {
		r.logger.Warn("malformed alert payload", slog.String("error", err.Error()))
		return
	}
	title := "Arbot alert: " + alert.Kind
	_ = r.notifier.Notify(ctx, alert.Kind, title, alert.Message)
}

func (r *Relay) handleTrade(ctx context.Context, payload []byte) {
	var entry domain.LedgerEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		r.logger.Warn("malformed trade payload", slog.String("error", err.Error()))
		return
	}
	kind := "trade_settled"
	if !entry.Success {
		kind = "trade_failed"
	} else if entry.FallbackUsed {
		kind = "trade_fallback"
	}
	title := fmt.Sprintf("Arbot trade %s", entry.Coin)
	message := fmt.Sprintf("%s -> %s | amount %.6f | profit $%.2f (%.2f%%)",
		entry.BuyVenue, entry.SellVenue, entry.Amount,
		entry.RealizedProfitUSD, entry.ROIPct)
	if entry.FailureReason != "" {
		message += " | " + entry.FailureReason
	}
	_ = r.notifier.Notify(ctx, kind, title, message)
}
