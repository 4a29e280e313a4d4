package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/arbot-io/arbot/internal/domain"
	"github.com/arbot-io/arbot/internal/engine"
)

// TradeHandler exposes the decision pipeline and trade history.
type TradeHandler struct {
	engine *engine.Engine
	trades domain.TradeStore
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(eng *engine.Engine, trades domain.TradeStore, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		engine: eng,
		trades: trades,
		logger: logger.With(slog.String("handler", "trade")),
	}
}

// tradeRequest is the POST /api/trade body.
type tradeRequest struct {
	domain.Opportunity
	Market *domain.MarketData `json:"market,omitempty"`
}

// Trigger runs one decision cycle for a caller-supplied opportunity.
// POST /api/trade
func (h *TradeHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	decision, err := h.engine.Submit(r.Context(), req.Opportunity, req.Market)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, decision)
	case errors.Is(err, domain.ErrInvalidOpportunity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCapacityExceeded):
		writeJSON(w, http.StatusTooManyRequests, decision)
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientBalance):
		writeJSON(w, http.StatusConflict, decision)
	default:
		h.logger.Error("trade trigger failed", slog.String("error", err.Error()))
		// The decision carries the ledger entry for failed executions; return
		// it so callers can reconcile.
		if decision != nil {
			writeJSON(w, http.StatusInternalServerError, decision)
			return
		}
		writeError(w, http.StatusInternalServerError, "trade execution failed")
	}
}

// List returns ledger entries from the trade store.
// GET /api/trades
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.trades.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.Error("trade list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": entries,
		"count":  len(entries),
	})
}
