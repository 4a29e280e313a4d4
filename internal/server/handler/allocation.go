package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/arbot-io/arbot/internal/allocation"
	"github.com/arbot-io/arbot/internal/ledger"
)

// AllocationHandler serves capital allocation predictions and transfer plans.
type AllocationHandler struct {
	predictor *allocation.Predictor
	books     *ledger.Ledger
	venues    []string
	logger    *slog.Logger
}

// NewAllocationHandler creates an AllocationHandler over the configured
// venue set.
func NewAllocationHandler(predictor *allocation.Predictor, books *ledger.Ledger, venues []string, logger *slog.Logger) *AllocationHandler {
	return &AllocationHandler{
		predictor: predictor,
		books:     books,
		venues:    venues,
		logger:    logger.With(slog.String("handler", "allocation")),
	}
}

// currentQuote returns the USDT balance per venue.
func (h *AllocationHandler) currentQuote() map[string]float64 {
	current := make(map[string]float64, len(h.venues))
	for _, venue := range h.venues {
		current[strings.ToLower(venue)] = h.books.Balance(venue, "USDT")
	}
	return current
}

// Summary computes the target allocation for the given (or current) capital
// and the transfer plan to reach it.
// GET /api/allocation?capital=5000
func (h *AllocationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	current := h.currentQuote()

	capital := 0.0
	for _, free := range current {
		capital += free
	}
	if v := r.URL.Query().Get("capital"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			capital = f
		}
	}

	target, err := h.predictor.PredictOptimalDistribution(r.Context(), capital, h.venues)
	if err != nil {
		h.logger.Error("allocation prediction failed", slog.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	plan := h.predictor.CalculateTransfers(current, target)
	writeJSON(w, http.StatusOK, map[string]any{
		"totalCapital":    capital,
		"current":         current,
		"target":          target,
		"shouldRebalance": h.predictor.ShouldRebalance(current, target),
		"transfers":       plan.Transfers,
		"totalMoved":      plan.TotalMoved,
		"shortfallUsd":    plan.ShortfallUSD,
	})
}
