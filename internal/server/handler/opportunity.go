package handler

import (
	"log/slog"
	"net/http"

	"github.com/arbot-io/arbot/internal/engine"
)

// OpportunityHandler serves the recent-opportunity snapshot.
type OpportunityHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(eng *engine.Engine, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		engine: eng,
		logger: logger.With(slog.String("handler", "opportunity")),
	}
}

// ListRecent returns the newest observed opportunities, optionally filtered
// by coin.
// GET /api/opportunities/recent?coin=BTC
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	coin := r.URL.Query().Get("coin")
	opps := h.engine.RecentOpportunities(coin)

	opts := parseListOpts(r)
	if opts.Limit > 0 && len(opps) > opts.Limit {
		opps = opps[:opts.Limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": opps,
		"count":         len(opps),
	})
}
