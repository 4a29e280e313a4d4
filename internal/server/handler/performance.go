package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/arbot-io/arbot/internal/ledger"
)

// PerformanceHandler serves ledger-derived metrics.
type PerformanceHandler struct {
	books  *ledger.Ledger
	logger *slog.Logger
}

// NewPerformanceHandler creates a PerformanceHandler.
func NewPerformanceHandler(books *ledger.Ledger, logger *slog.Logger) *PerformanceHandler {
	return &PerformanceHandler{
		books:  books,
		logger: logger.With(slog.String("handler", "performance")),
	}
}

// Summary returns performance metrics plus the most recent trades.
// GET /api/performance?recent=10
func (h *PerformanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	recent := 10
	if v := r.URL.Query().Get("recent"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			recent = n
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics":      h.books.Performance(),
		"recentTrades": h.books.RecentTrades(recent),
	})
}

// Balances returns per-venue per-asset free balances.
// GET /api/balances
func (h *PerformanceHandler) Balances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.books.VenueBalances())
}
