package handler

import (
	"log/slog"
	"net/http"

	"github.com/arbot-io/arbot/internal/variant"
)

// VariantHandler serves the A/B testing state.
type VariantHandler struct {
	tester *variant.Tester
	logger *slog.Logger
}

// NewVariantHandler creates a VariantHandler.
func NewVariantHandler(tester *variant.Tester, logger *slog.Logger) *VariantHandler {
	return &VariantHandler{
		tester: tester,
		logger: logger.With(slog.String("handler", "variant")),
	}
}

// Summary returns all variants with scores and the current best.
// GET /api/variants
func (h *VariantHandler) Summary(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"variants": h.tester.Report(),
	}
	if best, ok := h.tester.Best(); ok {
		resp["best"] = best.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

// Rotate advances the active variant.
// POST /api/variants/rotate
func (h *VariantHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	active := h.tester.Rotate(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"active": active.Name,
	})
}
