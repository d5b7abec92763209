package api

import (
	"log/slog"
	"net/http"

	"github.com/kirychukyurii/gridsynapse/internal/model"
)

// Optimize handles POST /api/v1/optimize. The result is returned with 200
// whether or not a schedule was found; success and solver_status tell apart.
func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req model.OptimizeRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Optimize(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to optimize",
			slog.Int("jobs", len(req.Jobs)),
			slog.String("error", err.Error()),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to optimize")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// ListDatacenters handles GET /api/v1/datacenters
func (h *Handler) ListDatacenters(w http.ResponseWriter, r *http.Request) {
	datacenters, err := h.service.ListDatacenters(r.Context())
	if err != nil {
		h.logger.Error("failed to list datacenters",
			slog.String("error", err.Error()),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to list datacenters")
		return
	}

	h.respondJSON(w, http.StatusOK, datacenters)
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Health(r.Context()))
}
