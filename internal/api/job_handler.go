package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirychukyurii/gridsynapse/internal/model"
	"github.com/kirychukyurii/gridsynapse/internal/repository"
	"github.com/kirychukyurii/gridsynapse/internal/service"
)

// SubmitJob handles POST /api/v1/jobs
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var job model.Job
	if err := h.decodeJSON(w, r, &job); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.SubmitJob(r.Context(), &job)
	if err != nil {
		if errors.Is(err, service.ErrInvalidJob) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to submit job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to submit job")
		return
	}

	h.respondJSON(w, http.StatusAccepted, result)
}

// GetJob handles GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.respondError(w, http.StatusBadRequest, "job id is required")
		return
	}

	status, err := h.service.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			h.respondError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	h.respondJSON(w, http.StatusOK, status)
}
