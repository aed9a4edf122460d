// Package handler exposes the ask pipeline over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/civicpulse/civicpulse/internal/ask"
	dErrors "github.com/civicpulse/civicpulse/pkg/domain-errors"
	"github.com/civicpulse/civicpulse/pkg/platform/httputil"
)

// Health reports collaborator readiness for the health endpoint.
type Health struct {
	PersonaCount     int  `json:"persona_count"`
	ProfilesDegraded bool `json:"profiles_degraded"`
	ProviderHealthy  bool `json:"provider_healthy"`
}

// HealthChecker supplies the current readiness snapshot.
type HealthChecker func() Health

// Handler mounts the public routes.
type Handler struct {
	service *ask.Service
	health  HealthChecker
	logger  *slog.Logger
}

// New constructs the handler.
func New(logger *slog.Logger, service *ask.Service, health HealthChecker) *Handler {
	return &Handler{service: service, health: health, logger: logger}
}

// Register mounts the ask routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/ask", h.ask)
	r.Get("/options", h.options)
	r.Post("/cohorts", h.createCohort)
	r.Get("/cohorts/{id}", h.getCohort)
	r.Post("/cohorts/{id}/ask", h.askCohort)
	r.Get("/healthz", h.healthz)
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	var req ask.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	result, err := h.service.Ask(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) options(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Options())
}

func (h *Handler) createCohort(w http.ResponseWriter, r *http.Request) {
	var req ask.CreateCohortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	c, err := h.service.CreateCohort(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) getCohort(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCohort(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) askCohort(w http.ResponseWriter, r *http.Request) {
	var req ask.CohortAskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	result, err := h.service.AskCohort(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	snapshot := h.health()
	status := http.StatusOK
	if !snapshot.ProviderHealthy || snapshot.PersonaCount == 0 {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, snapshot)
}

// writeServiceError logs internal failures and translates the error into
// the shared envelope, attaching the correlation id when the service
// recorded failure detail under one.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), "ask operation failed", "error", err)
	}

	var correlated *ask.CorrelatedError
	if errors.As(err, &correlated) {
		httputil.WriteErrorWithCorrelation(w, err, correlated.CorrelationID)
		return
	}
	httputil.WriteError(w, err)
}
