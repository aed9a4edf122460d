package diag

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicpulse/civicpulse/internal/platform/middleware"
	dErrors "github.com/civicpulse/civicpulse/pkg/domain-errors"
	"github.com/civicpulse/civicpulse/pkg/platform/httputil"
)

const tokenTTL = 30 * time.Minute

// Handler exposes the debug surface: a token exchange and the per-operation
// raw failure lookup.
type Handler struct {
	recorder        *Recorder
	signingKey      []byte
	adminSecretHash []byte
	logger          *slog.Logger
}

// NewHandler constructs the debug handler. An empty adminSecretHash disables
// the token exchange entirely.
func NewHandler(logger *slog.Logger, recorder *Recorder, signingKey, adminSecretHash string) *Handler {
	return &Handler{
		recorder:        recorder,
		signingKey:      []byte(signingKey),
		adminSecretHash: []byte(adminSecretHash),
		logger:          logger,
	}
}

// Register mounts the debug routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/token", h.mintToken)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(string(h.signingKey), h.logger))
		r.Get("/debug/failures/{correlation_id}", h.failures)
	})
}

type tokenRequest struct {
	Secret string `json:"secret"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

func (h *Handler) mintToken(w http.ResponseWriter, r *http.Request) {
	if len(h.adminSecretHash) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "debug surface disabled"))
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	if err := bcrypt.CompareHashAndPassword(h.adminSecretHash, []byte(req.Secret)); err != nil {
		h.logger.WarnContext(r.Context(), "admin token exchange rejected")
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid admin secret"))
		return
	}

	now := time.Now()
	claims := middleware.AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.signingKey)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to sign admin token", "error", err)
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeInternal, "sign token", err))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		Token:     signed,
		ExpiresIn: int(tokenTTL.Seconds()),
	})
}

func (h *Handler) failures(w http.ResponseWriter, r *http.Request) {
	correlationID := chi.URLParam(r, "correlation_id")
	rec, ok := h.recorder.Lookup(correlationID)
	if !ok {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound,
			"no failure record for correlation id %s", correlationID))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}
