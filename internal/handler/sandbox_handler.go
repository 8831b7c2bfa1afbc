package handler

import (
	"errors"
	"net/http"

	"storefront/internal/gateway"
	"storefront/internal/model"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// SandboxHandler lets local clients pay sandbox sessions, standing in for the
// hosted checkout page of a real provider.
type SandboxHandler struct {
	sandbox *gateway.Sandbox
	logger  zerolog.Logger
}

// NewSandboxHandler creates a new sandbox handler.
func NewSandboxHandler(sandbox *gateway.Sandbox, logger zerolog.Logger) *SandboxHandler {
	return &SandboxHandler{
		sandbox: sandbox,
		logger:  logger.With().Str("handler", "sandbox").Logger(),
	}
}

type payResponse struct {
	SessionToken string `json:"sessionToken"`
	PaymentRef   string `json:"paymentRef"`
}

// Pay handles POST /api/sandbox/sessions/{token}/pay requests.
func (h *SandboxHandler) Pay(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	ref, err := h.sandbox.Pay(token, r.URL.Query().Get("ref"))
	switch {
	case errors.Is(err, gateway.ErrSessionNotFound):
		writeServiceError(w, model.ErrInvalidSession, h.logger)
		return
	case errors.Is(err, gateway.ErrSessionExpired):
		writeError(w, http.StatusConflict, model.ErrCodeInvalidSession, "session has expired", h.logger)
		return
	case err != nil:
		writeServiceError(w, err, h.logger)
		return
	}

	h.logger.Info().Str("session_token", token).Str("payment_ref", ref).Msg("sandbox session paid")
	writeJSON(w, http.StatusOK, payResponse{SessionToken: token, PaymentRef: ref})
}
