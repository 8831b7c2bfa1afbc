package handler

import (
	"net/http"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// CheckoutHandler handles checkout and order completion requests.
type CheckoutHandler struct {
	checkout    service.CheckoutService
	fulfillment service.FulfillmentService
	logger      zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(checkout service.CheckoutService, fulfillment service.FulfillmentService, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:    checkout,
		fulfillment: fulfillment,
		logger:      logger.With().Str("handler", "checkout").Logger(),
	}
}

// Begin handles POST /api/checkout/sessions requests.
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	resp, err := h.checkout.BeginCheckout(r.Context(), req.Items)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Complete handles POST /api/checkout/sessions/{token}/complete requests.
// A replayed completion answers 200 with the original order id.
func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req model.CompleteOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	result, err := h.fulfillment.CompleteOrder(r.Context(), mux.Vars(r)["token"], req.Shipping)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}
