package checkout

import (
	"errors"
	"net/http"

	"github.com/noah-isme/novahub/internal/cart"
	"github.com/noah-isme/novahub/internal/common"
	"github.com/noah-isme/novahub/internal/customer"
	"github.com/noah-isme/novahub/internal/order"
	"github.com/noah-isme/novahub/internal/pricing"
)

type Handler struct {
	Svc *Service
}

// Checkout handles POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	customerID, ok := common.CustomerID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "customer session required", nil)
		return
	}
	var payload Input
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	o, err := h.Svc.Checkout(r.Context(), customerID, payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": o})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, customer.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "customer not found", nil)
	case errors.Is(err, order.ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart is empty", nil)
	case errors.Is(err, order.ErrMissingShippingAddress):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "shipping address is required", map[string]any{"field": "shipping_address"})
	case errors.Is(err, pricing.ErrInvalidCode):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_CODE", "applied discount code is no longer valid", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	case common.WriteAppError(w, err):
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
	}
}
