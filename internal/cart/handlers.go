package cart

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/novahub/internal/catalog"
	"github.com/noah-isme/novahub/internal/common"
	"github.com/noah-isme/novahub/internal/customer"
	"github.com/noah-isme/novahub/internal/pricing"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

type mutation func(ctx context.Context, customerID, cartID string) (View, error)

func (h *Handler) run(w http.ResponseWriter, r *http.Request, status int, fn mutation) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	customerID, ok := common.CustomerID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "customer session required", nil)
		return
	}
	view, err := fn(r.Context(), customerID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, status, map[string]any{"data": view})
}

// Create handles POST /api/v1/carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusCreated, func(ctx context.Context, customerID, _ string) (View, error) {
		return h.Svc.Create(ctx, customerID)
	})
}

// Get handles GET /api/v1/carts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, func(ctx context.Context, customerID, cartID string) (View, error) {
		return h.Svc.Get(ctx, customerID, cartID)
	})
}

// AddItem handles POST /api/v1/carts/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID string `json:"product_id"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.ProductID == "" {
		writeError(w, common.BadRequest("product_id", "product_id is required", nil))
		return
	}
	h.run(w, r, http.StatusOK, func(ctx context.Context, customerID, cartID string) (View, error) {
		return h.Svc.AddItem(ctx, customerID, cartID, body.ProductID)
	})
}

// BulkAdd handles POST /api/v1/carts/{id}/items/bulk.
func (h *Handler) BulkAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductIDs []string `json:"product_ids"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	h.run(w, r, http.StatusOK, func(ctx context.Context, customerID, cartID string) (View, error) {
		return h.Svc.BulkAdd(ctx, customerID, cartID, body.ProductIDs)
	})
}

// UpdateItem handles PATCH /api/v1/carts/{id}/items/{productId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity *int `json:"quantity"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Quantity == nil {
		writeError(w, common.BadRequest("quantity", "quantity is required", nil))
		return
	}
	productID := chi.URLParam(r, "productId")
	h.run(w, r, http.StatusOK, func(ctx context.Context, customerID, cartID string) (View, error) {
		return h.Svc.SetQuantity(ctx, customerID, cartID, productID, *body.Quantity)
	})
}

// Increment handles POST /api/v1/carts/{id}/items/{productId}/increment.
func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	h.run(w, r, http.StatusOK, func(ctx context.Context, customerID, cartID string) (View, error) {
		return h.Svc.Increment(ctx, customerID, cartID, productID)
	})
}

// Decrement handles POST /api/v1/carts/{id}/items/{productId}/decrement.
func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	h.run(w, r, http.StatusOK, func(ctx context.Context, customerID, cartID string) (View, error) {
		return h.Svc.Decrement(ctx, customerID, cartID, productID)
	})
}

// RemoveItem handles DELETE /api/v1/carts/{id}/items/{productId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	h.run(w, r, http.StatusOK, func(ctx context.Context, customerID, cartID string) (View, error) {
		return h.Svc.RemoveItem(ctx, customerID, cartID, productID)
	})
}

// ApplyCode handles POST /api/v1/carts/{id}/code.
func (h *Handler) ApplyCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	h.run(w, r, http.StatusOK, func(ctx context.Context, customerID, cartID string) (View, error) {
		return h.Svc.ApplyCode(ctx, customerID, cartID, body.Code)
	})
}

// ClearCode handles DELETE /api/v1/carts/{id}/code.
func (h *Handler) ClearCode(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, http.StatusOK, func(ctx context.Context, customerID, cartID string) (View, error) {
		return h.Svc.ClearCode(ctx, customerID, cartID)
	})
}

// SwitchCustomer handles PUT /api/v1/admin/carts/{id}/customer.
func (h *Handler) SwitchCustomer(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var body struct {
		CustomerID string `json:"customer_id"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	view, err := h.Svc.SwitchCustomer(r.Context(), chi.URLParam(r, "id"), body.CustomerID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "item not in cart", nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
	case errors.Is(err, customer.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "customer not found", nil)
	case errors.Is(err, pricing.ErrInvalidCode):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_CODE", "discount code is not valid", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	case common.WriteAppError(w, err):
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
