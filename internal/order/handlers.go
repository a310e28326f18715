package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/novahub/internal/common"
)

// Handler serves order reads. Admins see every order, customers only their own.
type Handler struct {
	Svc *Service
}

func scopeFrom(r *http.Request) (Scope, bool) {
	p, ok := common.PrincipalFrom(r.Context())
	if !ok {
		return Scope{}, false
	}
	if p.IsAdmin() {
		return Scope{}, true
	}
	return Scope{CustomerID: p.Subject}, true
}

// List handles GET /orders?status=&q=&page=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	scope, ok := scopeFrom(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	filter := ListFilter{Query: r.URL.Query().Get("q")}
	if raw := r.URL.Query().Get("status"); raw != "" && raw != "ALL" {
		status, valid := ParseStatus(raw)
		if !valid {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported status", nil)
			return
		}
		filter.Status = status
	}
	orders, err := h.Svc.List(r.Context(), scope, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	items, meta := common.Paginate(orders, page, perPage)
	w.Header().Set("X-Total-Count", strconv.Itoa(meta.TotalItems))
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": meta})
}

// Stats handles GET /orders/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	scope, ok := scopeFrom(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	st, err := h.Svc.Stats(r.Context(), scope)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": st})
}

// Get handles GET /orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	o, ok := h.load(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}

// Receipt handles GET /orders/{id}/receipt.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	o, ok := h.load(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": RenderReceipt(o)})
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (Order, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return Order{}, false
	}
	scope, ok := scopeFrom(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return Order{}, false
	}
	o, err := h.Svc.Get(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return Order{}, false
	}
	return o, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStatusConflict):
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
	case common.WriteAppError(w, err):
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
