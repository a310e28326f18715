package discount

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/novahub/internal/common"
	"github.com/noah-isme/novahub/internal/pricing"
)

// Handler exposes admin discount endpoints.
type Handler struct {
	Svc *Service
}

// List handles GET /api/v1/admin/discounts.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount service not configured", nil)
		return
	}
	rules, err := h.Svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rules})
}

// Get handles GET /api/v1/admin/discounts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount service not configured", nil)
		return
	}
	rule, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rule})
}

// Create handles POST /api/v1/admin/discounts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount service not configured", nil)
		return
	}
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	rule, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": rule})
}

// SetActive handles PATCH /api/v1/admin/discounts/{id}.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount service not configured", nil)
		return
	}
	var body struct {
		IsActive *bool `json:"is_active"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.IsActive == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "is_active is required", nil)
		return
	}
	rule, err := h.Svc.SetActive(r.Context(), chi.URLParam(r, "id"), *body.IsActive)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rule})
}

// Delete handles DELETE /api/v1/admin/discounts/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount service not configured", nil)
		return
	}
	if err := h.Svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Markdown handles PUT /api/v1/admin/products/{id}/markdown.
func (h *Handler) Markdown(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount service not configured", nil)
		return
	}
	var body struct {
		Percentage int `json:"percentage"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	rule, err := h.Svc.SetMarkdown(r.Context(), chi.URLParam(r, "id"), body.Percentage)
	if err != nil {
		writeError(w, err)
		return
	}
	if rule == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rule})
}

// Preview handles POST /api/v1/admin/discounts/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount service not configured", nil)
		return
	}
	var in PreviewInput
	if err := common.DecodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	totals, err := h.Svc.Preview(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": totals})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "discount rule not found", nil)
	case errors.Is(err, ErrDuplicateCode):
		common.JSONError(w, http.StatusConflict, "DUPLICATE_CODE", err.Error(), nil)
	case errors.Is(err, pricing.ErrInvalidCode):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_CODE", "discount code is not valid", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	case common.WriteAppError(w, err):
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
