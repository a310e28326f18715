package insights

import (
	"net/http"

	"github.com/noah-isme/novahub/internal/common"
)

// Handler exposes the admin text generation endpoints.
type Handler struct {
	Svc *Service
}

type descriptionRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Category    string `json:"category" validate:"required,max=100"`
	CompanyName string `json:"company_name" validate:"required,max=200"`
}

// ProductDescription handles POST /admin/insights/product-description.
func (h *Handler) ProductDescription(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "insights service not configured", nil)
		return
	}
	var payload descriptionRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteAppError(w, err)
		return
	}
	if err := common.ValidateStruct(payload); err != nil {
		common.WriteAppError(w, common.Validation(err))
		return
	}
	text := h.Svc.ProductDescription(r.Context(), payload.Name, payload.Category, payload.CompanyName)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"text": text}})
}

// SalesAnalysis handles POST /admin/insights/sales.
func (h *Handler) SalesAnalysis(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "insights service not configured", nil)
		return
	}
	text := h.Svc.SalesAnalysis(r.Context(), nil)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"text": text}})
}
