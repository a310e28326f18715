package auth

import (
	"errors"
	"net/http"

	"github.com/noah-isme/novahub/internal/common"
	"github.com/noah-isme/novahub/internal/security"
)

// Handler exposes login endpoints for the admin console and customer sessions.
type Handler struct {
	Service        *Service
	CookieName     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	// CSRFCookie, when set, receives a readable double-submit token on login.
	CSRFCookie string
}

type adminLoginRequest struct {
	PIN string `json:"pin"`
}

type customerLoginRequest struct {
	CustomerID string `json:"customer_id"`
}

// AdminLogin handles POST /api/v1/auth/admin.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
		return
	}
	var req adminLoginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.Service.AdminLogin(r.Context(), req.PIN)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.setCookie(w, res)
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// CustomerLogin handles POST /api/v1/auth/customer.
func (h *Handler) CustomerLogin(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
		return
	}
	var req customerLoginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.CustomerID == "" {
		h.writeError(w, common.BadRequest("customer_id", "customer_id is required", nil))
		return
	}
	res, err := h.Service.CustomerLogin(r.Context(), req.CustomerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.setCookie(w, res)
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if appErr.Code == "" {
			appErr.Code = "INTERNAL"
		}
		message := appErr.Message
		if message == "" {
			message = "internal error"
		}
		common.JSONError(w, status, appErr.Code, message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

func (h *Handler) setCookie(w http.ResponseWriter, res TokenResult) {
	if h.CookieName == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    res.AccessToken,
		Domain:   h.CookieDomain,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: h.CookieSameSite,
	})
	if h.CSRFCookie == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.CSRFCookie,
		Value:    security.NewCSRFToken(),
		Domain:   h.CookieDomain,
		Path:     "/",
		Expires:  res.ExpiresAt,
		Secure:   h.CookieSecure,
		SameSite: h.CookieSameSite,
	})
}
