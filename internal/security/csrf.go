package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/novahub/internal/common"
)

// DefaultCSRFName is used for both the header and the readable cookie.
const DefaultCSRFName = "X-CSRF-Token"

// CSRF applies double-submit protection to requests authenticated by the
// session cookie. Bearer requests and requests without the session cookie pass.
type CSRF struct {
	Name          string
	SessionCookie string
}

// NewCSRFToken returns a fresh random token.
func NewCSRFToken() string { return uuid.NewString() }

func (c CSRF) name() string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return DefaultCSRFName
}

// Middleware enforces that unsafe cookie-authenticated requests echo the CSRF cookie in a header.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	name := c.name()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(r.Header.Get("Authorization"))), "bearer ") {
			next.ServeHTTP(w, r)
			return
		}
		if c.SessionCookie != "" {
			if _, err := r.Cookie(c.SessionCookie); err != nil {
				next.ServeHTTP(w, r)
				return
			}
		}
		token := strings.TrimSpace(r.Header.Get(name))
		cookie, err := r.Cookie(name)
		if token == "" || err != nil || cookie.Value == "" {
			common.JSONError(w, http.StatusForbidden, "CSRF_REQUIRED", "missing csrf token", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			common.JSONError(w, http.StatusForbidden, "CSRF_INVALID", "invalid csrf token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
