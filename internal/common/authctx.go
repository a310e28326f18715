package common

import "context"

type ctxKey string

const principalKey ctxKey = "auth/principal"

// Role identifies what an authenticated caller may do.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Principal is the authenticated caller. Subject is the customer id for
// customer sessions and "admin" for the administrator.
type Principal struct {
	Subject string
	Role    Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// WithPrincipal stores the authenticated principal on the provided context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the authenticated principal from the context if present.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok || p.Subject == "" {
		return Principal{}, false
	}
	return p, true
}

// CustomerID returns the customer id of a customer session.
func CustomerID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok || p.Role != RoleCustomer {
		return "", false
	}
	return p.Subject, true
}
