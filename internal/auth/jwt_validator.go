package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/novahub/internal/common"
)

const roleClaim = "role"

// TokenValidator validates structural and contextual properties of JWT tokens.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate ensures the supplied token satisfies issuer, audience, expiry and
// algorithm requirements and carries a known role claim.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}

	if algorithm == "" {
		return errors.New("auth: token missing algorithm")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithRequiredClaim(jwt.SubjectKey),
		jwt.WithValidator(jwt.ValidatorFunc(validateRole)),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}

	return jwt.Validate(tok, options...)
}

func validateRole(_ context.Context, tok jwt.Token) jwt.ValidationError {
	if _, err := roleOf(tok); err != nil {
		return jwt.NewValidationError(err)
	}
	return nil
}

func roleOf(tok jwt.Token) (common.Role, error) {
	raw, ok := tok.Get(roleClaim)
	if !ok {
		return "", errors.New("auth: token missing role")
	}
	s, _ := raw.(string)
	switch role := common.Role(s); role {
	case common.RoleAdmin, common.RoleCustomer:
		return role, nil
	default:
		return "", fmt.Errorf("auth: unknown role %q", s)
	}
}
