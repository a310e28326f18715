package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/novahub/internal/common"
	"github.com/noah-isme/novahub/internal/customer"
)

const (
	defaultTokenTTL = 12 * time.Hour
	adminSubject    = "admin"
)

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// CustomerLookup resolves customers for session issuance.
type CustomerLookup interface {
	Get(ctx context.Context, id string) (customer.Customer, error)
}

// Service issues and verifies role tokens for the admin console and
// customer sessions.
type Service struct {
	customers CustomerLookup
	secret    []byte
	pinHash   string
	tokenTTL  time.Duration
	now       func() time.Time
	signer    jwa.SignatureAlgorithm
	validator TokenValidator
	issuer    string
	audience  string
	clockSkew time.Duration
}

// Config configures the auth service.
type Config struct {
	Customers CustomerLookup
	Secret    string
	AdminPIN  string
	TokenTTL  time.Duration
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// TokenResult is returned after a successful login.
type TokenResult struct {
	AccessToken string             `json:"access_token"`
	ExpiresAt   time.Time          `json:"expires_at"`
	Role        common.Role        `json:"role"`
	Subject     string             `json:"subject"`
	Customer    *customer.Customer `json:"customer,omitempty"`
}

// NewService constructs a Service. The admin PIN is kept only as an argon2id hash.
func NewService(cfg Config) (*Service, error) {
	if cfg.Customers == nil {
		return nil, errors.New("auth: customer lookup is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	pin := strings.TrimSpace(cfg.AdminPIN)
	if !pinPattern.MatchString(pin) {
		return nil, errors.New("auth: admin pin must be 4 digits")
	}
	pinHash, err := argon2id.CreateHash(pin, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("auth: hash admin pin: %w", err)
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "novahub"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "novahub-web"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}

	return &Service{
		customers: cfg.Customers,
		secret:    []byte(secret),
		pinHash:   pinHash,
		tokenTTL:  ttl,
		now:       time.Now,
		signer:    jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}, nil
}

// WithNow overrides the clock, primarily for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// AdminLogin verifies the PIN and issues an admin token.
func (s *Service) AdminLogin(_ context.Context, pin string) (TokenResult, error) {
	pin = strings.TrimSpace(pin)
	if !pinPattern.MatchString(pin) {
		return TokenResult{}, common.NewAppError("INVALID_PIN", "pin must be 4 digits", http.StatusBadRequest, nil)
	}
	ok, err := argon2id.ComparePasswordAndHash(pin, s.pinHash)
	if err != nil {
		return TokenResult{}, fmt.Errorf("compare pin: %w", err)
	}
	if !ok {
		return TokenResult{}, common.NewAppError("INVALID_PIN", "incorrect pin", http.StatusUnauthorized, nil)
	}
	return s.issue(adminSubject, common.RoleAdmin)
}

// CustomerLogin issues a session token for an existing customer.
func (s *Service) CustomerLogin(ctx context.Context, customerID string) (TokenResult, error) {
	c, err := s.customers.Get(ctx, strings.TrimSpace(customerID))
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return TokenResult{}, common.NotFound("customer not found", err)
		}
		return TokenResult{}, err
	}
	res, err := s.issue(c.ID, common.RoleCustomer)
	if err != nil {
		return TokenResult{}, err
	}
	res.Customer = &c
	return res, nil
}

func (s *Service) issue(subject string, role common.Role) (TokenResult, error) {
	signed, expiresAt, err := s.signAccessToken(subject, role)
	if err != nil {
		return TokenResult{}, fmt.Errorf("sign token: %w", err)
	}
	return TokenResult{AccessToken: signed, ExpiresAt: expiresAt, Role: role, Subject: subject}, nil
}

// ParseAccessToken validates an access token and returns its principal.
func (s *Service) ParseAccessToken(token string) (common.Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Principal{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return common.Principal{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return common.Principal{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return common.Principal{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return common.Principal{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	role, err := roleOf(parsed)
	if err != nil {
		return common.Principal{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	return common.Principal{Subject: parsed.Subject(), Role: role}, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

func (s *Service) signAccessToken(subject string, role common.Role) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	token, err := jwt.NewBuilder().
		Subject(subject).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Claim(roleClaim, string(role)).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}
