package customer

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/noah-isme/novahub/internal/pricing"
)

var (
	// ErrNotFound is returned when a customer does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrInvalidInput wraps registration validation failures.
	ErrInvalidInput = errors.New("invalid customer input")
	// ErrIDExhausted is returned when no free id could be generated.
	ErrIDExhausted = errors.New("could not allocate customer id")
)

// Customer is a registered shopper.
type Customer struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Email    string               `json:"email"`
	Phone    string               `json:"phone"`
	Type     pricing.CustomerType `json:"type"`
	JoinedAt time.Time            `json:"joined_at"`
}

// PricingCustomer projects the fields the pricing engine needs.
func (c Customer) PricingCustomer() pricing.Customer {
	return pricing.Customer{ID: c.ID, Type: c.Type}
}

// Matches reports whether the customer matches a search query on name,
// email (case-insensitive) or phone (substring).
func (c Customer) Matches(query string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return true
	}
	lower := strings.ToLower(q)
	return strings.Contains(strings.ToLower(c.Name), lower) ||
		strings.Contains(strings.ToLower(c.Email), lower) ||
		strings.Contains(c.Phone, q)
}

// Repository persists customers in registration order.
type Repository interface {
	ListCustomers(ctx context.Context) ([]Customer, error)
	GetCustomer(ctx context.Context, id string) (Customer, error)
	InsertCustomer(ctx context.Context, c Customer) error
	UpdateCustomer(ctx context.Context, c Customer) error
	DeleteCustomer(ctx context.Context, id string) error
}

// RandomID returns a CUST-NNNN identifier in the 1000..9999 range.
func RandomID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return fmt.Sprintf("CUST-%d", 1000+time.Now().UnixNano()%9000)
	}
	return fmt.Sprintf("CUST-%d", 1000+n.Int64())
}
