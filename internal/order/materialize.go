package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/novahub/internal/customer"
	"github.com/noah-isme/novahub/internal/pricing"
)

// IDGenerator produces order identifiers.
type IDGenerator func() string

// RandomID returns a six digit identifier in 100000..999999.
func RandomID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return fmt.Sprintf("%d", 100000+time.Now().UnixNano()%900000)
	}
	return fmt.Sprintf("%d", 100000+n.Int64())
}

// Materializer turns a priced cart into an order snapshot. It never persists
// anything and never touches the cart.
type Materializer struct {
	NewID IDGenerator
	Now   func() time.Time
}

// Materialize builds a PENDING order from lines priced by totals.
func (m Materializer) Materialize(lines []Line, totals pricing.Totals, c customer.Customer, shippingAddress string) (Order, error) {
	if len(lines) == 0 {
		return Order{}, ErrEmptyCart
	}
	address := strings.TrimSpace(shippingAddress)
	if address == "" {
		return Order{}, ErrMissingShippingAddress
	}
	newID := m.NewID
	if newID == nil {
		newID = RandomID
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	items := make([]Line, len(lines))
	copy(items, lines)
	for i := range items {
		items[i].Subtotal = pricing.LineSubtotal(items[i].UnitPrice, items[i].Quantity)
		items[i].AutomaticSavings = decimal.Zero
		if i < len(totals.Lines) && totals.Lines[i].ProductID == items[i].ProductID {
			items[i].AutomaticSavings = totals.Lines[i].AutomaticSavings
		}
	}
	applied := totals.Applied
	if applied.Kind == "" {
		applied = pricing.NoDiscount()
	}
	if applied.Rule != nil {
		rule := *applied.Rule
		applied.Rule = &rule
	}
	created := now().UTC()
	return Order{
		ID:               newID(),
		CustomerID:       c.ID,
		CustomerName:     c.Name,
		CustomerEmail:    c.Email,
		ShippingAddress:  address,
		Items:            items,
		Subtotal:         totals.BaseSubtotal,
		AutomaticSavings: totals.AutomaticSavings,
		ManualSavings:    totals.ManualSavings,
		Total:            totals.FinalTotal,
		AppliedDiscount:  applied,
		Status:           StatusPending,
		PaymentMethod:    PaymentCashOnDelivery,
		CreatedAt:        created,
		UpdatedAt:        created,
	}, nil
}
