package order

import (
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/novahub/internal/pricing"
)

// PaymentCashOnDelivery is the only payment method the store offers.
const PaymentCashOnDelivery = "Cash on Delivery"

var (
	// ErrNotFound is returned when an order does not exist or is not visible to the caller.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when materializing an order with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrMissingShippingAddress is returned when the shipping address is blank.
	ErrMissingShippingAddress = errors.New("shipping address is required")
	// ErrInvalidTransition is returned for status changes the state machine forbids.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrDuplicateID is returned by repositories when the order id is taken.
	ErrDuplicateID = errors.New("order id already exists")
	// ErrStatusConflict is returned when the stored status changed concurrently.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// ParseStatus normalises a status string.
func ParseStatus(v string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	_, ok := validNext[s]
	return s, ok
}

// Line is the snapshot of a purchased product.
type Line struct {
	ProductID        string        `json:"product_id"`
	Code             string        `json:"code"`
	Name             string        `json:"name"`
	CompanyName      string        `json:"company_name"`
	Category         string        `json:"category"`
	Image            string        `json:"image"`
	UnitPrice        pricing.Money `json:"unit_price"`
	Quantity         int           `json:"quantity"`
	Subtotal         pricing.Money `json:"subtotal"`
	AutomaticSavings pricing.Money `json:"automatic_savings"`
}

// Order is an immutable record of a purchase. Only Status and UpdatedAt change.
type Order struct {
	ID               string                  `json:"id"`
	CustomerID       string                  `json:"customer_id"`
	CustomerName     string                  `json:"customer_name"`
	CustomerEmail    string                  `json:"customer_email"`
	ShippingAddress  string                  `json:"shipping_address"`
	Items            []Line                  `json:"items"`
	Subtotal         pricing.Money           `json:"subtotal"`
	AutomaticSavings pricing.Money           `json:"automatic_savings"`
	ManualSavings    pricing.Money           `json:"manual_savings"`
	Total            pricing.Money           `json:"total"`
	AppliedDiscount  pricing.AppliedDiscount `json:"applied_discount"`
	Status           Status                  `json:"status"`
	PaymentMethod    string                  `json:"payment_method"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// DiscountApplied returns the saving shown to the customer.
func (o Order) DiscountApplied() pricing.Money {
	return o.AutomaticSavings.Add(o.ManualSavings)
}

// Matches reports whether the order matches a search on id, customer name or item name.
func (o Order) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(o.ID), q) || strings.Contains(strings.ToLower(o.CustomerName), q) {
		return true
	}
	for _, it := range o.Items {
		if strings.Contains(strings.ToLower(it.Name), q) {
			return true
		}
	}
	return false
}
