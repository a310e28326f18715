package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/novahub/internal/cart"
	"github.com/noah-isme/novahub/internal/common"
	"github.com/noah-isme/novahub/internal/events"
	"github.com/noah-isme/novahub/internal/obs"
	"github.com/noah-isme/novahub/internal/order"
	"github.com/noah-isme/novahub/internal/pricing"
)

// ErrInvalidInput wraps request validation failures.
var ErrInvalidInput = errors.New("invalid checkout input")

const defaultIDAttempts = 5

// Carts gives exclusive access to a priced cart.
type Carts interface {
	Consume(ctx context.Context, customerID, cartID string, fn func(context.Context, cart.View) error) error
}

// Orders stores materialized orders.
type Orders interface {
	InsertOrder(ctx context.Context, o order.Order) error
}

// Input is the checkout request payload.
type Input struct {
	CartID          string `json:"cart_id" validate:"required"`
	ShippingAddress string `json:"shipping_address" validate:"required,max=500"`
}

// Service turns a cart into a persisted order.
type Service struct {
	Carts        Carts
	Orders       Orders
	Materializer order.Materializer
	Events       events.Emitter
	IDAttempts   int
	Logger       *zerolog.Logger
}

func (s *Service) log() *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// Checkout prices the cart with the live catalog and registry, stores the
// order and empties the cart. The cart is untouched when any step fails.
func (s *Service) Checkout(ctx context.Context, customerID string, in Input) (order.Order, error) {
	if s == nil || s.Carts == nil || s.Orders == nil {
		return order.Order{}, errors.New("checkout service not configured")
	}
	if err := common.ValidateStruct(in); err != nil {
		return order.Order{}, fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}

	var (
		placed order.Order
		stored bool
	)
	err := s.Carts.Consume(ctx, customerID, in.CartID, func(ctx context.Context, view cart.View) error {
		o, err := s.place(ctx, view, in.ShippingAddress)
		if err != nil {
			return err
		}
		placed, stored = o, true
		return nil
	})
	if err != nil && !stored {
		obs.ObserveCheckout(outcome(err), 0)
		return order.Order{}, err
	}
	if err != nil {
		// The order is stored, so a failed clear is not a checkout failure.
		s.log().Error().Err(err).Str("order_id", placed.ID).Str("cart_id", in.CartID).Msg("checkout: clear cart after order")
	}
	total, _ := placed.Total.Float64()
	obs.ObserveCheckout("ok", total)
	if s.Events != nil {
		if _, err := s.Events.Emit(ctx, events.TopicOrderCreated, placed.ID, placed); err != nil {
			s.log().Warn().Err(err).Str("topic", events.TopicOrderCreated).Str("order_id", placed.ID).Msg("checkout: emit event")
		}
	}
	return placed, nil
}

func (s *Service) place(ctx context.Context, view cart.View, address string) (order.Order, error) {
	lines := Lines(view.Cart)
	attempts := s.IDAttempts
	if attempts <= 0 {
		attempts = defaultIDAttempts
	}
	for i := 0; i < attempts; i++ {
		o, err := s.Materializer.Materialize(lines, view.Totals, view.Customer, address)
		if err != nil {
			return order.Order{}, err
		}
		err = s.Orders.InsertOrder(ctx, o)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, order.ErrDuplicateID) {
			return order.Order{}, fmt.Errorf("insert order: %w", err)
		}
	}
	return order.Order{}, fmt.Errorf("allocate order id: %w", order.ErrDuplicateID)
}

// Lines snapshots cart lines into order lines.
func Lines(c cart.Cart) []order.Line {
	out := make([]order.Line, 0, len(c.Lines))
	for _, ln := range c.Lines {
		p := ln.Product
		out = append(out, order.Line{
			ProductID:   p.ID,
			Code:        p.Code,
			Name:        p.Name,
			CompanyName: p.CompanyName,
			Category:    p.Category,
			Image:       p.Image,
			UnitPrice:   p.Price,
			Quantity:    ln.Quantity,
		})
	}
	return out
}

func outcome(err error) string {
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, pricing.ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, cart.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
