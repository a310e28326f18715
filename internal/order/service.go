package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/novahub/internal/events"
	"github.com/noah-isme/novahub/internal/pricing"
)

// Repository persists orders.
type Repository interface {
	InsertOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, id string) (Order, error)
	// ListOrders returns orders of customerID, or every order when it is empty.
	ListOrders(ctx context.Context, customerID string) ([]Order, error)
	// UpdateOrderStatus moves id from -> to and fails with ErrStatusConflict
	// when the stored status is no longer from.
	UpdateOrderStatus(ctx context.Context, id string, from, to Status, at time.Time) error
}

// Scope restricts reads to a single customer. An empty CustomerID is the admin view.
type Scope struct {
	CustomerID string
}

// ListFilter narrows an order listing.
type ListFilter struct {
	Status Status
	Query  string
}

// Stats summarises a set of orders.
type Stats struct {
	TotalRevenue pricing.Money `json:"total_revenue"`
	OrderCount   int           `json:"order_count"`
	Pending      int           `json:"pending"`
	Active       int           `json:"active"`
	Delivered    int           `json:"delivered"`
	Cancelled    int           `json:"cancelled"`
}

// Service serves order reads and administrative status changes.
type Service struct {
	Repo   Repository
	Events events.Emitter
	Now    func() time.Time
	Logger *zerolog.Logger
}

func (s *Service) log() *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Repo == nil {
		return errors.New("order service not configured")
	}
	return nil
}

// List returns orders visible in scope, newest first.
func (s *Service) List(ctx context.Context, scope Scope, f ListFilter) ([]Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	all, err := s.Repo.ListOrders(ctx, scope.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]Order, 0, len(all))
	for _, o := range all {
		if scope.CustomerID != "" && o.CustomerID != scope.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if !o.Matches(f.Query) {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Stats aggregates the orders visible in scope.
func (s *Service) Stats(ctx context.Context, scope Scope) (Stats, error) {
	orders, err := s.List(ctx, scope, ListFilter{})
	if err != nil {
		return Stats{}, err
	}
	return Summarize(orders), nil
}

// Summarize computes revenue and pipeline counts.
func Summarize(orders []Order) Stats {
	st := Stats{TotalRevenue: decimal.Zero, OrderCount: len(orders)}
	for _, o := range orders {
		st.TotalRevenue = st.TotalRevenue.Add(o.Total)
		switch o.Status {
		case StatusPending:
			st.Pending++
		case StatusProcessing, StatusShipped:
			st.Active++
		case StatusDelivered:
			st.Delivered++
		case StatusCancelled:
			st.Cancelled++
		}
	}
	return st
}

// Get returns an order visible in scope.
func (s *Service) Get(ctx context.Context, scope Scope, id string) (Order, error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	o, err := s.Repo.GetOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return Order{}, err
	}
	if scope.CustomerID != "" && o.CustomerID != scope.CustomerID {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// UpdateStatus applies an administrator transition.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) (Order, error) {
	o, err := s.Get(ctx, Scope{}, id)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(o.Status, to) {
		return Order{}, fmt.Errorf("%s -> %s: %w", o.Status, to, ErrInvalidTransition)
	}
	at := s.now()
	if err := s.Repo.UpdateOrderStatus(ctx, o.ID, o.Status, to, at); err != nil {
		return Order{}, err
	}
	from := o.Status
	o.Status = to
	o.UpdatedAt = at
	if s.Events != nil {
		_, err := s.Events.Emit(ctx, events.TopicOrderStatusChanged, o.ID, map[string]any{
			"order_id":    o.ID,
			"customer_id": o.CustomerID,
			"from":        from,
			"to":          to,
		})
		if err != nil {
			s.log().Warn().Err(err).Str("topic", events.TopicOrderStatusChanged).Str("order_id", o.ID).Msg("order: emit event")
		}
	}
	return o, nil
}

// Confirm moves a pending order into processing.
func (s *Service) Confirm(ctx context.Context, id string) (Order, error) {
	return s.UpdateStatus(ctx, id, StatusProcessing)
}
