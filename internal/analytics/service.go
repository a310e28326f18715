package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/novahub/internal/events"
	"github.com/noah-isme/novahub/internal/order"
	"github.com/noah-isme/novahub/internal/pricing"
)

const recentPendingLimit = 5

// Orders lists orders for the admin view.
type Orders interface {
	List(ctx context.Context, scope order.Scope, f order.ListFilter) ([]order.Order, error)
}

// Overview is the admin dashboard summary.
type Overview struct {
	TotalRevenue  pricing.Money `json:"total_revenue"`
	OrderCount    int           `json:"order_count"`
	AverageOrder  pricing.Money `json:"average_order_value"`
	PendingCount  int           `json:"pending_count"`
	RecentPending []order.Order `json:"recent_pending"`
	GeneratedAt   time.Time     `json:"generated_at"`
}

// Service computes dashboard figures with a short Redis cache in front.
type Service struct {
	Orders Orders
	R      *redis.Client
	TTL    time.Duration
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// Overview returns the dashboard summary across every order.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	if s == nil || s.Orders == nil {
		return Overview{}, errors.New("analytics service not configured")
	}
	key := cacheKey("an", "overview")
	if ov, ok := s.fromCache(ctx, key); ok {
		return ov, nil
	}
	orders, err := s.Orders.List(ctx, order.Scope{}, order.ListFilter{})
	if err != nil {
		return Overview{}, fmt.Errorf("analytics overview: %w", err)
	}
	ov := Summarize(orders)
	ov.GeneratedAt = s.now()
	s.store(ctx, key, ov)
	return ov, nil
}

// Invalidate drops the cached overview.
func (s *Service) Invalidate(ctx context.Context) {
	if s == nil || s.R == nil {
		return
	}
	_ = s.R.Del(ctx, cacheKey("an", "overview")).Err()
}

// Notify implements events.Notifier so order changes show up on the next read.
func (s *Service) Notify(ctx context.Context, ev events.Event) error {
	switch ev.Topic {
	case events.TopicOrderCreated, events.TopicOrderStatusChanged:
		s.Invalidate(ctx)
	}
	return nil
}

// Summarize aggregates orders that are already sorted newest first.
func Summarize(orders []order.Order) Overview {
	ov := Overview{TotalRevenue: decimal.Zero, AverageOrder: decimal.Zero, RecentPending: []order.Order{}}
	for _, o := range orders {
		ov.OrderCount++
		ov.TotalRevenue = ov.TotalRevenue.Add(o.Total)
		if o.Status != order.StatusPending {
			continue
		}
		ov.PendingCount++
		if len(ov.RecentPending) < recentPendingLimit {
			ov.RecentPending = append(ov.RecentPending, o)
		}
	}
	if ov.OrderCount > 0 {
		ov.AverageOrder = ov.TotalRevenue.Div(decimal.NewFromInt(int64(ov.OrderCount))).Round(2)
	}
	return ov
}

func (s *Service) fromCache(ctx context.Context, key string) (Overview, bool) {
	if s.R == nil || s.TTL <= 0 {
		return Overview{}, false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return Overview{}, false
	}
	var ov Overview
	if err := json.Unmarshal(data, &ov); err != nil {
		return Overview{}, false
	}
	return ov, true
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
