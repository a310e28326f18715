package repo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/novahub/internal/catalog"
	"github.com/noah-isme/novahub/internal/customer"
	"github.com/noah-isme/novahub/internal/events"
	"github.com/noah-isme/novahub/internal/order"
	"github.com/noah-isme/novahub/internal/pricing"
)

// Memory is an in-process store used for demo mode and tests. It keeps
// insertion order for every aggregate.
type Memory struct {
	mu        sync.RWMutex
	products  []catalog.Product
	rules     []pricing.DiscountRule
	customers []customer.Customer
	orders    []order.Order
	events    []events.Event
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{}
}

// Ping implements the readiness check.
func (m *Memory) Ping(context.Context) error { return nil }

// ListProducts implements catalog.Repository.
func (m *Memory) ListProducts(context.Context) ([]catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]catalog.Product(nil), m.products...), nil
}

// GetProduct implements catalog.Repository.
func (m *Memory) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return catalog.Product{}, catalog.ErrNotFound
}

// GetProductByCode implements catalog.Repository.
func (m *Memory) GetProductByCode(_ context.Context, code string) (catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.products {
		if strings.EqualFold(p.Code, code) {
			return p, nil
		}
	}
	return catalog.Product{}, catalog.ErrNotFound
}

// InsertProduct implements catalog.Repository.
func (m *Memory) InsertProduct(_ context.Context, p catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.products {
		if existing.ID == p.ID {
			return ErrConflict
		}
		if strings.EqualFold(existing.Code, p.Code) {
			return catalog.ErrDuplicateCode
		}
	}
	m.products = append(m.products, p)
	return nil
}

// UpdateProduct implements catalog.Repository.
func (m *Memory) UpdateProduct(_ context.Context, p catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.products {
		if m.products[i].ID == p.ID {
			m.products[i] = p
			return nil
		}
	}
	return catalog.ErrNotFound
}

// DeleteProduct implements catalog.Repository.
func (m *Memory) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.products {
		if m.products[i].ID == id {
			m.products = append(m.products[:i:i], m.products[i+1:]...)
			return nil
		}
	}
	return catalog.ErrNotFound
}

// ListRules implements discount.Repository.
func (m *Memory) ListRules(context.Context) ([]pricing.DiscountRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]pricing.DiscountRule(nil), m.rules...), nil
}

// GetRule implements discount.Repository.
func (m *Memory) GetRule(_ context.Context, id string) (pricing.DiscountRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return pricing.DiscountRule{}, ErrRuleNotFound
}

// InsertRule implements discount.Repository.
func (m *Memory) InsertRule(_ context.Context, rule pricing.DiscountRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.ID == rule.ID {
			return ErrConflict
		}
	}
	m.rules = append(m.rules, rule)
	return nil
}

// UpdateRule implements discount.Repository.
func (m *Memory) UpdateRule(_ context.Context, rule pricing.DiscountRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == rule.ID {
			m.rules[i] = rule
			return nil
		}
	}
	return ErrRuleNotFound
}

// DeleteRule implements discount.Repository.
func (m *Memory) DeleteRule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == id {
			m.rules = append(m.rules[:i:i], m.rules[i+1:]...)
			return nil
		}
	}
	return ErrRuleNotFound
}

// ReplaceProductRules implements discount.Repository.
func (m *Memory) ReplaceProductRules(_ context.Context, productID string, rule *pricing.DiscountRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropProductRulesLocked(productID)
	if rule != nil {
		m.rules = append(m.rules, *rule)
	}
	return nil
}

// DeleteRulesForProduct implements discount.Repository and catalog.MarkdownCleaner.
func (m *Memory) DeleteRulesForProduct(_ context.Context, productID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropProductRulesLocked(productID), nil
}

func (m *Memory) dropProductRulesLocked(productID string) int {
	kept := m.rules[:0:0]
	removed := 0
	for _, r := range m.rules {
		if r.TargetProductID == productID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.rules = kept
	return removed
}

// ListCustomers implements customer.Repository.
func (m *Memory) ListCustomers(context.Context) ([]customer.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]customer.Customer(nil), m.customers...), nil
}

// GetCustomer implements customer.Repository.
func (m *Memory) GetCustomer(_ context.Context, id string) (customer.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return customer.Customer{}, customer.ErrNotFound
}

// InsertCustomer implements customer.Repository.
func (m *Memory) InsertCustomer(_ context.Context, c customer.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.customers {
		if existing.ID == c.ID {
			return ErrConflict
		}
	}
	m.customers = append(m.customers, c)
	return nil
}

// UpdateCustomer implements customer.Repository.
func (m *Memory) UpdateCustomer(_ context.Context, c customer.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.customers {
		if m.customers[i].ID == c.ID {
			m.customers[i] = c
			return nil
		}
	}
	return customer.ErrNotFound
}

// DeleteCustomer implements customer.Repository.
func (m *Memory) DeleteCustomer(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.customers {
		if m.customers[i].ID == id {
			m.customers = append(m.customers[:i:i], m.customers[i+1:]...)
			return nil
		}
	}
	return customer.ErrNotFound
}

func cloneOrder(o order.Order) order.Order {
	o.Items = append([]order.Line(nil), o.Items...)
	if o.AppliedDiscount.Rule != nil {
		rule := *o.AppliedDiscount.Rule
		o.AppliedDiscount.Rule = &rule
	}
	return o
}

// InsertOrder implements order.Repository.
func (m *Memory) InsertOrder(_ context.Context, o order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.ID == o.ID {
			return order.ErrDuplicateID
		}
	}
	m.orders = append(m.orders, cloneOrder(o))
	return nil
}

// GetOrder implements order.Repository.
func (m *Memory) GetOrder(_ context.Context, id string) (order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.ID == id {
			return cloneOrder(o), nil
		}
	}
	return order.Order{}, order.ErrNotFound
}

// ListOrders implements order.Repository.
func (m *Memory) ListOrders(_ context.Context, customerID string) ([]order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]order.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if customerID != "" && o.CustomerID != customerID {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	return out, nil
}

// UpdateOrderStatus implements order.Repository.
func (m *Memory) UpdateOrderStatus(_ context.Context, id string, from, to order.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID != id {
			continue
		}
		if m.orders[i].Status != from {
			return order.ErrStatusConflict
		}
		m.orders[i].Status = to
		m.orders[i].UpdatedAt = at
		return nil
	}
	return order.ErrNotFound
}

// InsertEvent implements events.Store.
func (m *Memory) InsertEvent(_ context.Context, ev events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns the recorded events.
func (m *Memory) Events() []events.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]events.Event(nil), m.events...)
}
