package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/novahub/internal/catalog"
	"github.com/noah-isme/novahub/internal/customer"
	"github.com/noah-isme/novahub/internal/pricing"
)

// Seedable is the union of repositories the seeder writes to.
type Seedable interface {
	catalog.Repository
	customer.Repository
	ListRules(ctx context.Context) ([]pricing.DiscountRule, error)
	InsertRule(ctx context.Context, rule pricing.DiscountRule) error
}

// SeedProducts is the starter catalog.
func SeedProducts(now time.Time) []catalog.Product {
	return []catalog.Product{
		{
			ID: "1", Code: "CAM-Q-101", Name: "Quantum Lens Camera", CompanyName: "Lumina Optics",
			Description: "A high-performance mirrorless camera for professionals.",
			Price:       decimal.RequireFromString("1299.99"), Category: "Electronics",
			Image: "https://images.unsplash.com/photo-1516035069371-29a1b244cc32?auto=format&fit=crop&q=80&w=400",
			Stock: 15, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "2", Code: "CHR-NX-202", Name: "Nexus Gaming Chair", CompanyName: "Apex Comfort",
			Description: "Ergonomic design with lumbar support for long sessions.",
			Price:       decimal.RequireFromString("249.99"), Category: "Furniture",
			Image: "https://images.unsplash.com/photo-1598550476439-6847785fcea6?auto=format&fit=crop&q=80&w=400",
			Stock: 8, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "3", Code: "AUD-AS-303", Name: "Aero Stream Earbuds", CompanyName: "Sonic Labs",
			Description: "Noise cancelling true wireless earbuds with 40h battery.",
			Price:       decimal.RequireFromString("159.99"), Category: "Audio",
			Image: "https://images.unsplash.com/photo-1590658268037-6bf12165a8df?auto=format&fit=crop&q=80&w=400",
			Stock: 25, CreatedAt: now, UpdatedAt: now,
		},
	}
}

// SeedCustomers is the starter customer list.
func SeedCustomers(now time.Time) []customer.Customer {
	return []customer.Customer{
		{ID: "CUST-001", Name: "Rahim Ahmed", Email: "rahim@example.com", Phone: "01711111111", Type: pricing.CustomerRegular, JoinedAt: now},
		{ID: "CUST-002", Name: "Karim Ullah", Email: "karim@example.com", Phone: "01822222222", Type: pricing.CustomerPremium, JoinedAt: now},
		{ID: "CUST-003", Name: "Sultana Razia", Email: "sultana@example.com", Phone: "01933333333", Type: pricing.CustomerVIP, JoinedAt: now},
	}
}

// SeedRules is the starter discount registry.
func SeedRules() []pricing.DiscountRule {
	return []pricing.DiscountRule{
		{ID: "d1", Code: "WELCOME10", Percentage: 10, IsActive: true, Description: "10% off for everyone"},
		{ID: "d2", Code: "01933333333", Percentage: 30, IsActive: true, TargetCustomerID: "CUST-003", Description: "Exclusive 30% for Sultana"},
		{ID: "d3", Code: "01822222222", Percentage: 20, IsActive: true, TargetCustomerID: "CUST-002", Description: "20% off for Karim"},
	}
}

// Seed inserts the starter data, skipping records that already exist.
func Seed(ctx context.Context, store Seedable, now time.Time) error {
	for _, p := range SeedProducts(now) {
		if err := store.InsertProduct(ctx, p); err != nil && !alreadySeeded(err) {
			return fmt.Errorf("seed product %s: %w", p.Code, err)
		}
	}
	for _, c := range SeedCustomers(now) {
		if err := store.InsertCustomer(ctx, c); err != nil && !alreadySeeded(err) {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}
	for _, r := range SeedRules() {
		if err := store.InsertRule(ctx, r); err != nil && !alreadySeeded(err) {
			return fmt.Errorf("seed rule %s: %w", r.Code, err)
		}
	}
	return nil
}

func alreadySeeded(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, catalog.ErrDuplicateCode)
}
