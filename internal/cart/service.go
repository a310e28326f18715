package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/novahub/internal/catalog"
	"github.com/noah-isme/novahub/internal/customer"
	"github.com/noah-isme/novahub/internal/obs"
	"github.com/noah-isme/novahub/internal/pricing"
)

// Store persists cart sessions.
type Store interface {
	Load(ctx context.Context, id string) (Cart, error)
	Save(ctx context.Context, c Cart) error
}

// Catalog resolves live product data.
type Catalog interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
	Lookup(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

// Rules exposes the discount registry.
type Rules interface {
	List(ctx context.Context) ([]pricing.DiscountRule, error)
}

// Customers resolves cart owners.
type Customers interface {
	Get(ctx context.Context, id string) (customer.Customer, error)
}

// Locker serialises mutations of a single cart.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// View is a cart together with its live totals. CodeValid is false when the
// stored code no longer matches a usable rule; totals then exclude it.
type View struct {
	Cart      Cart              `json:"cart"`
	Customer  customer.Customer `json:"customer"`
	Totals    pricing.Totals    `json:"totals"`
	CodeValid bool              `json:"code_valid"`
}

// Service coordinates cart sessions with catalog and pricing.
type Service struct {
	Store     Store
	Catalog   Catalog
	Rules     Rules
	Customers Customers
	Locker    Locker
	LockTTL   time.Duration
	Now       func() time.Time
	NewID     func() string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil || s.Catalog == nil || s.Rules == nil || s.Customers == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

// Create opens an empty cart for customerID.
func (s *Service) Create(ctx context.Context, customerID string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	c, err := s.Customers.Get(ctx, customerID)
	if err != nil {
		return View{}, err
	}
	cart := Cart{ID: s.newID(), CustomerID: c.ID, UpdatedAt: s.now()}
	if err := s.Store.Save(ctx, cart); err != nil {
		return View{}, fmt.Errorf("save cart: %w", err)
	}
	return s.price(ctx, cart)
}

// Get loads the cart owned by customerID with refreshed snapshots. An empty
// customerID skips the ownership check.
func (s *Service) Get(ctx context.Context, customerID, cartID string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	cart, err := s.load(ctx, customerID, cartID)
	if err != nil {
		return View{}, err
	}
	return s.price(ctx, cart)
}

// AddItem adds one unit of productID.
func (s *Service) AddItem(ctx context.Context, customerID, cartID, productID string) (View, error) {
	return s.mutate(ctx, customerID, cartID, func(ctx context.Context, c *Cart) error {
		p, err := s.Catalog.Get(ctx, productID)
		if err != nil {
			return err
		}
		c.Add(p)
		return nil
	})
}

// BulkAdd adds the given products that are not in the cart yet.
func (s *Service) BulkAdd(ctx context.Context, customerID, cartID string, productIDs []string) (View, error) {
	if len(productIDs) == 0 {
		return View{}, fmt.Errorf("product_ids required: %w", ErrInvalidInput)
	}
	return s.mutate(ctx, customerID, cartID, func(ctx context.Context, c *Cart) error {
		found, err := s.Catalog.Lookup(ctx, productIDs)
		if err != nil {
			return err
		}
		products := make([]catalog.Product, 0, len(productIDs))
		for _, id := range productIDs {
			p, ok := found[id]
			if !ok {
				return fmt.Errorf("product %s: %w", id, catalog.ErrNotFound)
			}
			products = append(products, p)
		}
		c.BulkAdd(products)
		return nil
	})
}

func (s *Service) SetQuantity(ctx context.Context, customerID, cartID, productID string, qty int) (View, error) {
	return s.mutate(ctx, customerID, cartID, func(_ context.Context, c *Cart) error {
		return c.SetQuantity(productID, qty)
	})
}

func (s *Service) Increment(ctx context.Context, customerID, cartID, productID string) (View, error) {
	return s.mutate(ctx, customerID, cartID, func(_ context.Context, c *Cart) error {
		return c.Increment(productID)
	})
}

func (s *Service) Decrement(ctx context.Context, customerID, cartID, productID string) (View, error) {
	return s.mutate(ctx, customerID, cartID, func(_ context.Context, c *Cart) error {
		return c.Decrement(productID)
	})
}

func (s *Service) RemoveItem(ctx context.Context, customerID, cartID, productID string) (View, error) {
	return s.mutate(ctx, customerID, cartID, func(_ context.Context, c *Cart) error {
		return c.Remove(productID)
	})
}

// ApplyCode validates code against the current cart and stores it. An
// unusable code returns pricing.ErrInvalidCode and leaves the cart unchanged.
func (s *Service) ApplyCode(ctx context.Context, customerID, cartID, code string) (View, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return View{}, fmt.Errorf("code required: %w", ErrInvalidInput)
	}
	return s.mutate(ctx, customerID, cartID, func(ctx context.Context, c *Cart) error {
		owner, err := s.Customers.Get(ctx, c.CustomerID)
		if err != nil {
			return err
		}
		rules, err := s.Rules.List(ctx)
		if err != nil {
			return fmt.Errorf("list rules: %w", err)
		}
		if _, err := pricing.ComputeTotals(c.PricingLines(), rules, owner.PricingCustomer(), code); err != nil {
			if errors.Is(err, pricing.ErrInvalidCode) {
				obs.ObserveDiscountCode("invalid")
			}
			return err
		}
		obs.ObserveDiscountCode("applied")
		c.AppliedCode = code
		return nil
	})
}

func (s *Service) ClearCode(ctx context.Context, customerID, cartID string) (View, error) {
	return s.mutate(ctx, customerID, cartID, func(_ context.Context, c *Cart) error {
		c.AppliedCode = ""
		return nil
	})
}

// SwitchCustomer rebinds the cart to another customer and empties it.
func (s *Service) SwitchCustomer(ctx context.Context, cartID, customerID string) (View, error) {
	return s.mutate(ctx, "", cartID, func(ctx context.Context, c *Cart) error {
		next, err := s.Customers.Get(ctx, customerID)
		if err != nil {
			return err
		}
		c.Clear()
		c.CustomerID = next.ID
		return nil
	})
}

// Consume runs fn with the priced cart while holding the cart lock and
// empties the cart once fn succeeds. The stored code is enforced: a code that
// stopped matching fails with pricing.ErrInvalidCode before fn runs.
func (s *Service) Consume(ctx context.Context, customerID, cartID string, fn func(context.Context, View) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.withLock(ctx, cartID, func(ctx context.Context) error {
		cart, err := s.load(ctx, customerID, cartID)
		if err != nil {
			return err
		}
		view, err := s.price(ctx, cart)
		if err != nil {
			return err
		}
		if !view.CodeValid {
			return pricing.ErrInvalidCode
		}
		if err := fn(ctx, view); err != nil {
			return err
		}
		view.Cart.Clear()
		view.Cart.UpdatedAt = s.now()
		return s.Store.Save(ctx, view.Cart)
	})
}

func (s *Service) mutate(ctx context.Context, customerID, cartID string, fn func(context.Context, *Cart) error) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	var view View
	err := s.withLock(ctx, cartID, func(ctx context.Context) error {
		cart, err := s.load(ctx, customerID, cartID)
		if err != nil {
			return err
		}
		if err := fn(ctx, &cart); err != nil {
			return err
		}
		cart.UpdatedAt = s.now()
		if err := s.Store.Save(ctx, cart); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		view, err = s.price(ctx, cart)
		return err
	})
	return view, err
}

func (s *Service) withLock(ctx context.Context, cartID string, fn func(context.Context) error) error {
	if s.Locker == nil {
		return fn(ctx)
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return s.Locker.WithLock(ctx, "cart:"+cartID, ttl, fn)
}

func (s *Service) load(ctx context.Context, customerID, cartID string) (Cart, error) {
	cart, err := s.Store.Load(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	if customerID != "" && cart.CustomerID != customerID {
		return Cart{}, ErrNotFound
	}
	found, err := s.Catalog.Lookup(ctx, cart.ProductIDs())
	if err != nil {
		return Cart{}, err
	}
	cart.Refresh(found)
	return cart, nil
}

func (s *Service) price(ctx context.Context, cart Cart) (View, error) {
	owner, err := s.Customers.Get(ctx, cart.CustomerID)
	if err != nil {
		return View{}, err
	}
	rules, err := s.Rules.List(ctx)
	if err != nil {
		return View{}, fmt.Errorf("list rules: %w", err)
	}
	view := View{Cart: cart, Customer: owner, CodeValid: true}
	totals, err := pricing.ComputeTotals(cart.PricingLines(), rules, owner.PricingCustomer(), cart.AppliedCode)
	if errors.Is(err, pricing.ErrInvalidCode) {
		view.CodeValid = false
		totals, err = pricing.ComputeTotals(cart.PricingLines(), rules, owner.PricingCustomer(), "")
	}
	if err != nil {
		return View{}, err
	}
	view.Totals = totals
	return view, nil
}
