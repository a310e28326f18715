package cart

import (
	"errors"
	"time"

	"github.com/noah-isme/novahub/internal/catalog"
	"github.com/noah-isme/novahub/internal/pricing"
)

var (
	// ErrNotFound is returned for unknown carts or carts owned by someone else.
	ErrNotFound = errors.New("cart not found")
	// ErrLineNotFound is returned when the product is not in the cart.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid cart input")
)

// Line is a product snapshot with a quantity.
type Line struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// Cart is the session state for one customer.
type Cart struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	Lines       []Line    `json:"lines"`
	AppliedCode string    `json:"applied_code,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *Cart) index(productID string) int {
	for i := range c.Lines {
		if c.Lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// Add appends the product with quantity 1 or bumps an existing line.
func (c *Cart) Add(p catalog.Product) {
	if i := c.index(p.ID); i >= 0 {
		c.Lines[i].Quantity++
		c.Lines[i].Product = p
		return
	}
	c.Lines = append(c.Lines, Line{Product: p, Quantity: 1})
}

// BulkAdd adds every product not already present. Existing lines are left
// untouched. It returns the number of lines added.
func (c *Cart) BulkAdd(products []catalog.Product) int {
	added := 0
	for _, p := range products {
		if c.index(p.ID) >= 0 {
			continue
		}
		c.Lines = append(c.Lines, Line{Product: p, Quantity: 1})
		added++
	}
	return added
}

// SetQuantity overwrites a line quantity; zero or less removes the line.
func (c *Cart) SetQuantity(productID string, qty int) error {
	i := c.index(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	if qty <= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		return nil
	}
	c.Lines[i].Quantity = qty
	return nil
}

func (c *Cart) Increment(productID string) error {
	i := c.index(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	return c.SetQuantity(productID, c.Lines[i].Quantity+1)
}

func (c *Cart) Decrement(productID string) error {
	i := c.index(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	return c.SetQuantity(productID, c.Lines[i].Quantity-1)
}

func (c *Cart) Remove(productID string) error {
	return c.SetQuantity(productID, 0)
}

// Clear empties the cart and drops the applied code.
func (c *Cart) Clear() {
	c.Lines = nil
	c.AppliedCode = ""
}

// Refresh replaces product snapshots with current catalog data and drops
// lines whose product no longer exists.
func (c *Cart) Refresh(products map[string]catalog.Product) {
	kept := c.Lines[:0]
	for _, ln := range c.Lines {
		p, ok := products[ln.Product.ID]
		if !ok {
			continue
		}
		ln.Product = p
		kept = append(kept, ln)
	}
	c.Lines = kept
}

// ProductIDs lists the products in line order.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Lines))
	for _, ln := range c.Lines {
		ids = append(ids, ln.Product.ID)
	}
	return ids
}

// PricingLines projects the cart for the pricing engine.
func (c *Cart) PricingLines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(c.Lines))
	for _, ln := range c.Lines {
		lines = append(lines, pricing.Line{ProductID: ln.Product.ID, UnitPrice: ln.Product.Price, Quantity: ln.Quantity})
	}
	return lines
}
