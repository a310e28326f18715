package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/novahub/internal/common"
	"github.com/noah-isme/novahub/internal/pricing"
)

// DefaultImage is used when a product is saved without an image.
const DefaultImage = "https://picsum.photos/seed/new/400/400"

var (
	// ErrNotFound is returned when a product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInvalidProduct wraps field validation failures.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrDuplicateCode is returned when another product already uses the code.
	ErrDuplicateCode = errors.New("product code already exists")
)

// Product is a catalog entry.
type Product struct {
	ID          string        `json:"id"`
	Code        string        `json:"code"`
	Name        string        `json:"name"`
	CompanyName string        `json:"company_name"`
	Description string        `json:"description"`
	Price       pricing.Money `json:"price"`
	Category    string        `json:"category"`
	Image       string        `json:"image"`
	Stock       int           `json:"stock"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Input is the admin payload for creating or updating a product.
type Input struct {
	Code        string          `json:"code" validate:"required,max=64"`
	Name        string          `json:"name" validate:"required,max=200"`
	CompanyName string          `json:"company_name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=4000"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"max=100"`
	Image       string          `json:"image" validate:"omitempty,url"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

// Normalize trims fields, upper-cases the code and validates the payload.
func (in Input) Normalize() (Input, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Image = strings.TrimSpace(in.Image)
	if err := common.ValidateStruct(in); err != nil {
		return in, fmt.Errorf("%v: %w", err, ErrInvalidProduct)
	}
	if !in.Price.IsPositive() {
		return in, fmt.Errorf("price must be positive: %w", ErrInvalidProduct)
	}
	if in.Image == "" {
		in.Image = DefaultImage
	}
	return in, nil
}

// apply copies the input onto p.
func (in Input) apply(p *Product) {
	p.Code = in.Code
	p.Name = in.Name
	p.CompanyName = in.CompanyName
	p.Description = in.Description
	p.Price = in.Price
	p.Category = in.Category
	p.Image = in.Image
	p.Stock = in.Stock
}

// Matches reports whether the product matches a free-text query on name,
// category, company or code.
func (p Product) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, field := range []string{p.Name, p.Category, p.CompanyName, p.Code} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
