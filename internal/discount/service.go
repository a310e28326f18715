package discount

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/novahub/internal/catalog"
	"github.com/noah-isme/novahub/internal/common"
	"github.com/noah-isme/novahub/internal/customer"
	"github.com/noah-isme/novahub/internal/events"
	"github.com/noah-isme/novahub/internal/pricing"
)

var (
	// ErrNotFound is returned when a rule does not exist.
	ErrNotFound = errors.New("discount rule not found")
	// ErrInvalidInput wraps validation failures.
	ErrInvalidInput = errors.New("invalid discount input")
	// ErrDuplicateCode is returned when a manual rule already uses the code.
	ErrDuplicateCode = errors.New("discount code already exists")
)

// Repository persists the discount registry in insertion order.
type Repository interface {
	ListRules(ctx context.Context) ([]pricing.DiscountRule, error)
	GetRule(ctx context.Context, id string) (pricing.DiscountRule, error)
	InsertRule(ctx context.Context, rule pricing.DiscountRule) error
	UpdateRule(ctx context.Context, rule pricing.DiscountRule) error
	DeleteRule(ctx context.Context, id string) error
	// ReplaceProductRules removes every rule targeting productID and, when
	// rule is non-nil, inserts it in the same unit of work.
	ReplaceProductRules(ctx context.Context, productID string, rule *pricing.DiscountRule) error
	DeleteRulesForProduct(ctx context.Context, productID string) (int, error)
}

// ProductLookup resolves products for descriptions and markdown codes.
type ProductLookup interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

// CustomerLookup resolves customers for targeted codes.
type CustomerLookup interface {
	Get(ctx context.Context, id string) (customer.Customer, error)
}

// Service manages the discount registry.
type Service struct {
	Repo      Repository
	Products  ProductLookup
	Customers CustomerLookup
	Events    events.Emitter
	NewID     func() string
	AutoCode  func() string
	Logger    *zerolog.Logger
}

// CreateInput is the admin payload for a new rule.
type CreateInput struct {
	Code             string `json:"code" validate:"max=64"`
	Percentage       int    `json:"percentage" validate:"min=1,max=99"`
	IsAutomatic      bool   `json:"is_automatic"`
	TargetProductID  string `json:"target_product_id"`
	TargetCustomerID string `json:"target_customer_id"`
	Description      string `json:"description" validate:"max=500"`
}

// RandomAutoCode returns AUTO- followed by four random base36 characters.
func RandomAutoCode() string {
	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	var b strings.Builder
	b.WriteString("AUTO-")
	for i := 0; i < 4; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			b.WriteByte('X')
			continue
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String()
}

func (s *Service) ready() error {
	if s == nil || s.Repo == nil {
		return errors.New("discount service not configured")
	}
	return nil
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) autoCode() string {
	if s.AutoCode != nil {
		return s.AutoCode()
	}
	return RandomAutoCode()
}

// List returns the registry in insertion order.
func (s *Service) List(ctx context.Context) ([]pricing.DiscountRule, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.Repo.ListRules(ctx)
}

// Get returns a single rule.
func (s *Service) Get(ctx context.Context, id string) (pricing.DiscountRule, error) {
	if err := s.ready(); err != nil {
		return pricing.DiscountRule{}, err
	}
	return s.Repo.GetRule(ctx, id)
}

// Create validates and stores a new active rule.
func (s *Service) Create(ctx context.Context, in CreateInput) (pricing.DiscountRule, error) {
	if err := s.ready(); err != nil {
		return pricing.DiscountRule{}, err
	}
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.TargetProductID = strings.TrimSpace(in.TargetProductID)
	in.TargetCustomerID = strings.TrimSpace(in.TargetCustomerID)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateInput(in); err != nil {
		return pricing.DiscountRule{}, err
	}

	var product *catalog.Product
	if in.TargetProductID != "" {
		p, err := s.lookupProduct(ctx, in.TargetProductID)
		if err != nil {
			return pricing.DiscountRule{}, err
		}
		product = &p
	}
	if in.TargetCustomerID != "" {
		c, err := s.lookupCustomer(ctx, in.TargetCustomerID)
		if err != nil {
			return pricing.DiscountRule{}, err
		}
		if in.Code == "" && !in.IsAutomatic {
			in.Code = strings.ToUpper(c.Phone)
		}
	}

	switch {
	case in.IsAutomatic:
		if product == nil {
			return pricing.DiscountRule{}, fmt.Errorf("automatic rules need a target product: %w", ErrInvalidInput)
		}
		in.Code = s.autoCode()
	case in.Code == "":
		return pricing.DiscountRule{}, fmt.Errorf("manual rules need a code: %w", ErrInvalidInput)
	default:
		if err := s.ensureCodeFree(ctx, in.Code); err != nil {
			return pricing.DiscountRule{}, err
		}
	}

	if in.Description == "" {
		in.Description = defaultDescription(in.Percentage, product)
	}
	rule := pricing.DiscountRule{
		ID:               s.newID(),
		Code:             in.Code,
		Percentage:       in.Percentage,
		IsActive:         true,
		IsAutomatic:      in.IsAutomatic,
		TargetProductID:  in.TargetProductID,
		TargetCustomerID: in.TargetCustomerID,
		Description:      in.Description,
	}
	if err := s.Repo.InsertRule(ctx, rule); err != nil {
		return pricing.DiscountRule{}, fmt.Errorf("insert rule: %w", err)
	}
	s.emit(ctx, rule.ID, "created", &rule)
	return rule, nil
}

func validateInput(in CreateInput) error {
	if in.Percentage < 1 || in.Percentage > 99 {
		return fmt.Errorf("percentage must be between 1 and 99: %w", ErrInvalidInput)
	}
	if err := common.ValidateStruct(in); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}
	return nil
}

func defaultDescription(pct int, product *catalog.Product) string {
	if product != nil {
		return fmt.Sprintf("Admin Set: %d%% Discount on %s", pct, product.Name)
	}
	return fmt.Sprintf("%d%% Shop-wide Discount", pct)
}

func (s *Service) ensureCodeFree(ctx context.Context, code string) error {
	rules, err := s.Repo.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}
	for _, r := range rules {
		if !r.IsAutomatic && strings.EqualFold(r.Code, code) {
			return ErrDuplicateCode
		}
	}
	return nil
}

func (s *Service) lookupProduct(ctx context.Context, id string) (catalog.Product, error) {
	if s.Products == nil {
		return catalog.Product{}, errors.New("product lookup not configured")
	}
	p, err := s.Products.Get(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return catalog.Product{}, fmt.Errorf("target product %s does not exist: %w", id, ErrInvalidInput)
	}
	return p, err
}

func (s *Service) lookupCustomer(ctx context.Context, id string) (customer.Customer, error) {
	if s.Customers == nil {
		return customer.Customer{}, errors.New("customer lookup not configured")
	}
	c, err := s.Customers.Get(ctx, id)
	if errors.Is(err, customer.ErrNotFound) {
		return customer.Customer{}, fmt.Errorf("target customer %s does not exist: %w", id, ErrInvalidInput)
	}
	return c, err
}

// SetActive toggles a rule.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (pricing.DiscountRule, error) {
	if err := s.ready(); err != nil {
		return pricing.DiscountRule{}, err
	}
	rule, err := s.Repo.GetRule(ctx, id)
	if err != nil {
		return pricing.DiscountRule{}, err
	}
	rule.IsActive = active
	if err := s.Repo.UpdateRule(ctx, rule); err != nil {
		return pricing.DiscountRule{}, fmt.Errorf("update rule: %w", err)
	}
	s.emit(ctx, rule.ID, "updated", &rule)
	return rule, nil
}

// Delete removes a rule by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.Repo.GetRule(ctx, id); err != nil {
		return err
	}
	if err := s.Repo.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	s.emit(ctx, id, "deleted", nil)
	return nil
}

// SetMarkdown replaces every rule targeting the product with a single
// automatic markdown. A percentage of zero or less only removes.
func (s *Service) SetMarkdown(ctx context.Context, productID string, pct int) (*pricing.DiscountRule, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if pct > 99 {
		return nil, fmt.Errorf("percentage must be at most 99: %w", ErrInvalidInput)
	}
	p, err := s.lookupProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return nil, err
	}
	if pct <= 0 {
		if err := s.Repo.ReplaceProductRules(ctx, p.ID, nil); err != nil {
			return nil, fmt.Errorf("clear markdown: %w", err)
		}
		s.emit(ctx, p.ID, "markdown_cleared", nil)
		return nil, nil
	}
	rule := pricing.DiscountRule{
		ID:              s.newID(),
		Code:            "AUTO-" + p.Code,
		Percentage:      pct,
		IsActive:        true,
		IsAutomatic:     true,
		TargetProductID: p.ID,
		Description:     fmt.Sprintf("Admin Markdown: %d%% off %s", pct, p.Name),
	}
	if err := s.Repo.ReplaceProductRules(ctx, p.ID, &rule); err != nil {
		return nil, fmt.Errorf("replace markdown: %w", err)
	}
	s.emit(ctx, rule.ID, "markdown_set", &rule)
	return &rule, nil
}

// DeleteRulesForProduct lets the catalog drop rules of a removed product.
func (s *Service) DeleteRulesForProduct(ctx context.Context, productID string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	n, err := s.Repo.DeleteRulesForProduct(ctx, productID)
	if err == nil && n > 0 {
		s.emit(ctx, productID, "product_removed", nil)
	}
	return n, err
}

// PreviewLine is an ad-hoc cart line for Preview.
type PreviewLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

// PreviewInput evaluates a code against an ad-hoc cart.
type PreviewInput struct {
	CustomerID string        `json:"customer_id" validate:"required"`
	Code       string        `json:"code"`
	Lines      []PreviewLine `json:"lines" validate:"required,min=1,dive"`
}

// Preview prices an ad-hoc cart for a customer with the current registry.
func (s *Service) Preview(ctx context.Context, in PreviewInput) (pricing.Totals, error) {
	if err := s.ready(); err != nil {
		return pricing.Totals{}, err
	}
	if err := common.ValidateStruct(in); err != nil {
		return pricing.Totals{}, fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}
	c, err := s.lookupCustomer(ctx, in.CustomerID)
	if err != nil {
		return pricing.Totals{}, err
	}
	lines := make([]pricing.Line, 0, len(in.Lines))
	for _, ln := range in.Lines {
		if ln.Quantity < 1 {
			return pricing.Totals{}, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
		}
		p, err := s.lookupProduct(ctx, ln.ProductID)
		if err != nil {
			return pricing.Totals{}, err
		}
		lines = append(lines, pricing.Line{ProductID: p.ID, UnitPrice: p.Price, Quantity: ln.Quantity})
	}
	rules, err := s.Repo.ListRules(ctx)
	if err != nil {
		return pricing.Totals{}, fmt.Errorf("list rules: %w", err)
	}
	return pricing.ComputeTotals(lines, rules, c.PricingCustomer(), in.Code)
}

func (s *Service) emit(ctx context.Context, aggregateID, action string, rule *pricing.DiscountRule) {
	if s.Events == nil {
		return
	}
	payload := map[string]any{"action": action}
	if rule != nil {
		payload["rule"] = rule
	}
	if _, err := s.Events.Emit(ctx, events.TopicDiscountChanged, aggregateID, payload); err != nil {
		s.log().Warn().Err(err).Str("topic", events.TopicDiscountChanged).Str("action", action).Str("aggregate_id", aggregateID).Msg("discount: emit event")
	}
}

func (s *Service) log() *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	nop := zerolog.Nop()
	return &nop
}
