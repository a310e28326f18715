package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/novahub/internal/common"
)

// Repository persists products. List order is insertion order.
type Repository interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	GetProductByCode(ctx context.Context, code string) (Product, error)
	InsertProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) error
}

// MarkdownCleaner removes discount rules that target a product.
type MarkdownCleaner interface {
	DeleteRulesForProduct(ctx context.Context, productID string) (int, error)
}

// Service orchestrates catalog reads, admin writes and caching.
type Service struct {
	Repo      Repository
	Cache     *Cache
	Markdowns MarkdownCleaner
	Now       func() time.Time
	NewID     func() string

	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Company  string
	Page     int
	Limit    int
}

// ListResult contains a page of products and the total match count.
type ListResult struct {
	Items []Product
	Total int
	Page  int
	Limit int
}

// Facets lists the distinct categories and companies in catalog order.
type Facets struct {
	Categories []string `json:"categories"`
	Companies  []string `json:"companies"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) limits() (def, max int) {
	def, max = s.DefaultLimit, s.MaxLimit
	if max < 1 {
		max = 100
	}
	if def < 1 {
		def = 20
	}
	if def > max {
		def = max
	}
	return def, max
}

// ParseListParams normalises raw query values into typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	def, max := s.limits()
	params := ListParams{
		Query:    strings.TrimSpace(values.Get("q")),
		Category: strings.TrimSpace(values.Get("category")),
		Company:  strings.TrimSpace(values.Get("company")),
		Page:     1,
		Limit:    def,
	}
	if strings.EqualFold(params.Category, "all") {
		params.Category = ""
	}
	if strings.EqualFold(params.Company, "all") {
		params.Company = ""
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, common.BadRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, common.BadRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = l
	}
	if params.Limit > max {
		params.Limit = max
	}
	return params, nil
}

// All returns every product, served from cache when possible.
func (s *Service) All(ctx context.Context) ([]Product, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("catalog service not configured")
	}
	key, _ := s.Cache.Key(ctx, "products:all")
	var cached []Product
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	items, err := s.Repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	_ = s.Cache.SetJSON(ctx, key, items)
	return items, nil
}

// List applies search and facet filters then paginates.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	all, err := s.All(ctx)
	if err != nil {
		return ListResult{}, err
	}
	matched := make([]Product, 0, len(all))
	for _, p := range all {
		if params.Category != "" && !strings.EqualFold(p.Category, params.Category) {
			continue
		}
		if params.Company != "" && !strings.EqualFold(p.CompanyName, params.Company) {
			continue
		}
		if !p.Matches(params.Query) {
			continue
		}
		matched = append(matched, p)
	}
	page, meta := common.Paginate(matched, params.Page, params.Limit)
	return ListResult{Items: page, Total: meta.TotalItems, Page: params.Page, Limit: params.Limit}, nil
}

// Facets returns distinct categories and companies.
func (s *Service) Facets(ctx context.Context) (Facets, error) {
	all, err := s.All(ctx)
	if err != nil {
		return Facets{}, err
	}
	return Facets{
		Categories: distinct(all, func(p Product) string { return p.Category }),
		Companies:  distinct(all, func(p Product) string { return p.CompanyName }),
	}, nil
}

func distinct(items []Product, field func(Product) string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, p := range items {
		v := field(p)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Get returns a single product.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	if s == nil || s.Repo == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, fmt.Errorf("id is required: %w", ErrNotFound)
	}
	return s.Repo.GetProduct(ctx, id)
}

// Lookup returns the products for ids that still exist, keyed by id.
func (s *Service) Lookup(ctx context.Context, ids []string) (map[string]Product, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make(map[string]Product, len(ids))
	for _, p := range all {
		if _, ok := want[p.ID]; ok {
			out[p.ID] = p
		}
	}
	return out, nil
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, in Input) (Product, error) {
	if s == nil || s.Repo == nil {
		return Product{}, errors.New("catalog service not configured")
	}
	in, err := in.Normalize()
	if err != nil {
		return Product{}, err
	}
	if err := s.ensureCodeFree(ctx, in.Code, ""); err != nil {
		return Product{}, err
	}
	now := s.now()
	p := Product{ID: s.newID(), CreatedAt: now, UpdatedAt: now}
	in.apply(&p)
	if err := s.Repo.InsertProduct(ctx, p); err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	_ = s.Cache.Invalidate(ctx)
	return p, nil
}

// Update replaces the editable fields of an existing product.
func (s *Service) Update(ctx context.Context, id string, in Input) (Product, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	in, err = in.Normalize()
	if err != nil {
		return Product{}, err
	}
	if err := s.ensureCodeFree(ctx, in.Code, existing.ID); err != nil {
		return Product{}, err
	}
	in.apply(&existing)
	existing.UpdatedAt = s.now()
	if err := s.Repo.UpdateProduct(ctx, existing); err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	_ = s.Cache.Invalidate(ctx)
	return existing, nil
}

// Delete removes a product together with its markdown rules.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if s.Markdowns != nil {
		if _, err := s.Markdowns.DeleteRulesForProduct(ctx, id); err != nil {
			return fmt.Errorf("delete product rules: %w", err)
		}
	}
	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	_ = s.Cache.Invalidate(ctx)
	return nil
}

func (s *Service) ensureCodeFree(ctx context.Context, code, selfID string) error {
	other, err := s.Repo.GetProductByCode(ctx, code)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("lookup product code: %w", err)
	case other.ID != selfID:
		return ErrDuplicateCode
	}
	return nil
}
