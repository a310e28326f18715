package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/novahub/internal/obs"
	"github.com/noah-isme/novahub/internal/order"
)

// Fallback texts returned instead of errors.
const (
	DescriptionFailed = "Failed to generate description. Please try again."
	DescriptionEmpty  = "No description generated."
	AnalysisFailed    = "Sales analysis currently unavailable."
	AnalysisEmpty     = "No analysis available."
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Orders lists orders for the admin view.
type Orders interface {
	List(ctx context.Context, scope order.Scope, f order.ListFilter) ([]order.Order, error)
}

// Service turns store data into short marketing and business texts. It never
// fails: upstream problems degrade to fixed fallback strings.
type Service struct {
	Gen    Generator
	Orders Orders
	Logger *zerolog.Logger
}

// ProductDescription drafts a catalog description.
func (s *Service) ProductDescription(ctx context.Context, name, category, company string) string {
	prompt := fmt.Sprintf(`Generate a compelling, SEO-friendly product description for an item called "%s" by "%s" in the "%s" category. Focus on quality and brand value. Keep it under 100 words.`, name, company, category)
	return s.generate(ctx, "product_description", prompt, 0.7, DescriptionFailed, DescriptionEmpty)
}

// SalesAnalysis summarises orders and suggests one revenue action. When orders
// is nil every order in the store is analysed.
func (s *Service) SalesAnalysis(ctx context.Context, orders []order.Order) string {
	if orders == nil && s != nil && s.Orders != nil {
		all, err := s.Orders.List(ctx, order.Scope{}, order.ListFilter{})
		if err != nil {
			s.log().Error().Err(err).Msg("insights: list orders")
			obs.ObserveInsights("sales_analysis", "error")
			return AnalysisFailed
		}
		orders = all
	}
	if orders == nil {
		orders = []order.Order{}
	}
	data, err := json.Marshal(orders)
	if err != nil {
		obs.ObserveInsights("sales_analysis", "error")
		return AnalysisFailed
	}
	prompt := "As a business analyst, briefly summarize these sales trends and suggest one action to improve revenue: " + string(data)
	return s.generate(ctx, "sales_analysis", prompt, 0.5, AnalysisFailed, AnalysisEmpty)
}

func (s *Service) generate(ctx context.Context, kind, prompt string, temperature float64, failed, empty string) string {
	if s == nil || s.Gen == nil {
		obs.ObserveInsights(kind, "unconfigured")
		return failed
	}
	text, err := s.Gen.Generate(ctx, prompt, temperature)
	switch {
	case errors.Is(err, ErrNotConfigured):
		obs.ObserveInsights(kind, "unconfigured")
		return failed
	case err != nil:
		s.log().Error().Err(err).Str("kind", kind).Msg("insights: generation failed")
		obs.ObserveInsights(kind, "error")
		return failed
	case text == "":
		obs.ObserveInsights(kind, "empty")
		return empty
	}
	obs.ObserveInsights(kind, "ok")
	return text
}

func (s *Service) log() *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	nop := zerolog.Nop()
	return &nop
}
