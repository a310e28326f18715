package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidCode is returned when an entered code matches no usable manual rule.
var ErrInvalidCode = errors.New("invalid discount code")

// CustomerType is the loyalty tier of a customer.
type CustomerType string

const (
	CustomerRegular CustomerType = "REGULAR"
	CustomerPremium CustomerType = "PREMIUM"
	CustomerVIP     CustomerType = "VIP"
)

// Valid reports whether t is a known tier.
func (t CustomerType) Valid() bool {
	switch t {
	case CustomerRegular, CustomerPremium, CustomerVIP:
		return true
	}
	return false
}

// Customer is the slice of customer data the engine needs.
type Customer struct {
	ID   string
	Type CustomerType
}

// DiscountRule is a single entry of the discount registry.
type DiscountRule struct {
	ID               string `json:"id"`
	Code             string `json:"code"`
	Percentage       int    `json:"percentage"`
	IsActive         bool   `json:"is_active"`
	IsAutomatic      bool   `json:"is_automatic"`
	TargetProductID  string `json:"target_product_id,omitempty"`
	TargetCustomerID string `json:"target_customer_id,omitempty"`
	Description      string `json:"description"`
}

// Line is a priced cart line.
type Line struct {
	ProductID string
	UnitPrice Money
	Quantity  int
}

// LineBreakdown reports how a single line was priced.
type LineBreakdown struct {
	ProductID        string `json:"product_id"`
	Subtotal         Money  `json:"subtotal"`
	AutomaticSavings Money  `json:"automatic_savings"`
	AutomaticRuleID  string `json:"automatic_rule_id,omitempty"`
}

// Totals is the result of a pricing run.
type Totals struct {
	BaseSubtotal     Money           `json:"base_subtotal"`
	AutomaticSavings Money           `json:"automatic_savings"`
	ManualSavings    Money           `json:"manual_savings"`
	TotalSavings     Money           `json:"total_savings"`
	FinalTotal       Money           `json:"final_total"`
	Lines            []LineBreakdown `json:"lines"`
	Applied          AppliedDiscount `json:"applied_discount"`
}

// ComputeTotals prices the lines against the registry for the given customer.
// An empty code applies no manual discount. A non-empty code that matches no
// usable manual rule returns ErrInvalidCode and zero Totals.
func ComputeTotals(lines []Line, rules []DiscountRule, customer Customer, code string) (Totals, error) {
	var manual *DiscountRule
	if strings.TrimSpace(code) != "" {
		rule, ok := FindManualRule(rules, code, customer.ID)
		if !ok {
			return Totals{}, ErrInvalidCode
		}
		manual = &rule
	}

	base := decimal.Zero
	auto := decimal.Zero
	breakdown := make([]LineBreakdown, 0, len(lines))
	for _, ln := range lines {
		sub := LineSubtotal(ln.UnitPrice, ln.Quantity)
		base = base.Add(sub)
		lb := LineBreakdown{ProductID: ln.ProductID, Subtotal: sub, AutomaticSavings: decimal.Zero}
		if customer.Type != CustomerVIP {
			if rule, ok := BestAutomaticRule(rules, ln.ProductID); ok {
				lb.AutomaticSavings = Percent(sub, rule.Percentage)
				lb.AutomaticRuleID = rule.ID
				auto = auto.Add(lb.AutomaticSavings)
			}
		}
		breakdown = append(breakdown, lb)
	}

	manualAmount := decimal.Zero
	if manual != nil {
		manualAmount = manualSavings(*manual, lines, base.Sub(auto))
	}

	total := auto.Add(manualAmount)
	final := base.Sub(total)
	if final.IsNegative() {
		final = decimal.Zero
	}

	applied := NoDiscount()
	switch {
	case manual != nil:
		applied = ManualDiscount(*manual, manualAmount)
	case auto.IsPositive():
		applied = AutomaticAggregate(auto)
	}

	return Totals{
		BaseSubtotal:     base,
		AutomaticSavings: auto,
		ManualSavings:    manualAmount,
		TotalSavings:     total,
		FinalTotal:       final,
		Lines:            breakdown,
		Applied:          applied,
	}, nil
}

// BestAutomaticRule returns the active automatic rule with the highest
// percentage targeting productID. Ties keep the earliest rule.
func BestAutomaticRule(rules []DiscountRule, productID string) (DiscountRule, bool) {
	var best DiscountRule
	found := false
	for _, r := range rules {
		if !r.IsActive || !r.IsAutomatic || r.TargetProductID == "" || r.TargetProductID != productID {
			continue
		}
		if !found || r.Percentage > best.Percentage {
			best = r
			found = true
		}
	}
	return best, found
}

// FindManualRule resolves an entered code to an active manual rule usable by customerID.
func FindManualRule(rules []DiscountRule, code, customerID string) (DiscountRule, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return DiscountRule{}, false
	}
	for _, r := range rules {
		if !r.IsActive || r.IsAutomatic {
			continue
		}
		if !strings.EqualFold(r.Code, code) {
			continue
		}
		if r.TargetCustomerID != "" && r.TargetCustomerID != customerID {
			continue
		}
		return r, true
	}
	return DiscountRule{}, false
}

func manualSavings(rule DiscountRule, lines []Line, afterAuto Money) Money {
	if rule.TargetProductID == "" {
		return Percent(afterAuto, rule.Percentage)
	}
	for _, ln := range lines {
		if ln.ProductID == rule.TargetProductID {
			return Percent(LineSubtotal(ln.UnitPrice, ln.Quantity), rule.Percentage)
		}
	}
	return decimal.Zero
}
