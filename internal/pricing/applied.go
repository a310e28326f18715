package pricing

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// AppliedKind tags which discount shaped an order total.
type AppliedKind string

const (
	AppliedNone               AppliedKind = "NONE"
	AppliedManual             AppliedKind = "MANUAL"
	AppliedAutomaticAggregate AppliedKind = "AUTOMATIC_AGGREGATE"
)

const (
	automaticAggregateCode        = "AUTO-SALE"
	automaticAggregateDescription = "Automatic Product Savings"
)

// AppliedDiscount records the discount attached to an order. Exactly one of
// Rule (MANUAL) or Amount (AUTOMATIC_AGGREGATE) is meaningful for a kind.
type AppliedDiscount struct {
	Kind   AppliedKind   `json:"kind"`
	Rule   *DiscountRule `json:"rule,omitempty"`
	Amount Money         `json:"amount"`
}

// NoDiscount is the zero applied discount.
func NoDiscount() AppliedDiscount {
	return AppliedDiscount{Kind: AppliedNone, Amount: decimal.Zero}
}

// ManualDiscount wraps the matched manual rule and the amount it saved.
func ManualDiscount(rule DiscountRule, amount Money) AppliedDiscount {
	r := rule
	return AppliedDiscount{Kind: AppliedManual, Rule: &r, Amount: amount}
}

// AutomaticAggregate summarizes automatic markdown savings when no code was used.
func AutomaticAggregate(amount Money) AppliedDiscount {
	return AppliedDiscount{Kind: AppliedAutomaticAggregate, Amount: amount}
}

// Code returns a display code for the applied discount.
func (a AppliedDiscount) Code() string {
	switch a.Kind {
	case AppliedManual:
		if a.Rule != nil {
			return a.Rule.Code
		}
	case AppliedAutomaticAggregate:
		return automaticAggregateCode
	}
	return ""
}

// Description returns a human readable label.
func (a AppliedDiscount) Description() string {
	switch a.Kind {
	case AppliedManual:
		if a.Rule != nil {
			return a.Rule.Description
		}
	case AppliedAutomaticAggregate:
		return automaticAggregateDescription
	}
	return ""
}

// Validate checks the variant invariants after decoding.
func (a AppliedDiscount) Validate() error {
	switch a.Kind {
	case AppliedNone, "":
		return nil
	case AppliedManual:
		if a.Rule == nil {
			return fmt.Errorf("manual applied discount without rule")
		}
		return nil
	case AppliedAutomaticAggregate:
		if a.Rule != nil {
			return fmt.Errorf("automatic aggregate must not carry a rule")
		}
		return nil
	default:
		return fmt.Errorf("unknown applied discount kind %q", a.Kind)
	}
}

// UnmarshalJSON decodes and validates the tagged variant.
func (a *AppliedDiscount) UnmarshalJSON(data []byte) error {
	type alias AppliedDiscount
	var tmp alias
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	if tmp.Kind == "" {
		tmp.Kind = AppliedNone
	}
	decoded := AppliedDiscount(tmp)
	if err := decoded.Validate(); err != nil {
		return err
	}
	*a = decoded
	return nil
}
