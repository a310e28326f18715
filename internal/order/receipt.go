package order

import (
	"fmt"
	"strings"

	"github.com/noah-isme/novahub/internal/pricing"
)

// Receipt is a rendered order confirmation.
type Receipt struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// RenderReceipt builds the order confirmation message.
func RenderReceipt(o Order) Receipt {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", o.CustomerName)
	fmt.Fprintf(&b, "Thank you for your order #%s.\n\n", o.ID)
	b.WriteString("Items:\n")
	for _, it := range o.Items {
		fmt.Fprintf(&b, "- %s (%dx) : %s\n", it.Name, it.Quantity, pricing.FormatUSD(it.Subtotal))
	}
	b.WriteString("\n")
	if saved := o.DiscountApplied(); saved.IsPositive() {
		fmt.Fprintf(&b, "Subtotal: %s\n", pricing.FormatUSD(o.Subtotal))
		label := o.AppliedDiscount.Code()
		if label == "" {
			label = "Discount"
		}
		fmt.Fprintf(&b, "%s: -%s\n", label, pricing.FormatUSD(saved))
	}
	fmt.Fprintf(&b, "Total: %s\n", pricing.FormatUSD(o.Total))
	fmt.Fprintf(&b, "Payment: %s\n", o.PaymentMethod)
	fmt.Fprintf(&b, "Shipping to: %s\n\n", o.ShippingAddress)
	b.WriteString("Thank you for shopping with Nova Hub!")
	return Receipt{
		To:      o.CustomerEmail,
		Subject: fmt.Sprintf("Order Confirmation #%s - Nova Hub", o.ID),
		Body:    b.String(),
	}
}
