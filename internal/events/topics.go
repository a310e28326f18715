package events

import "context"

// Topic constants for domain events emitted by the store.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
	TopicDiscountChanged    = "discount.changed"
	TopicCustomerRegistered = "customer.registered"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderStatusChanged,
		TopicDiscountChanged,
		TopicCustomerRegistered,
	}
}

// Filter forwards only events whose topic is enabled.
type Filter struct {
	Topics map[string]bool
	Next   Notifier
}

// Notify implements Notifier.
func (f Filter) Notify(ctx context.Context, ev Event) error {
	if f.Next == nil || !f.Topics[ev.Topic] {
		return nil
	}
	return f.Next.Notify(ctx, ev)
}
