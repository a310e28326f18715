package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/novahub/internal/common"
	"github.com/noah-isme/novahub/internal/events"
	"github.com/noah-isme/novahub/internal/pricing"
)

const idAttempts = 20

// Service manages customer registration and administration.
type Service struct {
	Repo   Repository
	Events events.Emitter
	Now    func() time.Time
	NewID  func() string
	Logger *zerolog.Logger
}

func (s *Service) log() *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// RegisterInput is the public registration payload.
type RegisterInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,max=32"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Repo == nil {
		return errors.New("customer service not configured")
	}
	return nil
}

// Register creates a REGULAR customer with a fresh CUST-NNNN id.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Customer, error) {
	if err := s.ready(); err != nil {
		return Customer{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if err := common.ValidateStruct(in); err != nil {
		return Customer{}, fmt.Errorf("%v: %w", err, ErrInvalidInput)
	}
	id, err := s.allocateID(ctx)
	if err != nil {
		return Customer{}, err
	}
	c := Customer{
		ID:       id,
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		Type:     pricing.CustomerRegular,
		JoinedAt: s.now(),
	}
	if err := s.Repo.InsertCustomer(ctx, c); err != nil {
		return Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	if s.Events != nil {
		_, err := s.Events.Emit(ctx, events.TopicCustomerRegistered, c.ID, map[string]any{
			"customer_id": c.ID,
			"email":       c.Email,
		})
		if err != nil {
			s.log().Warn().Err(err).Str("topic", events.TopicCustomerRegistered).Str("customer_id", c.ID).Msg("customer: emit event")
		}
	}
	return c, nil
}

func (s *Service) allocateID(ctx context.Context) (string, error) {
	gen := s.NewID
	if gen == nil {
		gen = RandomID
	}
	for i := 0; i < idAttempts; i++ {
		id := gen()
		_, err := s.Repo.GetCustomer(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("check customer id: %w", err)
		}
	}
	return "", ErrIDExhausted
}

// List returns customers matching query in registration order.
func (s *Service) List(ctx context.Context, query string) ([]Customer, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	all, err := s.Repo.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	out := make([]Customer, 0, len(all))
	for _, c := range all {
		if c.Matches(query) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Get returns one customer.
func (s *Service) Get(ctx context.Context, id string) (Customer, error) {
	if err := s.ready(); err != nil {
		return Customer{}, err
	}
	return s.Repo.GetCustomer(ctx, strings.TrimSpace(id))
}

// SetType changes the loyalty tier.
func (s *Service) SetType(ctx context.Context, id string, t pricing.CustomerType) (Customer, error) {
	if !t.Valid() {
		return Customer{}, fmt.Errorf("unknown customer type %q: %w", t, ErrInvalidInput)
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	c.Type = t
	if err := s.Repo.UpdateCustomer(ctx, c); err != nil {
		return Customer{}, fmt.Errorf("update customer: %w", err)
	}
	return c, nil
}

// Delete removes a customer. Their past orders are kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.Repo.DeleteCustomer(ctx, id)
}
