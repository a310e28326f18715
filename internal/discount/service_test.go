package discount_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/novahub/internal/catalog"
	"github.com/noah-isme/novahub/internal/customer"
	"github.com/noah-isme/novahub/internal/discount"
	"github.com/noah-isme/novahub/internal/events"
	"github.com/noah-isme/novahub/internal/pricing"
	"github.com/noah-isme/novahub/internal/repo"
)

func newService(t *testing.T) (*discount.Service, *repo.Memory) {
	t.Helper()
	mem := repo.NewMemory()
	require.NoError(t, repo.Seed(context.Background(), mem, time.Now()))
	seq := 0
	return &discount.Service{
		Repo:      mem,
		Products:  &catalog.Service{Repo: mem},
		Customers: &customer.Service{Repo: mem},
		Events:    &events.Bus{Store: mem},
		NewID: func() string {
			seq++
			return fmt.Sprintf("rule-%d", seq)
		},
		AutoCode: func() string { return "AUTO-TEST" },
	}, mem
}

func TestCreateManualRule(t *testing.T) {
	svc, mem := newService(t)
	ctx := context.Background()

	rule, err := svc.Create(ctx, discount.CreateInput{Code: " summer ", Percentage: 15})
	require.NoError(t, err)
	require.Equal(t, "SUMMER", rule.Code)
	require.True(t, rule.IsActive)
	require.Equal(t, "15% Shop-wide Discount", rule.Description)

	_, err = svc.Create(ctx, discount.CreateInput{Code: "Summer", Percentage: 5})
	require.ErrorIs(t, err, discount.ErrDuplicateCode)

	evts := mem.Events()
	require.Equal(t, events.TopicDiscountChanged, evts[len(evts)-1].Topic)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	cases := []discount.CreateInput{
		{Code: "ZERO", Percentage: 0},
		{Code: "HUNDRED", Percentage: 100},
		{Percentage: 10},
		{IsAutomatic: true, Percentage: 10},
		{Code: "GHOST", Percentage: 10, TargetProductID: "404"},
		{Code: "NOBODY", Percentage: 10, TargetCustomerID: "CUST-404"},
	}
	for _, in := range cases {
		_, err := svc.Create(ctx, in)
		require.ErrorIs(t, err, discount.ErrInvalidInput, "%+v", in)
	}
}

func TestCreateTargetedDefaults(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	auto, err := svc.Create(ctx, discount.CreateInput{IsAutomatic: true, Percentage: 12, TargetProductID: "1", Code: "IGNORED"})
	require.NoError(t, err)
	require.Equal(t, "AUTO-TEST", auto.Code)
	require.Equal(t, "Admin Set: 12% Discount on Quantum Lens Camera", auto.Description)

	// customer-targeted codes default to the customer's phone
	byPhone, err := svc.Create(ctx, discount.CreateInput{Percentage: 5, TargetCustomerID: "CUST-001"})
	require.NoError(t, err)
	require.Equal(t, "01711111111", byPhone.Code)
	require.Equal(t, "CUST-001", byPhone.TargetCustomerID)
}

func TestSetMarkdownReplacesProductRules(t *testing.T) {
	svc, mem := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, discount.CreateInput{IsAutomatic: true, Percentage: 12, TargetProductID: "2"})
	require.NoError(t, err)

	rule, err := svc.SetMarkdown(ctx, "2", 30)
	require.NoError(t, err)
	require.NotNil(t, rule)
	require.Equal(t, "AUTO-CHR-NX-202", rule.Code)
	require.Equal(t, "Admin Markdown: 30% off Nexus Gaming Chair", rule.Description)

	rules, err := mem.ListRules(ctx)
	require.NoError(t, err)
	targeting := 0
	for _, r := range rules {
		if r.TargetProductID == "2" {
			targeting++
		}
	}
	require.Equal(t, 1, targeting)

	cleared, err := svc.SetMarkdown(ctx, "2", 0)
	require.NoError(t, err)
	require.Nil(t, cleared)
	rules, err = mem.ListRules(ctx)
	require.NoError(t, err)
	for _, r := range rules {
		require.NotEqual(t, "2", r.TargetProductID)
	}

	_, err = svc.SetMarkdown(ctx, "2", 100)
	require.ErrorIs(t, err, discount.ErrInvalidInput)
}

func TestSetActiveAndDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	rule, err := svc.SetActive(ctx, "d1", false)
	require.NoError(t, err)
	require.False(t, rule.IsActive)
	stored, err := svc.Get(ctx, "d1")
	require.NoError(t, err)
	require.False(t, stored.IsActive)

	_, err = svc.Preview(ctx, discount.PreviewInput{
		CustomerID: "CUST-001", Code: "WELCOME10",
		Lines: []discount.PreviewLine{{ProductID: "1", Quantity: 1}},
	})
	require.ErrorIs(t, err, pricing.ErrInvalidCode)

	require.NoError(t, svc.Delete(ctx, "d1"))
	require.ErrorIs(t, svc.Delete(ctx, "d1"), discount.ErrNotFound)
	_, err = svc.Get(ctx, "d1")
	require.ErrorIs(t, err, discount.ErrNotFound)
}

func TestPreview(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.SetMarkdown(ctx, "1", 10)
	require.NoError(t, err)

	totals, err := svc.Preview(ctx, discount.PreviewInput{
		CustomerID: "CUST-003", Code: "01933333333",
		Lines: []discount.PreviewLine{{ProductID: "1", Quantity: 1}},
	})
	require.NoError(t, err)
	// VIP customers skip automatic markdowns
	require.True(t, totals.AutomaticSavings.IsZero())
	require.True(t, totals.ManualSavings.Equal(decimal.RequireFromString("389.997")))
	require.Equal(t, pricing.AppliedManual, totals.Applied.Kind)
}

func TestHandlers(t *testing.T) {
	svc, _ := newService(t)
	h := &discount.Handler{Svc: svc}

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/discounts", strings.NewReader(`{"code":"flash","percentage":20}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"FLASH"`)

	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/discounts", strings.NewReader(`{"code":"flash","percentage":20}`)))
	require.Equal(t, http.StatusConflict, rec.Code)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/products/3/markdown", strings.NewReader(`{"percentage":0}`))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", "3")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	rec = httptest.NewRecorder()
	h.Markdown(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.Preview(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/discounts/preview",
		strings.NewReader(`{"customer_id":"CUST-001","code":"NOPE","lines":[{"product_id":"1","quantity":1}]}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_CODE")
}

type failingEventStore struct{}

func (failingEventStore) InsertEvent(context.Context, events.Event) error {
	return errors.New("domain_events unavailable")
}

func TestCreateLogsEmitFailure(t *testing.T) {
	svc, mem := newService(t)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	svc.Events = &events.Bus{Store: failingEventStore{}}
	svc.Logger = &logger

	rule, err := svc.Create(context.Background(), discount.CreateInput{Code: "autumn", Percentage: 10})
	require.NoError(t, err)
	_, err = mem.GetRule(context.Background(), rule.ID)
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"topic":"`+events.TopicDiscountChanged+`"`)
	require.Contains(t, buf.String(), "domain_events unavailable")
}
