package cart_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/novahub/internal/cart"
	"github.com/noah-isme/novahub/internal/catalog"
	"github.com/noah-isme/novahub/internal/common"
	"github.com/noah-isme/novahub/internal/customer"
	"github.com/noah-isme/novahub/internal/discount"
	"github.com/noah-isme/novahub/internal/lock"
	"github.com/noah-isme/novahub/internal/pricing"
	"github.com/noah-isme/novahub/internal/repo"
)

type fixture struct {
	svc *cart.Service
	mem *repo.Memory
	mr  *miniredis.Miniredis
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mem := repo.NewMemory()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Seed(context.Background(), mem, now))

	svc := &cart.Service{
		Store:     cart.RedisStore{R: client, TTL: time.Hour},
		Catalog:   &catalog.Service{Repo: mem},
		Rules:     &discount.Service{Repo: mem},
		Customers: &customer.Service{Repo: mem},
		Locker:    lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond},
		Now:       func() time.Time { return now },
	}
	return fixture{svc: svc, mem: mem, mr: mr}
}

func money(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestServiceAddItemAndTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.Create(ctx, "CUST-001")
	require.NoError(t, err)
	id := view.Cart.ID
	require.Greater(t, f.mr.TTL("cart:"+id), time.Duration(0))

	_, err = f.svc.AddItem(ctx, "CUST-001", id, "1")
	require.NoError(t, err)
	view, err = f.svc.AddItem(ctx, "CUST-001", id, "1")
	require.NoError(t, err)
	require.Len(t, view.Cart.Lines, 1)
	require.Equal(t, 2, view.Cart.Lines[0].Quantity)
	require.True(t, view.Totals.FinalTotal.Equal(money("2599.98")))
	require.Equal(t, pricing.AppliedNone, view.Totals.Applied.Kind)
}

func TestServiceApplyCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "CUST-001")
	require.NoError(t, err)
	id := view.Cart.ID
	_, err = f.svc.AddItem(ctx, "CUST-001", id, "1")
	require.NoError(t, err)

	_, err = f.svc.ApplyCode(ctx, "CUST-001", id, "NOPE")
	require.ErrorIs(t, err, pricing.ErrInvalidCode)
	view, err = f.svc.Get(ctx, "CUST-001", id)
	require.NoError(t, err)
	require.Empty(t, view.Cart.AppliedCode)

	view, err = f.svc.ApplyCode(ctx, "CUST-001", id, " welcome10 ")
	require.NoError(t, err)
	require.Equal(t, "WELCOME10", view.Cart.AppliedCode)
	require.True(t, view.CodeValid)
	require.True(t, view.Totals.ManualSavings.Equal(money("129.999")))
	require.True(t, view.Totals.FinalTotal.Equal(money("1169.991")))

	// another customer's phone code is not usable here
	_, err = f.svc.ApplyCode(ctx, "CUST-001", id, "01933333333")
	require.ErrorIs(t, err, pricing.ErrInvalidCode)
	view, err = f.svc.Get(ctx, "CUST-001", id)
	require.NoError(t, err)
	require.Equal(t, "WELCOME10", view.Cart.AppliedCode)

	view, err = f.svc.ClearCode(ctx, "CUST-001", id)
	require.NoError(t, err)
	require.Empty(t, view.Cart.AppliedCode)
}

func TestServiceRejectsForeignCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "CUST-001")
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, "CUST-002", view.Cart.ID)
	require.ErrorIs(t, err, cart.ErrNotFound)
	_, err = f.svc.AddItem(ctx, "CUST-002", view.Cart.ID, "1")
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestServiceDropsDeletedProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "CUST-001")
	require.NoError(t, err)
	id := view.Cart.ID
	_, err = f.svc.BulkAdd(ctx, "CUST-001", id, []string{"1", "2"})
	require.NoError(t, err)

	require.NoError(t, f.mem.DeleteProduct(ctx, "2"))
	view, err = f.svc.Get(ctx, "CUST-001", id)
	require.NoError(t, err)
	require.Len(t, view.Cart.Lines, 1)
	require.Equal(t, "1", view.Cart.Lines[0].Product.ID)
}

func TestServiceSwitchCustomerClearsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "CUST-001")
	require.NoError(t, err)
	id := view.Cart.ID
	_, err = f.svc.AddItem(ctx, "CUST-001", id, "3")
	require.NoError(t, err)
	_, err = f.svc.ApplyCode(ctx, "CUST-001", id, "WELCOME10")
	require.NoError(t, err)

	view, err = f.svc.SwitchCustomer(ctx, id, "CUST-003")
	require.NoError(t, err)
	require.Equal(t, "CUST-003", view.Cart.CustomerID)
	require.Empty(t, view.Cart.Lines)
	require.Empty(t, view.Cart.AppliedCode)

	_, err = f.svc.SwitchCustomer(ctx, id, "CUST-404")
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestServiceConsume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "CUST-001")
	require.NoError(t, err)
	id := view.Cart.ID
	_, err = f.svc.AddItem(ctx, "CUST-001", id, "1")
	require.NoError(t, err)
	_, err = f.svc.ApplyCode(ctx, "CUST-001", id, "WELCOME10")
	require.NoError(t, err)

	// the code stops being usable between apply and checkout
	rule, err := f.mem.GetRule(ctx, "d1")
	require.NoError(t, err)
	rule.IsActive = false
	require.NoError(t, f.mem.UpdateRule(ctx, rule))

	called := false
	err = f.svc.Consume(ctx, "CUST-001", id, func(context.Context, cart.View) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, pricing.ErrInvalidCode)
	require.False(t, called)

	view, err = f.svc.ClearCode(ctx, "CUST-001", id)
	require.NoError(t, err)
	require.Len(t, view.Cart.Lines, 1)

	var seen cart.View
	err = f.svc.Consume(ctx, "CUST-001", id, func(_ context.Context, v cart.View) error {
		seen = v
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen.Cart.Lines, 1)
	require.Equal(t, "CUST-001", seen.Customer.ID)

	view, err = f.svc.Get(ctx, "CUST-001", id)
	require.NoError(t, err)
	require.Empty(t, view.Cart.Lines)
}

func TestHandlerApplyInvalidCodeIs422(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.Create(ctx, "CUST-001")
	require.NoError(t, err)

	h := &cart.Handler{Svc: f.svc}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/"+view.Cart.ID+"/code", strings.NewReader(`{"code":"BOGUS"}`))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", view.Cart.ID)
	reqCtx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	reqCtx = common.WithPrincipal(reqCtx, common.Principal{Subject: "CUST-001", Role: common.RoleCustomer})
	req = req.WithContext(reqCtx)

	rec := httptest.NewRecorder()
	h.ApplyCode(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_CODE")
}

func TestHandlerRequiresCustomer(t *testing.T) {
	f := newFixture(t)
	h := &cart.Handler{Svc: f.svc}
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/carts", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
