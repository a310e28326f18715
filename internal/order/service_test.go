package order_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/novahub/internal/common"
	"github.com/noah-isme/novahub/internal/events"
	"github.com/noah-isme/novahub/internal/order"
	"github.com/noah-isme/novahub/internal/pricing"
	"github.com/noah-isme/novahub/internal/repo"
)

var base = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func seedOrders(t *testing.T, mem *repo.Memory) {
	t.Helper()
	orders := []order.Order{
		{ID: "100001", CustomerID: "CUST-001", CustomerName: "Rahim Ahmed", Status: order.StatusPending, Total: decimal.RequireFromString("100"), CreatedAt: base},
		{ID: "100002", CustomerID: "CUST-002", CustomerName: "Karim Ullah", Status: order.StatusShipped, Total: decimal.RequireFromString("50.5"), CreatedAt: base.Add(time.Hour)},
		{ID: "100003", CustomerID: "CUST-001", CustomerName: "Rahim Ahmed", Status: order.StatusDelivered, Total: decimal.RequireFromString("20"), CreatedAt: base.Add(2 * time.Hour),
			Items: []order.Line{{ProductID: "3", Name: "Aero Stream Earbuds", Quantity: 1}}},
	}
	for _, o := range orders {
		o.AppliedDiscount = pricing.NoDiscount()
		require.NoError(t, mem.InsertOrder(context.Background(), o))
	}
}

func newService(t *testing.T) (*order.Service, *repo.Memory) {
	t.Helper()
	mem := repo.NewMemory()
	seedOrders(t, mem)
	return &order.Service{Repo: mem, Events: &events.Bus{Store: mem}, Now: func() time.Time { return base.Add(24 * time.Hour) }}, mem
}

func TestListScopesAndSorts(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	all, err := svc.List(ctx, order.Scope{}, order.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "100003", all[0].ID)

	mine, err := svc.List(ctx, order.Scope{CustomerID: "CUST-001"}, order.ListFilter{Query: "earbuds"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "100003", mine[0].ID)

	_, err = svc.Get(ctx, order.Scope{CustomerID: "CUST-002"}, "100001")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestStats(t *testing.T) {
	svc, _ := newService(t)
	st, err := svc.Stats(context.Background(), order.Scope{})
	require.NoError(t, err)
	require.Equal(t, 3, st.OrderCount)
	require.True(t, st.TotalRevenue.Equal(decimal.RequireFromString("170.5")))
	require.Equal(t, 1, st.Pending)
	require.Equal(t, 1, st.Active)
	require.Equal(t, 1, st.Delivered)
}

func TestUpdateStatus(t *testing.T) {
	svc, mem := newService(t)
	ctx := context.Background()

	o, err := svc.Confirm(ctx, "100001")
	require.NoError(t, err)
	require.Equal(t, order.StatusProcessing, o.Status)
	require.Equal(t, base.Add(24*time.Hour), o.UpdatedAt)

	_, err = svc.UpdateStatus(ctx, "100003", order.StatusCancelled)
	require.ErrorIs(t, err, order.ErrInvalidTransition)

	evts := mem.Events()
	require.Len(t, evts, 1)
	require.Equal(t, events.TopicOrderStatusChanged, evts[0].Topic)
}

func withRoute(req *http.Request, id string, p common.Principal) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", id)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	return req.WithContext(common.WithPrincipal(ctx, p))
}

func TestHandlers(t *testing.T) {
	svc, _ := newService(t)
	h := &order.Handler{Svc: svc}
	admin := &order.AdminHandler{Svc: svc}
	rahim := common.Principal{Subject: "CUST-001", Role: common.RoleCustomer}
	root := common.Principal{Subject: "admin", Role: common.RoleAdmin}

	rec := httptest.NewRecorder()
	h.List(rec, withRoute(httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=pending", nil), "", rahim))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec = httptest.NewRecorder()
	h.Get(rec, withRoute(httptest.NewRequest(http.MethodGet, "/api/v1/orders/100002", nil), "100002", rahim))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.Receipt(rec, withRoute(httptest.NewRequest(http.MethodGet, "/api/v1/orders/100001/receipt", nil), "100001", rahim))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Order Confirmation #100001 - Nova Hub")

	rec = httptest.NewRecorder()
	admin.PatchStatus(rec, withRoute(httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/100001/status", strings.NewReader(`{"status":"PENDING"}`)), "100001", root))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	admin.PatchStatus(rec, withRoute(httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/100002/status", strings.NewReader(`{"status":"delivered"}`)), "100002", root))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	admin.Confirm(rec, withRoute(httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/100003/confirm", nil), "100003", root))
	require.Equal(t, http.StatusConflict, rec.Code)
}

type failingEventStore struct{}

func (failingEventStore) InsertEvent(context.Context, events.Event) error {
	return errors.New("domain_events unavailable")
}

func TestUpdateStatusLogsEmitFailure(t *testing.T) {
	svc, _ := newService(t)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	svc.Events = &events.Bus{Store: failingEventStore{}}
	svc.Logger = &logger

	o, err := svc.Confirm(context.Background(), "100001")
	require.NoError(t, err)
	require.Equal(t, order.StatusProcessing, o.Status)
	require.Contains(t, buf.String(), `"topic":"`+events.TopicOrderStatusChanged+`"`)
	require.Contains(t, buf.String(), "domain_events unavailable")
}
