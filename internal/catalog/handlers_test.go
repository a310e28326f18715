package catalog_test

import (
	"context"
	"encoding/json"
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

	"github.com/noah-isme/novahub/internal/catalog"
	"github.com/noah-isme/novahub/internal/discount"
	"github.com/noah-isme/novahub/internal/repo"
)

func newService(t *testing.T) (*catalog.Service, *repo.Memory, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mem := repo.NewMemory()
	require.NoError(t, repo.Seed(context.Background(), mem, time.Now()))
	svc := &catalog.Service{
		Repo:      mem,
		Cache:     catalog.NewCache(client, time.Minute),
		Markdowns: &discount.Service{Repo: mem},
	}
	return svc, mem, client
}

func withID(req *http.Request, id string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestProductsSearchAndPagination(t *testing.T) {
	svc, _, _ := newService(t)
	h := catalog.NewHandler(catalog.HandlerConfig{Service: svc})

	rec := httptest.NewRecorder()
	h.Products(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?q=sonic", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []catalog.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "AUD-AS-303", body.Data[0].Code)

	rec = httptest.NewRecorder()
	h.Products(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?category=all&limit=2&page=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-Total-Count"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)

	rec = httptest.NewRecorder()
	h.Products(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?page=zero", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFacets(t *testing.T) {
	svc, _, _ := newService(t)
	facets, err := svc.Facets(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Electronics", "Furniture", "Audio"}, facets.Categories)
	require.Equal(t, []string{"Lumina Optics", "Apex Comfort", "Sonic Labs"}, facets.Companies)
}

func TestCreateInvalidatesCache(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	all, err := svc.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	p, err := svc.Create(ctx, catalog.Input{
		Code: " lamp-1 ", Name: "Desk Lamp", CompanyName: "Glow", Price: decimal.RequireFromString("19.50"),
	})
	require.NoError(t, err)
	require.Equal(t, "LAMP-1", p.Code)
	require.Equal(t, catalog.DefaultImage, p.Image)

	all, err = svc.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
}

func TestCreateRejectsDuplicateAndInvalid(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, catalog.Input{Code: "cam-q-101", Name: "Clone", CompanyName: "X", Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, catalog.ErrDuplicateCode)

	_, err = svc.Create(ctx, catalog.Input{Code: "FREE", Name: "Free", CompanyName: "X", Price: decimal.Zero})
	require.ErrorIs(t, err, catalog.ErrInvalidProduct)
}

func TestCreateHandlerValidation(t *testing.T) {
	svc, _, _ := newService(t)
	h := catalog.NewHandler(catalog.HandlerConfig{Service: svc})
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(`{"code":"X","name":"","company_name":"Y","price":"5"}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(`{"code":"X","name":"Thing","company_name":"Y","price":"5"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestDeleteRemovesMarkdownRules(t *testing.T) {
	svc, mem, _ := newService(t)
	ctx := context.Background()
	discounts := &discount.Service{Repo: mem, Products: svc}
	_, err := discounts.SetMarkdown(ctx, "2", 25)
	require.NoError(t, err)

	h := catalog.NewHandler(catalog.HandlerConfig{Service: svc})
	rec := httptest.NewRecorder()
	h.Delete(rec, withID(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/products/2", nil), "2"))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rules, err := mem.ListRules(ctx)
	require.NoError(t, err)
	for _, r := range rules {
		require.NotEqual(t, "2", r.TargetProductID)
	}

	rec = httptest.NewRecorder()
	h.Product(rec, withID(httptest.NewRequest(http.MethodGet, "/api/v1/products/2", nil), "2"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
