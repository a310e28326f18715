package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/novahub/internal/app"
	"github.com/noah-isme/novahub/internal/config"
)

func testConfig(redisURL string) *config.Config {
	return &config.Config{
		AppEnv:            "test",
		StoreDriver:       config.DriverMemory,
		RedisURL:          redisURL,
		JWTSecret:         "router-test-secret",
		AdminPIN:          "1234",
		AccessTokenTTL:    time.Hour,
		TokenIssuer:       "novahub",
		TokenAudience:     "novahub-web",
		CookieName:        "nova_session",
		CookieSameSite:    http.SameSiteLaxMode,
		CSRFEnabled:       true,
		BodyLimitBytes:    1 << 20,
		LoginRate:         "100-M",
		APIRate:           "1000-M",
		IdempotencyTTL:    time.Hour,
		CartTTL:           time.Hour,
		CatalogCacheTTL:   time.Minute,
		CatalogMaxLimit:   100,
		AnalyticsCacheTTL: time.Minute,
		LockTTL:           5 * time.Second,
		LockRetryBackoff:  5 * time.Millisecond,
		LockMaxWait:       time.Second,
		ReceiptQueue:      "mail",
		ReceiptMaxRetry:   3,
		OutboundTimeout:   time.Second,
		RetryMaxAttempts:  1,
	}
}

type client struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func (c client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	deps, err := app.Build(context.Background(), testConfig("redis://"+mr.Addr()), zerolog.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })
	return app.NewRouter(deps, app.RouterOptions{})
}

func login(t *testing.T, h http.Handler, path, body string) string {
	t.Helper()
	rec := client{t: t, handler: h}.do(http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		AccessToken string `json:"access_token"`
	}
	decodeData(t, rec, &res)
	require.NotEmpty(t, res.AccessToken)
	return res.AccessToken
}

func TestHealthAndPublicCatalog(t *testing.T) {
	h := newRouter(t)
	anon := client{t: t, handler: h}

	rec := anon.do(http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = anon.do(http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"redis":"ok"`)

	rec = anon.do(http.MethodGet, "/api/v1/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "3", rec.Header().Get("X-Total-Count"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = anon.do(http.MethodGet, "/api/v1/products/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRoleGuards(t *testing.T) {
	h := newRouter(t)
	anon := client{t: t, handler: h}
	require.Equal(t, http.StatusUnauthorized, anon.do(http.MethodPost, "/api/v1/carts", "").Code)
	require.Equal(t, http.StatusUnauthorized, anon.do(http.MethodGet, "/api/v1/admin/dashboard", "").Code)

	customer := client{t: t, handler: h, token: login(t, h, "/api/v1/auth/customer", `{"customer_id":"CUST-001"}`)}
	require.Equal(t, http.StatusForbidden, customer.do(http.MethodGet, "/api/v1/admin/dashboard", "").Code)

	admin := client{t: t, handler: h, token: login(t, h, "/api/v1/auth/admin", `{"pin":"1234"}`)}
	require.Equal(t, http.StatusForbidden, admin.do(http.MethodPost, "/api/v1/carts", "").Code)

	rec := anon.do(http.MethodPost, "/api/v1/auth/admin", `{"pin":"0000"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutFlow(t *testing.T) {
	h := newRouter(t)
	customer := client{t: t, handler: h, token: login(t, h, "/api/v1/auth/customer", `{"customer_id":"CUST-002"}`)}

	rec := customer.do(http.MethodPost, "/api/v1/carts", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var view struct {
		Cart struct {
			ID string `json:"id"`
		} `json:"cart"`
		CodeValid bool `json:"code_valid"`
	}
	decodeData(t, rec, &view)
	cartID := view.Cart.ID

	rec = customer.do(http.MethodPost, "/api/v1/carts/"+cartID+"/items/bulk", `{"product_ids":["2","3"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = customer.do(http.MethodPost, "/api/v1/carts/"+cartID+"/items/3/increment", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = customer.do(http.MethodPost, "/api/v1/carts/"+cartID+"/code", `{"code":"01822222222"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &view)
	require.True(t, view.CodeValid)

	rec = customer.do(http.MethodPost, "/api/v1/checkout", `{"cart_id":"`+cartID+`","shipping_address":"House 7, Road 3, Dhaka"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var placed struct {
		ID     string `json:"id"`
		Total  string `json:"total"`
		Status string `json:"status"`
	}
	decodeData(t, rec, &placed)
	require.Equal(t, "PENDING", placed.Status)
	require.Equal(t, "455.976", placed.Total)

	rec = customer.do(http.MethodGet, "/api/v1/orders/"+placed.ID+"/receipt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Order Confirmation #"+placed.ID)

	admin := client{t: t, handler: h, token: login(t, h, "/api/v1/auth/admin", `{"pin":"1234"}`)}
	rec = admin.do(http.MethodGet, "/api/v1/admin/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dash struct {
		OrderCount   int `json:"order_count"`
		PendingCount int `json:"pending_count"`
	}
	decodeData(t, rec, &dash)
	require.Equal(t, 1, dash.OrderCount)
	require.Equal(t, 1, dash.PendingCount)

	rec = admin.do(http.MethodPost, "/api/v1/admin/orders/"+placed.ID+"/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = admin.do(http.MethodGet, "/api/v1/admin/dashboard", "")
	decodeData(t, rec, &dash)
	require.Zero(t, dash.PendingCount)
}

func TestInsightsFallBackWithoutKey(t *testing.T) {
	h := newRouter(t)
	admin := client{t: t, handler: h, token: login(t, h, "/api/v1/auth/admin", `{"pin":"1234"}`)}
	rec := admin.do(http.MethodPost, "/api/v1/admin/insights/sales", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Sales analysis currently unavailable.")
}
