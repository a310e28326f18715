package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/novahub/internal/analytics"
	"github.com/noah-isme/novahub/internal/auth"
	"github.com/noah-isme/novahub/internal/cart"
	"github.com/noah-isme/novahub/internal/catalog"
	"github.com/noah-isme/novahub/internal/checkout"
	"github.com/noah-isme/novahub/internal/common"
	"github.com/noah-isme/novahub/internal/customer"
	"github.com/noah-isme/novahub/internal/discount"
	"github.com/noah-isme/novahub/internal/health"
	"github.com/noah-isme/novahub/internal/insights"
	"github.com/noah-isme/novahub/internal/obs"
	"github.com/noah-isme/novahub/internal/order"
	"github.com/noah-isme/novahub/internal/ratelimit"
	"github.com/noah-isme/novahub/internal/security"
)

// RouterOptions carries the pieces of the HTTP surface that are not services.
type RouterOptions struct {
	Gatherer prometheus.Gatherer
	Tracing  bool
}

// NewRouter mounts the storefront, admin and ops routes.
func NewRouter(d *Dependencies, opts RouterOptions) http.Handler {
	cfg := d.Config

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: d.Catalog})
	discountHandler := &discount.Handler{Svc: d.Discounts}
	customerHandler := &customer.Handler{Svc: d.Customers}
	cartHandler := &cart.Handler{Svc: d.Carts}
	checkoutHandler := &checkout.Handler{Svc: d.Checkout}
	orderHandler := &order.Handler{Svc: d.Orders}
	orderAdmin := &order.AdminHandler{Svc: d.Orders}
	analyticsHandler := &analytics.Handler{Svc: d.Analytics}
	insightsHandler := &insights.Handler{Svc: d.Insights}
	authHandler := &auth.Handler{
		Service:        d.Auth,
		CookieName:     cfg.CookieName,
		CookieDomain:   cfg.CookieDomain,
		CookieSecure:   cfg.CookieSecure,
		CookieSameSite: cfg.CookieSameSite,
	}
	if cfg.CSRFEnabled {
		authHandler.CSRFCookie = security.DefaultCSRFName
	}
	authMiddleware := auth.Middleware{Service: d.Auth, AccessCookie: cfg.CookieName}
	healthHandler := health.Handler{Probes: d.Probes}
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	logLimitErr := func(err error) { d.Logger.Warn().Err(err).Msg("rate limiter store unavailable") }
	loginLimit := ratelimit.Handler{Limiter: d.LoginLimiter, Key: ratelimit.ByIP(cfg.TrustProxy), OnError: logLimitErr}
	apiLimit := ratelimit.Handler{Limiter: d.APILimiter, Key: ratelimit.ByIP(cfg.TrustProxy), OnError: logLimitErr}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if opts.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(authMiddleware.Authenticate)
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.CookieSecure}.Middleware)
	r.Use(security.CORS(allowedOrigins(cfg.CORSAllowedOrigins)))

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		if cfg.CSRFEnabled {
			v.Use(security.CSRF{SessionCookie: cfg.CookieName}.Middleware)
		}
		v.Use(apiLimit.Middleware)

		v.Get("/products", catalogHandler.Products)
		v.Get("/products/facets", catalogHandler.Facets)
		v.Get("/products/{id}", catalogHandler.Product)
		v.With(idem.Middleware).Post("/customers", customerHandler.Register)

		v.Route("/auth", func(a chi.Router) {
			a.Use(loginLimit.Middleware)
			a.Post("/admin", authHandler.AdminLogin)
			a.Post("/customer", authHandler.CustomerLogin)
		})

		v.Group(func(c chi.Router) {
			c.Use(authMiddleware.RequireCustomer)
			c.Get("/customers/me", customerHandler.Me)

			c.Route("/carts", func(cr chi.Router) {
				cr.With(idem.Middleware).Post("/", cartHandler.Create)
				cr.Get("/{id}", cartHandler.Get)
				cr.Post("/{id}/items", cartHandler.AddItem)
				cr.Post("/{id}/items/bulk", cartHandler.BulkAdd)
				cr.Patch("/{id}/items/{productId}", cartHandler.UpdateItem)
				cr.Post("/{id}/items/{productId}/increment", cartHandler.Increment)
				cr.Post("/{id}/items/{productId}/decrement", cartHandler.Decrement)
				cr.Delete("/{id}/items/{productId}", cartHandler.RemoveItem)
				cr.Post("/{id}/code", cartHandler.ApplyCode)
				cr.Delete("/{id}/code", cartHandler.ClearCode)
			})

			c.With(idem.Middleware).Post("/checkout", checkoutHandler.Checkout)

			c.Get("/orders", orderHandler.List)
			c.Get("/orders/stats", orderHandler.Stats)
			c.Get("/orders/{id}", orderHandler.Get)
			c.Get("/orders/{id}/receipt", orderHandler.Receipt)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAdmin)

			admin.Post("/products", catalogHandler.Create)
			admin.Put("/products/{id}", catalogHandler.Update)
			admin.Delete("/products/{id}", catalogHandler.Delete)
			admin.Put("/products/{id}/markdown", discountHandler.Markdown)

			admin.Get("/discounts", discountHandler.List)
			admin.Post("/discounts", discountHandler.Create)
			admin.Post("/discounts/preview", discountHandler.Preview)
			admin.Get("/discounts/{id}", discountHandler.Get)
			admin.Patch("/discounts/{id}", discountHandler.SetActive)
			admin.Delete("/discounts/{id}", discountHandler.Delete)

			admin.Get("/customers", customerHandler.List)
			admin.Patch("/customers/{id}", customerHandler.SetType)
			admin.Delete("/customers/{id}", customerHandler.Delete)
			admin.Put("/carts/{id}/customer", cartHandler.SwitchCustomer)

			admin.Get("/orders", orderHandler.List)
			admin.Get("/orders/stats", orderHandler.Stats)
			admin.Get("/orders/{id}", orderHandler.Get)
			admin.Patch("/orders/{id}/status", orderAdmin.PatchStatus)
			admin.Post("/orders/{id}/confirm", orderAdmin.Confirm)

			admin.Get("/dashboard", analyticsHandler.Overview)
			admin.Post("/insights/product-description", insightsHandler.ProductDescription)
			admin.Post("/insights/sales", insightsHandler.SalesAnalysis)
		})
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
