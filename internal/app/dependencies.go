package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/novahub/internal/analytics"
	"github.com/noah-isme/novahub/internal/auth"
	"github.com/noah-isme/novahub/internal/cart"
	"github.com/noah-isme/novahub/internal/catalog"
	"github.com/noah-isme/novahub/internal/checkout"
	"github.com/noah-isme/novahub/internal/config"
	"github.com/noah-isme/novahub/internal/customer"
	"github.com/noah-isme/novahub/internal/discount"
	"github.com/noah-isme/novahub/internal/events"
	"github.com/noah-isme/novahub/internal/health"
	"github.com/noah-isme/novahub/internal/insights"
	"github.com/noah-isme/novahub/internal/lock"
	"github.com/noah-isme/novahub/internal/notify"
	"github.com/noah-isme/novahub/internal/obs"
	"github.com/noah-isme/novahub/internal/order"
	"github.com/noah-isme/novahub/internal/ratelimit"
	"github.com/noah-isme/novahub/internal/repo"
	"github.com/noah-isme/novahub/internal/resilience"
)

// Store is every repository the services need. repo.Memory and repo.Postgres
// both satisfy it.
type Store interface {
	catalog.Repository
	discount.Repository
	customer.Repository
	order.Repository
	events.Store
	repo.Seedable
}

// Dependencies holds the wired services shared by the API router.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger

	Redis      *redis.Client
	DB         *pgxpool.Pool
	Store      Store
	TaskClient *asynq.Client
	Kafka      *events.KafkaPublisher
	Bus        *events.Bus

	Catalog   *catalog.Service
	Discounts *discount.Service
	Customers *customer.Service
	Carts     *cart.Service
	Checkout  *checkout.Service
	Orders    *order.Service
	Analytics *analytics.Service
	Insights  *insights.Service
	Auth      *auth.Service

	HTTPMetrics  *obs.HTTPMetrics
	LoginLimiter *limiter.Limiter
	APILimiter   *limiter.Limiter
	Probes       []health.Probe

	closers []func() error
}

// Build connects to Redis and the configured store, then wires every service.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, reg prometheus.Registerer) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Logger: logger}
	if err := d.build(ctx, reg); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Dependencies) build(ctx context.Context, reg prometheus.Registerer) error {
	cfg := d.Config
	if cfg.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, reg)
		resilience.MustRegisterMetrics(cfg.MetricsNamespace, reg)
		d.HTTPMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.HTTPBucketsMS), reg)
	}

	rdb, err := NewRedis(ctx, cfg.RedisURL, cfg.MetricsEnabled)
	if err != nil {
		return err
	}
	d.Redis = rdb
	d.closers = append(d.closers, rdb.Close)
	d.Probes = append(d.Probes, health.Probe{Name: "redis", Timeout: 300 * time.Millisecond, Check: func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}})

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if cfg.RunMigrations {
			if err := repo.Migrate(cfg.DatabaseURL); err != nil {
				return err
			}
		}
		pool, err := NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		d.DB = pool
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
		d.Probes = append(d.Probes, health.Probe{Name: "db", Check: pool.Ping})
		d.Store = &repo.Postgres{DB: pool}
	default:
		d.Store = repo.NewMemory()
	}
	if cfg.SeedOnStart || cfg.StoreDriver == config.DriverMemory {
		if err := repo.Seed(ctx, d.Store, time.Now().UTC()); err != nil {
			return fmt.Errorf("seed store: %w", err)
		}
	}

	d.TaskClient = asynq.NewClientFromRedisClient(rdb)
	notifiers := []events.Notifier{
		notify.ReceiptEnqueuer{Client: d.TaskClient, Queue: cfg.ReceiptQueue, MaxRetry: cfg.ReceiptMaxRetry},
	}
	if len(cfg.KafkaBrokers) > 0 {
		d.Kafka = &events.KafkaPublisher{Writer: events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)}
		d.closers = append(d.closers, d.Kafka.Close)
		topics := cfg.EventTopics
		if len(topics) == 0 {
			topics = events.DefaultTopics()
		}
		enabled := make(map[string]bool, len(topics))
		for _, t := range topics {
			enabled[t] = true
		}
		notifiers = append(notifiers, events.Filter{Topics: enabled, Next: d.Kafka})
	}
	d.Bus = &events.Bus{Store: d.Store, Notifiers: notifiers}

	discountLogger := d.Logger.With().Str("component", "discount").Logger()
	d.Discounts = &discount.Service{Repo: d.Store, Events: d.Bus, Logger: &discountLogger}
	d.Catalog = &catalog.Service{
		Repo:      d.Store,
		Cache:     catalog.NewCache(rdb, cfg.CatalogCacheTTL),
		Markdowns: d.Discounts,
		MaxLimit:  cfg.CatalogMaxLimit,
	}
	d.Discounts.Products = d.Catalog
	customerLogger := d.Logger.With().Str("component", "customer").Logger()
	d.Customers = &customer.Service{Repo: d.Store, Events: d.Bus, Logger: &customerLogger}
	d.Discounts.Customers = d.Customers

	d.Carts = &cart.Service{
		Store:     cart.RedisStore{R: rdb, TTL: cfg.CartTTL},
		Catalog:   d.Catalog,
		Rules:     d.Discounts,
		Customers: d.Customers,
		Locker:    lock.Locker{R: rdb, RetryBackoff: cfg.LockRetryBackoff, MaxWait: cfg.LockMaxWait},
		LockTTL:   cfg.LockTTL,
	}
	checkoutLogger := d.Logger.With().Str("component", "checkout").Logger()
	d.Checkout = &checkout.Service{
		Carts:        d.Carts,
		Orders:       d.Store,
		Materializer: order.Materializer{NewID: order.RandomID},
		Events:       d.Bus,
		Logger:       &checkoutLogger,
	}
	orderLogger := d.Logger.With().Str("component", "order").Logger()
	d.Orders = &order.Service{Repo: d.Store, Events: d.Bus, Logger: &orderLogger}
	d.Analytics = &analytics.Service{Orders: d.Orders, R: rdb, TTL: cfg.AnalyticsCacheTTL}
	d.Bus.Notifiers = append(d.Bus.Notifiers, d.Analytics)

	insightsLogger := d.Logger.With().Str("component", "insights").Logger()
	d.Insights = &insights.Service{
		Gen: &insights.Gemini{
			HTTP: resilience.HTTPClient{
				Client:      resilience.NewTracedClient(cfg.OutboundTimeout),
				Breaker:     resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).WithTarget("gemini").WithLogger(insightsLogger),
				BaseBackoff: cfg.RetryBase,
				MaxAttempts: cfg.RetryMaxAttempts,
				Jitter:      cfg.RetryJitterPercent,
				Timeout:     cfg.OutboundTimeout,
				Target:      "gemini",
				Logger:      &insightsLogger,
			},
			BaseURL: cfg.GeminiBaseURL,
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
		},
		Orders: d.Orders,
		Logger: &insightsLogger,
	}

	d.Auth, err = auth.NewService(auth.Config{
		Customers: d.Customers,
		Secret:    cfg.JWTSecret,
		AdminPIN:  cfg.AdminPIN,
		TokenTTL:  cfg.AccessTokenTTL,
		Issuer:    cfg.TokenIssuer,
		Audience:  cfg.TokenAudience,
	})
	if err != nil {
		return fmt.Errorf("initialise auth: %w", err)
	}

	if d.LoginLimiter, err = ratelimit.New(rdb, "rl:login", cfg.LoginRate); err != nil {
		return fmt.Errorf("login rate limiter: %w", err)
	}
	if d.APILimiter, err = ratelimit.New(rdb, "rl:api", cfg.APIRate); err != nil {
		return fmt.Errorf("api rate limiter: %w", err)
	}
	return nil
}

// Close releases connections in reverse order of creation.
func (d *Dependencies) Close() error {
	var joined error
	for i := len(d.closers) - 1; i >= 0; i-- {
		joined = errors.Join(joined, d.closers[i]())
	}
	d.closers = nil
	return joined
}

// NewRedis connects and instruments a Redis client.
func NewRedis(ctx context.Context, url string, metrics bool) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("instrument redis metrics: %w", err)
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewPool opens a traced pgx pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "novahub-api"

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
