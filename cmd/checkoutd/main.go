package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/meridian/internal"
	"github.com/dukerupert/meridian/internal/billing"
	"github.com/dukerupert/meridian/internal/cart"
	"github.com/dukerupert/meridian/internal/checkout"
	"github.com/dukerupert/meridian/internal/coupon"
	"github.com/dukerupert/meridian/internal/events"
	"github.com/dukerupert/meridian/internal/postgres"
	"github.com/dukerupert/meridian/internal/shipping"
	"github.com/dukerupert/meridian/internal/telemetry"
	"github.com/dukerupert/meridian/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize stores
	catalogStore := postgres.NewCatalogStore(pool)
	shippingStore := postgres.NewShippingStore(pool)
	couponStore := postgres.NewCouponStore(pool)
	orderStore := postgres.NewOrderStore(pool)

	// Initialize Stripe billing provider
	logger.Info("Initializing Stripe billing provider...")
	billingProvider, err := billing.NewStripeProvider(cfg.Stripe.SecretKey)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", billingProvider.IsTestMode())

	// Connect to NATS
	logger.Info("Connecting to NATS...", "url", cfg.NATS.URL)
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("meridian-checkoutd"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return fmt.Errorf("NATS connection failed: %w", err)
	}
	defer nc.Drain()
	logger.Info("NATS connection established")

	publisher := events.NewNATSPublisher(nc)
	metrics := telemetry.NewBusinessMetrics(prometheus.DefaultRegisterer)

	// Initialize checkout pipeline
	normalizer := cart.NewNormalizer(catalogStore)
	calculator := shipping.NewCalculator(shippingStore, shippingStore, cfg.Currency)
	couponEngine := coupon.NewEngine(couponStore)

	checkoutService := checkout.NewService(
		normalizer,
		calculator,
		couponEngine,
		billingProvider,
		orderStore,
		catalogStore,
		publisher,
		metrics,
		logger,
		cfg.Currency,
	)
	logger.Info("Checkout service initialized")

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		logger.Info("Starting metrics server", "address", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	// Run the payment-confirmation worker until shutdown
	w := worker.NewWorker(nc, billingProvider, checkoutService, metrics, worker.Config{
		WorkerID:   cfg.Worker.WorkerID,
		QueueGroup: cfg.NATS.QueueGroup,
	}, logger)

	return w.Run(ctx)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
