package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/inventory"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/telemetry"
	"github.com/joao-fontenele/storefront/internal/users"
)

const (
	serviceName    = "storefront"
	serviceVersion = "0.1.0"
)

type stores struct {
	ledger inventory.Ledger
	orders orders.Store
	users  users.Repository
	close  func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger()

	if err := run(cfg, logger); err != nil {
		logger.Error("storefront stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, serviceVersion)
		if err != nil {
			return err
		}
		defer func() { _ = shutdownTracer(context.Background()) }()
	} else {
		telemetry.InitPropagator()
	}

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	var lifecycleOpts []orders.LifecycleOption
	var checkoutOpts []checkout.Option
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic)
		defer func() { _ = producer.Close() }()
		lifecycleOpts = append(lifecycleOpts, orders.WithPublisher(producer))
		checkoutOpts = append(checkoutOpts, checkout.WithPublisher(producer))
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events will not be published")
	}
	if cfg.RestockOnCancel {
		lifecycleOpts = append(lifecycleOpts, orders.WithRestockOnCancel(st.ledger))
	}

	lifecycle := orders.NewLifecycle(st.orders, logger, lifecycleOpts...)
	orchestrator := checkout.NewOrchestrator(st.ledger, st.orders, st.users, logger, checkoutOpts...)
	guard := auth.NewGuard(logger)

	mux := http.NewServeMux()
	inventory.NewCatalogHandler(st.ledger, logger).Register(mux)
	inventory.NewAdminHandler(st.ledger, logger).Register(mux, guard)
	orders.NewHandler(st.orders, lifecycle, logger).Register(mux, guard)
	checkout.NewHandler(orchestrator, logger).Register(mux, guard)
	users.NewHandler(st.users, logger).Register(mux, guard)
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.NewHTTPHandler(guard.Identify(mux), serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting storefront service", "port", cfg.Port, "storage", cfg.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	if cfg.Storage == config.StorageMemory {
		return stores{
			ledger: inventory.NewMemoryLedger(),
			orders: orders.NewMemoryStore(),
			users:  users.NewMemoryRepository(),
			close:  func() error { return nil },
		}, nil
	}

	if err := cfg.RequirePostgres(); err != nil {
		return stores{}, err
	}
	db, err := telemetry.OpenPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		return stores{}, err
	}
	return stores{
		ledger: inventory.NewPostgresLedger(db),
		orders: orders.NewPostgresStore(db),
		users:  users.NewPostgresRepository(db),
		close:  db.Close,
	}, nil
}
