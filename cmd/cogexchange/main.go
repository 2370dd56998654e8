package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/efreitasn/cogexchange/internal/activity"
	"github.com/efreitasn/cogexchange/internal/config"
	"github.com/efreitasn/cogexchange/internal/engine"
	"github.com/efreitasn/cogexchange/internal/handler"
	"github.com/efreitasn/cogexchange/internal/ledger"
	"github.com/efreitasn/cogexchange/internal/logging"
	"github.com/efreitasn/cogexchange/internal/market"
	"github.com/efreitasn/cogexchange/internal/metrics"
	"github.com/efreitasn/cogexchange/internal/notify"
	"github.com/efreitasn/cogexchange/internal/pricing"
	"github.com/efreitasn/cogexchange/internal/scheduler"
	"github.com/efreitasn/cogexchange/internal/service"
	"github.com/efreitasn/cogexchange/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("exchange stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Catalog.
	catalog := market.DefaultCatalog()
	if cfg.CatalogPath != "" {
		var err error
		if catalog, err = market.LoadCatalog(cfg.CatalogPath); err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
	}

	// Durable state. Without a data directory everything lives in memory.
	var (
		persister store.Persister = store.Nop{}
		pebbleDB  *store.PebbleStore
	)
	if cfg.DataDir != "" {
		db, err := store.OpenPebble(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open data dir: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("close data dir", zap.Error(err))
			}
		}()
		persister, pebbleDB = db, db
	}

	// Stores.
	accountStore := store.NewAccountStore()
	orderStore := store.NewOrderStore(persister)
	alertStore := store.NewAlertStore(persister)
	fillStore := store.NewFillStore()
	webhookStore := store.NewWebhookStore()

	l := ledger.New(accountStore, persister)
	registry, err := market.NewRegistry(catalog, cfg.HistoryMax, persister, logger)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	// Event egress: webhooks and the websocket stream always, Kafka when
	// brokers are configured.
	hub := notify.NewHub(logger)
	sinks := []notify.Sink{notify.NewWebhookSink(webhookStore, cfg.WebhookTimeout, logger), hub}
	var kafkaSink *notify.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink = notify.NewKafkaSink(notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger))
		sinks = append(sinks, kafkaSink)
		logger.Info("kafka egress enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	dispatcher := notify.NewDispatcher(cfg.EventBuffer, logger, sinks...)

	// Engine.
	books := engine.NewBookManager()
	matcher := engine.NewMatcher(books, l, orderStore, alertStore, fillStore, dispatcher, logger)
	expiryMgr := engine.NewExpiryManager(cfg.ExpirationInterval, matcher)

	// Tick cycle.
	params := pricing.DefaultParams()
	params.Floor = cfg.PriceFloor
	params.Ceiling = cfg.PriceCeiling
	params.ActivityCap = cfg.ActivityCap
	if err := params.Validate(); err != nil {
		return fmt.Errorf("price process: %w", err)
	}
	process := pricing.NewProcess(params, pricing.NewSeededNoise(cfg.NoiseSeed))
	agg := activity.New(registry.Symbols(), cfg.MessageCooldown, cfg.ActivityDecay)
	met := metrics.New()
	sched := scheduler.New(
		scheduler.Config{
			Period:                cfg.TickPeriod,
			ActivityTimeout:       cfg.ActivityTimeout,
			InstrumentDeadline:    cfg.InstrumentDeadline,
			ZeroActivityOnTimeout: cfg.ZeroActivityOnTimeout,
		},
		registry,
		process,
		agg,
		matcher,
		dispatcher,
		met,
		logger,
	)

	// Services.
	svc := handler.Services{
		Accounts: service.NewAccountService(l, registry, cfg.StartingBalance, logger),
		Trades:   service.NewTradeService(l, registry, fillStore, logger),
		Orders:   service.NewOrderService(matcher, expiryMgr, l, registry, orderStore, cfg.OrderTTL, logger),
		Alerts:   service.NewAlertService(matcher, l, registry, alertStore),
		Market:   service.NewMarketService(registry, matcher, agg),
		Admin:    service.NewAdminService(cfg.AdminToken, registry, matcher, sched, logger),
		Webhooks: service.NewWebhookService(webhookStore, l),
	}
	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN is empty, admin routes are disabled")
	}

	// Restore before anything can observe or mutate state.
	if pebbleDB != nil {
		if _, err := service.Restore(pebbleDB, l, registry, matcher, expiryMgr, logger); err != nil {
			return fmt.Errorf("restore state: %w", err)
		}
	}
	for _, inst := range registry.List() {
		met.SetPrice(inst.Symbol, inst.Price())
	}

	router := handler.NewRouter(svc, handler.Options{
		CORSOrigins: cfg.CORSOrigins,
		Stream:      hub,
		Metrics:     met.Handler(),
	}, logger)

	// Background workers share one cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Start(ctx)
	go hub.Run(ctx)
	expiryMgr.Start(ctx)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", addr), zap.Duration("tick_period", cfg.TickPeriod))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Wait for SIGINT/SIGTERM or a listener failure.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serveErr:
		logger.Error("server error", zap.Error(err))
	}

	// Graceful shutdown: stop accepting requests, let the in-flight tick
	// finish, then drain buffered events.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	sched.Stop()
	cancel()
	dispatcher.Wait()
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Error("close kafka writer", zap.Error(err))
		}
	}

	logger.Info("server stopped", zap.Uint64("events_dropped", dispatcher.Dropped()))
	return nil
}
