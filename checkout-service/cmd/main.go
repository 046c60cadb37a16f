package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjod/go_checkout/checkout-service/internal/cache"
	"github.com/fjod/go_checkout/checkout-service/internal/config"
	checkoutgrpc "github.com/fjod/go_checkout/checkout-service/internal/grpc"
	checkouthttp "github.com/fjod/go_checkout/checkout-service/internal/http"
	"github.com/fjod/go_checkout/checkout-service/internal/ledger"
	"github.com/fjod/go_checkout/checkout-service/internal/publisher"
	"github.com/fjod/go_checkout/checkout-service/internal/repository"
	"github.com/fjod/go_checkout/checkout-service/internal/service"
	"github.com/fjod/go_checkout/checkout-service/internal/token"
	"github.com/fjod/go_checkout/checkout-service/internal/transport"
	"github.com/fjod/go_checkout/pkg/circuitbreaker"
	"github.com/fjod/go_checkout/pkg/logger"
	"github.com/fjod/go_checkout/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("failed to read .env", "error", err)
	}
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Service: cfg.ServiceName,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	slog.SetDefault(log)
	slog.Info("checkout-service starting", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCheckoutMetrics(reg)

	checks := map[string]checkoutgrpc.Check{}

	// Session tier: redis when configured, process memory otherwise.
	var sessionTier token.TierStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, tokens fall back to memory", "addr", cfg.RedisAddr, "error", err)
			sessionTier = cache.NewMemoryCache(cfg.TokenTTL)
		} else {
			sessionTier = cache.NewRedisCache(rdb, cfg.TokenTTL)
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	} else {
		sessionTier = cache.NewMemoryCache(cfg.TokenTTL)
	}

	var durableTier token.TierStore
	if cfg.MongoURI != "" {
		db, disconnect, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			slog.Warn("mongodb unavailable, tokens are session-only", "error", err)
		} else {
			defer func() { _ = disconnect(context.Background()) }()
			tokens := repository.NewMongoTokenRepository(db)
			if err := tokens.CreateIndexes(ctx); err != nil {
				slog.Warn("failed to create token indexes", "error", err)
			}
			durableTier = tokens
			checks["mongodb"] = func(ctx context.Context) error { return db.Client().Ping(ctx, nil) }
		}
	}

	creds := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
	}
	var attempts repository.AttemptStore
	repo, err := repository.NewRepository(creds)
	if err != nil {
		slog.Warn("postgres unavailable, checkout attempts are not recorded", "error", err)
	} else {
		defer repo.Close()
		if err := repo.RunMigrations(creds); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("database migrations completed")
		attempts = repo
		checks["postgres"] = repo.Ping
	}

	quotes := ledger.New()
	defer quotes.Close()

	httpClient := transport.NewHTTPClient(cfg.RequestTimeout)
	minter := token.NewMinter(cfg.SessionURL, httpClient, token.NewStore(sessionTier, durableTier), m)

	var direct transport.Channel
	if cfg.GatewayURL != "" {
		settings := circuitbreaker.DefaultSettings("checkout-gateway")
		settings.ConsecutiveFailures = uint32(cfg.BreakerFailures)
		settings.Timeout = cfg.BreakerTimeout
		direct = transport.NewDirectChannel(cfg.GatewayURL, httpClient, settings)
	}
	router := transport.NewRouter(transport.RouterOptions{
		Direct:        direct,
		Proxy:         transport.NewProxyChannel(cfg.ProxyURL, httpClient),
		Tokens:        minter,
		DirectEnabled: cfg.DirectInvokeEnabled && direct != nil,
		Metrics:       m,
	})

	checkoutService := service.NewCheckoutService(service.Options{
		Invoker:        router,
		Attempts:       attempts,
		Ledger:         quotes,
		QuoteSingleUse: cfg.QuoteSingleUse,
		Metrics:        m,
	})

	if repo != nil && len(cfg.KafkaBrokers) > 0 {
		poller := publisher.NewOutboxPoller(repo, publisher.Config{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaTopic,
			EventTick:    cfg.OutboxPollInterval,
			AbandonAfter: cfg.AbandonAfter,
		})
		defer poller.Close()
		go poller.Run(ctx)
		slog.Info("outbox poller started", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	handler := checkouthttp.NewCheckoutHandler(checkoutService, minter, cfg.RequestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(checkouthttp.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(checkouthttp.SessionMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler(reg))
	r.Route("/api/v1/checkout", handler.Routes)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: otelhttp.NewHandler(r, "checkout-service"),
	}

	healthSrv := checkoutgrpc.NewHealthServer(checks, 0)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		slog.Error("failed to listen", "port", cfg.GRPCPort, "error", err)
		os.Exit(1)
	}
	go healthSrv.Watch(ctx)
	go func() {
		slog.Info("grpc health listening", "port", cfg.GRPCPort)
		if err := healthSrv.Serve(lis); err != nil {
			slog.Error("grpc server stopped", "error", err)
		}
	}()

	go func() {
		slog.Info("http listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down checkout-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	healthSrv.GracefulStop()

	slog.Info("checkout-service stopped")
}
