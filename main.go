package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/storefront/internal/cache"
	"github.com/nikolayk812/storefront/internal/catalog"
	"github.com/nikolayk812/storefront/internal/config"
	"github.com/nikolayk812/storefront/internal/db"
	"github.com/nikolayk812/storefront/internal/httpapi"
	"github.com/nikolayk812/storefront/internal/identity"
	"github.com/nikolayk812/storefront/internal/logger"
	"github.com/nikolayk812/storefront/internal/metrics"
	"github.com/nikolayk812/storefront/internal/outbox"
	"github.com/nikolayk812/storefront/internal/repository"
	"github.com/nikolayk812/storefront/internal/service"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config.Load: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Service: "storefront",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("storefront stopped with error", "error", err)
		os.Exit(1)
	}

	log.Info("storefront stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.Postgres.MigrateOnStart {
		if err := db.Migrate(cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("db.Migrate: %w", err)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pool.Ping: %w", err)
	}

	mongoDB, err := catalog.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return fmt.Errorf("catalog.ConnectMongoDB: %w", err)
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Error("mongo disconnect failed", "error", err)
		}
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisClient.Ping: %w", err)
	}

	pricing, err := cfg.PricingPolicy()
	if err != nil {
		return fmt.Errorf("cfg.PricingPolicy: %w", err)
	}

	verifier, err := identity.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("identity.NewVerifier: %w", err)
	}

	m := metrics.New()

	productCatalog := catalog.WithBreaker(
		catalog.NewMongo(mongoDB, pricing.Currency),
		catalog.BreakerSettings{
			ConsecutiveFailures: cfg.Catalog.BreakerFailures,
			OpenTimeout:         cfg.Catalog.BreakerOpenTimeout,
		},
		log,
	)
	cartCache := cache.NewRedis(redisClient, cfg.Redis.CartTTL)
	cartRepo := repository.NewCart(pool)
	orderRepo := repository.NewOrder(pool)

	carts := service.NewCartService(cartRepo, productCatalog, cartCache, log)

	orders, err := service.NewOrderService(orderRepo, cartRepo, productCatalog, cartCache, pricing, log,
		service.WithMaxConcurrentLookups(cfg.Catalog.MaxConcurrent),
		service.WithRecorder(m),
	)
	if err != nil {
		return fmt.Errorf("service.NewOrderService: %w", err)
	}

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpapi.NewRouter(httpapi.Options{
			Carts:          carts,
			Orders:         orders,
			Auth:           verifier,
			Metrics:        m,
			Log:            log,
			RequestTimeout: cfg.HTTP.RequestTimeout,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server starting", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("srv.ListenAndServe: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		log.Info("http server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("srv.Shutdown: %w", err)
		}
		return nil
	})

	if brokers := outbox.ParseBrokers(cfg.Kafka.Brokers); len(brokers) > 0 {
		publisher, err := outbox.NewKafkaPublisher(brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("outbox.NewKafkaPublisher: %w", err)
		}
		defer publisher.Close()

		relay := outbox.NewRelay(repository.NewOutbox(pool), publisher, log,
			outbox.WithInterval(cfg.Kafka.Interval),
			outbox.WithBatchSize(cfg.Kafka.BatchSize),
			outbox.WithObserver(m),
		)

		g.Go(func() error {
			relay.Run(gctx)
			return nil
		})
	} else {
		log.Warn("kafka brokers not configured, order events stay in the outbox")
	}

	return g.Wait()
}
