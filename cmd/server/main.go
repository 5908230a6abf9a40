package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-seat-engine/internal/config"
	"github.com/iliyamo/cinema-seat-engine/internal/database"
	"github.com/iliyamo/cinema-seat-engine/internal/handler"
	"github.com/iliyamo/cinema-seat-engine/internal/logger"
	"github.com/iliyamo/cinema-seat-engine/internal/middleware"
	"github.com/iliyamo/cinema-seat-engine/internal/queue"
	"github.com/iliyamo/cinema-seat-engine/internal/repository"
	"github.com/iliyamo/cinema-seat-engine/internal/router"
	"github.com/iliyamo/cinema-seat-engine/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogEncoding)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", "error", err)
	}
	log.Info("server exited")
}

func run(cfg config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, catalog, closeStore, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []service.Option{}
	if cfg.EventsEnabled {
		opts = append(opts, service.WithPublisher(queue.NewPublisher(cfg.RabbitMQURL, log.With("component", "publisher"))))
	}
	seats := service.NewSeatService(store, catalog, log.With("component", "seats"), opts...)
	sweeper := service.NewSweeper(seats, log.With("component", "sweeper"), service.SweeperConfig{
		Interval:    cfg.SweepInterval,
		PassTimeout: cfg.SweepPassTimeout,
	})

	rdb, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, rate limiting and pricing cache disabled", "addr", cfg.Redis.Addr, "error", err)
	} else {
		defer func() { _ = rdb.Close() }()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log.With("component", "http")))
	router.Register(e, router.Deps{
		Seats:        handler.NewSeatHandler(seats, log.With("component", "handler")),
		Sweeper:      sweeper,
		JWTSecret:    cfg.JWTSecret,
		RateLimit:    middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.With("component", "ratelimit")),
		PricingCache: middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	})

	if err := sweeper.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env, "seat_store", cfg.SeatStore)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if cfg.BookingLogEnabled {
		g.Go(func() error {
			err := queue.StartBookingConsumer(gctx, cfg.RabbitMQURL, cfg.BookingLogDir, log.With("component", "booking-consumer"))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		if err := sweeper.Stop(); err != nil {
			log.Warn("sweeper stop", "error", err)
		}
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})
	return g.Wait()
}

// openStores selects the seat store and catalog backend.
func openStores(ctx context.Context, cfg config.Config, log logger.Logger) (service.SeatStore, service.Catalog, func(), error) {
	if cfg.IsMemoryStore() {
		catalog := repository.NewMemoryCatalog()
		if cfg.CatalogSeedFile != "" {
			seeded, err := repository.LoadCatalogSeed(cfg.CatalogSeedFile)
			if err != nil {
				return nil, nil, nil, err
			}
			catalog = seeded
		}
		log.Info("using in-memory seat store", "catalog_seed", cfg.CatalogSeedFile)
		return repository.NewMemorySeatStore(), catalog, func() {}, nil
	}

	db, err := database.Open(cfg.DB)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		log.Info("database schema migrated")
	}
	return repository.NewSeatRepo(db), repository.NewCatalogRepo(db), func() { _ = db.Close() }, nil
}
