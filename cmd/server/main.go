package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/table-reservation/internal/booking"
	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/database"
	"github.com/iliyamo/table-reservation/internal/handler"
	"github.com/iliyamo/table-reservation/internal/queue"
	"github.com/iliyamo/table-reservation/internal/repository"
	"github.com/iliyamo/table-reservation/internal/router"
	"github.com/iliyamo/table-reservation/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real environment wins
	cfg := config.Load()

	logger := log.New("table-reservation")
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DSNParams())
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	restaurants := repository.NewRestaurantRepo(db)
	reservations := repository.NewReservationRepo(db)

	// Redis is optional: without it slot locks are process-local and the
	// rate limiter and response cache pass requests through.
	health := map[string]handler.Pinger{"mysql": db}
	var locker booking.SlotLocker = booking.NewLocalSlotLocker()
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
		locker = service.NewRedisSlotLocker(rdb, cfg.SlotLockTTL, logger)
		health["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		logger.Warn("redis unavailable; using process-local slot locks")
	}

	events := service.NewEventPublisher(cfg.AMQPURL, logger)
	defer events.Close()
	go func() {
		sink := queue.NewEventLog(cfg.EventLogDir)
		if err := queue.StartReservationConsumer(ctx, cfg.AMQPURL, sink, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("reservation consumer stopped: %v", err)
		}
	}()

	manager := booking.NewManager(restaurants, reservations, booking.Options{
		Locker:        locker,
		Events:        events,
		Location:      cfg.Location,
		Logger:        logger,
		UpcomingLimit: cfg.UpcomingLimit,
	})

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.RequestID(), echomw.Logger(), echomw.Recover())

	router.RegisterRoutes(e, router.Deps{
		Restaurants:  handler.NewRestaurantHandler(restaurants, manager.Resolver()),
		Reservations: handler.NewReservationHandler(manager),
		Health:       handler.Health(health),
		JWTSecret:    cfg.JWTSecret,
		Redis:        rdb,
		RateLimit:    config.LoadRateLimitConfig(),
		Cache:        config.LoadCacheConfig(),
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Infof("listening on %s (env=%s, tz=%s)", addr, cfg.Env, cfg.Location)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdown); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
