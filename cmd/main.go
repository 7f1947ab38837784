package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eaglebank/user-accounts/internal/command"
	"github.com/eaglebank/user-accounts/internal/config"
	"github.com/eaglebank/user-accounts/internal/events"
	"github.com/eaglebank/user-accounts/internal/handler"
	"github.com/eaglebank/user-accounts/internal/middleware"
	"github.com/eaglebank/user-accounts/internal/migrations"
	"github.com/eaglebank/user-accounts/internal/presence"
	"github.com/eaglebank/user-accounts/internal/query"
	redisClient "github.com/eaglebank/user-accounts/internal/redis"
	"github.com/eaglebank/user-accounts/internal/repository"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("User service failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database connection (write store)
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if cfg.AutoMigrate {
		if err := migrations.Up(ctx, db); err != nil {
			return err
		}
	}

	// Redis connection (read model store + event streaming)
	redis, err := redisClient.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redis.Close()

	// --- CQRS wiring ---
	publisher := events.NewPublisher(redis.Client)
	projector := presence.NewProjector(redis.Client, logger)

	store := repository.NewUserRepository(db)
	readRepo := repository.NewUserReadRepository(store, redis.Client, cfg.UserViewTTL, logger)

	commandSvc := command.NewUserCommandService(store, readRepo, publisher, logger)
	querySvc := query.NewUserQueryService(readRepo, projector)

	userHandler := handler.NewUserHandler(commandSvc, querySvc)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(logger))
	userHandler.RegisterRoutes(router)
	router.GET("/health", handler.Health(store))

	// Presence projection follows the user event stream.
	go func() {
		subscriber := events.NewSubscriber(redis.Client, events.SubscriberConfig{
			Group:    "user-presence-group",
			Consumer: cfg.PresenceConsumer,
			Stream:   events.UserEventsStream,
			Handler:  projector.HandleUserEvent,
			Logger:   logger,
		})
		if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("subscriber stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("user service starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
