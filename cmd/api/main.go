package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/01moynul/projecthub-golang/internal/auth"
	"github.com/01moynul/projecthub-golang/internal/config"
	"github.com/01moynul/projecthub-golang/internal/database"
	"github.com/01moynul/projecthub-golang/internal/events"
	"github.com/01moynul/projecthub-golang/internal/handlers"
	"github.com/01moynul/projecthub-golang/internal/logger"
	"github.com/01moynul/projecthub-golang/internal/middleware"
	"github.com/01moynul/projecthub-golang/internal/notify"
	"github.com/01moynul/projecthub-golang/internal/routes"
	"github.com/01moynul/projecthub-golang/internal/store"
	"github.com/01moynul/projecthub-golang/internal/stream"
	"github.com/01moynul/projecthub-golang/internal/worker"
)

func main() {
	// 0. --- Load Environment Variables (.env) ---
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not find or load .env file. Relying on system environment variables.")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	// 1. --- Database ---
	db, err := database.OpenDB(cfg.Database, zl)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. --- Stream fan-out ---
	s := store.New(db)
	registry := stream.NewRegistry(zl)

	var pusher stream.Pusher = registry
	var bridge *stream.RedisBridge
	brokerMode := "local"
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			zl.Warn("redis unreachable, delivering to local streams only",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			bridge = stream.NewRedisBridge(client, cfg.Redis.Channel, registry, zl)
			pusher = bridge
			brokerMode = "redis"
		}
	}

	dispatcher := notify.NewDispatcher(s, pusher, zl)

	tokens, err := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		return err
	}

	// 3. --- HTTP ---
	gin.SetMode(cfg.Server.Mode)

	app := &handlers.Handlers{
		DB:            db,
		Notifications: s,
		Projects:      s,
		Tasks:         s,
		Dispatcher:    dispatcher,
		Registry:      registry,
		Log:           zl,
		Heartbeat:     cfg.Stream.Heartbeat,
		BrokerMode:    brokerMode,
	}
	router := routes.SetupRouter(app, routes.Options{
		AllowedOrigin: cfg.Server.AllowedOrigin,
		Tokens:        tokens,
		StreamLimiter: middleware.NewUserRateLimiter(ctx, cfg.Stream.ReconnectPerMinute, cfg.Stream.ReconnectBurst, zl),
		Log:           zl,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// 4. --- Background Workers ---
	if cfg.Worker.Enabled {
		w := worker.NewDueDateWorker(s, dispatcher, cfg.Worker.Interval, cfg.Worker.ReminderWindow, zl)
		g.Go(func() error {
			w.Run(gctx)
			return nil
		})
	}
	if bridge != nil {
		g.Go(func() error { return bridge.Run(gctx) })
	}
	if cfg.Kafka.Enabled {
		consumer := events.NewConsumer(cfg.Kafka, dispatcher, zl)
		defer consumer.Close()
		g.Go(func() error { return consumer.Run(gctx) })
	}

	g.Go(func() error {
		zl.Info("starting ProjectHub API server",
			zap.Int("port", cfg.Server.Port), zap.String("broker", brokerMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down", zap.Int("open_streams", registry.Len()))

		// Streams never finish on their own, so close them before draining.
		registry.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
