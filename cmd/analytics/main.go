package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"

	"github.com/lovendo/analytics-service/common/logging"
	"github.com/lovendo/analytics-service/common/messaging/nats"
	"github.com/lovendo/analytics-service/internal/config"
	"github.com/lovendo/analytics-service/internal/handlers"
	"github.com/lovendo/analytics-service/internal/llm"
	"github.com/lovendo/analytics-service/internal/realtime"
	"github.com/lovendo/analytics-service/internal/repository"
	"github.com/lovendo/analytics-service/internal/server"
	"github.com/lovendo/analytics-service/internal/service"
	"github.com/lovendo/analytics-service/internal/tracker"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("analytics"))
	logging.SetDefault(logger)

	slog.Info("Starting analytics service",
		slog.Int("port", cfg.Server.Port),
		slog.String("database", cfg.Database.Type),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Repository
	var repo repository.Repository
	if cfg.Database.Type == "postgres" {
		connString := cfg.Database.Postgres.DSN()

		slog.Info("Connecting to PostgreSQL",
			slog.String("host", cfg.Database.Postgres.Host),
			slog.Int("port", cfg.Database.Postgres.Port),
			slog.String("database", cfg.Database.Postgres.Database),
		)

		pgRepo, err := repository.NewPostgresRepository(context.Background(), connString)
		if err != nil {
			slog.Error("Failed to connect to PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pgRepo.Close()
		repo = pgRepo

		slog.Info("Running database migrations")
		m, err := migrate.New("file://migrations", connString)
		if err != nil {
			slog.Error("Failed to initialize migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			slog.Error("Failed to run migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		slog.Warn("Using in-memory repository (development only)")
		repo = repository.NewInMemoryRepository()
	}

	// Optional realtime stream over NATS
	var publisher tracker.Publisher
	if cfg.NATS.Enabled {
		natsCfg := nats.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Name = cfg.NATS.Name
		natsClient, err := nats.NewClient(natsCfg)
		if err != nil {
			slog.Error("Failed to connect to NATS", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = realtime.NewPublisher(natsClient, logger)
		slog.Info("Realtime event stream enabled", slog.String("url", cfg.NATS.URL))
	}

	// Service options
	var opts []service.Option
	if cfg.Redis.Enabled {
		cache := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := cache.Ping(context.Background()).Err(); err != nil {
			slog.Error("Failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer cache.Close()
		opts = append(opts, service.WithCache(cache, cfg.Redis.TTL))
		slog.Info("Assignment cache enabled", slog.String("addr", cfg.Redis.Addr))
	}
	if cfg.Insights.URL != "" {
		client := llm.New(cfg.Insights.URL, cfg.Insights.APIKey, cfg.Insights.Model, cfg.Insights.Timeout)
		opts = append(opts, service.WithLLM(client, cfg.Insights.TopEvents))
		slog.Info("Insight generation enabled", slog.String("model", cfg.Insights.Model))
	}

	svc := service.New(repo, logger, opts...)

	// Event buffer
	tr := tracker.New(repo, publisher, cfg.Buffer.FlushInterval, cfg.Buffer.MaxBatchRetries, logger)
	tr.Start()

	handler := handlers.NewHandler(tr, svc, repo, logger)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Analytics service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", slog.String("error", err.Error()))
	}

	// Drain the event buffer before exiting.
	tr.Stop(ctx)

	slog.Info("Server stopped gracefully")
}
