package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"seatreserve/internal/api"
	"seatreserve/internal/clock"
	"seatreserve/internal/config"
	"seatreserve/internal/database"
	"seatreserve/internal/events"
	"seatreserve/internal/export"
	"seatreserve/internal/logging"
	"seatreserve/internal/metrics"
	"seatreserve/internal/repository"
	"seatreserve/internal/scheduler"
	"seatreserve/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	loc, err := cfg.App.Location()
	if err != nil {
		return fmt.Errorf("resolve timezone: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, loc, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	clk := clock.System()
	bus := events.NewEventBus()

	if sink := initKafka(cfg, bus, logger); sink != nil {
		defer (func() { _ = sink.Close() })()
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}

	startMetrics(ctx, cfg, logger)
	startScheduler(ctx, cfg, db, loc, clk, bus, logger)
	go database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup")).Start(ctx)

	svc := api.Services{
		Bookings: service.NewBookingService(
			db, bus, newRateLimiter(ctx, redisClient, logger),
			service.RateLimit{
				Attempts: cfg.Booking.RateLimitAttempts,
				Window:   time.Duration(cfg.Booking.RateLimitWindow) * time.Second,
			},
			clk, logging.Component(logger, "bookings"),
		),
		Availability: service.NewAvailabilityService(db, clk, loc),
		Bans:         service.NewBanService(db, bus, clk, logging.Component(logger, "bans")),
		Admin:        service.NewAdminService(db, db, bus, clk, logging.Component(logger, "admin")),
		Export:       export.New(db, cfg.Exports.Path, loc, logging.Component(logger, "export")),
		Store:        db,
		Clock:        clk,
	}

	if !cfg.API.Enabled || !cfg.API.HTTP.Enabled {
		logger.Warn().Msg("HTTP API is disabled, running background jobs only")
		<-ctx.Done()
		return nil
	}

	httpServer := api.NewHTTPServer(cfg.API, svc, loc, logging.Component(logger, "http"))
	return serve(ctx, httpServer, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, loc *time.Location, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.Open(cfg.Database, loc, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	added, err := db.ProvisionSeats(ctx, cfg.Seats.Count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("provision seats: %w", err)
	}
	logger.Info().Int("seats", cfg.Seats.Count).Int("added", added).Msg("seat pool ready")
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// newRateLimiter prefers Redis and falls back to process memory.
func newRateLimiter(ctx context.Context, client *redis.Client, logger *zerolog.Logger) repository.RateLimiter {
	memory := repository.NewMemoryRateLimiter()
	go sweep(ctx, memory, time.Minute)
	if client == nil {
		return memory
	}
	return repository.NewFailoverRateLimiter(
		repository.NewRedisRateLimiter(client), memory, logging.Component(logger, "rate-limit"),
	)
}

func sweep(ctx context.Context, limiter *repository.MemoryRateLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}

func initKafka(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) *events.KafkaSink {
	if !cfg.Kafka.Enabled() {
		return nil
	}

	kafkaLogger := logging.Component(logger, "kafka")
	sink := events.NewKafkaSink(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, kafkaLogger), kafkaLogger)
	sink.Attach(bus)

	logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka event sink attached")
	return sink
}

func startScheduler(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	loc *time.Location,
	clk clock.Clock,
	bus *events.EventBus,
	logger *zerolog.Logger,
) {
	if !cfg.Blackout.IsEnabled() {
		logger.Info().Msg("blackout scheduler is disabled")
		return
	}

	s := scheduler.New(db, scheduler.RulesFromConfig(cfg.Blackout), loc, clk, bus, logging.Component(logger, "scheduler"))
	if cfg.Blackout.RetryAttempts > 0 {
		policy := scheduler.DefaultRetryPolicy()
		policy.MaxRetries = cfg.Blackout.RetryAttempts
		s.WithRetry(policy)
	}
	go s.Start(ctx)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}
