package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sparkleclean/internal/api"
	"sparkleclean/internal/booking"
	"sparkleclean/internal/config"
	"sparkleclean/internal/events"
	"sparkleclean/internal/export"
	"sparkleclean/internal/logging"
	"sparkleclean/internal/metrics"
	"sparkleclean/internal/models"
	"sparkleclean/internal/notify"
	"sparkleclean/internal/session"
	"sparkleclean/internal/store"
	"sparkleclean/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
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

	catalog, err := loadServices(cfg, &logger)
	if err != nil {
		return err
	}

	bookingStore, taskStore, err := buildStore(cfg, &logger)
	if err != nil {
		return err
	}
	defer bookingStore.Close()

	redisClient := initRedis(cfg, &logger)
	defer func() { _ = session.Close(redisClient) }()

	sessions := buildSessions(cfg, redisClient, &logger)
	bus := events.NewEventBus()
	events.SubscribeAuditLog(bus, logging.Component(&logger, "events"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	titleFor := func(id string) string {
		for _, svc := range catalog {
			if svc.ID == id {
				return svc.Title
			}
		}
		return id
	}
	var drafter *notify.Drafter
	if cfg.Notify.Enabled {
		drafter = notify.NewDrafter(cfg.Notify, logging.Component(&logger, "notify"))
	}

	notifier := initNotifier(ctx, cfg, drafter, taskStore, redisClient, titleFor, &logger)
	bookings := booking.NewService(bookingStore, bus, notifier, catalog, logging.Component(&logger, "booking"))

	exporter := export.NewExporter(cfg.Exports.Path, logging.Component(&logger, "export"))

	var guide api.SmsGuideDrafter
	if drafter != nil {
		guide = drafter
	}

	httpServer := api.NewHTTPServer(
		cfg.Server,
		bookings,
		bookingStore,
		sessions,
		time.Duration(cfg.Session.TTLSeconds)*time.Second,
		exporter,
		guide,
		catalog,
		logging.Component(&logger, "api"),
	)

	startMetrics(ctx, cfg, &logger)

	return serve(ctx, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "main").Logger()

	return cfg, logger, closer, nil
}

// loadServices reads the cleaning catalog. The dedicated YAML file wins; the
// inline config list is the fallback.
func loadServices(cfg *config.Config, logger *zerolog.Logger) ([]models.Service, error) {
	servicesPath := os.Getenv("SERVICES_PATH")
	if servicesPath == "" {
		servicesPath = "configs/services.yaml"
	}

	data, err := os.ReadFile(servicesPath)
	if err != nil {
		if os.IsNotExist(err) && len(cfg.Services) > 0 {
			return cfg.Services, nil
		}
		logger.Error().Err(err).Str("services_path", servicesPath).Msg("read services")
		return nil, err
	}

	var servicesConfig struct {
		Services []models.Service `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &servicesConfig); err != nil {
		logger.Error().Err(err).Str("services_path", servicesPath).Msg("parse services")
		return nil, err
	}

	if err := config.ValidateServices(servicesConfig.Services); err != nil {
		return nil, err
	}
	return servicesConfig.Services, nil
}

// buildStore assembles the configured booking store. The second return value
// is the sqlite store when one is open, used for notification task
// persistence.
func buildStore(cfg *config.Config, logger *zerolog.Logger) (store.Store, *store.SQLiteStore, error) {
	storeLogger := logging.Component(logger, "store")

	var sqliteStore *store.SQLiteStore
	if cfg.Store.Backend == "sqlite" || cfg.Store.Failover {
		var err error
		sqliteStore, err = store.NewSQLiteStore(cfg.Store.SQLite.Path, storeLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("init sqlite store: %w", err)
		}
	}

	var primary store.Store
	switch cfg.Store.Backend {
	case "sqlite":
		return sqliteStore, sqliteStore, nil
	case "blob":
		primary = store.NewBlobStore(cfg.Store.Blob.URL, time.Duration(cfg.Store.Blob.TimeoutSeconds)*time.Second, storeLogger)
	case "rest":
		primary = store.NewRESTStore(cfg.Store.REST.BaseURL, cfg.Store.REST.APIKey, time.Duration(cfg.Store.REST.TimeoutSeconds)*time.Second, storeLogger)
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.Store.Failover {
		logger.Info().Str("backend", cfg.Store.Backend).Msg("failover store enabled with sqlite fallback")
		return store.NewFailoverStore(primary, sqliteStore, storeLogger), sqliteStore, nil
	}
	return primary, sqliteStore, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := session.NewRedisClient(cfg.Redis)
	if err := session.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func buildSessions(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) session.Repository {
	memory := session.NewMemoryRepository()
	if redisClient == nil {
		return memory
	}

	ttl := time.Duration(cfg.Session.TTLSeconds) * time.Second
	primary := session.NewRedisRepository(redisClient, ttl)
	return session.NewFailoverRepository(primary, memory, logging.Component(logger, "session"))
}

// initNotifier wires the drafting collaborator, the Telegram delivery channel
// and the retrying worker. Any missing piece disables notifications.
func initNotifier(ctx context.Context, cfg *config.Config, drafter *notify.Drafter, taskStore *store.SQLiteStore, redisClient *redis.Client, titleFor func(string) string, logger *zerolog.Logger) booking.Notifier {
	if !cfg.Notify.Enabled || drafter == nil {
		return nil
	}

	sender, err := notify.NewTelegramSender(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.OwnerChatID)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return nil
	}

	retry := worker.RetryPolicy{
		MaxRetries:    cfg.Notify.Retry.MaxRetries,
		InitialDelay:  time.Duration(cfg.Notify.Retry.InitialDelaySeconds) * time.Second,
		MaxDelay:      time.Duration(cfg.Notify.Retry.MaxDelaySeconds) * time.Second,
		BackoffFactor: cfg.Notify.Retry.BackoffFactor,
	}

	var tasks worker.TaskStore
	if taskStore != nil {
		tasks = taskStore
	}

	notifyWorker := worker.NewNotifyWorker(tasks, drafter, sender, redisClient, retry, titleFor, logging.Component(logger, "worker"))
	go notifyWorker.Start(ctx)

	return notifyWorker
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

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}

	logger.Info().Msg("server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
