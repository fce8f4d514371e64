package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"marketscanner/internal/adapters/config"
	"marketscanner/internal/adapters/errors/noop"
	"marketscanner/internal/adapters/errors/sentry"
	"marketscanner/internal/adapters/kafka"
	"marketscanner/internal/adapters/redis"
	"marketscanner/internal/api"
	"marketscanner/internal/api/health"
	"marketscanner/internal/api/stream"
	"marketscanner/internal/consumers"
	"marketscanner/internal/coordinator"
	"marketscanner/internal/events"
	"marketscanner/internal/hub"
	"marketscanner/internal/metrics"
	"marketscanner/internal/supervisor"
	"marketscanner/internal/workers"
	"marketscanner/internal/workers/analysis"
	"marketscanner/pkg/errors"
	"marketscanner/pkg/logger"
)

// storage is either Redis-backed or process-local
type storage struct {
	redis  *redis.Client
	hub    hub.Store
	budget supervisor.Budget
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := initLogger(cfg); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s coordinator in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	topology, err := config.LoadTopology(cfg.Coordinator.TopologyPath)
	if err != nil {
		log.Fatalf("Failed to load topology: %v", err)
	}
	log.Infow("Topology loaded", "agents", len(topology.Agents), "workflows", len(topology.Workflows))

	metrics.Init()

	store := initStorage(cfg, log)

	// Kafka is optional; without brokers nothing is published or consumed
	var (
		producer  *kafka.Producer
		publisher *events.Publisher
	)
	if cfg.Kafka.Enabled() {
		producer = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		publisher = events.NewPublisher(producer, cfg.App.Name, log)
		log.Infow("Kafka enabled", "brokers", cfg.Kafka.Brokers)
	}

	var healthPublisher supervisor.HealthPublisher
	var resultPublisher coordinator.Publisher
	if publisher != nil {
		healthPublisher = publisher
		resultPublisher = publisher
	}

	monitor := supervisor.NewMonitor(topology.Agents, cfg.Supervisor, store.budget, healthPublisher)
	prometheus.MustRegister(metrics.NewCustomCollector(log, monitor))

	streamHub := stream.NewHub(log)

	catalog := coordinator.NewCatalog(topology)
	coord := coordinator.New(catalog,
		coordinator.NewHTTPCaller(&http.Client{}),
		coordinator.OptionsFromConfig(cfg.Coordinator),
		coordinator.Deps{
			Health:      monitor,
			Budget:      store.budget,
			Publisher:   resultPublisher,
			Hub:         store.hub,
			Broadcaster: streamHub,
		},
	)

	scheduler := workers.NewScheduler()
	scheduler.SetShutdownTimeout(cfg.HTTP.ShutdownTimeout)
	scheduler.RegisterWorker(monitor)
	scheduler.RegisterWorker(analysis.NewMarketScanner(coord, cfg.Scanner))

	checks := map[string]health.Check{}
	if store.redis != nil {
		checks["redis"] = store.redis.Health
	}
	serverCfg := api.ServerConfig{
		Port:         cfg.HTTP.Port,
		ServiceName:  cfg.App.Name,
		Version:      cfg.App.Version,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	if err := serverCfg.CheckRunTimeout(coord.SlowestCall()); err != nil {
		log.Fatalf("Invalid timeouts: %v", err)
	}

	server := api.NewServer(serverCfg,
		health.New(log, checks, cfg.App.Name, cfg.App.Version),
		api.NewHandler(coord, catalog, monitor, store.hub, log).WithWorkers(scheduler),
		streamHub,
		log,
	)

	log.Info("System initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go streamHub.Run(ctx)

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	if cfg.Kafka.Enabled() {
		requests := consumers.NewWorkflowRequestConsumer(kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
			Topic:   kafka.TopicWorkflowRequests,
		}), coord, log)

		go func() {
			if err := requests.Start(ctx); err != nil {
				log.Errorf("Workflow request consumer stopped: %v", err)
			}
		}()
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Errorf("HTTP server error: %v", err)
			cancel()
		}
	}()

	waitForShutdown(ctx, cancel, func(shutdownCtx context.Context) {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnf("HTTP shutdown: %v", err)
		}
		if err := scheduler.Stop(); err != nil {
			log.Warnf("Scheduler stop: %v", err)
		}
		if producer != nil {
			if err := producer.Close(); err != nil {
				log.Warnf("Kafka producer close: %v", err)
			}
		}
		if store.redis != nil {
			if err := store.redis.Close(); err != nil {
				log.Warnf("Redis close: %v", err)
			}
		}
	}, cfg.HTTP.ShutdownTimeout, errorTracker, log)
}

// loadConfig loads application configuration from environment
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// initLogger initializes structured logging
func initLogger(cfg *config.Config) error {
	return logger.Init(cfg.App.LogLevel, cfg.App.Env)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// initStorage connects Redis when configured and falls back to in-memory
// hub and budget otherwise
func initStorage(cfg *config.Config, log *logger.Logger) storage {
	if !cfg.Redis.Enabled() {
		log.Info("Redis not configured, using in-memory hub and budget")
		return storage{
			hub:    hub.NewMemoryStore(),
			budget: supervisor.NewMemoryBudget(cfg.Supervisor.BudgetWindow),
		}
	}

	client, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	log.Infow("Redis connected", "addr", cfg.Redis.Addr())
	return storage{
		redis:  client,
		hub:    client,
		budget: supervisor.NewRedisBudget(client, cfg.Supervisor.BudgetWindow),
	}
}

// waitForShutdown waits for a signal or a fatal component error, then stops
// everything within timeout
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, stop func(context.Context), timeout time.Duration, errorTracker errors.Tracker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Info("Shutting down...")

	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), timeout)
	defer done()

	stop(shutdownCtx)

	if errorTracker != nil {
		if err := errorTracker.Flush(shutdownCtx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
