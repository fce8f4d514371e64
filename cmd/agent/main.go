package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketscanner/internal/adapters/config"
	"marketscanner/internal/adapters/marketdata"
	"marketscanner/internal/agents"
	"marketscanner/internal/metrics"
	"marketscanner/pkg/errors"
	"marketscanner/pkg/logger"
)

// kindAll serves every agent from one process under /<kind>/
const kindAll = "all"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	metrics.Init()

	feeds := marketdata.NewClient(cfg.MarketData)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	if err := mountAgents(mux, cfg.Agent, feeds, log); err != nil {
		log.Fatalf("Failed to build agents: %v", err)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("Agent listening", "kind", cfg.Agent.Kind, "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}
}

// mountAgents serves one agent at the root, or every agent under its own prefix
func mountAgents(mux *http.ServeMux, cfg config.AgentConfig, feeds agents.Feeds, log *logger.Logger) error {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))

	if kind != kindAll {
		ag, err := agents.New(agents.Kind(kind), feeds)
		if err != nil {
			return errors.Wrapf(errors.ErrInvalidInput, "agent kind: %v", err)
		}
		mux.Handle("/", agents.NewHandler(ag, cfg.TaskTimeout, log))
		return nil
	}

	reg, err := agents.NewRegistryWithAll(feeds)
	if err != nil {
		return err
	}
	for _, k := range reg.List() {
		ag, _ := reg.Get(k)
		prefix := "/" + string(k)
		mux.Handle(prefix+"/", http.StripPrefix(prefix, agents.NewHandler(ag, cfg.TaskTimeout, log)))
		log.Infow("Agent mounted", "kind", k, "prefix", prefix)
	}
	return nil
}
