package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/draftsmith-ai/draftsmith/internal/activities"
	"github.com/draftsmith-ai/draftsmith/internal/config"
	"github.com/draftsmith-ai/draftsmith/internal/db"
	"github.com/draftsmith-ai/draftsmith/internal/health"
	"github.com/draftsmith-ai/draftsmith/internal/httpapi"
	"github.com/draftsmith-ai/draftsmith/internal/llm"
	"github.com/draftsmith-ai/draftsmith/internal/ratecontrol"
	"github.com/draftsmith-ai/draftsmith/internal/server"
	"github.com/draftsmith-ai/draftsmith/internal/session"
	"github.com/draftsmith-ai/draftsmith/internal/streaming"
	"github.com/draftsmith-ai/draftsmith/internal/tools"
	"github.com/draftsmith-ai/draftsmith/internal/workflows"
)

func buildLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	streaming.Configure(cfg.Streaming.RingCapacity)

	// Hot-reload tool rate limits when the config file changes.
	if watcher, werr := config.NewWatcher("config", logger); werr == nil {
		watcher.OnChange("tools.yaml", func(path string) error {
			ratecontrol.Reload()
			logger.Info("tool rate limits reloaded", zap.String("path", path))
			return nil
		})
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watcher failed to start", zap.Error(err))
		}
		defer watcher.Stop()
	} else {
		logger.Warn("config watcher unavailable", zap.Error(werr))
	}

	// Session store (required).
	sessions, err := session.NewManager(session.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to session store", zap.Error(err))
	}

	// Report archive (optional).
	var store *db.Client
	if cfg.Database.DSN != "" {
		store, err = db.NewClient(cfg.Database.DSN, logger)
		if err != nil {
			logger.Warn("report archive unavailable, continuing without it", zap.Error(err))
			store = nil
		} else {
			defer store.Close()
		}
	}

	generation := llm.NewClient(cfg.Generation.BaseURL, cfg.GenerationTimeout(), logger)
	clients := tools.NewClients(tools.Credentials{
		SerperAPIKey: cfg.Tools.SerperAPIKey,
		TavilyAPIKey: cfg.Tools.TavilyAPIKey,
		ExaAPIKey:    cfg.Tools.ExaAPIKey,
		GitHubToken:  cfg.Tools.GitHubToken,
	}, cfg.ToolTimeout(), logger)
	dispatcher := tools.NewDispatcher(clients, cfg.ToolTimeout(), logger)

	acts := activities.New(activities.Deps{
		LLM:        generation,
		Dispatcher: dispatcher,
		Sessions:   sessions,
		Store:      store,
		Logger:     logger,
	})

	tClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		logger.Fatal("failed to connect to temporal", zap.Error(err))
	}
	defer tClient.Close()

	wk := worker.New(tClient, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: 50,
	})
	wk.RegisterWorkflow(workflows.ReportWorkflow)
	// The Activities struct carries the Approvals accessor alongside its
	// activity methods, so invalid-shaped methods must be skipped.
	wk.RegisterActivityWithOptions(acts, activity.RegisterOptions{SkipInvalidStructFunctions: true})
	if err := wk.Start(); err != nil {
		logger.Fatal("failed to start worker", zap.Error(err))
	}
	defer wk.Stop()
	logger.Info("worker started", zap.String("task_queue", cfg.Temporal.TaskQueue))

	svc := server.New(tClient, sessions, acts.Approvals(), server.Options{
		TaskQueue: cfg.Temporal.TaskQueue,
		Defaults: server.Defaults{
			AutoApprove:            cfg.Structuring.AutoApprove,
			MaxRedrafts:            cfg.Structuring.MaxRedrafts,
			ApprovalTimeoutSeconds: cfg.Structuring.ApprovalTimeoutSeconds,
		},
	}, logger)

	// Health probes.
	hm := health.NewManager(logger)
	hm.Register(health.RedisChecker(sessions.RedisWrapper()))
	hm.Register(health.TemporalChecker(tClient, cfg.Temporal.Namespace))
	if store != nil {
		hm.Register(health.PostgresChecker(store))
	}
	if cfg.Generation.BaseURL != "" {
		hm.Register(health.GenerationChecker(cfg.Generation.BaseURL))
	}

	// Metrics on its own port.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		logger.Info("metrics server listening", zap.String("address", addr))
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// API surface.
	mux := http.NewServeMux()
	hm.RegisterRoutes(mux)
	httpapi.NewReportsHandler(svc, store, logger).RegisterRoutes(mux)
	httpapi.NewApprovalHandler(svc, logger).RegisterRoutes(mux)
	httpapi.NewSessionsHandler(svc, store, logger).RegisterRoutes(mux)
	httpapi.NewStreamingHandler(streaming.Get(), logger).RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
	}
	go func() {
		logger.Info("http server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
}
