package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/chumon/external/audio"
	configloader "github.com/foxseedlab/chumon/external/config"
	"github.com/foxseedlab/chumon/external/discord"
	"github.com/foxseedlab/chumon/external/httpapi"
	"github.com/foxseedlab/chumon/external/llm"
	menuimpl "github.com/foxseedlab/chumon/external/menu"
	repositoryimpl "github.com/foxseedlab/chumon/external/repository"
	transcriberimpl "github.com/foxseedlab/chumon/external/transcriber"
	webhookimpl "github.com/foxseedlab/chumon/external/webhook"
	"github.com/foxseedlab/chumon/internal/config"
	"github.com/foxseedlab/chumon/internal/metrics"
	"github.com/foxseedlab/chumon/internal/renderer"
	"github.com/foxseedlab/chumon/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do/v2"
)

const (
	rendererQueueSize = 256
	shutdownTimeout   = 15 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "model_backend", cfg.ModelBackend, "storage_backend", cfg.StorageBackend)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: serving assistant")
	serve(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	if cfg.LogLevel != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err == nil {
			logLevel = l
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.Provide(injector, func(i do.Injector) (*prometheus.Registry, error) {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		return reg, nil
	})
	do.Provide(injector, func(i do.Injector) (*metrics.Metrics, error) {
		return metrics.New(do.MustInvoke[*prometheus.Registry](i)), nil
	})
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	llm.RegisterDI(injector)
	menuimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	httpapi.RegisterDI(injector)
	do.Provide(injector, func(i do.Injector) (*renderer.Dispatcher, error) {
		targets := []renderer.Renderer{do.MustInvoke[*httpapi.EventHub](i)}
		if mirror := do.MustInvoke[*discord.ChannelMirror](i); mirror != nil {
			targets = append(targets, mirror)
		}
		return renderer.NewDispatcher(renderer.Multi(targets...), rendererQueueSize), nil
	})
	do.Provide(injector, func(i do.Injector) (renderer.Renderer, error) {
		return do.MustInvoke[*renderer.Dispatcher](i), nil
	})
	session.RegisterDI(injector)

	return injector
}

func serve(cfg *config.Config, injector do.Injector) {
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		os.Exit(1)
	}
	server, err := do.Invoke[*httpapi.Server](injector)
	if err != nil {
		slog.Error("failed to resolve http server", "error", err)
		os.Exit(1)
	}

	first := manager.Open(context.Background())
	slog.Info("startup: conversation opened", "conversation_id", first.ID, "name", first.Name)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		slog.Info("startup: http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	manager.CancelRecording()
	manager.WaitArchives()
	do.MustInvoke[*httpapi.EventHub](injector).Close()
	do.MustInvoke[*renderer.Dispatcher](injector).Close()
	if err := do.MustInvoke[*transcriberimpl.CloudSpeechEngine](injector).Close(); err != nil {
		slog.Error("speech client close failed", "error", err)
	}
}
