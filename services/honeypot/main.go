// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command honeypot serves the scam honeypot API.
//
// Settings come from a dotenv file (default ".env", override with -env or
// HONEYPOT_ENV_FILE) and the process environment. The file is watched, and
// API key, thresholds, timeouts and rate limits are applied without a restart.
//
// # Usage
//
//	go build -o honeypot ./services/honeypot
//	./honeypot -env .env
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/honeypot/pkg/extensions"
	"github.com/AleutianAI/honeypot/pkg/logging"
	"github.com/AleutianAI/honeypot/services/honeypot/callback"
	"github.com/AleutianAI/honeypot/services/honeypot/config"
	"github.com/AleutianAI/honeypot/services/honeypot/conversation"
	"github.com/AleutianAI/honeypot/services/honeypot/detector"
	"github.com/AleutianAI/honeypot/services/honeypot/handlers"
	"github.com/AleutianAI/honeypot/services/honeypot/middleware"
	"github.com/AleutianAI/honeypot/services/honeypot/observability"
	"github.com/AleutianAI/honeypot/services/honeypot/routes"
	"github.com/AleutianAI/honeypot/services/honeypot/sessions"
	"github.com/AleutianAI/honeypot/services/honeypot/telemetry"
	"github.com/AleutianAI/honeypot/services/llm"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName     = "honeypot"
	shutdownTimeout = 10 * time.Second
)

func main() {
	envFile := flag.String("env", envOr("HONEYPOT_ENV_FILE", config.DefaultEnvFile), "dotenv settings file")
	flag.Parse()

	if err := run(*envFile); err != nil {
		slog.Error("Honeypot exited with error", "error", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	settings, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(settings.LogLevel),
		LogFile: settings.LogFile,
		Service: serviceName,
		JSON:    true,
		Output:  os.Stdout,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics()
	telCfg := telemetry.DefaultConfig()
	telCfg.ServiceName = serviceName
	telCfg.Registerer = metrics.Registry()
	shutdownTelemetry, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Error("Telemetry shutdown failed", "error", err)
		}
	}()

	classifierLLM, replyLLM, err := buildLLMClients(settings)
	if err != nil {
		return err
	}

	store, err := openStore(settings, logger.Slog())
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Session store close failed", "error", err)
		}
	}()

	settingsStore := config.NewStore(settings)
	manager := sessions.NewManager(store, settings.SessionTimeout())
	auth := extensions.NewAPIKeyProvider(settings.APIKey)
	audit := extensions.NewSlogAuditLogger(logger.Slog())
	limiter := middleware.NewRateLimiter(settings.RateLimitRPS, settings.RateLimitBurst)

	handler := handlers.NewHoneypotHandler(handlers.Deps{
		Sessions: manager,
		Detector: detector.New(detector.NewLLMClassifier(classifierLLM)),
		Replies:  conversation.NewResponder(replyLLM),
		Callback: callback.NewClient(settings.CallbackURL, settings.CallbackTimeout()),
		Settings: settingsStore,
		Metrics:  metrics,
		Audit:    audit,
	})

	gin.SetMode(gin.ReleaseMode)
	router := routes.NewRouter(routes.Options{
		Handler:        handler,
		Extensions:     extensions.DefaultOptions().WithAuth(auth).WithAudit(audit),
		RateLimiter:    limiter,
		Metrics:        metrics.Handler(),
		ServiceName:    serviceName,
		TrustedProxies: settings.TrustedProxyList(),
	})

	server := &http.Server{
		Addr:              settings.ListenAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler := sessions.NewScheduler(manager, metrics, sessions.SchedulerConfig{
		Interval: settings.CleanupInterval(),
	})

	watcher := config.NewWatcher(envFile, settingsStore, func(old, updated *config.Settings) {
		auth.SetKey(updated.APIKey)
		manager.SetTimeout(updated.SessionTimeout())
		limiter.SetLimits(updated.RateLimitRPS, updated.RateLimitBurst)
		if old.LogLevel != updated.LogLevel || old.LogFile != updated.LogFile {
			slog.Warn("Logging changes take effect after restart",
				"log_level", updated.LogLevel, "log_file", updated.LogFile)
		}
		slog.Info("Settings reloaded", "file", envFile)
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting honeypot API",
			"address", server.Addr,
			"llm_backend", settings.LLMBackend,
			"llm_model", settings.LLMModel,
			"openrouter", settings.UseOpenRouter(),
			"session_store", settings.SessionStore,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("Shutting down honeypot API")
		return server.Shutdown(sctx)
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		if err := watcher.Run(gctx); err != nil {
			slog.Warn("Settings watcher unavailable", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// buildLLMClients returns the classifier client and the reply client. Replies
// go through OpenRouter when an OpenRouter key is configured.
func buildLLMClients(s *config.Settings) (classifier, replies llm.LLMClient, err error) {
	classifier, err = llm.New(llm.Config{
		Backend: s.LLMBackend,
		Model:   s.LLMModel,
		BaseURL: s.OllamaBaseURL,
		Timeout: s.LLMTimeout(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("classifier llm: %w", err)
	}

	if !s.UseOpenRouter() {
		return classifier, classifier, nil
	}

	replies, err = llm.New(llm.Config{
		Backend: llm.BackendOpenRouter,
		Model:   s.OpenRouterModel,
		BaseURL: s.OpenRouterBaseURL,
		APIKey:  s.OpenRouterAPIKey,
		Timeout: s.LLMTimeout(),
		Referer: s.OpenRouterReferer,
		Title:   "Agentic Honeypot",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("openrouter llm: %w", err)
	}
	return classifier, replies, nil
}

func openStore(s *config.Settings, logger *slog.Logger) (sessions.Store, error) {
	switch s.SessionStore {
	case config.StoreBadger:
		store, err := sessions.OpenBadgerStore(sessions.BadgerConfig{
			Path:   s.BadgerDir,
			TTL:    s.SessionTimeout(),
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		slog.Info("Using persistent session store", "path", s.BadgerDir)
		return store, nil
	default:
		return sessions.NewMemoryStore(), nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
