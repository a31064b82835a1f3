package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finanzen/internal/amqp"
	"finanzen/internal/auth"
	"finanzen/internal/cli"
	"finanzen/internal/config"
	apphttp "finanzen/internal/http"
	"finanzen/internal/log"
	"finanzen/internal/narrative"
	"finanzen/internal/services"
	"finanzen/internal/session"
	"finanzen/internal/sheets"
	gsheet "finanzen/internal/sheets/google"
	mem "finanzen/internal/sheets/memory"
)

const maxSessions = 10000

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	completer, err := narrative.New(ctx, narrative.Config{
		Provider: cfg.NarrativeProvider,
		APIKey:   cfg.GeminiAPIKey,
		Model:    narrativeModel(cfg),
		Endpoint: narrativeEndpoint(cfg),
		Timeout:  cfg.NarrativeTimeout,
	})
	if err != nil {
		logger.Error("Failed to initialize narrative provider", log.FieldError, err, log.FieldProvider, cfg.NarrativeProvider)
		os.Exit(1)
	}

	var reports sheets.Reports
	switch cfg.ReportsBackend {
	case "memory":
		reports = mem.New()
	default:
		reports = gsheet.NewReportClient()
	}

	var (
		repo      services.AnalysisRepository
		history   apphttp.HistoryStore
		publisher services.SyncPublisher
	)
	if cfg.HistoryEnabled() {
		sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		defer sqliteRepo.Close()
		repo, history = sqliteRepo, sqliteRepo

		if cfg.AMQPURL != "" {
			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				// Analyses stay pending and the worker's sweep picks them up.
				logger.Warn("AMQP unavailable, history sync will rely on the periodic sweep", log.FieldError, err)
			} else {
				defer client.Close()
				publisher = client
			}
		}
	} else {
		logger.Info("History disabled - no SQLITE_DB_PATH provided")
	}

	var provider *auth.Provider
	if cfg.GoogleLoginEnabled() {
		provider, err = auth.NewProvider(auth.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			StateSecret:  []byte(cfg.SessionSecret),
		})
		if err != nil {
			logger.Error("Failed to initialize Google login", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("Google login disabled - no GOOGLE_CLIENT_ID provided")
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:                 ":" + cfg.Port,
		Logger:               logger,
		Analysis:             services.NewAnalysisService(completer, repo, publisher, reports),
		Sessions:             session.NewStore(maxSessions, cfg.SessionTTL, cfg.SecureCookies),
		Auth:                 provider,
		History:              history,
		AnalyzeRatePerMinute: cfg.AnalyzeRatePerMinute,
	})
	srv.MaxHeaderBytes = 1 << 16

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting finanzen server",
		"port", cfg.Port,
		log.FieldProvider, cfg.NarrativeProvider,
		"reports_backend", cfg.ReportsBackend,
		"history", cfg.HistoryEnabled(),
		"google_login", provider != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	<-stopped
	logger.Info("Server stopped gracefully")
}

func narrativeModel(cfg *config.Config) string {
	if cfg.NarrativeProvider == "ollama" {
		return cfg.OllamaModel
	}
	return cfg.GeminiModel
}

func narrativeEndpoint(cfg *config.Config) string {
	if cfg.NarrativeProvider == "ollama" {
		return cfg.OllamaURL
	}
	return ""
}
