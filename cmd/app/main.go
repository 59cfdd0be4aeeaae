package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chatmemory/internal/chatapi"
	"chatmemory/internal/config"
	"chatmemory/internal/httpserver"
	"chatmemory/internal/llm"
	"chatmemory/internal/memory"
	"chatmemory/internal/retry"
	"chatmemory/internal/storage"
	"chatmemory/internal/transport"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	httpClient := transport.NewHTTPClient(cfg.RequestTimeout, retry.Policy{MaxAttempts: cfg.Groq.MaxAttempts}, logger)

	var generator llm.Generator
	groqClient, err := llm.NewGroqClient(cfg.Groq, httpClient)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Warn("groq client not configured, /generate will return 503")
	case err != nil:
		logger.Error("failed to init groq client", slog.String("error", err.Error()))
	default:
		generator = groqClient
		logger.Info("groq client initialized", slog.String("model", cfg.Groq.Model))
	}

	var store storage.Store
	switch strings.ToLower(cfg.Storage.Type) {
	case "memory":
		store = storage.NewMemoryStore()
	default:
		sqliteStore, err := storage.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("failed to init sqlite store: %v", err)
		}
		store = sqliteStore
	}
	defer store.Close()

	conversations := llm.NewConversationService(llm.ConversationServiceConfig{
		Generator:         generator,
		ModelName:         cfg.Groq.Model,
		Store:             store,
		Cache:             memory.NewCache(cfg.SessionTimeout),
		DefaultMaxHistory: cfg.DefaultMaxHistory,
		Logger:            logger,
	})

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Logger: logger,
		API: chatapi.NewHandler(chatapi.HandlerDeps{
			Conversations: conversations,
			Logger:        logger,
		}),
		APIPrefix: cfg.APIPrefix,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	slogLevel := slog.LevelInfo
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
