// Standalone webhook server for running the gateway outside Lambda,
// e.g. locally against the Graph API test number.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"legalmeet-agent/internal/config"
	"legalmeet-agent/internal/integrations/openai"
	"legalmeet-agent/internal/integrations/paramstore"
	"legalmeet-agent/internal/integrations/whatsapp"
	"legalmeet-agent/internal/store"
	"legalmeet-agent/internal/usecase"
	"legalmeet-agent/internal/webhook"
)

const evictInterval = 10 * time.Minute

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	logger := slog.Default()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}

	// Secrets come from the config file here; the same resolution
	// path the Lambda build uses for SSM.
	secrets := paramstore.Static{
		"openai-api-key": cfg.OpenAI.APIKey,
		"whatsapp-token": cfg.WhatsApp.Token,
	}

	convStore, err := newStore(cfg)
	if err != nil {
		slog.Error("failed to create conversation store", "err", err)
		os.Exit(1)
	}
	defer func() { _ = convStore.Close() }()

	openaiClient, err := openai.NewClient(secrets, "openai-api-key", openai.WithModel(cfg.OpenAI.Model))
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}
	whatsappClient, err := whatsapp.NewClient(secrets, "whatsapp-token", cfg.WhatsApp.PhoneNumberID)
	if err != nil {
		slog.Error("failed to create WhatsApp client", "err", err)
		os.Exit(1)
	}

	router, err := usecase.NewRouter(convStore, openaiClient, whatsappClient, openaiClient, whatsappClient, cfg.App.BaseURL, logger)
	if err != nil {
		slog.Error("failed to create conversation router", "err", err)
		os.Exit(1)
	}

	srv, err := webhook.NewServer(router, cfg.WhatsApp.VerifyToken, logger)
	if err != nil {
		slog.Error("failed to create webhook server", "err", err)
		os.Exit(1)
	}

	// Janitor: in-memory conversations only go away via this sweep.
	go func() {
		ticker := time.NewTicker(evictInterval)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := router.EvictStale(context.Background(), time.Now(), cfg.Store.ConversationTTL); err != nil {
				slog.Warn("eviction sweep failed", "err", err)
			}
		}
	}()

	mux := http.NewServeMux()
	srv.Register(mux)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("listening", "addr", cfg.Server.Addr, "store", cfg.Store.Driver)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		return store.NewRedis(client, cfg.Store.ConversationTTL)
	default:
		return store.NewMemory(), nil
	}
}
