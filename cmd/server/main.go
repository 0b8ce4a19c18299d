package main

import (
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/internal/api"
	"github.com/colloquy-ai/colloquy/internal/auth"
	"github.com/colloquy-ai/colloquy/internal/billing"
	"github.com/colloquy-ai/colloquy/internal/config"
	"github.com/colloquy-ai/colloquy/internal/db"
	"github.com/colloquy-ai/colloquy/internal/llm"
	"github.com/colloquy-ai/colloquy/internal/provider"
	"github.com/colloquy-ai/colloquy/internal/ratelimit"
	"github.com/colloquy-ai/colloquy/internal/usage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "colloquy.toml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load config",
			zap.Error(err),
			zap.String("path", configPath))
	}

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be configured")
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.Database.Path))
	}
	defer database.Close()

	// Register providers in priority order; exact model claims win over
	// the Ollama pattern fallback.
	registry := provider.NewRegistry(logger)
	if cfg.Providers.OpenAI.APIKey != "" {
		registry.Register(provider.NewOpenAI(cfg.Providers.OpenAI.BaseURL, cfg.Providers.OpenAI.APIKey))
	}
	if cfg.Providers.Anthropic.APIKey != "" {
		registry.Register(provider.NewAnthropic(cfg.Providers.Anthropic.BaseURL, cfg.Providers.Anthropic.APIKey))
	}
	registry.Register(provider.NewOllama(cfg.Providers.Ollama.BaseURL))

	recorder := usage.NewRecorder(database, logger)
	llmService := llm.New(registry, database, recorder, logger, cfg.StreamTimeout())

	titler, err := llm.NewTitler(cfg.Providers.TitleBaseURL, cfg.Providers.OpenAI.APIKey, cfg.Providers.TitleModel)
	if err != nil {
		logger.Fatal("failed to initialize title generator", zap.Error(err))
	}

	authService := auth.NewService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenLifetime)*time.Second)

	limiter := ratelimit.New(cfg.RateLimit.AnonymousPerMinute, cfg.RateLimit.AnonymousBurst)
	stop := make(chan struct{})
	defer close(stop)
	go limiter.EvictLoop(time.Minute, stop)

	var billingService api.Billing
	if cfg.Billing.StripeAPIKey != "" {
		b, err := billing.NewService(cfg.Billing.StripeAPIKey, cfg.Billing.WebhookSecret,
			cfg.Billing.SubscriptionPrice, cfg.Billing.SuccessURL, cfg.Billing.CancelURL,
			database, logger)
		if err != nil {
			logger.Fatal("failed to initialize billing", zap.Error(err))
		}
		billingService = b
	} else {
		logger.Warn("stripe not configured, billing endpoints disabled")
	}

	handler := api.NewHandler(database, llmService, titler, authService, recorder, billingService, limiter, logger)

	http.HandleFunc("/api/auth/register", handler.Register)
	http.HandleFunc("/api/auth/login", handler.Login)
	http.HandleFunc("/api/models", handler.ListModels)
	http.HandleFunc("/api/chat/stream", authService.OptionalAuth(handler.ChatStream))
	http.HandleFunc("/api/conversations", authService.OptionalAuth(handler.Conversations))
	http.HandleFunc("/api/messages", authService.OptionalAuth(handler.GetMessages))
	http.HandleFunc("/api/conversations/delete", authService.OptionalAuth(handler.DeleteConversation))
	http.HandleFunc("/api/conversations/update", authService.OptionalAuth(handler.UpdateConversation))
	http.HandleFunc("/api/usage", authService.RequireAuth(handler.GetUsage))
	http.HandleFunc("/api/billing/checkout", authService.RequireAuth(handler.CreateCheckout))
	http.HandleFunc("/api/billing/webhook", handler.BillingWebhook)

	logger.Info("Starting server", zap.String("addr", cfg.Server.ListenAddr))
	if err := http.ListenAndServe(cfg.Server.ListenAddr, nil); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
