package main

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/xaenox/relay-bot/internal/bot"
	"github.com/xaenox/relay-bot/internal/delivery"
	"github.com/xaenox/relay-bot/internal/server"
	"github.com/xaenox/relay-bot/internal/storage"
	"github.com/xaenox/relay-bot/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// A local .env is optional.
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	var store storage.Storage
	switch cfg.Storage.Backend {
	case "memory":
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage(logger)
	case "postgres":
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Storage.Database.Host,
			Port:     cfg.Storage.Database.Port,
			User:     cfg.Storage.Database.User,
			Password: cfg.Storage.Database.Password,
			DBName:   cfg.Storage.Database.DBName,
			SSLMode:  cfg.Storage.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	default:
		logger.Info("Using file storage", zap.String("path", cfg.Storage.FilePath))
		store, err = storage.NewFileStorage(cfg.Storage.FilePath, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	deliveryCfg := delivery.Config{
		MaxAttempts:    cfg.Delivery.MaxAttempts,
		RetryBackoff:   cfg.Delivery.RetryBackoff,
		BroadcastDelay: cfg.Delivery.BroadcastDelay,
		AttemptTimeout: cfg.Delivery.AttemptTimeout,
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, tgbotapi.APIEndpoint,
		delivery.NewHTTPClient(deliveryCfg))
	if err != nil {
		logger.Fatal("Failed to create Telegram client", zap.Error(err))
	}

	client := delivery.NewClient(api, deliveryCfg, logger)

	relay := bot.New(bot.Config{OperatorID: cfg.Telegram.OperatorID}, client, store, logger)

	srv := server.New(relay, server.Config{
		Address:       cfg.Server.Address,
		WebhookSecret: cfg.Telegram.WebhookSecret,
	}, logger)

	logger.Info("Starting webhook server", zap.String("address", cfg.Server.Address))
	if err := srv.Run(); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
