package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/ProfitPredictor/internal/api/inference"
	"github.com/Alias1177/ProfitPredictor/internal/config"
	"github.com/Alias1177/ProfitPredictor/internal/database"
	"github.com/Alias1177/ProfitPredictor/internal/metrics"
	"github.com/Alias1177/ProfitPredictor/internal/pipeline"
	"github.com/Alias1177/ProfitPredictor/internal/profile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.SetupLogger(cfg.LogLevel)
	logger := log.With().Str("component", "tgbot").Logger()

	if cfg.TelegramBotToken == "" {
		logger.Fatal().Msg("TELEGRAM_BOT_TOKEN not set in environment")
	}

	engine, err := metrics.NewEngine(cfg.RiskRule)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid risk rule")
	}
	predictor := inference.NewClient(inference.ClientOptions{
		URL:            cfg.InferenceURL,
		ProfitKeys:     cfg.ProfitKeys,
		RequestTimeout: cfg.RequestTimeout,
		RequestsPerSec: cfg.RequestsPerSec,
		MaxRetries:     cfg.MaxRetries,
	})

	var profiles *profile.Service
	if cfg.DB.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := database.New(ctx, database.ConnectionParams{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			DBName:   cfg.DB.Name,
			SSLMode:  cfg.DB.SSLMode,
		})
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer db.Close()
		profiles = profile.NewService(db, cfg.ProfileCacheSize, cfg.ProfileCacheTTL)
	}

	// Initialize Telegram bot
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}
	logger.Info().Str("username", api.Self.UserName).Msg("Authorized on Telegram")

	bot := NewBot(api, pipeline.New(predictor, engine), profiles, cfg.RequestTimeout*2, logger)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := api.GetUpdatesChan(updateConfig)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case update := <-updates:
			bot.HandleUpdate(update)
		case <-sigChan:
			logger.Info().Msg("Shutting down bot...")
			api.StopReceivingUpdates()
			bot.Wait()
			return
		}
	}
}
