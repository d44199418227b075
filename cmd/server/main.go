package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/ProfitPredictor/internal/api/auth"
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

	if cfg.AuthURL == "" {
		log.Fatal().Msg("AUTH_URL is required")
	}

	engine, err := metrics.NewEngine(cfg.RiskRule)
	if err != nil {
		log.Fatal().Err(err).Str("rule", cfg.RiskRule).Msg("Invalid risk rule")
	}

	predictor := inference.NewClient(inference.ClientOptions{
		URL:            cfg.InferenceURL,
		ProfitKeys:     cfg.ProfitKeys,
		RequestTimeout: cfg.RequestTimeout,
		RequestsPerSec: cfg.RequestsPerSec,
		MaxRetries:     cfg.MaxRetries,
	})
	sessions := auth.NewClient(auth.ClientOptions{
		BaseURL:        cfg.AuthURL,
		AnonKey:        cfg.AuthAnonKey,
		RequestTimeout: cfg.RequestTimeout,
	})

	var prof profiles
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
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		prof = profile.NewService(db, cfg.ProfileCacheSize, cfg.ProfileCacheTTL)
		log.Info().Str("host", cfg.DB.Host).Msg("Profile store connected")
	} else {
		log.Warn().Msg("DB_HOST not set, profile nicknames disabled")
	}

	server := NewServer(pipeline.New(predictor, engine), sessions, prof)

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Str("inference_url", cfg.InferenceURL).Msg("Server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server stopped")
}
