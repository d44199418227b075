package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/ProfitPredictor/models"
)

const DefaultInferenceURL = "https://thisisnemo-aii.hf.space/predict"

// Config holds all application configuration
type Config struct {
	InferenceURL     string        `env:"INFERENCE_URL"`
	ProfitKeys       []string      `env:"INFERENCE_PROFIT_KEYS" envDefault:"predicted_profit,predicted_predicted_profit"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds
	RequestsPerSec   int           `env:"REQUESTS_PER_SEC" envDefault:"5"`
	MaxRetries       int           `env:"INFERENCE_MAX_RETRIES" envDefault:"0"`
	RiskRule         string        `env:"RISK_RULE"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	Port             int           `env:"PORT" envDefault:"8080"`
	AuthURL          string        `env:"AUTH_URL"`
	AuthAnonKey      string        `env:"AUTH_ANON_KEY"`
	DB               DBConfig
	ProfileCacheSize int           `env:"PROFILE_CACHE_SIZE" envDefault:"1024"`
	ProfileCacheTTL  time.Duration `env:"PROFILE_CACHE_TTL" envDefault:"300"` // seconds
	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN"`
}

// DBConfig holds PostgreSQL connection parameters for the profile store
type DBConfig struct {
	Host     string `env:"DB_HOST"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// Enabled reports whether a database host was configured
func (c DBConfig) Enabled() bool {
	return c.Host != ""
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.InferenceURL = getEnvWithDefault("INFERENCE_URL", DefaultInferenceURL)
	cfg.ProfitKeys = getEnvListWithDefault("INFERENCE_PROFIT_KEYS", models.DefaultProfitKeys)
	cfg.RequestTimeout = time.Duration(getEnvIntWithDefault("REQUEST_TIMEOUT", 30)) * time.Second
	cfg.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SEC", 5)
	cfg.MaxRetries = getEnvIntWithDefault("INFERENCE_MAX_RETRIES", 0)
	cfg.RiskRule = getEnvWithDefault("RISK_RULE", models.DefaultRiskRule)
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.Port = getEnvIntWithDefault("PORT", 8080)
	cfg.AuthURL = strings.TrimRight(os.Getenv("AUTH_URL"), "/")
	cfg.AuthAnonKey = os.Getenv("AUTH_ANON_KEY")
	cfg.DB = DBConfig{
		Host:     os.Getenv("DB_HOST"),
		Port:     getEnvWithDefault("DB_PORT", "5432"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     os.Getenv("DB_NAME"),
		SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
	}
	cfg.ProfileCacheSize = getEnvIntWithDefault("PROFILE_CACHE_SIZE", 1024)
	cfg.ProfileCacheTTL = time.Duration(getEnvIntWithDefault("PROFILE_CACHE_TTL", 300)) * time.Second
	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &cfg, nil
}

// SetupLogger configures the global zerolog logger for console output
func SetupLogger(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(lvl)
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvListWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return out
}
