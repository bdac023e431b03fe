package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config keeps bot configuration read from the environment.
type Config struct {
	BotToken        string
	DatabaseURL     string
	PollInterval    time.Duration
	DispatchTimeout time.Duration
	SessionTTL      time.Duration
	DBRetryAttempts int
	DBRetryDelay    time.Duration
}

// Load reads configuration from environment variables, optionally seeded
// from a .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		return nil, errors.New("BOT_TOKEN is not set")
	}

	return &Config{
		BotToken:        token,
		DatabaseURL:     databaseURL(),
		PollInterval:    time.Duration(intEnv("POLL_INTERVAL", 60)) * time.Second,
		DispatchTimeout: time.Duration(intEnv("DISPATCH_TIMEOUT", 10)) * time.Second,
		SessionTTL:      time.Duration(intEnv("SESSION_TTL", 15)) * time.Minute,
		DBRetryAttempts: intEnv("DB_RETRY_ATTEMPTS", 3),
		DBRetryDelay:    time.Duration(intEnv("DB_RETRY_DELAY", 2)) * time.Second,
	}, nil
}

// databaseURL resolves the single source of truth for the store connection:
// DATABASE_URL wins, discrete DB_* variables are a development fallback.
func databaseURL() string {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(envDefault("DB_USER", "postgres"), envDefault("DB_PASSWORD", "password")),
		Host:   fmt.Sprintf("%s:%s", envDefault("DB_HOST", "localhost"), envDefault("DB_PORT", "5432")),
		Path:   envDefault("DB_NAME", "medications_bot"),
	}
	return u.String()
}

func envDefault(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func intEnv(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}
