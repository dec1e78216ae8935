// apps/go-server/internal/config/config.go
//
// Environment configuration for the Duo Decoder server.
// main loads .env (godotenv) first, then calls Load. Unset or malformed
// values fall back to defaults with a warning; Validate rejects combinations
// the server cannot run with.

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/duodecoder/apps/go-server/internal/game"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Provider backends.
const (
	ProviderHTTP  = "http"
	ProviderLocal = "local"
)

// Config holds every tunable the server reads from the environment.
type Config struct {
	Port     string
	LogLevel string

	Store  string // sqlite | memory
	DBPath string

	JWTSecret     string
	JWTExpiryDays int
	ClientOrigin  string
	SecureCookies bool

	Provider        string // http | local
	ProviderURL     string
	ProviderAPIKey  string
	ProviderModel   string
	ProviderTimeout time.Duration

	RoundTimeLimit time.Duration
	MaxRounds      int

	RateLimitRPS   float64
	RateLimitBurst int

	WordsFile string
}

// Load reads the environment.
func Load() Config {
	return Config{
		Port:     getEnv("PORT", "5175"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Store:  strings.ToLower(getEnv("STORE", StoreSQLite)),
		DBPath: getEnv("DB_PATH", "./data/duodecoder.db"),

		JWTSecret:     getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiryDays: getEnvInt("JWT_EXPIRES_DAYS", 14),
		ClientOrigin:  getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		SecureCookies: getEnv("NODE_ENV", "") == "production",

		Provider:        strings.ToLower(getEnv("PROVIDER", ProviderLocal)),
		ProviderURL:     getEnv("PROVIDER_URL", "https://generativelanguage.googleapis.com"),
		ProviderAPIKey:  getEnv("PROVIDER_API_KEY", ""),
		ProviderModel:   getEnv("PROVIDER_MODEL", "gemini-2.0-flash"),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 8*time.Second),

		RoundTimeLimit: getEnvDuration("ROUND_TIME_LIMIT", game.DefaultTimeLimit),
		MaxRounds:      getEnvInt("MAX_ROUNDS", game.DefaultMaxRounds),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 20),

		WordsFile: getEnv("WORDS_FILE", ""),
	}
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreSQLite, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %s or %s, got %q", StoreSQLite, StoreMemory, c.Store))
	}
	switch c.Provider {
	case ProviderLocal:
	case ProviderHTTP:
		if c.ProviderAPIKey == "" {
			errs = append(errs, errors.New("PROVIDER=http needs PROVIDER_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("PROVIDER must be %s or %s, got %q", ProviderHTTP, ProviderLocal, c.Provider))
	}
	if c.RoundTimeLimit < time.Second {
		errs = append(errs, fmt.Errorf("ROUND_TIME_LIMIT %v is under one second", c.RoundTimeLimit))
	}
	if c.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("MAX_ROUNDS must be positive, got %d", c.MaxRounds))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("rate limit %v/s burst %d", c.RateLimitRPS, c.RateLimitBurst))
	}
	return errors.Join(errs...)
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getEnvInt reads an int from the environment or returns a fallback.
func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Warn().Str("key", key).Err(err).Int("default", fallback).Msg("invalid int, using default")
		return fallback
	}
	return i
}

func getEnvFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		log.Warn().Str("key", key).Err(err).Float64("default", fallback).Msg("invalid number, using default")
		return fallback
	}
	return f
}

// getEnvDuration accepts Go durations ("45s") or bare seconds ("45").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Warn().Str("key", key).Err(err).Dur("default", fallback).Msg("invalid duration, using default")
		return fallback
	}
	return d
}
