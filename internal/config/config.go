package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/et1613/chitchatproject-sub001/internal/utils"
)

// Config holds all application configuration.
type Config struct {
	AppName string
	AppPort string
	AppUrl  string
	DBUrl   string

	// ServerKey signs self-describing tokens; JWTSecret guards the
	// management API.
	ServerKey []byte
	JWTSecret []byte

	AccessTokenTTL time.Duration
	URLTokenTTL    time.Duration

	CacheSlidingTTL  time.Duration
	CacheAbsoluteTTL time.Duration
	CacheMaxItems    int
	MaxTokenUsage    int64

	CleanupInterval    time.Duration
	SweepBatchSize     int
	BlacklistRetention time.Duration
	ExpiryGrace        time.Duration

	SessionIdleThreshold time.Duration
	SendTimeout          time.Duration
}

const (
	AppName = "chitchat-session-service"

	DefaultAppPort = "8080"

	DefaultAccessTokenTTL       = 30 * 24 * time.Hour
	DefaultURLTokenTTL          = 7 * 24 * time.Hour
	DefaultCacheSlidingTTL      = 30 * time.Minute
	DefaultCacheAbsoluteTTL     = 1 * time.Hour
	DefaultCacheMaxItems        = 10000
	DefaultMaxTokenUsage        = 10000
	DefaultCleanupInterval      = 1 * time.Hour
	DefaultSweepBatchSize       = 500
	DefaultBlacklistRetention   = 7 * 24 * time.Hour
	DefaultExpiryGrace          = 24 * time.Hour
	DefaultSessionIdleThreshold = 30 * time.Minute
	DefaultSendTimeout          = 5 * time.Second
)

// LoadConfig reads environment variables (plus a local .env outside
// production) and returns a *Config. Missing required values are fatal.
func LoadConfig() *Config {
	if os.Getenv("APP_ENV") != "production" {
		// best effort; a missing .env just means plain env vars
		_ = godotenv.Load()
	}

	utils.Logger.Info("Loading config for app: ", AppName)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		utils.Logger.Fatal("DATABASE_URL env var is missing")
	}
	serverKey := os.Getenv("SERVER_KEY")
	if serverKey == "" {
		utils.Logger.Fatal("SERVER_KEY env var is missing")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		utils.Logger.Fatal("JWT_SECRET env var is missing")
	}

	appPort := os.Getenv("APP_PORT")
	if appPort == "" {
		appPort = DefaultAppPort
	}

	return &Config{
		AppName: AppName,
		AppPort: appPort,
		AppUrl:  os.Getenv("APP_URL"),
		DBUrl:   dbURL,

		ServerKey: []byte(serverKey),
		JWTSecret: []byte(jwtSecret),

		AccessTokenTTL: durationEnv("ACCESS_TOKEN_TTL", DefaultAccessTokenTTL),
		URLTokenTTL:    durationEnv("URL_TOKEN_TTL", DefaultURLTokenTTL),

		CacheSlidingTTL:  durationEnv("CACHE_SLIDING_TTL", DefaultCacheSlidingTTL),
		CacheAbsoluteTTL: durationEnv("CACHE_ABSOLUTE_TTL", DefaultCacheAbsoluteTTL),
		CacheMaxItems:    intEnv("CACHE_MAX_ITEMS", DefaultCacheMaxItems),
		MaxTokenUsage:    int64(intEnv("MAX_TOKEN_USAGE", DefaultMaxTokenUsage)),

		CleanupInterval:    durationEnv("CLEANUP_INTERVAL", DefaultCleanupInterval),
		SweepBatchSize:     intEnv("SWEEP_BATCH_SIZE", DefaultSweepBatchSize),
		BlacklistRetention: durationEnv("BLACKLIST_RETENTION", DefaultBlacklistRetention),
		ExpiryGrace:        durationEnv("EXPIRY_GRACE", DefaultExpiryGrace),

		SessionIdleThreshold: durationEnv("SESSION_IDLE_THRESHOLD", DefaultSessionIdleThreshold),
		SendTimeout:          durationEnv("SEND_TIMEOUT", DefaultSendTimeout),
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		utils.Logger.Warnf("Invalid %s '%s', using default %v", key, raw, fallback)
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		utils.Logger.Warnf("Invalid %s '%s', using default %d", key, raw, fallback)
		return fallback
	}
	return n
}
