package config

import (
	"os"
	"strconv"
	"time"

	"cinebook/internal/cache"
	"cinebook/internal/database"
	"cinebook/internal/external"
	"cinebook/internal/messaging"
)

// Config holds the full application configuration, loaded from environment
// variables with sane defaults for local development.
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	PprofEnabled bool
	PprofPort    string

	// Lock governs seat-lock TTLs handed out on reservation.
	Lock LockConfig

	// Reaper governs the background lock-expiry sweep.
	Reaper ReaperConfig

	Database      database.Config
	NATS          messaging.Config
	Elasticsearch ElasticsearchConfig
	Valkey        cache.Config
	Payment       external.GatewayConfig
}

// LockConfig bounds the TTL a reservation may ask for.
type LockConfig struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

// ReaperConfig controls the sweep cadence and batch bound. A batch is the
// most locks one tick will process; leftovers wait for the next tick.
type ReaperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		PprofEnabled: getEnv("PPROF_ENABLED", "false") == "true",
		PprofPort:    getEnv("PPROF_PORT", "6060"),

		Lock: LockConfig{
			DefaultTTL: time.Duration(getEnvInt("LOCK_TTL_SEC", 300)) * time.Second,
			MaxTTL:     time.Duration(getEnvInt("LOCK_MAX_TTL_SEC", 900)) * time.Second,
		},

		Reaper: ReaperConfig{
			Interval:  time.Duration(getEnvInt("REAPER_INTERVAL_SEC", 30)) * time.Second,
			BatchSize: getEnvInt("REAPER_BATCH_SIZE", 100),
		},

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "cinebook"),
			Password:           getEnv("DB_PASSWORD", "cinebook123"),
			DBName:             getEnv("DB_NAME", "movie_booking"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "cinebook"),
			ClientID:  getEnv("NATS_CLIENT_ID", "cinebook-api"),
		},

		Elasticsearch: LoadElasticsearchConfig(),

		Valkey: cache.Config{
			Addr:         getEnv("VALKEY_ADDR", "localhost:6379"),
			Password:     os.Getenv("VALKEY_PASSWORD"),
			UsersHashKey: getEnv("VALKEY_USERS_HASH_KEY", "users:auth"),
		},

		Payment: external.GatewayConfig{
			BaseURL:         getEnv("PAYMENT_GATEWAY_URL", "http://localhost:9090"),
			MerchantID:      getEnv("PAYMENT_MERCHANT_ID", ""),
			Secret:          getEnv("PAYMENT_SECRET", ""),
			NotificationURL: getEnv("PAYMENT_NOTIFICATION_URL", ""),
			Timeout:         time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 30)) * time.Second,
		},
	}
}

// getEnv reads an environment variable or falls back to a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt reads an integer environment variable.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
