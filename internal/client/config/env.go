package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by parseEnv.
const (
	EnvAPIURL         = "STORE_API_URL"
	EnvRequestTimeout = "STORE_REQUEST_TIMEOUT"
	EnvSyncTimeout    = "STORE_SYNC_TIMEOUT"
	EnvDatabasePath   = "STORE_DB_PATH"
	EnvLogFormat      = "STORE_LOG_FORMAT"
	EnvAppEnv         = "APP_ENV"
)

// parseEnv overlays Config with environment variables. A .env file in the
// working directory is loaded first if present; it never overrides
// variables that are already set.
//
// Durations use time.ParseDuration syntax ("5s", "1m30s"). Panics on an
// unparsable duration, like the other loaders.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	setString(&cfg.APIBaseURL, EnvAPIURL)
	setString(&cfg.DatabasePath, EnvDatabasePath)
	setString(&cfg.LogFormat, EnvLogFormat)
	setString(&cfg.Env, EnvAppEnv)
	setDuration(&cfg.RequestTimeout, EnvRequestTimeout)
	setDuration(&cfg.SyncTimeout, EnvSyncTimeout)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Errorf("%s: %w", key, err))
	}
	*dst = d
}
