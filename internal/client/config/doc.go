// Package config loads runtime configuration for the storefront client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables, with an optional .env file loaded through
//     godotenv (see parseEnv).
//  3. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   API base URL
//	-t int      request timeout (seconds)
//	-d string   local database file
//
// # Environment
//
//	STORE_API_URL, STORE_REQUEST_TIMEOUT, STORE_SYNC_TIMEOUT,
//	STORE_DB_PATH, STORE_LOG_FORMAT, APP_ENV
//
// # JSON schema
//
// Timeouts use timex.Duration, so values can be either strings like "10s"
// or integer nanoseconds:
//
//	{
//	  "api_base_url": "https://shop.example/api",
//	  "request_timeout": "10s",
//	  "sync_timeout": "15s",
//	  "database_path": "storefront.db",
//	  "log_format": "zap",
//	  "env": "production"
//	}
//
// Call (*Config).Validate after loading.
package config
