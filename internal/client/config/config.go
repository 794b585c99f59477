package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/storefront/internal/logging"
)

// Config holds runtime settings for the storefront client.
//
// Fields:
//   - APIBaseURL: base URL of the REST API, e.g. "https://shop.example/api".
//   - RequestTimeout: per-request HTTP timeout.
//   - SyncTimeout: budget for one background mirror call (including a token
//     refresh and replay).
//   - DatabasePath: SQLite file holding the session and the cart.
//   - LogFormat: "text", "json" or "zap".
//   - Env: "development" or "production"; selects the zap preset.
type Config struct {
	APIBaseURL     string        `validate:"required,url"`
	RequestTimeout time.Duration `validate:"gt=0"`
	SyncTimeout    time.Duration `validate:"gt=0"`
	DatabasePath   string        `validate:"required"`
	LogFormat      string        `validate:"oneof=text json zap"`
	Env            string        `validate:"oneof=development production"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8000/api"
	c.RequestTimeout = 10 * time.Second
	c.SyncTimeout = 15 * time.Second
	c.DatabasePath = "storefront.db"
	c.LogFormat = logging.FormatText
	c.Env = "development"
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment (and a .env file), JSON (if present) and command-line
// flags (if present). Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
