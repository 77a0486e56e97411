// Package config loads runtime settings from the environment and an optional dotenv file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type UIMode string

const (
	ModeWeb      UIMode = "web"
	ModeTUI      UIMode = "tui"
	ModeTelegram UIMode = "telegram"
)

type Config struct {
	// Search backend
	SearchBackendURL  string        `env:"SEARCH_BACKEND_URL" envDefault:"http://localhost:8000"`
	SearchHTTPTimeout time.Duration `env:"SEARCH_HTTP_TIMEOUT" envDefault:"30s"`

	// Front-end
	UIMode           UIMode        `env:"UI_MODE" envDefault:"web"`
	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN"`
	WelcomeMessage   string        `env:"WELCOME_MESSAGE"`
	NoWelcome        bool          `env:"NO_WELCOME" envDefault:"false"`
	SessionIdleTTL   time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Hot reload
	EnvFile     string `env:"ENV_FILE" envDefault:".env"`
	ConfigWatch bool   `env:"CONFIG_WATCH" envDefault:"false"`

	// processEnv is the environment as it was before any dotenv file was loaded.
	processEnv map[string]string
}

// Load reads envFile into the process environment (existing variables win)
// and parses the result. A missing envFile is not an error.
func Load(envFile string) (*Config, error) {
	processEnv := environ()
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	cfg, err := parse(env.Options{})
	if err != nil {
		return nil, err
	}
	cfg.processEnv = processEnv
	if cfg.EnvFile == "" {
		cfg.EnvFile = envFile
	}
	return cfg, nil
}

// New parses the process environment.
func New() (*Config, error) {
	cfg, err := parse(env.Options{})
	if err != nil {
		return nil, err
	}
	cfg.processEnv = environ()
	return cfg, nil
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.UIMode {
	case ModeWeb, ModeTUI:
	case ModeTelegram:
		if strings.TrimSpace(c.TelegramBotToken) == "" {
			return errors.New("TELEGRAM_BOT_TOKEN is required in telegram mode")
		}
	default:
		return fmt.Errorf("unknown UI_MODE %q (want web, tui or telegram)", c.UIMode)
	}
	if c.SearchHTTPTimeout < 0 {
		return errors.New("SEARCH_HTTP_TIMEOUT must not be negative")
	}
	return nil
}

// Welcome returns the greeting for new sessions, empty when disabled.
func (c *Config) Welcome(fallback string) string {
	if c.NoWelcome {
		return ""
	}
	if c.WelcomeMessage != "" {
		return c.WelcomeMessage
	}
	return fallback
}

// ReadBackendURL re-reads the dotenv file at path and returns the resulting
// backend address. Variables exported in the process environment win over
// the file, as they do in Load.
func (c *Config) ReadBackendURL(path string) (string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	merged := make(map[string]string, len(values)+len(c.processEnv))
	for k, v := range values {
		merged[k] = v
	}
	for k, v := range c.processEnv {
		merged[k] = v
	}

	cfg, err := parse(env.Options{Environment: merged})
	if err != nil {
		return "", err
	}
	return cfg.SearchBackendURL, nil
}

func environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}
