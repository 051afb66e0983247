package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	RuntimeHTTP   = "http"
	RuntimeLambda = "lambda"

	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderYandex    = "yandex"

	defaultEnvFile = ".env"
)

type Config struct {
	Port    int    `env:"PORT" envDefault:"3456"`
	Runtime string `env:"RUNTIME" envDefault:"http"`

	// Completion backend. Empty LLM_BASE_URL and LLM_MODEL and a zero
	// MAX_TOKENS leave the choice to the selected provider.
	LLMProvider     string        `env:"LLM_PROVIDER" envDefault:"anthropic"`
	LLMAPIKey       string        `env:"LLM_API_KEY"`
	AnthropicAPIKey string        `env:"ANTHROPIC_API_KEY"`
	LLMAPIKeyParam  string        `env:"LLM_API_KEY_PARAM"`
	LLMBaseURL      string        `env:"LLM_BASE_URL"`
	LLMModel        string        `env:"LLM_MODEL"`
	MaxTokens       int           `env:"MAX_TOKENS"`
	LLMTimeout      time.Duration `env:"LLM_TIMEOUT" envDefault:"7s"`
	YandexFolderID  string        `env:"YANDEX_FOLDER_ID"`
	SystemPrompt    string        `env:"SYSTEM_PROMPT"`

	// Webhook
	VapiSecret string `env:"VAPI_SECRET"`

	// Sessions
	MaxTurns             int           `env:"MAX_TURNS" envDefault:"40"`
	SessionIdleTTL       time.Duration `env:"SESSION_IDLE_TTL" envDefault:"2h"`
	SessionSweepSchedule string        `env:"SESSION_SWEEP_SCHEDULE" envDefault:"@every 5m"`

	// Archive
	CallArchiveTable string `env:"CALL_ARCHIVE_TABLE"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the optional env file named by ENV_FILE (default .env) and then
// parses the process environment. Variables already set win over the file.
func Load() (*Config, error) {
	file := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if file == "" {
		file = defaultEnvFile
	}
	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", file, err)
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg, opts); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	c.Runtime = strings.ToLower(strings.TrimSpace(c.Runtime))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LLMModel = strings.TrimSpace(c.LLMModel)
	c.LLMBaseURL = strings.TrimSpace(c.LLMBaseURL)
	if strings.TrimSpace(c.LLMAPIKey) == "" {
		c.LLMAPIKey = strings.TrimSpace(c.AnthropicAPIKey)
	}
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case ProviderAnthropic, ProviderOpenAI, ProviderYandex:
	default:
		return fmt.Errorf("config: unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.LLMProvider == ProviderYandex && strings.TrimSpace(c.YandexFolderID) == "" {
		return errors.New("config: YANDEX_FOLDER_ID is required for the yandex provider")
	}
	switch c.Runtime {
	case RuntimeHTTP, RuntimeLambda:
	default:
		return fmt.Errorf("config: unsupported RUNTIME %q", c.Runtime)
	}
	if c.Runtime == RuntimeHTTP && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("config: MAX_TOKENS must not be negative, got %d", c.MaxTokens)
	}
	if c.MaxTurns <= 0 {
		return fmt.Errorf("config: MAX_TURNS must be positive, got %d", c.MaxTurns)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("config: LLM_TIMEOUT must be positive, got %s", c.LLMTimeout)
	}
	if c.SessionIdleTTL < 0 {
		return fmt.Errorf("config: SESSION_IDLE_TTL must not be negative, got %s", c.SessionIdleTTL)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

// RunSweeper reports whether idle sessions are evicted on a schedule. Only
// the HTTP runtime has a shutdown path that stops the sweeper.
func (c *Config) RunSweeper() bool {
	return c.Runtime == RuntimeHTTP && c.SessionIdleTTL > 0
}

// Addr is the listen address for the HTTP runtime.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unsupported LOG_LEVEL %q", s)
	}
}
