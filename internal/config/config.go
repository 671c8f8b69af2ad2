package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultAnalyzerURL    = "https://api.openai.com/v1"
	DefaultAnalyzerModel  = "gpt-4o-mini"
	DefaultMaxTokens      = 100
	DefaultTemperature    = 0.7
	DefaultMaxUploadBytes = 16 << 20
	DefaultQueueCapacity  = 64
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Telegram TelegramConfig `toml:"telegram"`
	Analyzer AnalyzerConfig `toml:"analyzer"`
	Upload   UploadConfig   `toml:"upload"`
	Queue    QueueConfig    `toml:"queue"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// TelegramConfig carries the bot credential and the externally reachable
// base URL the webhook is registered under. Both come from the environment
// (TELEGRAM_TOKEN, WEBHOOK_URL) and are required.
type TelegramConfig struct {
	Token      string `toml:"-" validate:"required"`
	WebhookURL string `toml:"-" validate:"required,url"`
}

type AnalyzerConfig struct {
	APIKey         string  `toml:"-" validate:"required"`
	BaseURL        string  `toml:"base_url" validate:"url"`
	Model          string  `toml:"model"`
	MaxTokens      int     `toml:"max_tokens" validate:"gt=0"`
	Temperature    float64 `toml:"temperature" validate:"gte=0,lte=2"`
	TimeoutSeconds int     `toml:"timeout_seconds" validate:"gt=0"`
}

type UploadConfig struct {
	MaxBytes int64 `toml:"max_bytes" validate:"gt=0"`
}

type QueueConfig struct {
	Capacity int `toml:"capacity" validate:"gt=0"`
}

type PipelineConfig struct {
	RequestTimeoutSeconds int `toml:"request_timeout_seconds" validate:"gt=0"`
}

// Load reads the TOML config at path (a missing file is fine, defaults apply),
// then fills credentials from the environment. Callers must Validate before use.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Analyzer: AnalyzerConfig{
			BaseURL:        DefaultAnalyzerURL,
			Model:          DefaultAnalyzerModel,
			MaxTokens:      DefaultMaxTokens,
			Temperature:    DefaultTemperature,
			TimeoutSeconds: 30,
		},
		Upload: UploadConfig{
			MaxBytes: DefaultMaxUploadBytes,
		},
		Queue: QueueConfig{
			Capacity: DefaultQueueCapacity,
		},
		Pipeline: PipelineConfig{
			RequestTimeoutSeconds: 60,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	cfg.Analyzer.APIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	cfg.Telegram.WebhookURL = os.Getenv("WEBHOOK_URL")

	return cfg, nil
}

// Validate checks the assembled configuration. The process is expected to
// fail fast on the returned error.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
