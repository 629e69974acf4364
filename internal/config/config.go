package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string
	LogFormat   string
	APIToken    string
	BaseURL     string
	Timezone    string
	MaxUploadMB int
	Concurrency int

	SlackBotToken string
	SlackChannel  string
}

func Load() Config {
	return Config{
		Port:        envInt("CHATTXT_PORT", 8760),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		LogFormat:   envStr("CHATTXT_LOG_FORMAT", ""),
		APIToken:    envStr("CHATTXT_API_TOKEN", ""),
		BaseURL:     envStr("CHATTXT_BASE_URL", ""),
		Timezone:    envStr("CHATTXT_TIMEZONE", "Local"),
		MaxUploadMB: envInt("CHATTXT_MAX_UPLOAD_MB", 64),
		Concurrency: envInt("CHATTXT_CONCURRENCY", 4),

		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_CHANNEL", ""),
	}
}

// LogFormatOr returns CHATTXT_LOG_FORMAT, or fallback when it is unset.
func (c Config) LogFormatOr(fallback string) string {
	if c.LogFormat == "" {
		return fallback
	}
	return c.LogFormat
}

// MaxUploadBytes is the request body limit for uploads.
func (c Config) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 64 << 20
	}
	return int64(c.MaxUploadMB) << 20
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
