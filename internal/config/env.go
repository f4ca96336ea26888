package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// envOverlay lists the environment variables tokenwatch honours. Intervals
// are milliseconds, as the deployment platforms set them.
type envOverlay struct {
	APIKey        string `env:"MORALIS_API"`
	DiscoveryURL  string `env:"DISCOVERY_URL"`
	APILimit      int    `env:"API_LIMIT"`
	MinIntervalMS int64  `env:"MIN_API_INTERVAL"`

	TelegramToken  string `env:"TELEGRAM_TOKEN"`
	ChatID         string `env:"CHAT_ID"`
	TelegramAPIURL string `env:"TELEGRAM_API_URL"`

	CheckIntervalMS int64  `env:"CHECK_INTERVAL"`
	Suffix          string `env:"TOKEN_SUFFIX"`
	MaxTracked      int    `env:"MAX_TRACKED_TOKENS"`

	Port     string `env:"PORT"`
	LogLevel string `env:"LOG_LEVEL"`
}

// LoadDotEnv reads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays set environment variables onto cfg.
func applyEnv(cfg *Config) error {
	var env envOverlay
	if err := envdecode.Decode(&env); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("env: %w", err)
	}

	setStr(&cfg.Discovery.APIKey, env.APIKey)
	setStr(&cfg.Discovery.URL, env.DiscoveryURL)
	if env.APILimit != 0 {
		cfg.Discovery.Limit = env.APILimit
	}
	if env.MinIntervalMS != 0 {
		cfg.Discovery.MinInterval = millis(env.MinIntervalMS)
	}

	setStr(&cfg.Telegram.Token, env.TelegramToken)
	setStr(&cfg.Telegram.ChatID, env.ChatID)
	setStr(&cfg.Telegram.APIURL, env.TelegramAPIURL)

	if env.CheckIntervalMS != 0 {
		cfg.Monitor.Interval = millis(env.CheckIntervalMS)
	}
	setStr(&cfg.Monitor.Suffix, env.Suffix)
	if env.MaxTracked != 0 {
		cfg.Monitor.MaxTracked = env.MaxTracked
	}

	if p := strings.TrimSpace(env.Port); p != "" {
		cfg.Health.Addr = ":" + strings.TrimPrefix(p, ":")
	}
	setStr(&cfg.Logging.Level, env.LogLevel)
	return nil
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func millis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
