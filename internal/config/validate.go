package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	logx "tokenwatch/pkg/logx"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// MinInterval is the shortest accepted monitor interval.
const MinInterval = time.Second

// Validate checks cfg and reports every problem it finds at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	checkDuration := func(path, raw string) time.Duration {
		d, err := ParseDurationField(path, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
		}
		return d
	}

	// discovery
	if err := checkURL(cfg.Discovery.URL); err != nil {
		fail("discovery.url: %v", err)
	}
	if strings.TrimSpace(cfg.Discovery.APIKey) == "" {
		fail("discovery.api_key is required (or set MORALIS_API)")
	}
	if cfg.Discovery.Limit <= 0 {
		fail("discovery.limit must be > 0")
	}
	checkDuration("discovery.timeout", cfg.Discovery.Timeout)
	checkDuration("discovery.min_interval", cfg.Discovery.MinInterval)

	// telegram
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		fail("telegram.token is required (or set TELEGRAM_TOKEN)")
	}
	if strings.TrimSpace(cfg.Telegram.ChatID) == "" {
		fail("telegram.chat_id is required (or set CHAT_ID)")
	}
	if cfg.Telegram.APIURL != "" {
		if err := checkURL(cfg.Telegram.APIURL); err != nil {
			fail("telegram.api_url: %v", err)
		}
	}
	checkDuration("telegram.timeout", cfg.Telegram.Timeout)

	// monitor
	if strings.TrimSpace(cfg.Monitor.Suffix) == "" {
		fail("monitor.suffix must not be empty")
	}
	if cfg.Monitor.MaxTracked < 2 {
		fail("monitor.max_tracked must be >= 2")
	}
	if cfg.Monitor.CleanupChance < 0 || cfg.Monitor.CleanupChance > 1 {
		fail("monitor.cleanup_chance must be within [0,1]")
	}
	if d := checkDuration("monitor.interval", cfg.Monitor.Interval); d > 0 && d < MinInterval {
		fail("monitor.interval must be >= %s", MinInterval)
	}

	// notifier
	if cfg.Notifier.RatePerSec < 0 {
		fail("notifier.rate_per_sec must be >= 0")
	}
	checkDuration("notifier.send_timeout", cfg.Notifier.SendTimeout)
	if tz := strings.TrimSpace(cfg.Notifier.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			fail("notifier.timezone: %v", err)
		}
	}

	// health
	if strings.TrimSpace(cfg.Health.Addr) == "" {
		fail("health.addr must not be empty")
	}
	checkDuration("health.read_timeout", cfg.Health.ReadTimeout)
	checkDuration("health.write_timeout", cfg.Health.WriteTimeout)
	checkDuration("health.idle_timeout", cfg.Health.IdleTimeout)

	// logging
	if !logx.ValidLevel(cfg.Logging.Level) {
		fail("logging.level %q is not a level", cfg.Logging.Level)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "", "console", "json":
	default:
		fail("logging.format must be console or json")
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		fail("logging.file.path is required when the file sink is enabled")
	}
	if t := cfg.Logging.Telegram; t.Enabled {
		if strings.TrimSpace(t.ChatID) == "" && strings.TrimSpace(cfg.Telegram.ChatID) == "" {
			fail("logging.telegram.chat_id is required")
		}
		if t.MinLevel != "" && !logx.ValidLevel(t.MinLevel) {
			fail("logging.telegram.min_level %q is not a level", t.MinLevel)
		}
	}

	// storage
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			fail("storage.path is required for driver %q", cfg.Storage.Driver)
		}
	default:
		fail("storage.driver %q is unknown (none, file, sqlite)", cfg.Storage.Driver)
	}
	checkDuration("storage.busy_timeout", cfg.Storage.BusyTimeout)

	return errors.Join(errs...)
}

func checkURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is empty")
	}
	return nil
}
