package app

import (
	"fmt"
	"strings"
	"time"

	"tokenwatch/internal/config"
	"tokenwatch/internal/discovery"
	"tokenwatch/internal/health"
	"tokenwatch/internal/monitor"
	"tokenwatch/internal/notifier"
	"tokenwatch/internal/storage"
	"tokenwatch/internal/transport/telegram"
	logx "tokenwatch/pkg/logx"
)

// The mappers below turn the file/env shaped config into component configs.
// They expect a config that already passed config.Validate.

func mapLoggingConfig(cfg *config.Config) logx.Config {
	lt := cfg.Logging.Telegram
	chatID := strings.TrimSpace(lt.ChatID)
	if chatID == "" {
		chatID = strings.TrimSpace(cfg.Telegram.ChatID)
	}
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		Format:  cfg.Logging.Format,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    lt.Enabled,
			ChatID:     chatID,
			ThreadID:   lt.ThreadID,
			MinLevel:   lt.MinLevel,
			RatePerSec: lt.RatePerSec,
		},
	}
}

func mapTelegramConfig(cfg *config.Config) telegram.Config {
	return telegram.Config{
		Token:   cfg.Telegram.Token,
		APIURL:  cfg.Telegram.APIURL,
		Timeout: config.Duration(cfg.Telegram.Timeout, telegram.DefaultTimeout),
	}
}

func mapDiscoveryConfig(cfg *config.Config) (discovery.Config, time.Duration) {
	return discovery.Config{
		URL:        cfg.Discovery.URL,
		APIKey:     cfg.Discovery.APIKey,
		Timeout:    config.Duration(cfg.Discovery.Timeout, discovery.DefaultTimeout),
		ResultPath: cfg.Discovery.ResultPath,
	}, config.Duration(cfg.Discovery.MinInterval, 0)
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	nc := notifier.Config{
		ChatID:         cfg.Telegram.ChatID,
		ThreadID:       cfg.Telegram.ThreadID,
		Suffix:         cfg.Monitor.Suffix,
		RatePerSec:     cfg.Notifier.RatePerSec,
		SendTimeout:    config.Duration(cfg.Notifier.SendTimeout, notifier.DefaultSendTimeout),
		DisablePreview: cfg.Notifier.DisablePreview,
		TimeLayout:     cfg.Notifier.TimeLayout,
	}
	if tz := strings.TrimSpace(cfg.Notifier.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return notifier.Config{}, fmt.Errorf("notifier.timezone: %w", err)
		}
		nc.Location = loc
	}
	return nc, nil
}

func mapMonitorConfig(cfg *config.Config) (monitor.Config, time.Duration) {
	return monitor.Config{
		Suffix:        cfg.Monitor.Suffix,
		Limit:         cfg.Discovery.Limit,
		CleanupChance: cfg.Monitor.CleanupChance,
	}, config.Duration(cfg.Monitor.Interval, monitor.DefaultInterval)
}

func mapHealthConfig(cfg *config.Config) health.Config {
	h := cfg.Health
	return health.Config{
		Addr:         h.Addr,
		ReadTimeout:  config.Duration(h.ReadTimeout, 0),
		WriteTimeout: config.Duration(h.WriteTimeout, 0),
		IdleTimeout:  config.Duration(h.IdleTimeout, 0),
		Pprof: health.PprofConfig{
			Enabled: h.Pprof.Enabled,
			Token:   h.Pprof.Token,
		},
	}
}

func mapStorageConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: config.Duration(cfg.Storage.BusyTimeout, time.Second),
	}
}
