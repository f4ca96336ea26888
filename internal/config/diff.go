package config

import (
	"strings"

	logx "tokenwatch/pkg/logx"
)

// liveSections are applied to the running process on reload. Changes to any
// other section only take effect after a restart.
var liveSections = map[string]bool{
	"logging":  true,
	"notifier": true,
}

// AppliedLive reports whether a section is applied without a restart.
func AppliedLive(section string) bool { return liveSections[section] }

// SummarizeConfigChange returns the changed sections and safe structured
// attrs for logging. Secrets are reported only as "<name>_set" booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 24)

	od, nd := oldCfg.Discovery, newCfg.Discovery
	if od.URL != nd.URL || od.Limit != nd.Limit || od.ResultPath != nd.ResultPath ||
		trim(od.Timeout) != trim(nd.Timeout) || trim(od.MinInterval) != trim(nd.MinInterval) ||
		od.APIKey != nd.APIKey {
		changed = append(changed, "discovery")
		attrs = append(attrs,
			logx.String("discovery.url", nd.URL),
			logx.Int("discovery.limit", nd.Limit),
			logx.String("discovery.min_interval", trim(nd.MinInterval)),
			logx.Bool("discovery.api_key_set", trim(nd.APIKey) != ""),
			logx.Bool("discovery.api_key_changed", od.APIKey != nd.APIKey),
		)
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.ChatID != nt.ChatID || ot.ThreadID != nt.ThreadID || ot.APIURL != nt.APIURL ||
		trim(ot.Timeout) != trim(nt.Timeout) || ot.Token != nt.Token {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.chat_id", nt.ChatID),
			logx.Int("telegram.thread_id", nt.ThreadID),
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
		)
	}

	if oldCfg.Monitor != newCfg.Monitor {
		changed = append(changed, "monitor")
		attrs = append(attrs,
			logx.String("monitor.interval", trim(newCfg.Monitor.Interval)),
			logx.String("monitor.suffix", newCfg.Monitor.Suffix),
			logx.Int("monitor.max_tracked", newCfg.Monitor.MaxTracked),
			logx.Float64("monitor.cleanup_chance", newCfg.Monitor.CleanupChance),
		)
	}

	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
			logx.String("notifier.send_timeout", trim(newCfg.Notifier.SendTimeout)),
			logx.Bool("notifier.disable_preview", newCfg.Notifier.DisablePreview),
			logx.String("notifier.timezone", trim(newCfg.Notifier.Timezone)),
		)
	}

	oh, nh := oldCfg.Health, newCfg.Health
	if oh.Addr != nh.Addr || trim(oh.ReadTimeout) != trim(nh.ReadTimeout) ||
		trim(oh.WriteTimeout) != trim(nh.WriteTimeout) || trim(oh.IdleTimeout) != trim(nh.IdleTimeout) ||
		oh.Pprof.Enabled != nh.Pprof.Enabled || oh.Pprof.Token != nh.Pprof.Token {
		changed = append(changed, "health")
		attrs = append(attrs,
			logx.String("health.addr", nh.Addr),
			logx.Bool("health.pprof_enabled", nh.Pprof.Enabled),
			logx.Bool("health.pprof_token_set", trim(nh.Pprof.Token) != ""),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", newCfg.Storage.Path),
		)
	}

	return changed, attrs
}

func trim(s string) string { return strings.TrimSpace(s) }
