package config

// Config is the full tokenwatch configuration.
//
// Durations are Go duration strings ("10s", "1500ms"). Every field has a
// default (see Default); a config file only needs the keys it changes.
type Config struct {
	Discovery DiscoveryConfig `json:"discovery"`
	Telegram  TelegramConfig  `json:"telegram"`
	Monitor   MonitorConfig   `json:"monitor"`
	Notifier  NotifierConfig  `json:"notifier"`
	Health    HealthConfig    `json:"health"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
}

// DiscoveryConfig points at the new-token feed.
type DiscoveryConfig struct {
	URL         string `json:"url"`
	APIKey      string `json:"api_key"` // secret; never logged
	Limit       int    `json:"limit"`
	Timeout     string `json:"timeout"`
	MinInterval string `json:"min_interval"`
	// ResultPath is a gjson path to the array when the feed wraps it (e.g. "result").
	ResultPath string `json:"result_path,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token"` // secret; never logged
	ChatID   string `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	APIURL   string `json:"api_url,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

type MonitorConfig struct {
	Interval   string `json:"interval"`
	Suffix     string `json:"suffix"`
	MaxTracked int    `json:"max_tracked"`
	// CleanupChance in (0,1) makes seen-set cleanup probabilistic per cycle.
	// 0 runs it every cycle.
	CleanupChance float64 `json:"cleanup_chance,omitempty"`
}

type NotifierConfig struct {
	RatePerSec     int    `json:"rate_per_sec"`
	SendTimeout    string `json:"send_timeout"`
	DisablePreview bool   `json:"disable_preview,omitempty"`
	TimeLayout     string `json:"time_layout,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
}

type HealthConfig struct {
	Addr         string      `json:"addr"`
	ReadTimeout  string      `json:"read_timeout,omitempty"`
	WriteTimeout string      `json:"write_timeout,omitempty"`
	IdleTimeout  string      `json:"idle_timeout,omitempty"`
	Pprof        PprofConfig `json:"pprof,omitempty"`
}

// PprofConfig mounts profiling on the health listener.
// Set a token whenever the listener is reachable from outside the host.
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"` // secret; never logged
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	Format   string          `json:"format,omitempty"` // console | json
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram sends warnings to an ops chat through the alert bot.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     string `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig controls the alert audit log.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/tokenwatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

// Default returns the built-in configuration. Secrets are empty and must
// come from the config file or the environment.
func Default() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			URL:         "https://deep-index.moralis.io/api/v2/solana/pumpfun/new",
			Limit:       10,
			Timeout:     "10s",
			MinInterval: "2s",
		},
		Telegram: TelegramConfig{
			APIURL:  "https://api.telegram.org",
			Timeout: "10s",
		},
		Monitor: MonitorConfig{
			Interval:   "10s",
			Suffix:     "BLV",
			MaxTracked: 1000,
		},
		Notifier: NotifierConfig{
			RatePerSec:  3,
			SendTimeout: "10s",
		},
		Health: HealthConfig{
			Addr: ":10000",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Storage: StorageConfig{
			Driver: "none",
		},
	}
}

// Redacted returns a copy with secrets masked, for printing.
func (c *Config) Redacted() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Discovery.APIKey = mask(cp.Discovery.APIKey)
	cp.Telegram.Token = mask(cp.Telegram.Token)
	cp.Health.Pprof.Token = mask(cp.Health.Pprof.Token)
	return &cp
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
