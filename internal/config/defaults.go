package config

import "time"

// Default configuration values.
const (
	// Replay defaults.
	DefaultPausePoll = 100 * time.Millisecond
	DefaultDebounce  = 300 * time.Millisecond

	// Cron defaults.
	DefaultCronTick      = time.Second
	DefaultCatchupWindow = 5 * time.Minute

	DefaultNamePrefix = "Recording_"

	// Database defaults.
	DefaultDBPath           = "clickloop.db"
	DefaultCacheSize        = -16000 // 16MB
	DefaultBusyTimeout      = 5 * time.Second
	DefaultMaxOpenConns     = 1 // SQLite works best with single writer
	DefaultMaxIdleConns     = 1
	DefaultHistoryRetention = 30

	// Logging defaults.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"

	// Status server defaults.
	DefaultStatusAddr         = "127.0.0.1:8787"
	DefaultStatusMaxConns     = 64
	DefaultStatusReadTimeout  = 10 * time.Second
	DefaultStatusWriteTimeout = 10 * time.Second
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Replay: ReplayConfig{
			RepeatAll: false,
			PausePoll: DefaultPausePoll,
			Debounce:  DefaultDebounce,
		},
		Cron: CronConfig{
			Tick:          DefaultCronTick,
			Catchup:       false,
			CatchupWindow: DefaultCatchupWindow,
			OnBusy:        OnBusySkip,
			Execute:       true,
		},
		Recorder: RecorderConfig{
			NamePrefix: DefaultNamePrefix,
		},
		Database: DatabaseConfig{
			Path:                 DefaultDBPath,
			WALMode:              true,
			CacheSize:            DefaultCacheSize,
			BusyTimeout:          DefaultBusyTimeout,
			MaxOpenConns:         DefaultMaxOpenConns,
			MaxIdleConns:         DefaultMaxIdleConns,
			HistoryRetentionDays: DefaultHistoryRetention,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Status: StatusConfig{
			Enabled:        false,
			Addr:           DefaultStatusAddr,
			AllowedOrigins: []string{"localhost:*", "127.0.0.1:*"},
			MaxConnections: DefaultStatusMaxConns,
			ConnectLimit: RateLimitRule{
				Max:    30,
				Window: time.Minute,
			},
			ReadTimeout:  DefaultStatusReadTimeout,
			WriteTimeout: DefaultStatusWriteTimeout,
		},
	}
}
