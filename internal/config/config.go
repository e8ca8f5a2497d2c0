// Package config provides configuration management for clickloop.
package config

import (
	"time"
)

// Config is the root configuration structure for clickloop.
type Config struct {
	Replay   ReplayConfig   `mapstructure:"replay"`
	Cron     CronConfig     `mapstructure:"cron"`
	Recorder RecorderConfig `mapstructure:"recorder"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Status   StatusConfig   `mapstructure:"status"`
}

// ReplayConfig holds cyclic replay settings.
type ReplayConfig struct {
	// Repeat full cycles until stopped
	RepeatAll bool `mapstructure:"repeat_all"`

	// How often a paused replay checks for resume
	PausePoll time.Duration `mapstructure:"pause_poll"`

	// Debounce window applied to interactive controls
	Debounce time.Duration `mapstructure:"debounce"`
}

// CronOnBusy values.
const (
	OnBusySkip = "skip"
	OnBusyWait = "wait"
)

// CronConfig holds time-of-day scheduler settings.
type CronConfig struct {
	// Scheduler tick
	Tick time.Duration `mapstructure:"tick"`

	// Fire jobs whose tick arrived late within the scheduled minute
	Catchup bool `mapstructure:"catchup"`

	// How far back startup recovery looks for a missed fire
	CatchupWindow time.Duration `mapstructure:"catchup_window"`

	// What to do when a job is due while another replay runs (skip, wait)
	OnBusy string `mapstructure:"on_busy"`

	// Inject actions; false only logs what would be played
	Execute bool `mapstructure:"execute"`
}

// RecorderConfig holds recording settings.
type RecorderConfig struct {
	NamePrefix string `mapstructure:"name_prefix"`
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string `mapstructure:"path"`

	// Enable WAL mode (recommended)
	WALMode bool `mapstructure:"wal_mode"`

	// Cache size in KB (negative for KB, positive for pages)
	CacheSize int `mapstructure:"cache_size"`

	// Busy timeout
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`

	// Maximum open connections
	MaxOpenConns int `mapstructure:"max_open_conns"`

	// Maximum idle connections
	MaxIdleConns int `mapstructure:"max_idle_conns"`

	// Days of run history to keep; 0 keeps everything
	HistoryRetentionDays int `mapstructure:"history_retention_days"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (trace, debug, info, warn, error)
	Level string `mapstructure:"level"`

	// Log format (json, console)
	Format string `mapstructure:"format"`

	// Include caller info
	Caller bool `mapstructure:"caller"`
}

// StatusConfig holds the optional status server settings.
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`

	// Origins allowed to open the event websocket
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// Maximum concurrent websocket clients; 0 means unlimited
	MaxConnections int `mapstructure:"max_connections"`

	// Websocket connection attempts allowed per client address
	ConnectLimit RateLimitRule `mapstructure:"connect_limit"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RateLimitRule allows Max requests per Window. Max 0 disables the limit.
type RateLimitRule struct {
	Max    int           `mapstructure:"max"`
	Window time.Duration `mapstructure:"window"`
}
