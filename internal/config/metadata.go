package config

import (
	"time"
)

// ConfigFieldType represents the type of a configuration field.
type ConfigFieldType string

const (
	FieldTypeString      ConfigFieldType = "string"
	FieldTypeInt         ConfigFieldType = "int"
	FieldTypeBool        ConfigFieldType = "bool"
	FieldTypeDuration    ConfigFieldType = "duration"
	FieldTypeStringArray ConfigFieldType = "stringArray"
)

// ConfigFieldMeta holds metadata about a configuration field.
type ConfigFieldMeta struct {
	Type        ConfigFieldType `json:"type" yaml:"type"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any             `json:"default,omitempty" yaml:"default,omitempty"`
	Current     any             `json:"current,omitempty" yaml:"current,omitempty"`
	Options     []string        `json:"options,omitempty" yaml:"options,omitempty"`
}

// ConfigSectionMeta holds metadata about a configuration section.
type ConfigSectionMeta struct {
	Name        string                     `json:"name" yaml:"name"`
	Description string                     `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      map[string]ConfigFieldMeta `json:"fields" yaml:"fields"`
}

// GetConfigSchema returns every configuration section with its defaults and
// the values currently in effect.
func GetConfigSchema(current *Config, configPath string) map[string]any {
	defaults := Default()

	sections := map[string]ConfigSectionMeta{
		"replay": {
			Name:        "Replay",
			Description: "Cyclic replay of the list set",
			Fields: map[string]ConfigFieldMeta{
				"repeat_all": {
					Type:        FieldTypeBool,
					Description: "Repeat full cycles until stopped",
					Default:     defaults.Replay.RepeatAll,
					Current:     current.Replay.RepeatAll,
				},
				"pause_poll": {
					Type:        FieldTypeDuration,
					Description: "How often a paused replay checks for resume",
					Default:     formatDuration(defaults.Replay.PausePoll),
					Current:     formatDuration(current.Replay.PausePoll),
				},
				"debounce": {
					Type:        FieldTypeDuration,
					Description: "Debounce window for interactive controls",
					Default:     formatDuration(defaults.Replay.Debounce),
					Current:     formatDuration(current.Replay.Debounce),
				},
			},
		},
		"cron": {
			Name:        "Cron",
			Description: "Time-of-day job scheduler",
			Fields: map[string]ConfigFieldMeta{
				"tick": {
					Type:        FieldTypeDuration,
					Description: "Scheduler tick",
					Default:     formatDuration(defaults.Cron.Tick),
					Current:     formatDuration(current.Cron.Tick),
				},
				"catchup": {
					Type:        FieldTypeBool,
					Description: "Fire jobs whose tick arrived late",
					Default:     defaults.Cron.Catchup,
					Current:     current.Cron.Catchup,
				},
				"catchup_window": {
					Type:        FieldTypeDuration,
					Description: "Startup recovery window for missed fires",
					Default:     formatDuration(defaults.Cron.CatchupWindow),
					Current:     formatDuration(current.Cron.CatchupWindow),
				},
				"on_busy": {
					Type:        FieldTypeString,
					Description: "Policy when a job is due while another replay runs",
					Default:     defaults.Cron.OnBusy,
					Current:     current.Cron.OnBusy,
					Options:     []string{OnBusySkip, OnBusyWait},
				},
				"execute": {
					Type:        FieldTypeBool,
					Description: "Inject actions; false only logs them",
					Default:     defaults.Cron.Execute,
					Current:     current.Cron.Execute,
				},
			},
		},
		"recorder": {
			Name:        "Recorder",
			Description: "Input recording",
			Fields: map[string]ConfigFieldMeta{
				"name_prefix": {
					Type:        FieldTypeString,
					Description: "Prefix of generated recording names",
					Default:     defaults.Recorder.NamePrefix,
					Current:     current.Recorder.NamePrefix,
				},
			},
		},
		"database": {
			Name:        "Database",
			Description: "SQLite run history and scheduler state",
			Fields: map[string]ConfigFieldMeta{
				"path": {
					Type:        FieldTypeString,
					Description: "Path to SQLite database file",
					Default:     defaults.Database.Path,
					Current:     current.Database.Path,
				},
				"wal_mode": {
					Type:        FieldTypeBool,
					Description: "Enable WAL journal mode",
					Default:     defaults.Database.WALMode,
					Current:     current.Database.WALMode,
				},
				"busy_timeout": {
					Type:        FieldTypeDuration,
					Description: "SQLite busy timeout",
					Default:     formatDuration(defaults.Database.BusyTimeout),
					Current:     formatDuration(current.Database.BusyTimeout),
				},
				"history_retention_days": {
					Type:        FieldTypeInt,
					Description: "Days of run history to keep (0 keeps all)",
					Default:     defaults.Database.HistoryRetentionDays,
					Current:     current.Database.HistoryRetentionDays,
				},
			},
		},
		"logging": {
			Name:        "Logging",
			Description: "Log output",
			Fields: map[string]ConfigFieldMeta{
				"level": {
					Type:    FieldTypeString,
					Default: defaults.Logging.Level,
					Current: current.Logging.Level,
					Options: []string{"trace", "debug", "info", "warn", "error"},
				},
				"format": {
					Type:    FieldTypeString,
					Default: defaults.Logging.Format,
					Current: current.Logging.Format,
					Options: []string{"console", "json"},
				},
			},
		},
		"status": {
			Name:        "Status",
			Description: "Status and metrics HTTP server",
			Fields: map[string]ConfigFieldMeta{
				"enabled": {
					Type:    FieldTypeBool,
					Default: defaults.Status.Enabled,
					Current: current.Status.Enabled,
				},
				"addr": {
					Type:    FieldTypeString,
					Default: defaults.Status.Addr,
					Current: current.Status.Addr,
				},
				"allowed_origins": {
					Type:        FieldTypeStringArray,
					Description: "Origins allowed to open the event websocket",
					Default:     defaults.Status.AllowedOrigins,
					Current:     current.Status.AllowedOrigins,
				},
				"max_connections": {
					Type:    FieldTypeInt,
					Default: defaults.Status.MaxConnections,
					Current: current.Status.MaxConnections,
				},
				"connect_limit.max": {
					Type:        FieldTypeInt,
					Description: "Websocket connection attempts per client address and window",
					Default:     defaults.Status.ConnectLimit.Max,
					Current:     current.Status.ConnectLimit.Max,
				},
				"connect_limit.window": {
					Type:    FieldTypeDuration,
					Default: formatDuration(defaults.Status.ConnectLimit.Window),
					Current: formatDuration(current.Status.ConnectLimit.Window),
				},
				"read_timeout": {
					Type:    FieldTypeDuration,
					Default: formatDuration(defaults.Status.ReadTimeout),
					Current: formatDuration(current.Status.ReadTimeout),
				},
				"write_timeout": {
					Type:    FieldTypeDuration,
					Default: formatDuration(defaults.Status.WriteTimeout),
					Current: formatDuration(current.Status.WriteTimeout),
				},
			},
		},
	}

	return map[string]any{
		"config_path": configPath,
		"sections":    sections,
	}
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	return d.String()
}
