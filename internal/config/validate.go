package config

import (
	"fmt"
	"strings"
	"time"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

func (e ValidationErrors) Unwrap() error {
	return ErrInvalidConfig
}

func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateReplay(&cfg.Replay)...)
	errs = append(errs, validateCron(&cfg.Cron)...)
	errs = append(errs, validateRecorder(&cfg.Recorder)...)
	errs = append(errs, validateDatabase(&cfg.Database)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateStatus(&cfg.Status)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateReplay(cfg *ReplayConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.PausePoll <= 0 {
		errs = append(errs, ValidationError{
			Field:   "replay.pause_poll",
			Message: "must be positive",
		})
	}

	if cfg.Debounce < 0 {
		errs = append(errs, ValidationError{
			Field:   "replay.debounce",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateCron(cfg *CronConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Tick <= 0 || cfg.Tick > time.Minute {
		errs = append(errs, ValidationError{
			Field:   "cron.tick",
			Message: "must be between 0 and 1m",
		})
	}

	if cfg.CatchupWindow < 0 {
		errs = append(errs, ValidationError{
			Field:   "cron.catchup_window",
			Message: "must be non-negative",
		})
	}

	switch cfg.OnBusy {
	case OnBusySkip, OnBusyWait:
	default:
		errs = append(errs, ValidationError{
			Field:   "cron.on_busy",
			Message: fmt.Sprintf("must be %q or %q", OnBusySkip, OnBusyWait),
		})
	}

	return errs
}

func validateRecorder(cfg *RecorderConfig) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(cfg.NamePrefix) == "" {
		errs = append(errs, ValidationError{
			Field:   "recorder.name_prefix",
			Message: "is required",
		})
	}

	return errs
}

func validateDatabase(cfg *DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "database.path",
			Message: "is required",
		})
	}

	if cfg.BusyTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "database.busy_timeout",
			Message: "must be non-negative",
		})
	}

	if cfg.MaxOpenConns < 1 {
		errs = append(errs, ValidationError{
			Field:   "database.max_open_conns",
			Message: "must be at least 1",
		})
	}

	if cfg.HistoryRetentionDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "database.history_retention_days",
			Message: "must be non-negative",
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Level] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be one of: trace, debug, info, warn, error",
		})
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Format] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be one of: json, console",
		})
	}

	return errs
}

func validateStatus(cfg *StatusConfig) ValidationErrors {
	var errs ValidationErrors

	if cfg.Enabled && cfg.Addr == "" {
		errs = append(errs, ValidationError{
			Field:   "status.addr",
			Message: "is required when the status server is enabled",
		})
	}

	if cfg.MaxConnections < 0 {
		errs = append(errs, ValidationError{
			Field:   "status.max_connections",
			Message: "must not be negative",
		})
	}

	if cfg.ConnectLimit.Max < 0 {
		errs = append(errs, ValidationError{
			Field:   "status.connect_limit.max",
			Message: "must not be negative",
		})
	}

	if cfg.ConnectLimit.Max > 0 && cfg.ConnectLimit.Window <= 0 {
		errs = append(errs, ValidationError{
			Field:   "status.connect_limit.window",
			Message: "must be positive when a connect limit is set",
		})
	}

	return errs
}
