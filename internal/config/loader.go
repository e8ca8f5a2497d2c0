package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

const envPrefix = "CLICKLOOP"

type LoadOptions struct {
	ConfigFile string
	EnvPrefix  string
	Defaults   *Config
}

func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := opts.Defaults
	if defaults == nil {
		defaults = Default()
	}
	setViperDefaults(v, defaults)

	if opts.EnvPrefix == "" {
		opts.EnvPrefix = envPrefix
	}
	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("clickloop")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/clickloop")
		v.AddConfigPath("/etc/clickloop")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	expandEnvInConfig(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadFromFile(path string) (*Config, error) {
	return Load(LoadOptions{ConfigFile: path})
}

func setViperDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("replay.repeat_all", cfg.Replay.RepeatAll)
	v.SetDefault("replay.pause_poll", cfg.Replay.PausePoll)
	v.SetDefault("replay.debounce", cfg.Replay.Debounce)

	v.SetDefault("cron.tick", cfg.Cron.Tick)
	v.SetDefault("cron.catchup", cfg.Cron.Catchup)
	v.SetDefault("cron.catchup_window", cfg.Cron.CatchupWindow)
	v.SetDefault("cron.on_busy", cfg.Cron.OnBusy)
	v.SetDefault("cron.execute", cfg.Cron.Execute)

	v.SetDefault("recorder.name_prefix", cfg.Recorder.NamePrefix)

	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.wal_mode", cfg.Database.WALMode)
	v.SetDefault("database.cache_size", cfg.Database.CacheSize)
	v.SetDefault("database.busy_timeout", cfg.Database.BusyTimeout)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", cfg.Database.MaxIdleConns)
	v.SetDefault("database.history_retention_days", cfg.Database.HistoryRetentionDays)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.caller", cfg.Logging.Caller)

	v.SetDefault("status.enabled", cfg.Status.Enabled)
	v.SetDefault("status.addr", cfg.Status.Addr)
	v.SetDefault("status.allowed_origins", cfg.Status.AllowedOrigins)
	v.SetDefault("status.max_connections", cfg.Status.MaxConnections)
	v.SetDefault("status.connect_limit.max", cfg.Status.ConnectLimit.Max)
	v.SetDefault("status.connect_limit.window", cfg.Status.ConnectLimit.Window)
	v.SetDefault("status.read_timeout", cfg.Status.ReadTimeout)
	v.SetDefault("status.write_timeout", cfg.Status.WriteTimeout)
}

func expandEnvInConfig(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envVar := val[2 : len(val)-1]
			if envVal := os.Getenv(envVar); envVal != "" {
				v.Set(key, envVal)
			}
		}
	}
}

// ConfigFilePath resolves the config file that Load would read.
func ConfigFilePath(customPath string) (string, error) {
	if customPath != "" {
		absPath, err := filepath.Abs(customPath)
		if err != nil {
			return "", fmt.Errorf("resolving config path: %w", err)
		}
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, absPath)
		}
		return absPath, nil
	}

	searchPaths := []string{
		"clickloop.yaml",
		"clickloop.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "clickloop", "clickloop.yaml"),
		"/etc/clickloop/clickloop.yaml",
	}

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", ErrConfigNotFound
}
