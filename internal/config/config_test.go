package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Database.Path != DefaultDBPath {
		t.Errorf("expected db path %s, got %s", DefaultDBPath, cfg.Database.Path)
	}

	if cfg.Cron.OnBusy != OnBusySkip {
		t.Errorf("expected on_busy %q, got %q", OnBusySkip, cfg.Cron.OnBusy)
	}

	if cfg.Replay.PausePoll != DefaultPausePoll {
		t.Errorf("expected pause poll %v, got %v", DefaultPausePoll, cfg.Replay.PausePoll)
	}

	if cfg.Cron.Catchup {
		t.Error("expected catch-up to be disabled by default")
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_InvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"on_busy", func(c *Config) { c.Cron.OnBusy = "queue" }, "cron.on_busy"},
		{"tick zero", func(c *Config) { c.Cron.Tick = 0 }, "cron.tick"},
		{"tick too long", func(c *Config) { c.Cron.Tick = 2 * time.Minute }, "cron.tick"},
		{"pause poll", func(c *Config) { c.Replay.PausePoll = 0 }, "replay.pause_poll"},
		{"debounce", func(c *Config) { c.Replay.Debounce = -time.Second }, "replay.debounce"},
		{"prefix", func(c *Config) { c.Recorder.NamePrefix = " " }, "recorder.name_prefix"},
		{"db path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"status addr", func(c *Config) { c.Status.Enabled = true; c.Status.Addr = "" }, "status.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}

			var errs ValidationErrors
			if !errors.As(err, &errs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}

			found := false
			for _, e := range errs {
				if e.Field == tt.field {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error for %s, got %v", tt.field, errs)
			}
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "clickloop.yaml")

	configContent := `
replay:
  repeat_all: true
  pause_poll: 250ms
cron:
  catchup: true
  on_busy: wait
database:
  path: ${CLICKLOOP_TEST_DB}
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("CLICKLOOP_TEST_DB", "/tmp/from-env.db")

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if !cfg.Replay.RepeatAll {
		t.Error("expected repeat_all true")
	}
	if cfg.Replay.PausePoll != 250*time.Millisecond {
		t.Errorf("expected pause_poll 250ms, got %v", cfg.Replay.PausePoll)
	}
	if !cfg.Cron.Catchup || cfg.Cron.OnBusy != OnBusyWait {
		t.Errorf("unexpected cron config: %+v", cfg.Cron)
	}
	if cfg.Cron.Tick != DefaultCronTick {
		t.Errorf("expected default tick, got %v", cfg.Cron.Tick)
	}
	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("expected env-expanded db path, got %s", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "clickloop.yaml")
	if err := os.WriteFile(configPath, []byte("cron:\n  on_busy: skip\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("CLICKLOOP_CRON_ON_BUSY", "wait")

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Cron.OnBusy != OnBusyWait {
		t.Errorf("expected env override to wait, got %s", cfg.Cron.OnBusy)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "clickloop.yaml")
	if err := os.WriteFile(configPath, []byte("cron:\n  on_busy: later\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := LoadFromFile(configPath); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestGetConfigSchema(t *testing.T) {
	cfg := Default()
	cfg.Cron.OnBusy = OnBusyWait

	schema := GetConfigSchema(cfg, "/etc/clickloop/clickloop.yaml")
	sections, ok := schema["sections"].(map[string]ConfigSectionMeta)
	if !ok {
		t.Fatalf("unexpected sections type %T", schema["sections"])
	}

	onBusy := sections["cron"].Fields["on_busy"]
	if onBusy.Current != OnBusyWait || onBusy.Default != OnBusySkip {
		t.Errorf("unexpected on_busy meta: %+v", onBusy)
	}
	if schema["config_path"] != "/etc/clickloop/clickloop.yaml" {
		t.Errorf("unexpected config path %v", schema["config_path"])
	}
}
