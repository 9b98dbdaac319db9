package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadConfig(viper.New(), "")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Format != formatText || cfg.OnError != policyAbort || cfg.LogLevel != "warn" || cfg.Incremental {
		t.Fatalf("defaults: got=%+v", cfg)
	}
	if got, want := cfg.databasePath(), filepath.Join(cfg.SignalDir, "sql", "db.sqlite"); got != want {
		t.Fatalf("database path: got=%q want=%q", got, want)
	}
}

func TestLoadConfigFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("SIGTOP_ON_ERROR", "skip")
	if err := os.MkdirAll(filepath.Join(dir, "sigtop"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data := "signal-dir: /data/Signal\nformat: text-short\non-error: abort\nincremental: true\n"
	if err := os.WriteFile(filepath.Join(dir, "sigtop", "sigtop.yaml"), []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(viper.New(), "")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SignalDir != "/data/Signal" || cfg.Format != formatTextShort || !cfg.Incremental {
		t.Fatalf("file values: got=%+v", cfg)
	}
	if cfg.OnError != policySkip {
		t.Fatalf("environment should override file: got=%q want=%q", cfg.OnError, policySkip)
	}
	if got := cfg.keyFilePath(); got != "/data/Signal/config.json" {
		t.Fatalf("key file: got=%q", got)
	}
}

func TestLoadConfigExplicitFileMustExist(t *testing.T) {
	t.Parallel()

	_, err := loadConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("missing explicit config: got err=%v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := config{Format: formatJSON, OnError: policySkip, LogLevel: "debug"}
	if err := valid.validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}
	for _, cfg := range []config{
		{Format: "xml", OnError: policyAbort, LogLevel: "warn"},
		{Format: formatText, OnError: "retry", LogLevel: "warn"},
		{Format: formatText, OnError: policyAbort, LogLevel: "loud"},
	} {
		if err := cfg.validate(); err == nil {
			t.Fatalf("config %+v: expected validation error", cfg)
		}
	}
}

func TestDatabasePathOverride(t *testing.T) {
	t.Parallel()

	cfg := config{SignalDir: "/s", DBPath: "/tmp/plain.sqlite"}
	if got := cfg.databasePath(); got != "/tmp/plain.sqlite" {
		t.Fatalf("db path: got=%q", got)
	}
}
