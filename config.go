package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

const (
	formatText      = "text"
	formatTextShort = "text-short"
	formatJSON      = "json"

	policyAbort = "abort"
	policySkip  = "skip"
)

// config is the merged result of defaults, sigtop.yaml, SIGTOP_* environment
// variables and command flags.
type config struct {
	SignalDir   string `mapstructure:"signal-dir"`
	DBPath      string `mapstructure:"db-path"`
	Format      string `mapstructure:"format"`
	OnError     string `mapstructure:"on-error"`
	Incremental bool   `mapstructure:"incremental"`
	LogLevel    string `mapstructure:"log-level"`
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("signal-dir", defaultSignalDir())
	v.SetDefault("db-path", "")
	v.SetDefault("format", formatText)
	v.SetDefault("on-error", policyAbort)
	v.SetDefault("incremental", false)
	v.SetDefault("log-level", "warn")
}

func defaultSignalDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "Signal")
	}
	return "Signal"
}

// loadConfig reads the configuration into cfg. An explicit configFile must
// exist; the default sigtop.yaml is optional.
func loadConfig(v *viper.Viper, configFile string) (config, error) {
	setConfigDefaults(v)
	v.SetEnvPrefix("SIGTOP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("sigtop")
		v.SetConfigType("yaml")
		if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
			v.AddConfigPath(filepath.Join(dir, "sigtop"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "sigtop"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	switch c.Format {
	case formatText, formatTextShort, formatJSON:
	default:
		return fmt.Errorf("invalid format %q (want %s, %s or %s)", c.Format, formatText, formatTextShort, formatJSON)
	}
	switch c.OnError {
	case policyAbort, policySkip:
	default:
		return fmt.Errorf("invalid on-error policy %q (want %s or %s)", c.OnError, policyAbort, policySkip)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return nil
}

// databasePath returns db-path if set, otherwise the database inside the
// Signal directory.
func (c config) databasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.SignalDir, "sql", "db.sqlite")
}

func (c config) keyFilePath() string {
	return filepath.Join(c.SignalDir, "config.json")
}

// newLogger configures the default logger for level and returns it.
func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "sigtop"})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	log.SetDefault(logger)
	return logger
}
