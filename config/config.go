// Copyright 2024 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"github.com/stratastor/logger"
	"github.com/stratastor/usbtrigger/internal/constants"
	"github.com/stratastor/usbtrigger/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	instance   *Config
	once       sync.Once
	mu         sync.RWMutex
	configPath string // Tracks where the config was loaded from
)

type Config struct {
	Server struct {
		Port      int  `mapstructure:"port"      yaml:"port"`
		Daemonize bool `mapstructure:"daemonize" yaml:"daemonize"`
	} `mapstructure:"server" yaml:"server"`

	Health struct {
		Interval string `mapstructure:"interval" yaml:"interval"`
		Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	} `mapstructure:"health" yaml:"health"`

	Logs struct {
		Path      string `mapstructure:"path"      yaml:"path"`
		Retention string `mapstructure:"retention" yaml:"retention"`
		Output    string `mapstructure:"output"    yaml:"output"` // stdout or file
	} `mapstructure:"logs" yaml:"logs"`

	Logger struct {
		LogLevel     string `mapstructure:"logLevel"     yaml:"logLevel"`
		EnableSentry bool   `mapstructure:"enableSentry" yaml:"enableSentry"`
		SentryDSN    string `mapstructure:"sentryDSN"    yaml:"sentryDSN"`
	} `mapstructure:"logger" yaml:"logger"`

	Monitor struct {
		Source        string `mapstructure:"source"        yaml:"source"` // auto, netlink or poll
		PollInterval  string `mapstructure:"pollInterval"  yaml:"pollInterval"`
		BufferSize    int    `mapstructure:"bufferSize"    yaml:"bufferSize"`
		DedupeWindow  string `mapstructure:"dedupeWindow"  yaml:"dedupeWindow"`
		StatsInterval string `mapstructure:"statsInterval" yaml:"statsInterval"`
		IncludeHubs   bool   `mapstructure:"includeHubs"   yaml:"includeHubs"`
		// AutoStart is "settings" (follow autoStartMonitoring), "always" or "never"
		AutoStart string `mapstructure:"autoStart" yaml:"autoStart"`
	} `mapstructure:"monitor" yaml:"monitor"`

	Commands struct {
		DefaultTimeout string `mapstructure:"defaultTimeout" yaml:"defaultTimeout"`
		Elevation      struct {
			Command         string   `mapstructure:"command"         yaml:"command"`
			Args            []string `mapstructure:"args"            yaml:"args"`
			AllowedPrograms []string `mapstructure:"allowedPrograms" yaml:"allowedPrograms"`
		} `mapstructure:"elevation" yaml:"elevation"`
	} `mapstructure:"commands" yaml:"commands"`

	Notifications struct {
		Desktop    bool   `mapstructure:"desktop"    yaml:"desktop"`
		WebhookURL string `mapstructure:"webhookURL" yaml:"webhookURL"`
		Timeout    string `mapstructure:"timeout"    yaml:"timeout"`
	} `mapstructure:"notifications" yaml:"notifications"`

	Rules struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"rules" yaml:"rules"`

	Autostart struct {
		Backend string `mapstructure:"backend" yaml:"backend"` // xdg or systemd
	} `mapstructure:"autostart" yaml:"autostart"`

	Environment string `mapstructure:"environment" yaml:"environment"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")
	v.SetDefault("server.port", 8047)
	v.SetDefault("server.daemonize", false)
	v.SetDefault("health.interval", "30s")
	v.SetDefault("health.endpoint", "/health")
	v.SetDefault("logs.path", filepath.Join(GetLogsDir(), constants.AppName+".log"))
	v.SetDefault("logs.retention", "7d")
	v.SetDefault("logs.output", "stdout")
	v.SetDefault("logger.logLevel", "info")
	v.SetDefault("logger.enableSentry", false)
	v.SetDefault("logger.sentryDSN", "")

	v.SetDefault("monitor.source", "auto")
	v.SetDefault("monitor.pollInterval", "2s")
	v.SetDefault("monitor.bufferSize", 100)
	v.SetDefault("monitor.dedupeWindow", "2s")
	v.SetDefault("monitor.statsInterval", "0s")
	v.SetDefault("monitor.includeHubs", false)
	v.SetDefault("monitor.autoStart", "settings")

	v.SetDefault("commands.defaultTimeout", "30s")
	v.SetDefault("commands.elevation.command", "sudo")
	v.SetDefault("commands.elevation.args", []string{"-n"})
	v.SetDefault("commands.elevation.allowedPrograms", []string{})

	v.SetDefault("notifications.desktop", true)
	v.SetDefault("notifications.webhookURL", "")
	v.SetDefault("notifications.timeout", "5s")

	v.SetDefault("rules.path", filepath.Join(GetConfigDir(), constants.BindingsFileName))
	v.SetDefault("autostart.backend", "xdg")
}

// Load reads configFilePath (which may not exist) layered over defaults
// and USBTRIGGER_* environment variables. A missing file is not an error.
func Load(configFilePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configFilePath)
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var notFound bool
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			notFound = true
		} else {
			return nil, errors.Wrap(err, errors.ConfigLoadFailed).WithMetadata("path", configFilePath)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ConfigUnmarshalFailed).WithMetadata("path", configFilePath)
	}
	if notFound {
		return &cfg, errors.New(errors.ConfigNotFound, configFilePath)
	}
	return &cfg, nil
}

// LoadConfig loads the configuration once with precedence: explicit path,
// USBTRIGGER_CONFIG, then the default config directory.
func LoadConfig(configFilePath string) *Config {
	once.Do(func() {
		l, err := logger.NewTag(logger.Config{LogLevel: "info"}, "config")
		if err != nil {
			fmt.Printf("Failed to create logger: %v\n", err)
			os.Exit(1)
		}

		path := resolvePath(configFilePath)
		l.Info("Using config file", "path", path)

		cfg, err := Load(path)
		switch {
		case err == nil:
			l.Info("Config file loaded successfully", "path", path)
		case errors.Is(err, errors.ConfigNotFound):
			l.Info("Config file not found, writing defaults", "path", path)
			setInstance(cfg, path)
			if err := SaveConfig(path); err != nil {
				l.Error("Failed to save default configuration", "err", err)
			}
		default:
			l.Error("Error reading config file, using defaults", "err", err)
			cfg, _ = Load("")
		}

		setInstance(cfg, path)
		l.Debug("Loaded configuration", "config", fmt.Sprintf("%+v", redacted(cfg)))
	})

	return GetConfig()
}

func resolvePath(configFilePath string) string {
	path := filepath.Join(GetConfigDir(), constants.ConfigFileName)
	if configFilePath != "" {
		path = configFilePath
	} else if envPath := os.Getenv(constants.EnvConfigPath); envPath != "" {
		path = envPath
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

func setInstance(cfg *Config, path string) {
	mu.Lock()
	defer mu.Unlock()
	instance = cfg
	configPath = path
}

func redacted(cfg *Config) Config {
	c := *cfg
	if c.Logger.SentryDSN != "" {
		c.Logger.SentryDSN = "[REDACTED]"
	}
	if c.Notifications.WebhookURL != "" {
		c.Notifications.WebhookURL = "[REDACTED]"
	}
	return c
}

// SaveConfig persists the current configuration to path, or to the
// config directory when path is empty.
func SaveConfig(path string) error {
	if path == "" {
		path = filepath.Join(GetConfigDir(), constants.ConfigFileName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.ConfigDirectoryError).WithMetadata("path", path)
	}

	mu.RLock()
	configYAML, err := yaml.Marshal(instance)
	mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, errors.ConfigMarshalFailed)
	}

	if err := os.WriteFile(path, configYAML, 0o644); err != nil {
		return errors.Wrap(err, errors.ConfigWriteFailed).WithMetadata("path", path)
	}

	mu.Lock()
	configPath = path
	mu.Unlock()
	return nil
}

// GetLoadedConfigPath returns the path of the currently loaded configuration file.
func GetLoadedConfigPath() string {
	mu.RLock()
	defer mu.RUnlock()
	return configPath
}

// GetConfig returns the current configuration instance.
func GetConfig() *Config {
	mu.RLock()
	cfg := instance
	mu.RUnlock()
	if cfg == nil {
		return LoadConfig("")
	}
	return cfg
}

func NewLoggerConfig(cfg *Config) logger.Config {
	if cfg == nil {
		return logger.Config{LogLevel: "info"}
	}

	return logger.Config{
		LogLevel:     cfg.Logger.LogLevel,
		EnableSentry: cfg.Logger.EnableSentry,
		SentryDSN:    cfg.Logger.SentryDSN,
	}
}

// Duration parses s, falling back to def when s is empty or invalid.
func Duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return d
}
