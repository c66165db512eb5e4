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
	"github.com/stratastor/pgbranch/internal/common"
	"github.com/stratastor/pgbranch/internal/constants"
	"gopkg.in/yaml.v3"
)

var (
	instance   *Config
	once       sync.Once
	configPath string // Tracks where the config was loaded from
)

type Config struct {
	ZFS struct {
		Pool        string `mapstructure:"pool"`        // empty means auto-detect
		DatasetBase string `mapstructure:"datasetBase"` // dataset under the pool holding all branches
		Compression string `mapstructure:"compression"`
		Recordsize  string `mapstructure:"recordsize"`
		UseSudo     bool   `mapstructure:"useSudo"`
	} `mapstructure:"zfs"`

	Container struct {
		DefaultImage  string `mapstructure:"defaultImage"`
		HealthTimeout string `mapstructure:"healthTimeout"`
		StopTimeout   string `mapstructure:"stopTimeout"`
	} `mapstructure:"container"`

	Retention struct {
		Enabled  bool   `mapstructure:"enabled"`
		Days     int    `mapstructure:"days"`
		Interval string `mapstructure:"interval"` // how often serve mode prunes
	} `mapstructure:"retention"`

	Server struct {
		Port      int    `mapstructure:"port"`
		LogLevel  string `mapstructure:"logLevel"`
		Daemonize bool   `mapstructure:"daemonize"`
	} `mapstructure:"server"`

	Logs struct {
		Path   string `mapstructure:"path"`
		Output string `mapstructure:"output"` // stdout or file
	} `mapstructure:"logs"`

	Logger struct {
		LogLevel     string `mapstructure:"logLevel"`
		EnableSentry bool   `mapstructure:"enableSentry"`
		SentryDSN    string `mapstructure:"sentryDSN"`
	} `mapstructure:"logger"`

	Environment string `mapstructure:"environment"`
}

// LoadConfig loads the configuration with precedence rules.
func LoadConfig(configFilePath string) *Config {
	once.Do(func() {
		logConfig := logger.Config{
			LogLevel:     "info",
			EnableSentry: false,
			SentryDSN:    "",
		}
		l, err := logger.NewTag(logConfig, "config")
		if err != nil {
			fmt.Printf("Failed to create logger: %v\n", err)
			os.Exit(1)
		}

		viper.Reset()
		viper.SetConfigType("yaml")

		configDir, err := common.GetConfigDir()
		if err != nil {
			l.Error("Failed to determine config directory", "err", err)
			configDir = constants.SystemConfigDir
		}
		systemConfigPath := filepath.Join(configDir, constants.ConfigFileName)

		if configFilePath != "" {
			// 1. Priority: Explicit path from command line
			configPath = configFilePath
		} else if envPath := os.Getenv("PGBRANCH_CONFIG"); envPath != "" {
			// 2. Priority: Environment variable
			configPath = envPath
		} else {
			// 3. Priority: system/user config path
			configPath = systemConfigPath
		}

		if absPath, err := filepath.Abs(configPath); err == nil {
			configPath = absPath
		}

		viper.SetConfigFile(configPath)

		viper.SetDefault("environment", "dev")
		viper.SetDefault("zfs.pool", "")
		viper.SetDefault("zfs.datasetBase", constants.DefaultDatasetBase)
		viper.SetDefault("zfs.compression", "lz4")
		viper.SetDefault("zfs.recordsize", "8k")
		viper.SetDefault("zfs.useSudo", true)
		viper.SetDefault("container.defaultImage", constants.DefaultImage)
		viper.SetDefault("container.healthTimeout", "60s")
		viper.SetDefault("container.stopTimeout", "30s")
		viper.SetDefault("retention.enabled", false)
		viper.SetDefault("retention.days", 14)
		viper.SetDefault("retention.interval", "12h")
		viper.SetDefault("server.port", 8420)
		viper.SetDefault("server.logLevel", "info")
		viper.SetDefault("server.daemonize", false)
		viper.SetDefault("logs.path", "/var/log/pgbranch/pgbranch.log")
		viper.SetDefault("logs.output", "stdout")
		viper.SetDefault("logger.logLevel", "info")
		viper.SetDefault("logger.enableSentry", false)
		viper.SetDefault("logger.sentryDSN", "")

		viper.AutomaticEnv()
		viper.SetEnvPrefix("PGBRANCH")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

		err = viper.ReadInConfig()
		if err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				l.Error("Error reading config file", "err", err)
			}
			// Missing file is the common case for a CLI; run on defaults.
			var cfg Config
			if err := viper.Unmarshal(&cfg); err != nil {
				l.Error("Failed to unmarshal default configuration", "err", err)
			}
			instance = &cfg
		} else {
			l.Debug("Config file loaded", "path", viper.ConfigFileUsed())
			configPath = viper.ConfigFileUsed()

			var cfg Config
			if err := viper.Unmarshal(&cfg); err != nil {
				l.Error("Failed to parse configuration", "err", err)
			} else {
				instance = &cfg
			}
		}
	})

	return instance
}

// SaveConfig persists the current configuration to a specified path.
func SaveConfig(path string) error {
	if path == "" {
		configDir, err := common.GetConfigDir()
		if err != nil {
			return fmt.Errorf("failed to determine config directory: %w", err)
		}
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		path = filepath.Join(configDir, constants.ConfigFileName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configYAML, err := yaml.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}

	if err := os.WriteFile(path, configYAML, 0644); err != nil {
		return fmt.Errorf("failed to write configuration to file: %w", err)
	}

	configPath = path

	return nil
}

// GetLoadedConfigPath returns the path of the currently loaded configuration file.
func GetLoadedConfigPath() string {
	return configPath
}

// GetConfig returns the current configuration instance.
func GetConfig() *Config {
	if instance == nil {
		return LoadConfig("")
	}
	return instance
}

// HealthTimeout returns the container health-wait timeout.
func (c *Config) HealthTimeout() time.Duration {
	d, err := time.ParseDuration(c.Container.HealthTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// StopTimeout returns the container stop grace period.
func (c *Config) StopTimeout() time.Duration {
	d, err := time.ParseDuration(c.Container.StopTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// RetentionInterval returns how often serve mode runs snapshot pruning.
func (c *Config) RetentionInterval() time.Duration {
	d, err := time.ParseDuration(c.Retention.Interval)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

func NewLoggerConfig(cfg *Config) logger.Config {
	if cfg == nil {
		return logger.Config{
			LogLevel:     "info",
			EnableSentry: false,
			SentryDSN:    "",
		}
	}

	return logger.Config{
		LogLevel:     cfg.Logger.LogLevel,
		EnableSentry: cfg.Logger.EnableSentry,
		SentryDSN:    cfg.Logger.SentryDSN,
	}
}
