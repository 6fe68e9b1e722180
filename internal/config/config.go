// Package config loads the worker configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TaskDescriptionEnvVar names the environment variable carrying the signed
// URL of the task descriptor for this invocation.
const TaskDescriptionEnvVar = "TASK_DESCRIPTION"

type Config struct {
	Platform PlatformConfig `mapstructure:"platform"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

type PlatformConfig struct {
	APIURL   string        `mapstructure:"api_url"`
	APIToken string        `mapstructure:"api_token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type WorkerConfig struct {
	WorkDir         string        `mapstructure:"work_dir"`
	TransferTimeout time.Duration `mapstructure:"transfer_timeout"`
	AnalyticCommand []string      `mapstructure:"analytic_command"`
	AnalyticTimeout time.Duration `mapstructure:"analytic_timeout"`
}

type LoggerConfig struct {
	Level   string `mapstructure:"level"`
	LogPath string `mapstructure:"log_path"`
}

// Load reads the worker config file and applies WORKER_-prefixed
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("WORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Defaults
	if cfg.Worker.WorkDir == "" {
		cfg.Worker.WorkDir = os.TempDir()
	}
	if cfg.Platform.Timeout == 0 {
		cfg.Platform.Timeout = 30 * time.Second
	}
	if cfg.Worker.TransferTimeout == 0 {
		cfg.Worker.TransferTimeout = 5 * time.Minute
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Platform.APIURL == "" {
		return fmt.Errorf("platform.api_url is required")
	}
	if c.Platform.APIToken == "" {
		return fmt.Errorf("platform.api_token is required")
	}
	if len(c.Worker.AnalyticCommand) == 0 {
		return fmt.Errorf("worker.analytic_command is required")
	}
	return nil
}

// TaskURLFromEnv reads the task descriptor URL for this invocation. Its
// absence is a fatal configuration error for normal startup.
func TaskURLFromEnv() (string, error) {
	url := os.Getenv(TaskDescriptionEnvVar)
	if url == "" {
		return "", fmt.Errorf("%s environment variable is not set", TaskDescriptionEnvVar)
	}
	return url, nil
}
