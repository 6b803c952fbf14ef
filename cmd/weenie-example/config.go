package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"andy.dev/weenie"
	"andy.dev/weenie/svc"
)

// Config is the example service configuration, read from a yaml file.
type Config struct {
	Log      LogConfig            `yaml:"log"`
	HTTP     HTTPConfig           `yaml:"http"`
	Upstream UpstreamConfig       `yaml:"upstream"`
	Svc      svc.Config           `yaml:"svc"`
	Retry    RetryConfig          `yaml:"retry"`
	Backoff  weenie.BackoffConfig `yaml:"backoff"`
	Cron     CronConfig           `yaml:"cron"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// UpstreamConfig points at the service this example depends on. An empty URL
// disables the checks against it.
type UpstreamConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type RetryConfig struct {
	Exponential weenie.ExponentialConfig `yaml:"exponential"`
	Periodic    weenie.PeriodicConfig    `yaml:"periodic"`
}

type CronConfig struct {
	Sync      CronJobConfig `yaml:"sync"`
	Heartbeat CronJobConfig `yaml:"heartbeat"`
}

type CronJobConfig struct {
	Spec string `yaml:"spec"`
	TZ   string `yaml:"tz"`
}

func defaultConfig() Config {
	return Config{
		Log:      LogConfig{Level: "info"},
		HTTP:     HTTPConfig{Addr: ":8080"},
		Upstream: UpstreamConfig{Timeout: 5 * time.Second},
		Svc: svc.Config{
			InitializationTimeout: svc.DefaultInitializationTimeout,
			HandleShutdown:        true,
			ShutdownTimeout:       30 * time.Second,
		},
		Cron: CronConfig{
			Sync:      CronJobConfig{Spec: "0 */15 * * * *"},
			Heartbeat: CronJobConfig{Spec: "@every 1m"},
		},
	}
}

// LoadConfig reads the yaml file at path over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return &cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := parseConfig(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseConfig(b []byte, cfg *Config) error {
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if cfg.HTTP.Addr == "" {
		return fmt.Errorf("config: http.addr is required")
	}
	return nil
}
