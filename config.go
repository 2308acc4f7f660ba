package main

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/lagren/fleetwatch/probe"
)

type Config struct {
	ServiceURL     string        `env:"FLEETWATCH_SERVICE_URL, default=http://127.0.0.1:8080"`
	PollInterval   time.Duration `env:"FLEETWATCH_POLL_INTERVAL, default=1s"`
	RequestTimeout time.Duration `env:"FLEETWATCH_REQUEST_TIMEOUT, default=5s"`

	ListenAddr    string        `env:"FLEETWATCH_LISTEN_ADDR, default=127.0.0.1:8080"`
	DBPath        string        `env:"FLEETWATCH_DB_PATH, default=fleetwatch.db"`
	ProbeInterval time.Duration `env:"FLEETWATCH_PROBE_INTERVAL, default=5s"`
	ProbeTimeout  time.Duration `env:"FLEETWATCH_PROBE_TIMEOUT, default=1s"`
	ProbeTLS      bool          `env:"FLEETWATCH_PROBE_TLS, default=true"`
	ProbePort     int           `env:"FLEETWATCH_PROBE_PORT, default=443"`

	SlackMessageKey string `env:"SLACK_MESSAGE_KEY"`
	SlackChannelID  string `env:"SLACK_CHANNEL_ID"`

	LogLevel string `env:"LOG_LEVEL, default=info"`
}

func (c Config) ProbeOptions() probe.Options {
	return probe.Options{
		Timeout:     c.ProbeTimeout,
		DefaultPort: c.ProbePort,
		TLS:         c.ProbeTLS,
	}
}

func (c Config) SlackEnabled() bool {
	return c.SlackMessageKey != "" && c.SlackChannelID != ""
}

// loadConfig reads an optional .env file into the environment and decodes
// the environment into a Config.
func loadConfig(ctx context.Context, envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	return processConfig(ctx, envconfig.OsLookuper())
}

func processConfig(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
