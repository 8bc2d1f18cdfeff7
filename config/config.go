/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Agent is the configuration of the agent dashboard process
type Agent struct {
	// BaseURL is the LiveWire backend serving the /api endpoints.
	BaseURL string `env:"LIVEWIRE_BASE_URL" envDefault:"http://localhost:5000"`
	// SessionCookie authenticates backend requests as the logged-in operator.
	SessionCookie string        `env:"SESSION_COOKIE"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"30s"`

	// RelayHost is the relay to go online against.
	RelayHost string `env:"RELAY_HOST"`
	// Token is an operator-supplied session token used for the first connection.
	Token string `env:"SESSION_TOKEN"`

	OnlineAttempts   int           `env:"ONLINE_ATTEMPTS" envDefault:"3"`
	OnlineRetryDelay time.Duration `env:"ONLINE_RETRY_DELAY" envDefault:"1500ms"`

	ICEServers []string `env:"ICE_SERVERS" envSeparator:"," envDefault:"stun:stun.l.google.com:19302"`

	LogFile  string `env:"LOG_FILE" envDefault:"livewire-agent.log"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// New loads configuration from environment variables into any given struct type.
func New[T any]() (*T, error) {
	cfg := new(T)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads ENV_FILE, or .env when ENV_FILE is unset, into the
// environment. A missing default .env is not an error.
func LoadEnv() error {
	envfile := os.Getenv("ENV_FILE")

	if envfile == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}

	return godotenv.Load(envfile)
}
