/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package widget provides the call widget endpoints of the LiveWire
// backend: guest-token widget configuration and the SWML handler that
// routes inbound calls to the application.
package widget

import (
	"context"
	"net/http"
	"time"

	"github.com/tejzpr/livewire-go/livewiresdk"
	"github.com/tejzpr/livewire-go/retry"
)

// Settings is what a call widget needs to place a call.
type Settings struct {
	GuestToken  string `json:"guest_token"`
	Destination string `json:"destination"`
}

// Handler describes the SWML handler after it was created or updated.
type Handler struct {
	ID          string `json:"id"`
	Created     bool   `json:"created"`
	Updated     bool   `json:"updated"`
	Destination string `json:"destination,omitempty"`
}

// Config holds the configuration for the Widget plugin
type Config struct {
	ConfigPath  string
	HandlerPath string

	// MaxAttempts and RetryDelay bound the widget configuration fetch.
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultConfig returns the default configuration for the Widget plugin
func DefaultConfig() *Config {
	return &Config{
		ConfigPath:  "api/widget_config",
		HandlerPath: "api/swml_handler",
		MaxAttempts: 3,
		RetryDelay:  1000 * time.Millisecond,
	}
}

// Client is the widget API client
type Client struct {
	livewireClient *livewiresdk.Client
	config         *Config
}

// New creates a new Widget plugin
func New(livewireClient *livewiresdk.Client, config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	return &Client{
		livewireClient: livewireClient,
		config:         config,
	}
}

// Config fetches the widget settings, retrying failed fetches. The handler
// may still be provisioning right after login, so a miss is not final.
func (c *Client) Config(ctx context.Context) (*Settings, error) {
	var settings Settings
	policy := retry.Policy{
		MaxAttempts: c.config.MaxAttempts,
		Delay:       c.config.RetryDelay,
		OnRetry: func(attempt int, err error) {
			c.livewireClient.GetLogger().Printf("widget: config attempt %d failed: %v", attempt+1, err)
		},
	}

	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		settings = Settings{}
		return c.livewireClient.DoEnvelope(ctx, http.MethodPost, c.config.ConfigPath, map[string]interface{}{}, nil, &settings)
	})
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// EnsureHandler creates the SWML handler, or updates the one already
// recorded in the session.
func (c *Client) EnsureHandler(ctx context.Context) (*Handler, error) {
	var handler Handler
	if err := c.livewireClient.DoEnvelope(ctx, http.MethodPost, c.config.HandlerPath, map[string]interface{}{}, nil, &handler); err != nil {
		return nil, err
	}
	return &handler, nil
}
