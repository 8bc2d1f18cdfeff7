/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package presence tells the LiveWire backend that a subscriber has left
// the dashboard.
package presence

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tejzpr/livewire-go/livewiresdk"
)

// Config holds the configuration for the Presence plugin
type Config struct {
	// PathPrefix is prepended to the subscriber ID.
	PathPrefix string
	// BeaconTimeout bounds a fire-and-forget Beacon request.
	BeaconTimeout time.Duration
}

// DefaultConfig returns the default configuration for the Presence plugin
func DefaultConfig() *Config {
	return &Config{
		PathPrefix:    "api/subscriber_offline/",
		BeaconTimeout: 5 * time.Second,
	}
}

// Client is the presence API client
type Client struct {
	livewireClient *livewiresdk.Client
	config         *Config
}

// New creates a new Presence plugin
func New(livewireClient *livewiresdk.Client, config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	return &Client{
		livewireClient: livewireClient,
		config:         config,
	}
}

// ValidSubscriberID reports whether id can be sent to the backend.
func ValidSubscriberID(id string) bool {
	return id != "" && id != "null" && id != "undefined"
}

// Offline marks the subscriber as inactive. Only the HTTP status is checked;
// the backend acknowledges without a data payload.
func (c *Client) Offline(ctx context.Context, subscriberID string) error {
	if !ValidSubscriberID(subscriberID) {
		return fmt.Errorf("invalid subscriber ID %q", subscriberID)
	}

	path := c.config.PathPrefix + url.PathEscape(subscriberID)
	resp, err := c.livewireClient.RequestWithContext(ctx, http.MethodPost, path, map[string]interface{}{}, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return livewiresdk.NewAPIError(resp, body)
	}
	return nil
}

// Beacon sends Offline without blocking the caller. The request runs on a
// context detached from the caller's cancellation, bounded by BeaconTimeout,
// so it completes even while the caller is shutting down. The returned
// channel yields the outcome and is closed afterwards.
func (c *Client) Beacon(subscriberID string) <-chan error {
	result := make(chan error, 1)
	go func() {
		defer close(result)
		ctx, cancel := context.WithTimeout(context.Background(), c.config.BeaconTimeout)
		defer cancel()
		err := c.Offline(ctx, subscriberID)
		if err != nil {
			c.livewireClient.GetLogger().Printf("presence: marking subscriber %s offline failed: %v", subscriberID, err)
		}
		result <- err
	}()
	return result
}
