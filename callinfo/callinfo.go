/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package callinfo fetches caller metadata collected by the LiveWire
// backend for an in-progress call.
package callinfo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tejzpr/livewire-go/livewiresdk"
)

// CallInfo is the caller metadata stored for a call
type CallInfo struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	MemberID  string `json:"member_id,omitempty"`
}

// HasDetails reports whether there is anything worth showing.
func (i *CallInfo) HasDetails() bool {
	return i != nil && (i.FirstName != "" || i.LastName != "" || i.Summary != "")
}

// Config holds the configuration for the CallInfo plugin
type Config struct {
	// PathPrefix is prepended to the call ID.
	PathPrefix string
}

// DefaultConfig returns the default configuration for the CallInfo plugin
func DefaultConfig() *Config {
	return &Config{
		PathPrefix: "api/call_info/",
	}
}

// Client is the call info API client
type Client struct {
	livewireClient *livewiresdk.Client
	config         *Config
}

// New creates a new CallInfo plugin
func New(livewireClient *livewiresdk.Client, config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	return &Client{
		livewireClient: livewireClient,
		config:         config,
	}
}

// Get returns the caller metadata for callID. A call without stored info
// yields a livewiresdk.NotFoundError.
func (c *Client) Get(ctx context.Context, callID string) (*CallInfo, error) {
	if callID == "" {
		return nil, fmt.Errorf("call ID is required")
	}

	var info CallInfo
	path := c.config.PathPrefix + url.PathEscape(callID)
	if err := c.livewireClient.DoEnvelope(ctx, http.MethodGet, path, nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
