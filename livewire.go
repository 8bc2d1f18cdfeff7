/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package livewire

import (
	"sync"

	"github.com/tejzpr/livewire-go/callinfo"
	"github.com/tejzpr/livewire-go/dashboard"
	"github.com/tejzpr/livewire-go/livewiresdk"
	"github.com/tejzpr/livewire-go/members"
	"github.com/tejzpr/livewire-go/presence"
	"github.com/tejzpr/livewire-go/relay"
	"github.com/tejzpr/livewire-go/tokens"
	"github.com/tejzpr/livewire-go/widget"
)

// LiveWireClient is the top-level client for the LiveWire backend
type LiveWireClient struct {
	// Core client for the LiveWire backend
	core *livewiresdk.Client

	mu sync.Mutex

	// Plugins
	tokensClient   *tokens.Client
	callInfoClient *callinfo.Client
	presenceClient *presence.Client
	widgetClient   *widget.Client
	membersClient  *members.Client
}

// NewClient creates a new LiveWire client with an optional configuration
func NewClient(config *livewiresdk.Config) (*LiveWireClient, error) {
	core, err := livewiresdk.NewClient(config)
	if err != nil {
		return nil, err
	}

	return &LiveWireClient{core: core}, nil
}

// Tokens returns the Tokens plugin
func (c *LiveWireClient) Tokens() *tokens.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokensClient == nil {
		c.tokensClient = tokens.New(c.core, nil)
	}
	return c.tokensClient
}

// CallInfo returns the CallInfo plugin
func (c *LiveWireClient) CallInfo() *callinfo.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.callInfoClient == nil {
		c.callInfoClient = callinfo.New(c.core, nil)
	}
	return c.callInfoClient
}

// Presence returns the Presence plugin
func (c *LiveWireClient) Presence() *presence.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.presenceClient == nil {
		c.presenceClient = presence.New(c.core, nil)
	}
	return c.presenceClient
}

// Widget returns the Widget plugin
func (c *LiveWireClient) Widget() *widget.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.widgetClient == nil {
		c.widgetClient = widget.New(c.core, nil)
	}
	return c.widgetClient
}

// Members returns the Members plugin
func (c *LiveWireClient) Members() *members.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.membersClient == nil {
		c.membersClient = members.New(c.core, nil)
	}
	return c.membersClient
}

// Dashboard creates a call lifecycle coordinator that connects through the
// relay and uses this client for tokens, caller info and presence.
func (c *LiveWireClient) Dashboard(relayConfig *relay.Config, config *dashboard.Config) (*dashboard.Coordinator, error) {
	if relayConfig == nil {
		relayConfig = relay.DefaultConfig()
	}
	if relayConfig.Logger == nil {
		relayConfig.Logger = c.core.GetLogger()
	}
	if config == nil {
		config = dashboard.DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = c.core.GetLogger()
	}

	return dashboard.New(dashboard.Dependencies{
		Clients:  &relay.Factory{Config: relayConfig},
		Tokens:   c.Tokens(),
		CallInfo: c.CallInfo(),
		Presence: c.Presence(),
	}, config)
}

// Core returns the core LiveWire client
func (c *LiveWireClient) Core() *livewiresdk.Client {
	return c.core
}
