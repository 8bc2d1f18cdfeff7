/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package relay is the communication client for the agent dashboard: a
// JSON-RPC 2.0 session over a WebSocket that authenticates with a session
// token, delivers inbound call invites and call-state events, and answers,
// rejects or hangs up calls.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tejzpr/livewire-go/dashboard"
	"github.com/tejzpr/livewire-go/livewiresdk"
	"github.com/tejzpr/livewire-go/media"
)

// ErrClosed is returned for requests on a disconnected client.
var ErrClosed = errors.New("relay connection closed")

// Config holds the configuration for the relay client
type Config struct {
	// Path is appended to the relay host when it has no path of its own.
	Path string
	// Agent identifies this client to the relay.
	Agent            string
	HandshakeTimeout time.Duration
	// RequestTimeout bounds a request when ctx has no earlier deadline.
	RequestTimeout time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration
	// Media configures the engine used to answer calls that carry an SDP offer.
	Media  *media.Config
	Logger livewiresdk.Logger
}

// DefaultConfig returns the default configuration for the relay client
func DefaultConfig() *Config {
	return &Config{
		Path:             "/api/relay/ws",
		Agent:            "livewire-go",
		HandshakeTimeout: 10 * time.Second,
		RequestTimeout:   15 * time.Second,
		PingInterval:     30 * time.Second,
		PongTimeout:      10 * time.Second,
		Media:            media.DefaultConfig(),
	}
}

// Client is a connected relay session
type Client struct {
	config *Config
	logger livewiresdk.Logger
	conn   *websocket.Conn

	writeMu sync.Mutex

	mu            sync.Mutex
	pending       map[string]chan message
	incoming      dashboard.IncomingCallHandler
	stateHandlers []func(dashboard.CallStateEvent)
	invites       map[string]*Invite
	calls         map[string]*Call
	identity      string
	closed        bool

	dispatch chan func()
	closeCh  chan struct{}
	done     chan struct{}
}

var (
	_ dashboard.Client = (*Client)(nil)
	_ dashboard.Invite = (*Invite)(nil)
	_ dashboard.Call   = (*Call)(nil)
)

// Factory creates relay clients for the dashboard coordinator
type Factory struct {
	Config *Config
}

// NewClient dials host and authenticates with token
func (f *Factory) NewClient(ctx context.Context, host, token string) (dashboard.Client, error) {
	c, err := Dial(ctx, host, token, f.Config)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Dial opens a relay session on host and authenticates with token. host may
// be a bare host name (wss is assumed) or a ws, wss, http or https URL.
func Dial(ctx context.Context, host, token string, config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if token == "" {
		return nil, &dashboard.AuthExpiredError{Err: fmt.Errorf("session token is required")}
	}
	wsURL, err := relayURL(host, config.Path)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: config.HandshakeTimeout,
	}
	headers := http.Header{}
	headers.Set("User-Agent", config.Agent)

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, &dashboard.AuthExpiredError{Err: fmt.Errorf("relay handshake returned 401")}
		}
		return nil, fmt.Errorf("failed to connect to relay %s: %w", wsURL, err)
	}

	c := &Client{
		config:   config,
		logger:   logger,
		conn:     conn,
		pending:  make(map[string]chan message),
		invites:  make(map[string]*Invite),
		calls:    make(map[string]*Call),
		dispatch: make(chan func(), 64),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Time{})
	})

	go c.listen()
	go c.dispatchLoop()
	go c.startPingPong()

	var result connectResult
	err = c.call(ctx, MethodConnect, connectParams{
		Version:        protocolVersion,
		Agent:          config.Agent,
		Authentication: authentication{JWTToken: token},
	}, &result)
	if err != nil {
		_ = c.Disconnect()
		return nil, err
	}

	c.mu.Lock()
	c.identity = result.Identity
	c.mu.Unlock()
	return c, nil
}

// relayURL turns a host or URL into the WebSocket URL to dial.
func relayURL(host, path string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("relay host is required")
	}
	if !strings.Contains(host, "://") {
		host = "wss://" + host
	}

	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("invalid relay host %q: %w", host, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported relay scheme %q", u.Scheme)
	}
	if (u.Path == "" || u.Path == "/") && path != "" {
		u.Path = "/" + strings.TrimLeft(path, "/")
	}
	return u.String(), nil
}

// Identity returns the identity the relay assigned at connect
func (c *Client) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Online starts delivering invites to handler
func (c *Client) Online(ctx context.Context, handler dashboard.IncomingCallHandler) error {
	c.mu.Lock()
	c.incoming = handler
	c.mu.Unlock()
	return c.call(ctx, MethodSubscriberOnline, struct{}{}, nil)
}

// Offline stops invite delivery
func (c *Client) Offline(ctx context.Context) error {
	return c.call(ctx, MethodSubscriberOffline, struct{}{}, nil)
}

// SubscriberInfo returns the operator's profile
func (c *Client) SubscriberInfo(ctx context.Context) (*dashboard.Subscriber, error) {
	var sub dashboard.Subscriber
	if err := c.call(ctx, MethodSubscriberInfo, struct{}{}, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// OnCallState registers a call.state listener
func (c *Client) OnCallState(handler func(dashboard.CallStateEvent)) {
	if handler == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandlers = append(c.stateHandlers, handler)
}

// Done is closed once the connection has gone away
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Disconnect closes the session. Active calls end. Calling it more than
// once is a no-op.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closeCh)
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Disconnected by client"),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// call sends a request and waits for its response, decoding the result
// into out when out is non-nil.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	if c.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	id := uuid.NewString()
	ch := make(chan message, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.writeJSON(request{JSONRPC: jsonRPCVersion, ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("failed to send %s: %w", method, err)
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			if msg.Error.unauthorized() {
				return &dashboard.AuthExpiredError{Err: msg.Error}
			}
			return msg.Error
		}
		if out == nil || len(msg.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(msg.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

func (c *Client) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// listen reads frames until the connection fails or is closed.
func (c *Client) listen() {
	defer c.teardown()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closeCh:
			default:
				c.logger.Printf("relay: connection lost: %v", err)
			}
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Printf("relay: dropping malformed frame: %v", err)
			continue
		}

		if msg.Method != "" {
			c.handleServerRequest(msg)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// teardown runs once the reader exits: pending requests fail and active
// calls end.
func (c *Client) teardown() {
	c.mu.Lock()
	c.closed = true
	calls := make([]*Call, 0, len(c.calls))
	for _, call := range c.calls {
		calls = append(calls, call)
	}
	c.calls = make(map[string]*Call)
	c.invites = make(map[string]*Invite)
	c.mu.Unlock()

	close(c.done)
	_ = c.conn.Close()

	for _, call := range calls {
		call.markEnded()
	}
}

func (c *Client) handleServerRequest(msg message) {
	if msg.ID != "" {
		if err := c.writeJSON(response{JSONRPC: jsonRPCVersion, ID: msg.ID, Result: struct{}{}}); err != nil {
			c.logger.Printf("relay: acknowledging %s: %v", msg.Method, err)
		}
	}
	if msg.Method != MethodEvent {
		return
	}

	var ev eventParams
	if err := json.Unmarshal(msg.Params, &ev); err != nil {
		c.logger.Printf("relay: malformed event: %v", err)
		return
	}

	switch ev.EventType {
	case EventCallReceived:
		c.handleCallReceived(ev.Params)
	case EventCallState:
		c.handleCallState(ev.Params)
	}
}

func (c *Client) handleCallReceived(raw json.RawMessage) {
	var p callReceived
	if err := json.Unmarshal(raw, &p); err != nil || p.CallID == "" {
		c.logger.Printf("relay: malformed call.received event")
		return
	}

	invite := &Invite{
		client: c,
		details: dashboard.CallerDetails{
			CallID:         p.CallID,
			CallerIDName:   p.CallerIDName,
			CallerIDNumber: p.CallerIDNumber,
		},
		offer: p.SDP,
	}

	c.mu.Lock()
	c.invites[p.CallID] = invite
	handler := c.incoming
	c.mu.Unlock()

	if handler != nil {
		c.enqueue(func() { handler(dashboard.Notification{Invite: invite}) })
	}
}

func (c *Client) handleCallState(raw json.RawMessage) {
	var p callStateParams
	if err := json.Unmarshal(raw, &p); err != nil {
		c.logger.Printf("relay: malformed call.state event: %v", err)
		return
	}

	ev := dashboard.CallStateEvent{CallID: p.CallID, State: dashboard.CallState(p.CallState)}
	if p.Parent != nil {
		ev.ParentCallID = p.Parent.CallID
	}

	c.mu.Lock()
	var ended *Call
	if ev.State == dashboard.CallStateEnded {
		ended = c.calls[p.CallID]
		delete(c.calls, p.CallID)
		delete(c.invites, p.CallID)
	}
	handlers := make([]func(dashboard.CallStateEvent), len(c.stateHandlers))
	copy(handlers, c.stateHandlers)
	c.mu.Unlock()

	c.enqueue(func() {
		for _, h := range handlers {
			h(ev)
		}
		if ended != nil {
			ended.markEnded()
		}
	})
}

// enqueue hands fn to the dispatch goroutine so handlers run in arrival
// order without blocking the reader.
func (c *Client) enqueue(fn func()) {
	select {
	case c.dispatch <- fn:
	case <-c.done:
	}
}

func (c *Client) dispatchLoop() {
	for {
		select {
		case fn := <-c.dispatch:
			fn()
		case <-c.done:
			return
		}
	}
}

// startPingPong keeps the connection alive and detects dead peers.
func (c *Client) startPingPong() {
	if c.config.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.ping(); err != nil {
				c.logger.Printf("relay: ping failed: %v", err)
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) ping() error {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.config.PongTimeout)); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, []byte(fmt.Sprintf("%d", time.Now().UnixMilli())),
		time.Now().Add(c.config.PongTimeout))
}

func (c *Client) trackCall(call *Call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.invites, call.id)
	if c.closed {
		go call.markEnded()
		return
	}
	c.calls[call.id] = call
}

func (c *Client) forgetCall(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.calls, id)
	delete(c.invites, id)
}
