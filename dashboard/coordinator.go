/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package dashboard coordinates an operator's call session: going online,
// handling invites, accepting, rejecting and hanging up calls, and enriching
// calls with caller metadata.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tejzpr/livewire-go/livewiresdk"
	"github.com/tejzpr/livewire-go/retry"
	"github.com/tejzpr/livewire-go/tokens"
)

// Config holds the configuration for a Coordinator
type Config struct {
	// OnlineAttempts bounds the GoOnline retry loop.
	OnlineAttempts int
	// OnlineRetryDelay is the pause between GoOnline attempts.
	OnlineRetryDelay time.Duration
	// TokenLeeway treats a session token as expired this long before its exp.
	TokenLeeway time.Duration
	// EnrichTimeout bounds a caller metadata fetch.
	EnrichTimeout time.Duration
	// CleanupTimeout bounds the hangup in CleanupBeforeUnload.
	CleanupTimeout time.Duration

	Logger livewiresdk.Logger

	// Sleep and Now are replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// DefaultConfig returns the default configuration for a Coordinator
func DefaultConfig() *Config {
	return &Config{
		OnlineAttempts:   3,
		OnlineRetryDelay: 1500 * time.Millisecond,
		TokenLeeway:      30 * time.Second,
		EnrichTimeout:    10 * time.Second,
		CleanupTimeout:   5 * time.Second,
	}
}

// Dependencies are the collaborators a Coordinator drives
type Dependencies struct {
	Clients  ClientFactory
	Tokens   TokenSource
	CallInfo CallInfoSource
	// Presence is optional.
	Presence PresenceNotifier
}

// Coordinator owns the session state and drives every call transition
type Coordinator struct {
	mu sync.Mutex
	st sessionState

	deps   Dependencies
	config *Config
	logger livewiresdk.Logger

	// Emitter publishes the Event* keys.
	Emitter *EventEmitter
}

// New creates a Coordinator
func New(deps Dependencies, config *Config) (*Coordinator, error) {
	if deps.Clients == nil {
		return nil, fmt.Errorf("client factory is required")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if deps.CallInfo == nil {
		return nil, fmt.Errorf("call info source is required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Coordinator{
		st:      sessionState{status: StatusOffline},
		deps:    deps,
		config:  config,
		logger:  logger,
		Emitter: NewEventEmitter(),
	}, nil
}

// Status returns the current status
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.status
}

// Snapshot returns a copy of the session state
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.snapshot()
}

func (c *Coordinator) setStatus(s Status) {
	c.mu.Lock()
	c.st.status = s
	c.mu.Unlock()
	c.Emitter.Emit(EventStatus, StatusChange{Status: s, Presentation: Present(s)})
}

func (c *Coordinator) now() time.Time {
	if c.config.Now != nil {
		return c.config.Now()
	}
	return time.Now()
}

// GoOnline connects to host and starts receiving calls. A non-empty token
// is used for the first client; otherwise one is requested from the token
// source. Failed attempts are retried; an authentication failure triggers
// one token refresh that does not count as an attempt. On exhaustion the
// status becomes failed and a *ConnectionError is returned.
func (c *Coordinator) GoOnline(ctx context.Context, host, token string) error {
	c.mu.Lock()
	if c.st.goingOnline {
		c.mu.Unlock()
		return ErrAlreadyConnecting
	}
	c.st.goingOnline = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.st.goingOnline = false
		c.mu.Unlock()
	}()

	c.setStatus(StatusConnecting)

	seed := token
	policy := retry.Policy{
		MaxAttempts:   c.config.OnlineAttempts,
		Delay:         c.config.OnlineRetryDelay,
		Sleep:         c.config.Sleep,
		ShouldRecover: IsAuthFailure,
		Recover: func(ctx context.Context, cause error) error {
			c.logger.Printf("dashboard: authentication failure (%v), refreshing session token", cause)
			tok, err := c.fetchToken(ctx)
			if err != nil {
				c.logger.Printf("dashboard: token refresh failed: %v", err)
				return err
			}
			_, err = c.connect(ctx, host, tok)
			return err
		},
		OnRetry: func(attempt int, err error) {
			c.logger.Printf("dashboard: go online attempt %d failed: %v", attempt+1, err)
		},
	}

	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		client := c.currentClient()
		if client == nil {
			var tok *tokens.SessionToken
			var err error
			if seed != "" {
				tok, err = tokens.Parse(seed)
				seed = ""
			} else {
				tok, err = c.fetchToken(ctx)
			}
			if err != nil {
				return err
			}
			if client, err = c.connect(ctx, host, tok); err != nil {
				return err
			}
		}
		return client.Online(ctx, c.HandleIncomingCall)
	})

	// A connection lost while goingOnline was set was not reported.
	c.mu.Lock()
	c.st.goingOnline = false
	if err == nil && c.st.client == nil {
		err = errors.New("connection closed while going online")
	}
	c.mu.Unlock()

	if err != nil {
		c.setStatus(StatusFailed)
		attempts := c.config.OnlineAttempts
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			attempts = exhausted.Attempts
			err = exhausted.Err
		}
		return &ConnectionError{Attempts: attempts, Err: err}
	}

	c.setStatus(StatusOnline)
	return nil
}

// currentClient returns the client, discarding it first when its connection
// has gone away or its session token has expired.
func (c *Coordinator) currentClient() Client {
	c.mu.Lock()
	client := c.st.client
	if client == nil {
		c.mu.Unlock()
		return nil
	}
	lost := isClosed(client)
	expired := c.st.token != nil && c.st.token.Expired(c.now(), c.config.TokenLeeway)
	if !lost && !expired {
		c.mu.Unlock()
		return client
	}
	c.st.client = nil
	c.st.token = nil
	c.st.listenersAttached = false
	c.mu.Unlock()

	if lost {
		c.logger.Printf("dashboard: connection closed, discarding client")
		return nil
	}
	c.logger.Printf("dashboard: session token expired, discarding client")
	if err := client.Disconnect(); err != nil {
		c.logger.Printf("dashboard: disconnecting expired client: %v", err)
	}
	return nil
}

func isClosed(client Client) bool {
	select {
	case <-client.Done():
		return true
	default:
		return false
	}
}

// watch waits for client's connection to go away.
func (c *Coordinator) watch(client Client) {
	done := client.Done()
	if done == nil {
		return
	}
	<-done
	c.handleConnectionLost(client)
}

// handleConnectionLost drops the session of a client whose connection went
// away. Clients that are no longer current are ignored. While GoOnline is
// running its retry loop reports the outcome instead.
func (c *Coordinator) handleConnectionLost(client Client) {
	c.mu.Lock()
	if c.st.client != client {
		c.mu.Unlock()
		return
	}
	hadInvite := c.st.invite != nil
	c.st.client = nil
	c.st.token = nil
	c.st.listenersAttached = false
	c.st.resetCall()
	c.st.cachedCallInfo = nil
	c.st.generation++
	connecting := c.st.goingOnline
	c.mu.Unlock()

	c.logger.Printf("dashboard: relay connection lost")
	if hadInvite {
		c.Emitter.Emit(EventIncomingDismissed, nil)
	}
	c.Emitter.Emit(EventCallInfoCleared, nil)
	if connecting {
		return
	}
	c.Emitter.Emit(EventAlert, "Connection to the relay was lost. Go online to reconnect.")
	c.setStatus(StatusFailed)
}

func (c *Coordinator) fetchToken(ctx context.Context) (*tokens.SessionToken, error) {
	tok, err := c.deps.Tokens.Create(ctx)
	if err != nil {
		return nil, &TokenAcquisitionError{Err: err}
	}
	return tok, nil
}

// connect constructs a client for tok, makes it current, attaches the
// call-state listener and loads the subscriber profile.
func (c *Coordinator) connect(ctx context.Context, host string, tok *tokens.SessionToken) (Client, error) {
	client, err := c.deps.Clients.NewClient(ctx, host, tok.Raw)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	old := c.st.client
	c.st.client = client
	c.st.token = tok
	c.st.listenersAttached = false
	c.mu.Unlock()

	if old != nil && old != client {
		if err := old.Disconnect(); err != nil {
			c.logger.Printf("dashboard: disconnecting replaced client: %v", err)
		}
	}

	c.attachListeners(client)
	go c.watch(client)
	c.loadSubscriber(ctx, client)
	return client, nil
}

// attachListeners installs the call-state listener at most once per client.
func (c *Coordinator) attachListeners(client Client) {
	c.mu.Lock()
	if c.st.client != client || c.st.listenersAttached {
		c.mu.Unlock()
		return
	}
	c.st.listenersAttached = true
	c.mu.Unlock()

	client.OnCallState(func(ev CallStateEvent) {
		c.handleCallState(client, ev)
	})
}

func (c *Coordinator) loadSubscriber(ctx context.Context, client Client) {
	info, err := client.SubscriberInfo(ctx)
	if err != nil {
		c.logger.Printf("dashboard: getting subscriber info: %v", err)
		info = nil
	}
	merged := mergeSubscriber(info)

	c.mu.Lock()
	if c.st.client != client {
		c.mu.Unlock()
		return
	}
	c.st.subscriberInfo = &merged
	c.mu.Unlock()

	c.Emitter.Emit(EventSubscriber, merged)
}

func (c *Coordinator) handleCallState(client Client, ev CallStateEvent) {
	c.mu.Lock()
	current := c.st.client == client
	generation := c.st.generation
	c.mu.Unlock()
	if !current {
		return
	}

	if ev.State == CallStateCreated && ev.ParentCallID != "" {
		go c.enrich(generation, ev.ParentCallID)
	}
	if ev.State == CallStateEnded {
		c.Emitter.Emit(EventIncomingDismissed, nil)
	}
}

// enrich fetches caller metadata for callID and stores it unless a newer
// call has arrived in the meantime. A failed fetch clears the cache.
func (c *Coordinator) enrich(generation uint64, callID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.EnrichTimeout)
	defer cancel()

	info, err := c.deps.CallInfo.Get(ctx, callID)
	if err != nil {
		c.logger.Printf("dashboard: fetching call info for %s: %v", callID, err)
		info = nil
	}

	c.mu.Lock()
	if c.st.generation != generation {
		c.mu.Unlock()
		return
	}
	c.st.cachedCallInfo = info
	accepted := c.st.callAccepted
	c.mu.Unlock()

	c.Emitter.Emit(EventCallInfo, newCallInfoUpdate(info, accepted))
}

// HandleIncomingCall stores the invite and surfaces it to the operator.
// Invites arriving during an active call are rejected.
func (c *Coordinator) HandleIncomingCall(n Notification) {
	if n.Invite == nil {
		c.logger.Printf("dashboard: incoming call notification without invite")
		return
	}
	details := n.Invite.Details()
	name := DisplayName(details)

	c.mu.Lock()
	if c.st.call != nil {
		c.mu.Unlock()
		c.logger.Printf("dashboard: rejecting call from %s, already in a call", name)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.config.CleanupTimeout)
			defer cancel()
			if err := n.Invite.Reject(ctx); err != nil {
				c.logger.Printf("dashboard: rejecting busy invite: %v", err)
			}
		}()
		return
	}
	c.st.invite = n.Invite
	c.st.callerName = name
	c.st.callAccepted = false
	c.st.cachedCallInfo = nil
	c.st.generation++
	c.mu.Unlock()

	c.Emitter.Emit(EventCallInfoCleared, nil)
	c.setStatus(StatusIncoming)
	c.Emitter.Emit(EventIncomingCall, IncomingCall{CallerName: name, Details: details})
}

// AcceptCall answers the pending invite with audio only. Without an invite
// it returns ErrNoPendingInvite and changes nothing. On failure the invite
// stays pending so the operator can retry.
func (c *Coordinator) AcceptCall(ctx context.Context) error {
	c.mu.Lock()
	invite := c.st.invite
	c.mu.Unlock()
	if invite == nil {
		return ErrNoPendingInvite
	}

	call, err := invite.Accept(ctx, AcceptOptions{Audio: true, Video: false})
	if err != nil {
		c.Emitter.Emit(EventAlert, "Failed to accept call: "+err.Error())
		return &AcceptFailedError{Err: err}
	}

	c.mu.Lock()
	if c.st.invite != invite {
		c.mu.Unlock()
		if err := call.Hangup(ctx); err != nil {
			c.logger.Printf("dashboard: hanging up withdrawn call: %v", err)
		}
		err := errors.New("invite was withdrawn while accepting")
		c.Emitter.Emit(EventAlert, "Failed to accept call: "+err.Error())
		return &AcceptFailedError{Err: err}
	}
	c.st.call = call
	c.st.invite = nil
	c.st.callAccepted = true
	info := c.st.cachedCallInfo
	c.mu.Unlock()

	c.setStatus(StatusInCall)
	c.Emitter.Emit(EventIncomingDismissed, nil)
	c.Emitter.Emit(EventCallInfo, newCallInfoUpdate(info, true))

	call.OnEnded(func() { c.handleCallEnded(call) })
	return nil
}

func (c *Coordinator) handleCallEnded(call Call) {
	c.mu.Lock()
	if c.st.call != call {
		c.mu.Unlock()
		return
	}
	c.st.resetCall()
	c.st.cachedCallInfo = nil
	c.mu.Unlock()

	c.Emitter.Emit(EventCallInfoCleared, nil)
	c.setStatus(StatusOnline)
}

// RejectCall declines the pending invite. A failed reject is logged and the
// invite is cleared anyway.
func (c *Coordinator) RejectCall(ctx context.Context) error {
	c.mu.Lock()
	invite := c.st.invite
	c.mu.Unlock()
	if invite == nil {
		return ErrNoPendingInvite
	}

	if err := invite.Reject(ctx); err != nil {
		c.logger.Printf("dashboard: failed to reject call: %v", err)
	}

	c.mu.Lock()
	if c.st.invite != invite {
		c.mu.Unlock()
		return nil
	}
	c.st.invite = nil
	c.st.callerName = ""
	c.st.callAccepted = false
	c.st.cachedCallInfo = nil
	c.mu.Unlock()

	c.Emitter.Emit(EventIncomingDismissed, nil)
	c.Emitter.Emit(EventCallInfoCleared, nil)
	c.setStatus(StatusOnline)
	return nil
}

// HangupCall ends the active call if there is one. The session is reset
// and returns to online whether or not the hangup succeeded.
func (c *Coordinator) HangupCall(ctx context.Context) error {
	c.mu.Lock()
	call := c.st.call
	c.mu.Unlock()

	if call != nil {
		if err := call.Hangup(ctx); err != nil {
			c.logger.Printf("dashboard: failed to hang up call: %v", err)
		}
	}

	c.mu.Lock()
	c.st.resetCall()
	c.st.cachedCallInfo = nil
	c.mu.Unlock()

	c.Emitter.Emit(EventCallInfoCleared, nil)
	c.setStatus(StatusOnline)
	return nil
}

// GoOffline stops receiving calls. The status becomes offline even if the
// client fails to go offline; that failure is returned.
func (c *Coordinator) GoOffline(ctx context.Context) error {
	c.mu.Lock()
	client := c.st.client
	c.mu.Unlock()

	var err error
	if client != nil {
		if err = client.Offline(ctx); err != nil {
			c.logger.Printf("dashboard: error going offline: %v", err)
		}
	}

	c.setStatus(StatusOffline)
	return err
}

// CleanupBeforeUnload hangs up, disconnects and tells the backend the
// operator is offline. It returns immediately; the work runs on a context
// detached from any caller and the channel closes when it is done. Every
// failure, including a panic, is swallowed.
func (c *Coordinator) CleanupBeforeUnload() <-chan struct{} {
	c.mu.Lock()
	call := c.st.call
	client := c.st.client
	subscriberID := ""
	if c.st.subscriberInfo != nil {
		subscriberID = c.st.subscriberInfo.ID
	}
	c.st.resetCall()
	c.st.client = nil
	c.st.token = nil
	c.st.listenersAttached = false
	c.st.status = StatusOffline
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)

		if call != nil {
			c.safely("hangup", func() error {
				ctx, cancel := context.WithTimeout(context.Background(), c.config.CleanupTimeout)
				defer cancel()
				return call.Hangup(ctx)
			})
		}
		if client != nil {
			c.safely("disconnect", client.Disconnect)
		}
		if subscriberID != "" && c.deps.Presence != nil {
			c.safely("offline notification", func() error {
				return <-c.deps.Presence.Beacon(subscriberID)
			})
		}
	}()
	return done
}

func (c *Coordinator) safely(step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Printf("dashboard: cleanup %s panicked: %v", step, r)
		}
	}()
	if err := fn(); err != nil {
		c.logger.Printf("dashboard: cleanup %s: %v", step, err)
	}
}
