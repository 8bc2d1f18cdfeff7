/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package dashboard

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/tejzpr/livewire-go/callinfo"
	"github.com/tejzpr/livewire-go/tokens"
)

type fakeClient struct {
	factory *fakeFactory
	token   string

	mu            sync.Mutex
	onlineCalls   int
	offlineCalls  int
	offlineErr    error
	disconnects   int
	handler       IncomingCallHandler
	stateHandlers []func(CallStateEvent)
	panicOnClose  bool

	done      chan struct{}
	closeOnce sync.Once
}

func (c *fakeClient) Online(ctx context.Context, handler IncomingCallHandler) error {
	c.mu.Lock()
	c.onlineCalls++
	c.handler = handler
	c.mu.Unlock()
	return c.factory.nextOnline(ctx)
}

func (c *fakeClient) Offline(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offlineCalls++
	return c.offlineErr
}

func (c *fakeClient) SubscriberInfo(ctx context.Context) (*Subscriber, error) {
	return c.factory.subscriber, c.factory.subscriberErr
}

func (c *fakeClient) OnCallState(handler func(CallStateEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandlers = append(c.stateHandlers, handler)
}

func (c *fakeClient) Disconnect() error {
	c.mu.Lock()
	c.disconnects++
	panicking := c.panicOnClose
	c.mu.Unlock()
	c.drop()
	if panicking {
		panic("socket already torn down")
	}
	return nil
}

func (c *fakeClient) Done() <-chan struct{} {
	return c.done
}

// drop closes the connection as a network failure would.
func (c *fakeClient) drop() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *fakeClient) fireState(ev CallStateEvent) {
	c.mu.Lock()
	handlers := append([]func(CallStateEvent){}, c.stateHandlers...)
	c.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (c *fakeClient) listenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stateHandlers)
}

func (c *fakeClient) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

type fakeFactory struct {
	mu            sync.Mutex
	onlineErrs    []error
	onlineGate    chan struct{}
	newErr        error
	subscriber    *Subscriber
	subscriberErr error
	clients       []*fakeClient
}

func (f *fakeFactory) NewClient(ctx context.Context, host, token string) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return nil, f.newErr
	}
	c := &fakeClient{factory: f, token: token, done: make(chan struct{})}
	f.clients = append(f.clients, c)
	return c, nil
}

func (f *fakeFactory) nextOnline(ctx context.Context) error {
	f.mu.Lock()
	gate := f.onlineGate
	var err error
	if len(f.onlineErrs) > 0 {
		err = f.onlineErrs[0]
		f.onlineErrs = f.onlineErrs[1:]
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeFactory) clientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *fakeFactory) client(i int) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[i]
}

func (f *fakeFactory) totalOnlineCalls() int {
	f.mu.Lock()
	clients := append([]*fakeClient{}, f.clients...)
	f.mu.Unlock()
	total := 0
	for _, c := range clients {
		c.mu.Lock()
		total += c.onlineCalls
		c.mu.Unlock()
	}
	return total
}

type fakeTokens struct {
	mu        sync.Mutex
	calls     int
	err       error
	expiresAt time.Time
}

func (f *fakeTokens) Create(ctx context.Context) (*tokens.SessionToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &tokens.SessionToken{Raw: fmt.Sprintf("sat-%d", f.calls), ExpiresAt: f.expiresAt}, nil
}

func (f *fakeTokens) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCallInfo struct {
	mu    sync.Mutex
	infos map[string]*callinfo.CallInfo
	gates map[string]chan struct{}
	done  chan string
}

func (f *fakeCallInfo) Get(ctx context.Context, callID string) (*callinfo.CallInfo, error) {
	f.mu.Lock()
	gate := f.gates[callID]
	info, ok := f.infos[callID]
	done := f.done
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if done != nil {
		defer func() { done <- callID }()
	}
	if !ok {
		return nil, fmt.Errorf("API error: 404 - Call info not found")
	}
	return info, nil
}

type fakeCall struct {
	id string

	mu        sync.Mutex
	hangupErr error
	hangups   int
	onEnded   []func()
}

func (c *fakeCall) ID() string { return c.id }

func (c *fakeCall) Hangup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hangups++
	return c.hangupErr
}

func (c *fakeCall) OnEnded(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEnded = append(c.onEnded, fn)
}

func (c *fakeCall) end() {
	c.mu.Lock()
	fns := c.onEnded
	c.onEnded = nil
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (c *fakeCall) hangupCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hangups
}

type fakeInvite struct {
	details CallerDetails
	call    *fakeCall

	mu        sync.Mutex
	acceptErr error
	rejectErr error
	accepts   []AcceptOptions
	rejects   int
	rejected  chan struct{}
}

func (i *fakeInvite) Details() CallerDetails { return i.details }

func (i *fakeInvite) Accept(ctx context.Context, opts AcceptOptions) (Call, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.accepts = append(i.accepts, opts)
	if i.acceptErr != nil {
		return nil, i.acceptErr
	}
	return i.call, nil
}

func (i *fakeInvite) Reject(ctx context.Context) error {
	i.mu.Lock()
	i.rejects++
	ch := i.rejected
	err := i.rejectErr
	i.mu.Unlock()
	if ch != nil {
		close(ch)
	}
	return err
}

func newInvite(name, number, callID string) *fakeInvite {
	return &fakeInvite{
		details: CallerDetails{CallID: callID, CallerIDName: name, CallerIDNumber: number},
		call:    &fakeCall{id: callID},
	}
}

type fakePresence struct {
	ids chan string
}

func (p *fakePresence) Beacon(subscriberID string) <-chan error {
	p.ids <- subscriberID
	result := make(chan error, 1)
	result <- nil
	close(result)
	return result
}

type harness struct {
	c        *Coordinator
	factory  *fakeFactory
	tokens   *fakeTokens
	callInfo *fakeCallInfo
	presence *fakePresence

	mu     sync.Mutex
	sleeps []time.Duration
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		factory:  &fakeFactory{},
		tokens:   &fakeTokens{},
		callInfo: &fakeCallInfo{infos: map[string]*callinfo.CallInfo{}, gates: map[string]chan struct{}{}},
		presence: &fakePresence{ids: make(chan string, 4)},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	cfg := DefaultConfig()
	cfg.Logger = log.New(io.Discard, "", 0)
	cfg.Sleep = func(ctx context.Context, d time.Duration) error {
		h.mu.Lock()
		h.sleeps = append(h.sleeps, d)
		h.mu.Unlock()
		return ctx.Err()
	}
	cfg.Now = func() time.Time {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.now
	}

	c, err := New(Dependencies{
		Clients:  h.factory,
		Tokens:   h.tokens,
		CallInfo: h.callInfo,
		Presence: h.presence,
	}, cfg)
	if err != nil {
		t.Fatalf("Failed to create coordinator: %v", err)
	}
	h.c = c
	return h
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func (h *harness) sleepCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sleeps)
}

// goOnline brings the harness online and returns the connected client.
func (h *harness) goOnline(t *testing.T) *fakeClient {
	t.Helper()
	if err := h.c.GoOnline(context.Background(), "relay.example.com", ""); err != nil {
		t.Fatalf("GoOnline failed: %v", err)
	}
	return h.factory.client(h.factory.clientCount() - 1)
}

// events records every payload emitted for key.
func events(c *Coordinator, key EventKey) <-chan interface{} {
	ch := make(chan interface{}, 16)
	c.Emitter.On(key, func(data interface{}) { ch <- data })
	return ch
}

func waitFor(t *testing.T, ch <-chan interface{}) interface{} {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event")
		return nil
	}
}
