/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tejzpr/livewire-go/callinfo"
)

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Dependencies{}, nil); err == nil {
		t.Error("Expected error without a client factory")
	}
	if _, err := New(Dependencies{Clients: &fakeFactory{}}, nil); err == nil {
		t.Error("Expected error without a token source")
	}
	if _, err := New(Dependencies{Clients: &fakeFactory{}, Tokens: &fakeTokens{}}, nil); err == nil {
		t.Error("Expected error without a call info source")
	}
}

func TestGoOnline_SucceedsAfterFailures(t *testing.T) {
	for failures := 0; failures < 3; failures++ {
		h := newHarness(t)
		for i := 0; i < failures; i++ {
			h.factory.onlineErrs = append(h.factory.onlineErrs, errors.New("websocket: bad handshake"))
		}

		if err := h.c.GoOnline(context.Background(), "relay.example.com", ""); err != nil {
			t.Fatalf("failures=%d: unexpected error: %v", failures, err)
		}
		if h.c.Status() != StatusOnline {
			t.Errorf("failures=%d: expected status online, got %s", failures, h.c.Status())
		}
		if got := h.factory.clientCount(); got != 1 {
			t.Errorf("failures=%d: expected exactly one client, got %d", failures, got)
		}
		if got := h.factory.totalOnlineCalls(); got != failures+1 {
			t.Errorf("failures=%d: expected %d online calls, got %d", failures, failures+1, got)
		}
		if got := h.sleepCount(); got != failures {
			t.Errorf("failures=%d: expected %d pauses, got %d", failures, failures, got)
		}
	}
}

func TestGoOnline_FailsAfterThreeAttempts(t *testing.T) {
	h := newHarness(t)
	statuses := events(h.c, EventStatus)
	h.factory.onlineErrs = []error{
		errors.New("connection refused"),
		errors.New("connection refused"),
		errors.New("connection refused"),
		errors.New("never reached"),
	}

	err := h.c.GoOnline(context.Background(), "relay.example.com", "")

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Expected ConnectionError, got %v", err)
	}
	if connErr.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", connErr.Attempts)
	}
	if h.c.Status() != StatusFailed {
		t.Errorf("Expected status failed, got %s", h.c.Status())
	}
	if got := h.factory.totalOnlineCalls(); got != 3 {
		t.Errorf("Expected 3 online calls, got %d", got)
	}
	if got := h.sleepCount(); got != 2 {
		t.Errorf("Expected 2 pauses, got %d", got)
	}
	if h.sleeps[0] != 1500*time.Millisecond {
		t.Errorf("Expected a 1500ms pause, got %v", h.sleeps[0])
	}
	if got := h.tokens.count(); got != 1 {
		t.Errorf("Expected no token refresh for non-auth failures, got %d token requests", got)
	}

	first := waitFor(t, statuses).(StatusChange)
	if first.Status != StatusConnecting {
		t.Errorf("Expected connecting first, got %s", first.Status)
	}
	last := waitFor(t, statuses).(StatusChange)
	if last.Status != StatusFailed || last.Presentation.CallStatus != "Failed to connect." {
		t.Errorf("Expected failed presentation, got %+v", last)
	}
}

func TestGoOnline_RefreshesTokenOnce(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 6; i++ {
		h.factory.onlineErrs = append(h.factory.onlineErrs, errors.New("401 unauthorized"))
	}

	err := h.c.GoOnline(context.Background(), "relay.example.com", "")
	if err == nil {
		t.Fatal("Expected GoOnline to fail")
	}

	// One initial token plus exactly one refresh.
	if got := h.tokens.count(); got != 2 {
		t.Errorf("Expected 2 token requests, got %d", got)
	}
	if got := h.factory.clientCount(); got != 2 {
		t.Errorf("Expected 2 clients, got %d", got)
	}
	// The refresh replays the failed attempt without consuming it.
	if got := h.factory.totalOnlineCalls(); got != 4 {
		t.Errorf("Expected 4 online calls, got %d", got)
	}
	if h.c.Status() != StatusFailed {
		t.Errorf("Expected status failed, got %s", h.c.Status())
	}
}

func TestGoOnline_UnauthorizedThenRefreshSucceeds(t *testing.T) {
	h := newHarness(t)
	h.factory.onlineErrs = []error{errors.New("401 unauthorized")}

	if err := h.c.GoOnline(context.Background(), "relay.example.com", "pasted-token"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got := h.tokens.count(); got != 1 {
		t.Errorf("Expected exactly one refresh, got %d token requests", got)
	}
	if h.c.Status() != StatusOnline {
		t.Errorf("Expected status online, got %s", h.c.Status())
	}
	if got := h.sleepCount(); got != 0 {
		t.Errorf("Expected the refresh to skip the pause, got %d pauses", got)
	}

	first, second := h.factory.client(0), h.factory.client(1)
	if first.token != "pasted-token" {
		t.Errorf("Expected the pasted token for the first client, got %q", first.token)
	}
	if second.token != "sat-1" {
		t.Errorf("Expected the refreshed token for the second client, got %q", second.token)
	}
	if first.disconnectCount() != 1 {
		t.Error("Expected the replaced client to be disconnected")
	}
	if second.listenerCount() != 1 {
		t.Errorf("Expected one call-state listener on the new client, got %d", second.listenerCount())
	}
	if !h.c.Snapshot().ListenersReady {
		t.Error("Expected listeners to be marked attached")
	}
}

func TestGoOnline_ListenersAttachedOncePerClient(t *testing.T) {
	h := newHarness(t)
	client := h.goOnline(t)

	if err := h.c.GoOnline(context.Background(), "relay.example.com", ""); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if h.factory.clientCount() != 1 {
		t.Errorf("Expected the existing client to be reused, got %d clients", h.factory.clientCount())
	}
	if client.listenerCount() != 1 {
		t.Errorf("Expected one listener, got %d", client.listenerCount())
	}
}

func TestGoOnline_TokenFailure(t *testing.T) {
	h := newHarness(t)
	h.tokens.err = errors.New("backend unavailable")

	err := h.c.GoOnline(context.Background(), "relay.example.com", "")

	var tokenErr *TokenAcquisitionError
	if !errors.As(err, &tokenErr) {
		t.Fatalf("Expected TokenAcquisitionError inside %v", err)
	}
	if got := h.tokens.count(); got != 3 {
		t.Errorf("Expected 3 token requests, got %d", got)
	}
	if h.factory.clientCount() != 0 {
		t.Error("Expected no client without a token")
	}
}

func TestGoOnline_Reentrancy(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.factory.onlineGate = gate

	first := make(chan error, 1)
	go func() {
		first <- h.c.GoOnline(context.Background(), "relay.example.com", "")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.factory.totalOnlineCalls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("First GoOnline never reached the relay")
		}
		time.Sleep(time.Millisecond)
	}

	if err := h.c.GoOnline(context.Background(), "relay.example.com", ""); !errors.Is(err, ErrAlreadyConnecting) {
		t.Errorf("Expected ErrAlreadyConnecting, got %v", err)
	}

	close(gate)
	if err := <-first; err != nil {
		t.Fatalf("First GoOnline failed: %v", err)
	}
	if h.factory.clientCount() != 1 {
		t.Errorf("Expected one client, got %d", h.factory.clientCount())
	}
}

func TestGoOnline_ExpiredTokenReplacesClient(t *testing.T) {
	h := newHarness(t)
	h.tokens.expiresAt = h.now.Add(time.Hour)
	first := h.goOnline(t)

	h.advance(2 * time.Hour)
	h.tokens.expiresAt = h.now.Add(time.Hour)

	second := h.goOnline(t)
	if first == second {
		t.Fatal("Expected a new client after the token expired")
	}
	if first.disconnectCount() != 1 {
		t.Error("Expected the expired client to be disconnected")
	}
	if got := h.tokens.count(); got != 2 {
		t.Errorf("Expected a second token, got %d requests", got)
	}
}

func TestGoOnline_SubscriberInfo(t *testing.T) {
	t.Run("Merged over defaults", func(t *testing.T) {
		h := newHarness(t)
		h.factory.subscriber = &Subscriber{ID: "sub-7", Email: "ada@example.com"}
		subs := events(h.c, EventSubscriber)
		h.goOnline(t)

		got := waitFor(t, subs).(Subscriber)
		if got.ID != "sub-7" || got.Email != "ada@example.com" || got.FirstName != "Demo" {
			t.Errorf("Unexpected subscriber %+v", got)
		}
	})

	t.Run("Defaults on error", func(t *testing.T) {
		h := newHarness(t)
		h.factory.subscriberErr = errors.New("not available")
		h.goOnline(t)

		snap := h.c.Snapshot()
		if snap.Subscriber == nil || *snap.Subscriber != DefaultSubscriber() {
			t.Errorf("Expected default subscriber, got %+v", snap.Subscriber)
		}
	})
}

func TestGoOffline(t *testing.T) {
	h := newHarness(t)
	client := h.goOnline(t)
	client.offlineErr = errors.New("relay gone")

	if err := h.c.GoOffline(context.Background()); err == nil {
		t.Error("Expected the offline failure to be returned")
	}
	if h.c.Status() != StatusOffline {
		t.Errorf("Expected status offline, got %s", h.c.Status())
	}
	if client.offlineCalls != 1 {
		t.Errorf("Expected one offline call, got %d", client.offlineCalls)
	}

	fresh := newHarness(t)
	if err := fresh.c.GoOffline(context.Background()); err != nil {
		t.Errorf("Expected no error without a client, got %v", err)
	}
	if fresh.c.Status() != StatusOffline {
		t.Errorf("Expected status offline, got %s", fresh.c.Status())
	}
}

func TestConnectionLost(t *testing.T) {
	h := newHarness(t)
	client := h.goOnline(t)
	h.c.HandleIncomingCall(Notification{Invite: newInvite("Ada", "", "c1")})
	statuses := events(h.c, EventStatus)
	dismissed := events(h.c, EventIncomingDismissed)
	alerts := events(h.c, EventAlert)

	client.drop()

	change := waitFor(t, statuses).(StatusChange)
	if change.Status != StatusFailed {
		t.Errorf("Expected status failed, got %s", change.Status)
	}
	waitFor(t, dismissed)
	waitFor(t, alerts)

	snap := h.c.Snapshot()
	if snap.Connected || snap.HasInvite || snap.HasCall || snap.ListenersReady {
		t.Errorf("Expected the session to be cleared, got %+v", snap)
	}

	if err := h.c.GoOnline(context.Background(), "relay.example.com", ""); err != nil {
		t.Fatalf("Expected to go online again, got %v", err)
	}
	if h.c.Status() != StatusOnline {
		t.Errorf("Expected status online, got %s", h.c.Status())
	}
	if got := h.factory.clientCount(); got != 2 {
		t.Errorf("Expected a fresh client, got %d clients", got)
	}
	if got := h.tokens.count(); got != 2 {
		t.Errorf("Expected a fresh token, got %d requests", got)
	}
}

func TestConnectionLost_ActiveCall(t *testing.T) {
	h := newHarness(t)
	client := h.goOnline(t)
	invite := newInvite("Ada", "", "c1")
	h.c.HandleIncomingCall(Notification{Invite: invite})
	if err := h.c.AcceptCall(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	statuses := events(h.c, EventStatus)

	client.drop()
	waitFor(t, statuses)
	invite.call.end()

	if snap := h.c.Snapshot(); snap.HasCall || snap.Status != StatusFailed {
		t.Errorf("Expected no call and status failed, got %+v", snap)
	}
}

func TestGoOnline_DiscardsClosedClient(t *testing.T) {
	h := newHarness(t)
	closed := &fakeClient{factory: h.factory, done: make(chan struct{})}
	closed.drop()
	h.c.mu.Lock()
	h.c.st.client = closed
	h.c.mu.Unlock()

	if err := h.c.GoOnline(context.Background(), "relay.example.com", ""); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if closed.onlineCalls != 0 {
		t.Errorf("Expected no online call on a closed client, got %d", closed.onlineCalls)
	}
	if got := h.factory.clientCount(); got != 1 {
		t.Errorf("Expected a fresh client, got %d", got)
	}
}

func TestHandleIncomingCall(t *testing.T) {
	tests := []struct {
		name   string
		invite *fakeInvite
		want   string
	}{
		{"Undefined name", newInvite("_undef_", "+15551234567", "c1"), "+15551234567"},
		{"Both undefined", newInvite("_undef_", "_undef_", "c2"), "Unknown Caller"},
		{"Named caller", newInvite("Ada Lovelace", "+15551234567", "c3"), "Ada Lovelace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.goOnline(t)
			incoming := events(h.c, EventIncomingCall)

			h.c.HandleIncomingCall(Notification{Invite: tt.invite})

			got := waitFor(t, incoming).(IncomingCall)
			if got.CallerName != tt.want {
				t.Errorf("Expected caller %q, got %q", tt.want, got.CallerName)
			}
			snap := h.c.Snapshot()
			if snap.Status != StatusIncoming || !snap.HasInvite || snap.CallerName != tt.want {
				t.Errorf("Unexpected snapshot %+v", snap)
			}
		})
	}
}

func TestHandleIncomingCall_ClearsCachedInfo(t *testing.T) {
	h := newHarness(t)
	client := h.goOnline(t)
	h.callInfo.infos["parent-1"] = &callinfo.CallInfo{FirstName: "Ada"}
	infos := events(h.c, EventCallInfo)

	h.c.HandleIncomingCall(Notification{Invite: newInvite("Ada", "", "c1")})
	client.fireState(CallStateEvent{CallID: "c1", State: CallStateCreated, ParentCallID: "parent-1"})
	waitFor(t, infos)
	if h.c.Snapshot().CallInfo == nil {
		t.Fatal("Expected cached call info")
	}

	_ = h.c.RejectCall(context.Background())
	h.c.HandleIncomingCall(Notification{Invite: newInvite("Bob", "", "c2")})
	if h.c.Snapshot().CallInfo != nil {
		t.Error("Expected a new call to clear cached info")
	}
}

func TestHandleIncomingCall_BusyRejects(t *testing.T) {
	h := newHarness(t)
	h.goOnline(t)
	first := newInvite("Ada", "", "c1")
	h.c.HandleIncomingCall(Notification{Invite: first})
	if err := h.c.AcceptCall(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	second := newInvite("Bob", "", "c2")
	second.rejected = make(chan struct{})
	h.c.HandleIncomingCall(Notification{Invite: second})

	select {
	case <-second.rejected:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the second invite to be rejected")
	}
	snap := h.c.Snapshot()
	if snap.HasInvite || !snap.HasCall || snap.Status != StatusInCall {
		t.Errorf("Expected the active call to be untouched, got %+v", snap)
	}
}

func TestAcceptCall_NoPendingInvite(t *testing.T) {
	h := newHarness(t)
	h.goOnline(t)
	before := h.c.Snapshot()

	err := h.c.AcceptCall(context.Background())

	var noInvite *NoPendingInviteError
	if !errors.As(err, &noInvite) || !errors.Is(err, ErrNoPendingInvite) {
		t.Fatalf("Expected NoPendingInviteError, got %v", err)
	}
	after := h.c.Snapshot()
	if *after.Subscriber != *before.Subscriber || after.CallInfo != nil || before.CallInfo != nil {
		t.Errorf("Expected profile and call info unchanged, before %+v after %+v", before, after)
	}
	after.Subscriber, before.Subscriber = nil, nil
	if after != before {
		t.Errorf("Expected state unchanged, before %+v after %+v", before, after)
	}
}

func TestAcceptCall(t *testing.T) {
	h := newHarness(t)
	h.goOnline(t)
	invite := newInvite("Ada", "", "c1")
	h.c.HandleIncomingCall(Notification{Invite: invite})

	if err := h.c.AcceptCall(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(invite.accepts) != 1 || invite.accepts[0] != (AcceptOptions{Audio: true, Video: false}) {
		t.Errorf("Expected one audio-only accept, got %+v", invite.accepts)
	}
	snap := h.c.Snapshot()
	if snap.Status != StatusInCall || !snap.HasCall || !snap.CallAccepted || snap.HasInvite {
		t.Errorf("Unexpected snapshot after accept %+v", snap)
	}
	if snap.CallID != "c1" {
		t.Errorf("Expected call c1, got %q", snap.CallID)
	}

	// Remote hangup.
	invite.call.end()
	snap = h.c.Snapshot()
	if snap.Status != StatusOnline || snap.HasCall || snap.HasInvite || snap.CallAccepted {
		t.Errorf("Expected reset after the call ended, got %+v", snap)
	}
}

func TestAcceptCall_Failure(t *testing.T) {
	h := newHarness(t)
	h.goOnline(t)
	alerts := events(h.c, EventAlert)
	invite := newInvite("Ada", "", "c1")
	invite.acceptErr = errors.New("media negotiation failed")
	h.c.HandleIncomingCall(Notification{Invite: invite})

	err := h.c.AcceptCall(context.Background())

	var acceptErr *AcceptFailedError
	if !errors.As(err, &acceptErr) {
		t.Fatalf("Expected AcceptFailedError, got %v", err)
	}
	if msg := waitFor(t, alerts).(string); msg != "Failed to accept call: media negotiation failed" {
		t.Errorf("Unexpected alert %q", msg)
	}
	snap := h.c.Snapshot()
	if !snap.HasInvite || snap.HasCall || snap.CallAccepted || snap.Status != StatusIncoming {
		t.Errorf("Expected the invite to stay pending, got %+v", snap)
	}

	// A retry can still succeed.
	invite.acceptErr = nil
	if err := h.c.AcceptCall(context.Background()); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
}

func TestRejectCall(t *testing.T) {
	tests := []struct {
		name      string
		rejectErr error
	}{
		{"Reject succeeds", nil},
		{"Reject fails", errors.New("already gone")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.goOnline(t)
			invite := newInvite("Ada", "", "c1")
			invite.rejectErr = tt.rejectErr
			h.c.HandleIncomingCall(Notification{Invite: invite})

			if err := h.c.RejectCall(context.Background()); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			snap := h.c.Snapshot()
			if snap.HasInvite || snap.HasCall || snap.CallAccepted || snap.Status != StatusOnline {
				t.Errorf("Unexpected snapshot after reject %+v", snap)
			}
			if invite.rejects != 1 {
				t.Errorf("Expected one reject, got %d", invite.rejects)
			}
			if len(invite.accepts) != 0 {
				t.Error("No call should ever be created")
			}
		})
	}

	t.Run("No pending invite", func(t *testing.T) {
		h := newHarness(t)
		if err := h.c.RejectCall(context.Background()); !errors.Is(err, ErrNoPendingInvite) {
			t.Errorf("Expected ErrNoPendingInvite, got %v", err)
		}
	})
}

func TestHangupCall(t *testing.T) {
	tests := []struct {
		name      string
		hangupErr error
	}{
		{"Hangup succeeds", nil},
		{"Hangup fails", errors.New("call not found")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.goOnline(t)
			invite := newInvite("Ada", "", "c1")
			invite.call.hangupErr = tt.hangupErr
			h.c.HandleIncomingCall(Notification{Invite: invite})
			if err := h.c.AcceptCall(context.Background()); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			_ = h.c.HangupCall(context.Background())

			snap := h.c.Snapshot()
			if snap.HasCall || snap.HasInvite || snap.CallAccepted || snap.Status != StatusOnline {
				t.Errorf("Unexpected snapshot after hangup %+v", snap)
			}
			if invite.call.hangupCount() != 1 {
				t.Errorf("Expected one hangup, got %d", invite.call.hangupCount())
			}

			// The ended callback arriving later is a no-op.
			invite.call.end()
			if h.c.Status() != StatusOnline {
				t.Errorf("Expected status online, got %s", h.c.Status())
			}
		})
	}
}

func TestEnrichment_AfterAccept(t *testing.T) {
	h := newHarness(t)
	client := h.goOnline(t)
	gate := make(chan struct{})
	h.callInfo.gates["parent-1"] = gate
	h.callInfo.infos["parent-1"] = &callinfo.CallInfo{FirstName: "Ada", LastName: "Lovelace", Summary: "Billing"}
	infos := events(h.c, EventCallInfo)

	h.c.HandleIncomingCall(Notification{Invite: newInvite("Ada", "", "c1")})
	client.fireState(CallStateEvent{CallID: "c1", State: CallStateCreated, ParentCallID: "parent-1"})

	if err := h.c.AcceptCall(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	atAccept := waitFor(t, infos).(CallInfoUpdate)
	if atAccept.Info != nil || atAccept.Dashboard != "No info provided." {
		t.Errorf("Expected blank info at accept, got %+v", atAccept)
	}

	close(gate)
	update := waitFor(t, infos).(CallInfoUpdate)
	if !update.Visible {
		t.Error("Expected late info to be visible after accept")
	}
	if update.Dashboard != "Caller: Ada Lovelace\nSummary: Billing" {
		t.Errorf("Unexpected dashboard text %q", update.Dashboard)
	}
	if update.Incoming != "Name: Ada Lovelace\nSummary: Billing" {
		t.Errorf("Unexpected incoming text %q", update.Incoming)
	}

	snap := h.c.Snapshot()
	if !snap.CallAccepted || !snap.HasCall || snap.CallID != "c1" {
		t.Errorf("Enrichment must not alter the call, got %+v", snap)
	}
	if snap.CallInfo == nil || snap.CallInfo.Summary != "Billing" {
		t.Errorf("Expected cached info, got %+v", snap.CallInfo)
	}
}

func TestEnrichment_BeforeAccept(t *testing.T) {
	h := newHarness(t)
	client := h.goOnline(t)
	h.callInfo.infos["parent-1"] = &callinfo.CallInfo{Summary: "Wants a refund"}
	infos := events(h.c, EventCallInfo)

	h.c.HandleIncomingCall(Notification{Invite: newInvite("Ada", "", "c1")})
	client.fireState(CallStateEvent{CallID: "c1", State: CallStateCreated, ParentCallID: "parent-1"})

	early := waitFor(t, infos).(CallInfoUpdate)
	if early.Visible {
		t.Error("Info must stay hidden on the dashboard until accept")
	}
	if early.Incoming != "Summary: Wants a refund" {
		t.Errorf("Unexpected incoming text %q", early.Incoming)
	}

	if err := h.c.AcceptCall(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	atAccept := waitFor(t, infos).(CallInfoUpdate)
	if !atAccept.Visible || atAccept.Info == nil || atAccept.Info.Summary != "Wants a refund" {
		t.Errorf("Expected cached info to render at accept, got %+v", atAccept)
	}
}

func TestEnrichment_FailureClearsCache(t *testing.T) {
	h := newHarness(t)
	client := h.goOnline(t)
	infos := events(h.c, EventCallInfo)

	h.c.HandleIncomingCall(Notification{Invite: newInvite("Ada", "", "c1")})
	client.fireState(CallStateEvent{CallID: "c1", State: CallStateCreated, ParentCallID: "missing"})

	update := waitFor(t, infos).(CallInfoUpdate)
	if update.Info != nil || update.Incoming != "No info provided." {
		t.Errorf("Expected empty info after a failed fetch, got %+v", update)
	}
	if h.c.Snapshot().CallInfo != nil {
		t.Error("Expected cached info to be nil")
	}
}

func TestEnrichment_StaleResultDropped(t *testing.T) {
	h := newHarness(t)
	client := h.goOnline(t)
	gate := make(chan struct{})
	h.callInfo.gates["parent-old"] = gate
	h.callInfo.infos["parent-old"] = &callinfo.CallInfo{FirstName: "Old"}
	h.callInfo.done = make(chan string, 4)

	h.c.HandleIncomingCall(Notification{Invite: newInvite("Old", "", "c1")})
	client.fireState(CallStateEvent{CallID: "c1", State: CallStateCreated, ParentCallID: "parent-old"})
	if err := h.c.RejectCall(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	h.c.HandleIncomingCall(Notification{Invite: newInvite("New", "", "c2")})

	close(gate)
	select {
	case <-h.callInfo.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stale fetch never finished")
	}
	time.Sleep(20 * time.Millisecond)

	if info := h.c.Snapshot().CallInfo; info != nil {
		t.Errorf("Expected the stale result to be dropped, got %+v", info)
	}
}

func TestCallStateEnded_DismissesIncoming(t *testing.T) {
	h := newHarness(t)
	client := h.goOnline(t)
	dismissed := events(h.c, EventIncomingDismissed)

	h.c.HandleIncomingCall(Notification{Invite: newInvite("Ada", "", "c1")})
	client.fireState(CallStateEvent{CallID: "c1", State: CallStateEnded})

	waitFor(t, dismissed)
}

func TestCallState_IgnoresReplacedClient(t *testing.T) {
	h := newHarness(t)
	h.factory.onlineErrs = []error{errors.New("token rejected")}
	h.goOnline(t)
	stale := h.factory.client(0)
	dismissed := events(h.c, EventIncomingDismissed)

	stale.fireState(CallStateEvent{CallID: "c1", State: CallStateEnded})

	select {
	case <-dismissed:
		t.Error("Events from a replaced client must be ignored")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestCleanupBeforeUnload(t *testing.T) {
	h := newHarness(t)
	h.factory.subscriber = &Subscriber{ID: "sub-9"}
	client := h.goOnline(t)
	client.panicOnClose = true
	invite := newInvite("Ada", "", "c1")
	h.c.HandleIncomingCall(Notification{Invite: invite})
	if err := h.c.AcceptCall(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	start := time.Now()
	done := h.c.CleanupBeforeUnload()
	if time.Since(start) > 100*time.Millisecond {
		t.Error("CleanupBeforeUnload must not block")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Cleanup never finished")
	}

	if invite.call.hangupCount() != 1 {
		t.Error("Expected the active call to be hung up")
	}
	if client.disconnectCount() != 1 {
		t.Error("Expected the client to be disconnected")
	}
	select {
	case id := <-h.presence.ids:
		if id != "sub-9" {
			t.Errorf("Expected offline beacon for sub-9, got %q", id)
		}
	default:
		t.Error("Expected an offline beacon even after a panicking disconnect")
	}
	if snap := h.c.Snapshot(); snap.Connected || snap.HasCall || snap.Status != StatusOffline {
		t.Errorf("Expected a torn down session, got %+v", snap)
	}
}

func TestCleanupBeforeUnload_NothingToDo(t *testing.T) {
	h := newHarness(t)
	select {
	case <-h.c.CleanupBeforeUnload():
	case <-time.After(2 * time.Second):
		t.Fatal("Cleanup never finished")
	}
	select {
	case id := <-h.presence.ids:
		t.Errorf("No beacon expected without a subscriber, got %q", id)
	default:
	}
}
