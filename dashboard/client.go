/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package dashboard

import (
	"context"

	"github.com/tejzpr/livewire-go/callinfo"
	"github.com/tejzpr/livewire-go/tokens"
)

// CallState is a call leg state reported by the communication client
type CallState string

const (
	CallStateCreated  CallState = "created"
	CallStateRinging  CallState = "ringing"
	CallStateAnswered CallState = "answered"
	CallStateEnding   CallState = "ending"
	CallStateEnded    CallState = "ended"
)

// CallerDetails are the caller-ID fields carried by an invite
type CallerDetails struct {
	CallID         string `json:"call_id,omitempty"`
	CallerIDName   string `json:"caller_id_name,omitempty"`
	CallerIDNumber string `json:"caller_id_number,omitempty"`
}

// CallStateEvent is a call.state event
type CallStateEvent struct {
	CallID       string    `json:"call_id"`
	State        CallState `json:"call_state"`
	ParentCallID string    `json:"parent_call_id,omitempty"`
}

// Notification is delivered for every inbound call
type Notification struct {
	Invite Invite
}

// IncomingCallHandler receives inbound call notifications
type IncomingCallHandler func(Notification)

// AcceptOptions selects the media to answer with
type AcceptOptions struct {
	Audio bool
	Video bool
}

// Subscriber is the operator's own profile
type Subscriber struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	JobTitle    string `json:"job_title,omitempty"`
	TimeZone    string `json:"time_zone,omitempty"`
	Country     string `json:"country,omitempty"`
	Region      string `json:"region,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

// Client is a connected communication client
type Client interface {
	// Online starts receiving calls; every invite is passed to handler.
	Online(ctx context.Context, handler IncomingCallHandler) error
	// Offline stops receiving calls without disconnecting.
	Offline(ctx context.Context) error
	// SubscriberInfo returns the authenticated operator's profile.
	SubscriberInfo(ctx context.Context) (*Subscriber, error)
	// OnCallState registers a call.state listener.
	OnCallState(handler func(CallStateEvent))
	// Disconnect closes the connection. Calling it twice is safe.
	Disconnect() error
	// Done is closed once the connection has gone away, whether through
	// Disconnect or a network failure.
	Done() <-chan struct{}
}

// Invite is a pending inbound call offer
type Invite interface {
	Details() CallerDetails
	Accept(ctx context.Context, opts AcceptOptions) (Call, error)
	Reject(ctx context.Context) error
}

// Call is an accepted call
type Call interface {
	ID() string
	Hangup(ctx context.Context) error
	// OnEnded registers a callback fired once when the call ends for any
	// reason. It fires immediately if the call has already ended.
	OnEnded(fn func())
}

// ClientFactory constructs clients from a relay host and session token
type ClientFactory interface {
	NewClient(ctx context.Context, host, token string) (Client, error)
}

// TokenSource issues session tokens
type TokenSource interface {
	Create(ctx context.Context) (*tokens.SessionToken, error)
}

// CallInfoSource looks up caller metadata
type CallInfoSource interface {
	Get(ctx context.Context, callID string) (*callinfo.CallInfo, error)
}

// PresenceNotifier tells the backend the operator has left
type PresenceNotifier interface {
	Beacon(subscriberID string) <-chan error
}
