/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package dashboard

import (
	"github.com/tejzpr/livewire-go/callinfo"
	"github.com/tejzpr/livewire-go/tokens"
)

// sessionState is owned by a Coordinator and only touched under its mutex.
//
// Invariants at every unlock:
//   - call != nil implies callAccepted
//   - invite and call are never both set
//   - listenersAttached refers to the current client only
type sessionState struct {
	client            Client
	listenersAttached bool
	token             *tokens.SessionToken

	invite       Invite
	call         Call
	callAccepted bool
	callerName   string

	cachedCallInfo *callinfo.CallInfo
	subscriberInfo *Subscriber

	// generation advances on every incoming call; enrichment results from an
	// older generation are dropped.
	generation uint64

	status      Status
	goingOnline bool
}

// resetCall clears the call, the invite and the acceptance flag.
func (s *sessionState) resetCall() {
	s.call = nil
	s.invite = nil
	s.callAccepted = false
	s.callerName = ""
}

// Snapshot is a point-in-time copy of the session state
type Snapshot struct {
	Status         Status
	Connected      bool
	HasInvite      bool
	HasCall        bool
	CallID         string
	CallAccepted   bool
	CallerName     string
	CallInfo       *callinfo.CallInfo
	Subscriber     *Subscriber
	Generation     uint64
	ListenersReady bool
}

func (s *sessionState) snapshot() Snapshot {
	snap := Snapshot{
		Status:         s.status,
		Connected:      s.client != nil,
		HasInvite:      s.invite != nil,
		HasCall:        s.call != nil,
		CallAccepted:   s.callAccepted,
		CallerName:     s.callerName,
		Generation:     s.generation,
		ListenersReady: s.listenersAttached,
	}
	if s.call != nil {
		snap.CallID = s.call.ID()
	}
	if s.cachedCallInfo != nil {
		info := *s.cachedCallInfo
		snap.CallInfo = &info
	}
	if s.subscriberInfo != nil {
		sub := *s.subscriberInfo
		snap.Subscriber = &sub
	}
	return snap
}

// DefaultSubscriber is used when the relay does not report a profile.
func DefaultSubscriber() Subscriber {
	return Subscriber{
		ID:        "unknown",
		FirstName: "Demo",
		LastName:  "Agent",
		Email:     "agent@example.com",
	}
}

// mergeSubscriber overlays the non-empty fields of info on the defaults.
func mergeSubscriber(info *Subscriber) Subscriber {
	merged := DefaultSubscriber()
	if info == nil {
		return merged
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&merged.ID, info.ID)
	set(&merged.FirstName, info.FirstName)
	set(&merged.LastName, info.LastName)
	set(&merged.Email, info.Email)
	set(&merged.DisplayName, info.DisplayName)
	set(&merged.JobTitle, info.JobTitle)
	set(&merged.TimeZone, info.TimeZone)
	set(&merged.Country, info.Country)
	set(&merged.Region, info.Region)
	set(&merged.CompanyName, info.CompanyName)
	return merged
}
