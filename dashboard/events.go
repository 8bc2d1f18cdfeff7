/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package dashboard

import (
	"sync"

	"github.com/tejzpr/livewire-go/callinfo"
)

// EventKey identifies a coordinator event
type EventKey string

const (
	// EventStatus carries a StatusChange after every transition.
	EventStatus EventKey = "status"
	// EventIncomingCall carries an IncomingCall.
	EventIncomingCall EventKey = "incoming_call"
	// EventIncomingDismissed hides the incoming-call panel. No data.
	EventIncomingDismissed EventKey = "incoming_dismissed"
	// EventCallInfo carries a CallInfoUpdate.
	EventCallInfo EventKey = "call_info"
	// EventCallInfoCleared blanks the call info panel. No data.
	EventCallInfoCleared EventKey = "call_info_cleared"
	// EventSubscriber carries the operator's Subscriber profile.
	EventSubscriber EventKey = "subscriber"
	// EventAlert carries a message string for the operator.
	EventAlert EventKey = "alert"
)

// StatusChange is the payload of EventStatus
type StatusChange struct {
	Status       Status
	Presentation Presentation
}

// IncomingCall is the payload of EventIncomingCall
type IncomingCall struct {
	CallerName string
	Details    CallerDetails
}

// CallInfoUpdate is the payload of EventCallInfo. Visible is true once the
// call has been accepted; before that only the incoming panel shows it.
type CallInfoUpdate struct {
	Info      *callinfo.CallInfo
	Visible   bool
	Incoming  string
	Dashboard string
}

func newCallInfoUpdate(info *callinfo.CallInfo, visible bool) CallInfoUpdate {
	return CallInfoUpdate{
		Info:      info,
		Visible:   visible,
		Incoming:  FormatCallerInfo(info, "Name", "Summary"),
		Dashboard: FormatCallerInfo(info, "Caller", "Summary"),
	}
}

// EventHandler is a callback function for events
type EventHandler func(data interface{})

// EventEmitter provides a simple event pub/sub system
type EventEmitter struct {
	mu       sync.RWMutex
	handlers map[EventKey][]EventHandler
}

// NewEventEmitter creates a new EventEmitter
func NewEventEmitter() *EventEmitter {
	return &EventEmitter{
		handlers: make(map[EventKey][]EventHandler),
	}
}

// On registers an event handler for a specific event type
func (e *EventEmitter) On(event EventKey, handler EventHandler) {
	if handler == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], handler)
}

// Off removes all handlers for a specific event type
func (e *EventEmitter) Off(event EventKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, event)
}

// Emit fires an event, calling all registered handlers
func (e *EventEmitter) Emit(event EventKey, data interface{}) {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers[event]))
	copy(handlers, e.handlers[event])
	e.mu.RUnlock()

	for _, handler := range handlers {
		handler(data)
	}
}
