/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package dashboard

import (
	"strings"

	"github.com/tejzpr/livewire-go/callinfo"
)

// Status is the dashboard's connection and call state
type Status string

const (
	StatusOffline    Status = "offline"
	StatusConnecting Status = "connecting"
	StatusOnline     Status = "online"
	StatusIncoming   Status = "incoming"
	StatusInCall     Status = "in-call"
	StatusFailed     Status = "failed"
)

// Indicator is the color class of the status dot
type Indicator string

const (
	IndicatorConnecting Indicator = "status-connecting"
	IndicatorOnline     Indicator = "status-online"
	IndicatorInCall     Indicator = "status-in-call"
	IndicatorOffline    Indicator = "status-offline"
)

// Presentation is what the operator sees for a Status
type Presentation struct {
	Indicator  Indicator
	Label      string
	CallStatus string
}

// Present maps a status to its presentation. Unknown statuses look offline
// with an empty call status.
func Present(s Status) Presentation {
	switch s {
	case StatusConnecting:
		return Presentation{IndicatorConnecting, "Connecting", "Connecting..."}
	case StatusOnline:
		return Presentation{IndicatorOnline, "Online", "Waiting for call..."}
	case StatusIncoming:
		return Presentation{IndicatorOnline, "Online", "Incoming call..."}
	case StatusInCall:
		return Presentation{IndicatorInCall, "In Call", "In call!"}
	case StatusOffline:
		return Presentation{IndicatorOffline, "Offline", "Offline. Not receiving calls."}
	case StatusFailed:
		return Presentation{IndicatorOffline, "Offline", "Failed to connect."}
	default:
		return Presentation{IndicatorOffline, "Offline", ""}
	}
}

// undefinedCallerID is sent by the relay in place of a missing caller ID.
const undefinedCallerID = "_undef_"

// UnknownCaller is shown when an invite carries no usable caller ID
const UnknownCaller = "Unknown Caller"

// DisplayName picks the caller name, then number, then UnknownCaller.
func DisplayName(d CallerDetails) string {
	if d.CallerIDName != "" && d.CallerIDName != undefinedCallerID {
		return d.CallerIDName
	}
	if d.CallerIDNumber != "" && d.CallerIDNumber != undefinedCallerID {
		return d.CallerIDNumber
	}
	return UnknownCaller
}

// FormatCallerInfo renders caller metadata as text. labelName prefixes the
// caller's name ("Name" in the incoming panel, "Caller" on the dashboard).
func FormatCallerInfo(info *callinfo.CallInfo, labelName, labelSummary string) string {
	if !info.HasDetails() {
		return "No info provided."
	}

	var lines []string
	if name := strings.TrimSpace(strings.Join(nonEmpty(info.FirstName, info.LastName), " ")); name != "" {
		lines = append(lines, labelName+": "+name)
	}
	if info.Summary != "" {
		lines = append(lines, labelSummary+": "+info.Summary)
	}
	return strings.Join(lines, "\n")
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
