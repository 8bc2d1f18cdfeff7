/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package relay

import (
	"encoding/json"
	"fmt"
)

const jsonRPCVersion = "2.0"

// Relay methods
const (
	MethodConnect           = "signalwire.connect"
	MethodEvent             = "signalwire.event"
	MethodSubscriberOnline  = "subscriber.online"
	MethodSubscriberOffline = "subscriber.offline"
	MethodSubscriberInfo    = "subscriber.info"
	MethodCallAnswer        = "call.answer"
	MethodCallReject        = "call.reject"
	MethodCallHangup        = "call.hangup"
)

// Event types carried by signalwire.event
const (
	EventCallReceived = "call.received"
	EventCallState    = "call.state"
)

// Error codes the relay uses for a rejected or expired token
const (
	CodeUnauthorized = 401
	CodeInvalidToken = -32002
)

var protocolVersion = version{Major: 4, Minor: 0, Revision: 0}

// message is any JSON-RPC frame. Requests and notifications carry Method;
// responses carry Result or Error.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Result  interface{} `json:"result"`
}

// RPCError is an error returned by the relay
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *RPCError) Error() string {
	return fmt.Sprintf("relay error %d: %s", e.Code, e.Message)
}

func (e *RPCError) unauthorized() bool {
	return e.Code == CodeUnauthorized || e.Code == CodeInvalidToken
}

type version struct {
	Major    int `json:"major"`
	Minor    int `json:"minor"`
	Revision int `json:"revision"`
}

type connectParams struct {
	Version        version        `json:"version"`
	Agent          string         `json:"agent"`
	Authentication authentication `json:"authentication"`
}

type authentication struct {
	JWTToken string `json:"jwt_token"`
}

type connectResult struct {
	Identity string `json:"identity"`
	Protocol string `json:"protocol"`
}

type eventParams struct {
	EventType string          `json:"event_type"`
	Params    json.RawMessage `json:"params"`
}

type callReceived struct {
	CallID         string `json:"call_id"`
	CallerIDName   string `json:"caller_id_name"`
	CallerIDNumber string `json:"caller_id_number"`
	SDP            string `json:"sdp,omitempty"`
}

type callStateParams struct {
	CallID    string `json:"call_id"`
	CallState string `json:"call_state"`
	Parent    *struct {
		CallID string `json:"call_id"`
	} `json:"parent,omitempty"`
}

type callParams struct {
	CallID string `json:"call_id"`
}

type answerParams struct {
	CallID string `json:"call_id"`
	SDP    string `json:"sdp,omitempty"`
	Audio  bool   `json:"audio"`
	Video  bool   `json:"video"`
}
