/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tejzpr/livewire-go/livewiresdk"
)

// NoPendingInviteError is returned when accepting or rejecting without an
// invite.
type NoPendingInviteError struct{}

func (e *NoPendingInviteError) Error() string { return "no pending invite" }

var (
	// ErrNoPendingInvite is the NoPendingInviteError returned by the coordinator.
	ErrNoPendingInvite error = &NoPendingInviteError{}

	// ErrAlreadyConnecting is returned by GoOnline while another GoOnline is
	// still running.
	ErrAlreadyConnecting = errors.New("go online already in progress")
)

// TokenAcquisitionError wraps a failed session token request
type TokenAcquisitionError struct {
	Err error
}

func (e *TokenAcquisitionError) Error() string {
	return fmt.Sprintf("failed to acquire session token: %v", e.Err)
}

func (e *TokenAcquisitionError) Unwrap() error { return e.Err }

// ConnectionError is returned when going online failed on every attempt
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to go online after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthExpiredError reports that the relay rejected the session token
type AuthExpiredError struct {
	Err error
}

func (e *AuthExpiredError) Error() string {
	if e.Err == nil {
		return "session token expired"
	}
	return fmt.Sprintf("session token expired: %v", e.Err)
}

func (e *AuthExpiredError) Unwrap() error { return e.Err }

// AcceptFailedError wraps a failed invite accept
type AcceptFailedError struct {
	Err error
}

func (e *AcceptFailedError) Error() string {
	return fmt.Sprintf("failed to accept call: %v", e.Err)
}

func (e *AcceptFailedError) Unwrap() error { return e.Err }

// IsAuthFailure reports whether err indicates an authentication problem:
// an AuthExpiredError, a backend 401, or a message mentioning "token" or
// "401". Token acquisition failures are judged by their cause only.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}

	var expired *AuthExpiredError
	if errors.As(err, &expired) {
		return true
	}
	if livewiresdk.IsAuthError(err) {
		return true
	}

	var tokenErr *TokenAcquisitionError
	if errors.As(err, &tokenErr) {
		err = tokenErr.Err
		if err == nil {
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "token") || strings.Contains(msg, "401")
}
