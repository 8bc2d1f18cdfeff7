/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package retry provides a bounded, fixed-delay retry policy with an optional
// one-shot recovery path (for example, refreshing a credential once when a
// failure looks like an authentication problem).
package retry

import (
	"context"
	"fmt"
	"time"
)

// Op is a single attempt. attempt is zero-based and only advances when a
// failure consumes the attempt budget.
type Op func(ctx context.Context, attempt int) error

// Policy describes how many attempts to make and what to do between them.
type Policy struct {
	// MaxAttempts is the number of attempts before giving up. Values below 1
	// are treated as 1.
	MaxAttempts int

	// Delay is the fixed pause after a failed attempt. No pause follows the
	// final attempt.
	Delay time.Duration

	// ShouldRecover reports whether a failure qualifies for the recovery path.
	ShouldRecover func(err error) bool

	// Recover runs at most once per Do, the first time ShouldRecover matches.
	// When it succeeds the next attempt starts immediately and the failed
	// attempt is not counted. When it fails the loop continues normally.
	Recover func(ctx context.Context, cause error) error

	// OnRetry, when set, is called before each pause with the failed attempt
	// number and its error.
	OnRetry func(attempt int, err error)

	// Sleep waits for d or until ctx is done. Defaults to a timer select.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do runs op until it succeeds, the attempt budget is spent, or ctx is done.
// Attempts never overlap.
func (p Policy) Do(ctx context.Context, op Op) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	recovered := false
	var lastErr error

	for attempt := 0; attempt < maxAttempts; {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		if !recovered && p.Recover != nil && p.ShouldRecover != nil && p.ShouldRecover(lastErr) {
			recovered = true
			if err := p.Recover(ctx, lastErr); err == nil {
				continue
			}
		}

		attempt++
		if attempt >= maxAttempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt-1, lastErr)
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return err
		}
	}

	return &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
