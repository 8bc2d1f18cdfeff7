/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tejzpr/livewire-go/dashboard"
	"github.com/tejzpr/livewire-go/media"
)

// ErrVideoUnsupported is returned when accepting an invite with video.
var ErrVideoUnsupported = errors.New("video calls are not supported")

// Invite is an inbound call offer delivered by call.received
type Invite struct {
	client  *Client
	details dashboard.CallerDetails
	offer   string
}

// Details returns the caller-ID fields of the invite
func (i *Invite) Details() dashboard.CallerDetails {
	return i.details
}

// Accept answers the call. When the invite carries an SDP offer, a media
// engine produces the answer; otherwise the relay bridges the media.
func (i *Invite) Accept(ctx context.Context, opts dashboard.AcceptOptions) (dashboard.Call, error) {
	if opts.Video {
		return nil, ErrVideoUnsupported
	}
	if !opts.Audio {
		return nil, fmt.Errorf("audio is required to answer a call")
	}

	var engine *media.Engine
	var answer string
	if i.offer != "" {
		if media.HasVideo(i.offer) {
			i.client.logger.Printf("relay: call %s offers video, answering audio only", i.details.CallID)
		}
		var err error
		engine, err = media.New(i.client.config.Media)
		if err != nil {
			return nil, err
		}
		if answer, err = engine.Answer(ctx, i.offer); err != nil {
			_ = engine.Close()
			return nil, err
		}
	}

	err := i.client.call(ctx, MethodCallAnswer, answerParams{
		CallID: i.details.CallID,
		SDP:    answer,
		Audio:  true,
		Video:  false,
	}, nil)
	if err != nil {
		if engine != nil {
			_ = engine.Close()
		}
		return nil, err
	}

	call := &Call{id: i.details.CallID, client: i.client, engine: engine}
	if engine != nil {
		if stop, err := engine.StartSilence(); err != nil {
			i.client.logger.Printf("relay: call %s has no outbound audio: %v", call.id, err)
		} else {
			call.stopSilence = stop
		}
	}
	i.client.trackCall(call)
	return call, nil
}

// Reject declines the call
func (i *Invite) Reject(ctx context.Context) error {
	defer i.client.forgetCall(i.details.CallID)
	return i.client.call(ctx, MethodCallReject, callParams{CallID: i.details.CallID}, nil)
}

// Call is an accepted call
type Call struct {
	id     string
	client *Client
	engine *media.Engine

	stopSilence func()

	mu      sync.Mutex
	ended   bool
	onEnded []func()
}

// ID returns the relay call ID
func (c *Call) ID() string {
	return c.id
}

// Media returns the engine answering this call, or nil when the relay
// bridges the media.
func (c *Call) Media() *media.Engine {
	return c.engine
}

// Hangup ends the call. The call counts as ended even if the relay
// request fails.
func (c *Call) Hangup(ctx context.Context) error {
	err := c.client.call(ctx, MethodCallHangup, callParams{CallID: c.id}, nil)
	c.client.forgetCall(c.id)
	c.markEnded()
	return err
}

// OnEnded registers fn to run once when the call ends. It runs right away
// if the call has already ended.
func (c *Call) OnEnded(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		fn()
		return
	}
	c.onEnded = append(c.onEnded, fn)
	c.mu.Unlock()
}

// Ended reports whether the call has ended
func (c *Call) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

func (c *Call) markEnded() {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	callbacks := c.onEnded
	c.onEnded = nil
	engine := c.engine
	stopSilence := c.stopSilence
	c.mu.Unlock()

	if stopSilence != nil {
		stopSilence()
	}
	if engine != nil {
		if err := engine.Close(); err != nil {
			c.client.logger.Printf("relay: closing media for call %s: %v", c.id, err)
		}
	}
	for _, fn := range callbacks {
		fn()
	}
}
