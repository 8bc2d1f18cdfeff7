/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package media

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtp"
)

const (
	// silenceFrame is 20ms of 8kHz audio.
	silenceFrame    = 160
	silenceInterval = 20 * time.Millisecond
	// pcmuSilence is the mu-law encoding of a zero sample.
	pcmuSilence = 0xFF
)

// silencePacket builds the n-th (1-based) PCMU silence packet.
func silencePacket(n uint32, payload []byte) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    0,
			SequenceNumber: uint16(n),
			Timestamp:      n * silenceFrame,
			Marker:         n == 1,
		},
		Payload: payload,
	}
}

// StartSilence sends PCMU silence on the local track every 20ms so the
// media path stays up while the agent has no audio source. It stops when
// the returned function is called or the engine closes.
func (e *Engine) StartSilence() (stop func(), err error) {
	e.mu.Lock()
	track := e.localTrack
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return nil, fmt.Errorf("media engine is closed")
	}
	if track == nil {
		return nil, fmt.Errorf("no local audio track")
	}

	payload := make([]byte, silenceFrame)
	for i := range payload {
		payload[i] = pcmuSilence
	}

	stopCh := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(silenceInterval)
		defer ticker.Stop()

		var n uint32
		for {
			select {
			case <-stopCh:
				return
			case <-e.done:
				return
			case <-ticker.C:
				n++
				if err := track.WriteRTP(silencePacket(n, payload)); err != nil {
					e.logger.Printf("media: silence write failed after %d packets: %v", n-1, err)
					return
				}
				if n == 1 {
					e.logger.Printf("media: silence keepalive started")
				}
			}
		}
	}()

	return func() { once.Do(func() { close(stopCh) }) }, nil
}
