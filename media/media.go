/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package media answers audio-only WebRTC offers for accepted calls.
package media

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// Logger is the logging interface used by the engine.
type Logger interface {
	Printf(format string, v ...any)
}

// Config holds configuration for the media engine
type Config struct {
	// ICEServers is the list of ICE servers (STUN/TURN) to use
	ICEServers []webrtc.ICEServer
	// Logger receives connection state changes. Defaults to log.Default().
	Logger Logger
}

// DefaultConfig returns a Config using a public STUN server so the agent
// can be reached from behind NAT.
func DefaultConfig() *Config {
	return &Config{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

// ICEServersFromURLs builds one ICE server entry per URL.
func ICEServersFromURLs(urls []string) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
		}
	}
	return servers
}

// Engine manages the peer connection of a single call.
type Engine struct {
	mu             sync.Mutex
	peerConnection *webrtc.PeerConnection
	localTrack     *webrtc.TrackLocalStaticRTP
	remoteTrack    *webrtc.TrackRemote
	onRemoteTrack  func(track *webrtc.TrackRemote)
	closed         bool
	done           chan struct{}
	logger         Logger
}

// New creates a media engine with Opus, PCMU and PCMA registered.
func New(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	m := &webrtc.MediaEngine{}
	codecs := []webrtc.RTPCodecParameters{
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			PayloadType:        111,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: 8000},
			PayloadType:        0,
		},
		{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMA, ClockRate: 8000},
			PayloadType:        8,
		},
	}
	for _, codec := range codecs {
		if err := m.RegisterCodec(codec, webrtc.RTPCodecTypeAudio); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", codec.MimeType, err)
		}
	}

	// Default interceptors (RTCP reports, NACK, TWCC) are needed with a
	// custom MediaEngine, otherwise incoming SRTP is not processed.
	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("failed to register default interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(i),
	)

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers: config.ICEServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	engine := &Engine{
		peerConnection: pc,
		done:           make(chan struct{}),
		logger:         logger,
	}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		logger.Printf("media: connection state %s", s.String())
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		engine.mu.Lock()
		engine.remoteTrack = track
		handler := engine.onRemoteTrack
		engine.mu.Unlock()

		if handler != nil {
			handler(track)
		}
	})

	return engine, nil
}

// OnRemoteTrack sets the callback for when the caller's audio arrives
func (e *Engine) OnRemoteTrack(handler func(track *webrtc.TrackRemote)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onRemoteTrack = handler
}

// AddAudioTrack adds a sendrecv PCMU track to the peer connection.
func (e *Engine) AddAudioTrack() (*webrtc.TrackLocalStaticRTP, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: 8000},
		"audio",
		"livewire-agent",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio track: %w", err)
	}

	transceiver, err := e.peerConnection.AddTransceiverFromTrack(track,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendrecv},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add audio transceiver: %w", err)
	}

	// Drain RTCP so the sender's interceptors keep running.
	go func() {
		sender := transceiver.Sender()
		rtcpBuf := make([]byte, 1500)
		for {
			if _, _, rtcpErr := sender.Read(rtcpBuf); rtcpErr != nil {
				return
			}
		}
	}()

	e.localTrack = track
	return track, nil
}

// SetRemoteOffer applies the caller's SDP offer.
func (e *Engine) SetRemoteOffer(sdp string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.peerConnection.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  normalizeOffer(sdp),
	})
}

// CreateAnswer creates the local answer and waits for ICE gathering so the
// returned SDP carries every candidate. It gives up when ctx is done.
func (e *Engine) CreateAnswer(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	answer, err := e.peerConnection.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(e.peerConnection)
	if err := e.peerConnection.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	localDesc := e.peerConnection.LocalDescription()
	if localDesc == nil {
		return "", fmt.Errorf("local description is nil after gathering")
	}
	return localDesc.SDP, nil
}

// Answer adds the local audio track, applies offer and returns the answer.
func (e *Engine) Answer(ctx context.Context, offer string) (string, error) {
	if _, err := e.AddAudioTrack(); err != nil {
		return "", err
	}
	if err := e.SetRemoteOffer(offer); err != nil {
		return "", fmt.Errorf("failed to set remote offer: %w", err)
	}
	return e.CreateAnswer(ctx)
}

// LocalTrack returns the local audio track
func (e *Engine) LocalTrack() *webrtc.TrackLocalStaticRTP {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.localTrack
}

// RemoteTrack returns the caller's audio track, if it has arrived
func (e *Engine) RemoteTrack() *webrtc.TrackRemote {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remoteTrack
}

// ConnectionState returns the current peer connection state
func (e *Engine) ConnectionState() webrtc.PeerConnectionState {
	return e.peerConnection.ConnectionState()
}

// Close closes the peer connection. Closing twice is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	close(e.done)
	if err := e.peerConnection.Close(); err != nil {
		return fmt.Errorf("failed to close peer connection: %w", err)
	}
	return nil
}

// HasVideo reports whether an SDP offers a video media section.
func HasVideo(sdp string) bool {
	for _, line := range splitLines(sdp) {
		if strings.HasPrefix(line, "m=video") {
			return true
		}
	}
	return false
}

// normalizeOffer adds the a=mid and BUNDLE attributes pion requires when a
// gateway omits them.
func normalizeOffer(sdp string) string {
	lines := splitLines(sdp)
	sections := 0
	hasBundle := false
	var mids []string
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "m="):
			sections++
		case strings.HasPrefix(line, "a=mid:"):
			mids = append(mids, strings.TrimPrefix(line, "a=mid:"))
		case strings.HasPrefix(line, "a=group:BUNDLE"):
			hasBundle = true
		}
	}
	if sections == 0 || (len(mids) > 0 && hasBundle) {
		return sdp
	}

	// Every media section gets its own mid, numbered in order.
	assign := len(mids) == 0
	if assign {
		mids = make([]string, sections)
		for i := range mids {
			mids[i] = strconv.Itoa(i)
		}
	}
	bundle := "a=group:BUNDLE " + strings.Join(mids, " ")

	result := make([]string, 0, len(lines)+sections+1)
	section := 0
	for _, line := range lines {
		if strings.HasPrefix(line, "a=group:BUNDLE") {
			result = append(result, bundle)
			continue
		}
		if strings.HasPrefix(line, "m=") {
			if section == 0 && !hasBundle {
				result = append(result, bundle)
			}
			result = append(result, line)
			if assign {
				result = append(result, "a=mid:"+mids[section])
			}
			section++
			continue
		}
		result = append(result, line)
	}
	return strings.Join(result, "\r\n")
}

func splitLines(sdp string) []string {
	return strings.Split(strings.ReplaceAll(sdp, "\r\n", "\n"), "\n")
}
