// Package rtc builds configured peer connections for the negotiation engine.
package rtc

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// DefaultICEServers is used when no STUN/TURN endpoints are configured.
var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
}

// Factory creates peer connections with a fixed ICE configuration supplied
// at construction time.
type Factory struct {
	iceServers []string
}

// NewFactory creates a factory relaying the given STUN/TURN URLs. An empty
// list falls back to DefaultICEServers.
func NewFactory(iceServers []string) *Factory {
	if len(iceServers) == 0 {
		iceServers = DefaultICEServers
	}
	return &Factory{iceServers: iceServers}
}

// New creates a configured peer connection wrapped for the engine.
func (f *Factory) New() (*PeerConn, error) {
	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: f.iceServers},
		},
	}
	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return &PeerConn{pc: pc}, nil
}

// PeerConn adapts *webrtc.PeerConnection to the engine's connection surface.
type PeerConn struct {
	pc *webrtc.PeerConnection
}

func (c *PeerConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *PeerConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *PeerConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *PeerConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *PeerConn) AddTrack(track webrtc.TrackLocal) error {
	_, err := c.pc.AddTrack(track)
	return err
}

// OnICECandidate registers a callback invoked whenever a new local ICE
// candidate is gathered. A nil candidate signals the end of gathering.
func (c *PeerConn) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	c.pc.OnICECandidate(fn)
}

func (c *PeerConn) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(fn)
}

// OnDataChannel registers a callback for channels created by the remote
// peer. The offering side creates the channel; this host only answers.
func (c *PeerConn) OnDataChannel(fn func(*webrtc.DataChannel)) {
	c.pc.OnDataChannel(fn)
}

func (c *PeerConn) Close() error {
	return c.pc.Close()
}
