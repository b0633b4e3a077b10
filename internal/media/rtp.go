// Package media supplies the optional outbound video source. Capture and
// encoding are out of scope; an external pipeline pushes RTP to a local UDP
// port and this package relays it into a webrtc track.
package media

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/castkit/castkit/internal/util"
)

// rtpReadBuffer fits any UDP-carried RTP packet.
const rtpReadBuffer = 1600

// RTPSource exposes RTP received on a UDP address as a local VP8 video
// track. It implements the engine's MediaSource.
type RTPSource struct {
	addr string

	mu    sync.Mutex
	conn  net.PacketConn
	track *webrtc.TrackLocalStaticRTP
}

// NewRTPSource creates a source that will listen on addr when first asked
// for its track.
func NewRTPSource(addr string) *RTPSource {
	return &RTPSource{addr: addr}
}

// Track lazily binds the UDP listener and starts the relay pump. Subsequent
// calls return the same track.
func (s *RTPSource) Track() (webrtc.TrackLocal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.track != nil {
		return s.track, nil
	}

	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("listen for RTP on %s: %w", s.addr, err)
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "castkit")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create video track: %w", err)
	}

	s.conn = conn
	s.track = track
	go s.pump(conn, track)

	util.LogInfo("RTP video source listening on %s", conn.LocalAddr())
	return track, nil
}

// pump relays raw RTP packets into the track until the listener closes.
// ErrClosedPipe means no peer is bound yet; the stream keeps draining so the
// external pipeline never blocks.
func (s *RTPSource) pump(conn net.PacketConn, track *webrtc.TrackLocalStaticRTP) {
	buf := make([]byte, rtpReadBuffer)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		if _, err := track.Write(buf[:n]); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			util.LogWarning("RTP relay: %v", err)
		}
	}
}

// Close releases the UDP listener, stopping the pump. Idempotent.
func (s *RTPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
