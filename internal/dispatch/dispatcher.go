// Package dispatch routes decoded signaling messages to their owners.
package dispatch

import (
	"github.com/pion/webrtc/v4"

	"github.com/castkit/castkit/internal/signal"
	"github.com/castkit/castkit/internal/util"
)

// Negotiator is the engine-facing surface. Both methods schedule work onto
// the engine's owner goroutine and return without blocking.
type Negotiator interface {
	ReceiveOffer(sdp string)
	ReceiveCandidate(candidate webrtc.ICECandidateInit)
}

// DataReceiver is the messenger's inbound path for data payloads.
type DataReceiver interface {
	Receive(data []byte)
}

// Dispatcher decodes raw transport messages and routes them by type.
type Dispatcher struct {
	neg  Negotiator
	data DataReceiver
}

// New builds a dispatcher. Components are passed in explicitly; the
// dispatcher holds no other state.
func New(neg Negotiator, data DataReceiver) *Dispatcher {
	return &Dispatcher{neg: neg, data: data}
}

// HandleMessage processes one raw message from the transport. Malformed
// messages are dropped and logged; the session is unaffected. It runs on the
// transport's delivery goroutine, so nothing here may block on negotiation
// work — offers and candidates are only enqueued.
func (d *Dispatcher) HandleMessage(peerID string, raw []byte) {
	msg, err := signal.Decode(raw)
	if err != nil {
		util.LogWarning("dropping message from %s: %v", peerID, err)
		return
	}

	switch msg.Type {
	case signal.MsgTypeOffer:
		d.neg.ReceiveOffer(msg.SDP)

	case signal.MsgTypeCandidate:
		d.neg.ReceiveCandidate(candidateInit(msg))

	case signal.MsgTypeData:
		d.data.Receive([]byte(msg.Data))

	default:
		// Includes inbound "answer": an answering host never expects one.
		util.LogDebug("ignoring %q message from %s", msg.Type, peerID)
	}
}

// candidateInit converts the wire fields into pion's candidate form. Decode
// guarantees sdpMLineIndex is present (defaulted to 0) for candidates.
func candidateInit(msg signal.Message) webrtc.ICECandidateInit {
	mid := msg.SDPMid
	return webrtc.ICECandidateInit{
		Candidate:     msg.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: msg.SDPMLineIndex,
	}
}
