// Package session implements the negotiation engine: it answers remote
// offers, buffers and drains ICE candidates, and owns the lifecycle of the
// single active peer session.
//
// All session state is confined to one owner goroutine (Run). Transport and
// peer-connection callbacks never touch state directly; they enqueue work
// onto a bounded FIFO task queue, so events are neither dropped nor
// reordered and the underlying connection is never mutated concurrently.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/castkit/castkit/internal/signal"
	"github.com/castkit/castkit/internal/util"
)

// taskQueueSize bounds the owner queue. A saturated queue blocks submitters
// rather than dropping events: ordering is a hard requirement here.
const taskQueueSize = 128

var (
	// ErrNegotiationInProgress is reported when an offer arrives while a
	// session is already negotiating or established.
	ErrNegotiationInProgress = errors.New("negotiation already in progress")

	// ErrEngineClosed is reported for events submitted after Close.
	ErrEngineClosed = errors.New("engine closed")
)

// PeerConn is the subset of the peer-connection surface the engine drives.
// The production implementation wraps *webrtc.PeerConnection (internal/rtc);
// tests substitute a mock.
type PeerConn interface {
	SetRemoteDescription(desc webrtc.SessionDescription) error
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	AddTrack(track webrtc.TrackLocal) error
	OnICECandidate(fn func(*webrtc.ICECandidate))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))
	OnDataChannel(fn func(*webrtc.DataChannel))
	Close() error
}

// Emitter relays outbound signaling messages (answer, local candidates)
// back to the peer.
type Emitter interface {
	Emit(msg signal.Message) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(signal.Message) error

func (f EmitterFunc) Emit(msg signal.Message) error { return f(msg) }

// ChannelSink receives the peer-created data channel once it appears and is
// reset on teardown. Implemented by channel.Messenger.
type ChannelSink interface {
	Attach(dc *webrtc.DataChannel)
	Detach()
}

// MediaSource optionally supplies one ready-made outbound track. A nil
// MediaSource, and a source that currently has nothing to offer, are both
// valid states, not failures.
type MediaSource interface {
	Track() (webrtc.TrackLocal, error)
}

// peerSession bundles the connection handle of the active session with a
// release guard so teardown frees it exactly once.
type peerSession struct {
	pc          PeerConn
	remoteSet   bool
	releaseOnce sync.Once
}

func (s *peerSession) release() {
	s.releaseOnce.Do(func() {
		if err := s.pc.Close(); err != nil {
			util.LogDebug("close peer connection: %v", err)
		}
	})
}

// Engine is the negotiation engine. Construct with NewEngine, start the
// owner loop with Run, then feed it through ReceiveOffer / ReceiveCandidate.
type Engine struct {
	newConn func() (PeerConn, error)
	emit    Emitter
	sink    ChannelSink
	media   MediaSource

	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once

	// Owner-goroutine state. Only Run's goroutine touches these.
	state   State
	sess    *peerSession
	pending []webrtc.ICECandidateInit
}

// NewEngine builds an engine. newConn creates a configured peer connection
// per accepted offer; emit carries outbound signaling; sink receives the
// peer's data channel; media may be nil.
func NewEngine(newConn func() (PeerConn, error), emit Emitter, sink ChannelSink, media MediaSource) *Engine {
	return &Engine{
		newConn: newConn,
		emit:    emit,
		sink:    sink,
		media:   media,
		tasks:   make(chan func(), taskQueueSize),
		done:    make(chan struct{}),
		state:   StateIdle,
	}
}

// Run drains the task queue until ctx is cancelled or Close is called,
// then releases the active session. It must be running for the engine to
// make progress.
func (e *Engine) Run(ctx context.Context) {
	defer e.handleTeardown()
	for {
		select {
		case task := <-e.tasks:
			task()
		case <-ctx.Done():
			return
		case <-e.done:
			return
		}
	}
}

// submit enqueues work for the owner goroutine. It blocks when the queue is
// full so submission order is preserved under backpressure.
func (e *Engine) submit(task func()) error {
	select {
	case <-e.done:
		return ErrEngineClosed
	case e.tasks <- task:
		return nil
	}
}

// ReceiveOffer schedules handling of a remote offer. It returns immediately;
// the negotiation steps execute on the owner goroutine.
func (e *Engine) ReceiveOffer(sdp string) {
	err := e.submit(func() {
		if err := e.handleOffer(sdp); err != nil {
			util.LogError("negotiation failed: %v", err)
		}
	})
	if err != nil {
		util.LogDebug("offer ignored: %v", err)
	}
}

// ReceiveCandidate schedules handling of a remote ICE candidate.
func (e *Engine) ReceiveCandidate(candidate webrtc.ICECandidateInit) {
	if err := e.submit(func() { e.handleCandidate(candidate) }); err != nil {
		util.LogDebug("candidate ignored: %v", err)
	}
}

// Teardown schedules release of the active session, returning the engine to
// Idle. Redundant calls are no-ops.
func (e *Engine) Teardown() {
	if err := e.submit(e.handleTeardown); err != nil {
		util.LogDebug("teardown ignored: %v", err)
	}
}

// Close stops the engine permanently. The owner loop releases the active
// session on exit. Idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() { close(e.done) })
	return nil
}

// ---------------------------------------------------------------------------
// Owner-goroutine handlers
// ---------------------------------------------------------------------------

// handleOffer runs the full answering sequence: set remote description,
// drain buffered candidates, attach the outbound track, create the answer,
// set it locally, and emit it. The whole sequence is one critical section on
// the owner goroutine, so candidates arriving mid-sequence wait in the task
// queue and find remoteSet already true.
func (e *Engine) handleOffer(sdp string) error {
	if e.state != StateIdle {
		util.Stats.AddOfferRejected()
		return fmt.Errorf("%w (state=%s)", ErrNegotiationInProgress, e.state)
	}
	e.setState(StateRemoteOfferReceived)

	pc, err := e.newConn()
	if err != nil {
		return e.fail(fmt.Errorf("create peer connection: %w", err))
	}
	sess := &peerSession{pc: pc}
	e.sess = sess

	// Callbacks fire on pion goroutines; each one is marshalled onto the
	// owner queue and guarded against outliving its session.
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // end of gathering, not relayed
		}
		init := c.ToJSON()
		if err := e.submit(func() { e.emitCandidate(sess, init) }); err != nil {
			util.LogDebug("local candidate ignored: %v", err)
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if err := e.submit(func() { e.handleConnectionState(sess, state) }); err != nil {
			util.LogDebug("connection state change ignored: %v", err)
		}
	})
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		err := e.submit(func() {
			if e.sess == sess {
				e.sink.Attach(dc)
			}
		})
		if err != nil {
			util.LogDebug("data channel ignored: %v", err)
		}
	})

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return e.fail(fmt.Errorf("set remote description: %w", err))
	}
	sess.remoteSet = true
	e.setState(StateRemoteDescriptionSet)

	// Apply buffered candidates in arrival order, then clear the buffer.
	for _, candidate := range e.pending {
		e.applyCandidate(candidate)
	}
	e.pending = nil

	if e.media != nil {
		if track, err := e.media.Track(); err != nil {
			util.LogWarning("outbound media unavailable: %v", err)
		} else if track != nil {
			if err := pc.AddTrack(track); err != nil {
				util.LogWarning("attach outbound track: %v", err)
			}
		}
	}

	answer, err := pc.CreateAnswer()
	if err != nil {
		return e.fail(fmt.Errorf("create answer: %w", err))
	}
	e.setState(StateAnswerCreated)

	if err := pc.SetLocalDescription(answer); err != nil {
		return e.fail(fmt.Errorf("set local description: %w", err))
	}

	if err := e.emit.Emit(signal.Message{Type: signal.MsgTypeAnswer, SDP: answer.SDP}); err != nil {
		return e.fail(fmt.Errorf("send answer: %w", err))
	}
	e.setState(StateAnswerSent)
	util.Stats.AddOfferAnswered()
	return nil
}

// handleCandidate applies a remote candidate immediately once the remote
// description is set, and buffers it otherwise. Buffering also covers
// candidates that race ahead of the first offer.
func (e *Engine) handleCandidate(candidate webrtc.ICECandidateInit) {
	if e.sess == nil || !e.sess.remoteSet {
		e.pending = append(e.pending, candidate)
		util.LogDebug("buffered ICE candidate (%d pending)", len(e.pending))
		return
	}
	e.applyCandidate(candidate)
}

// applyCandidate adds one candidate to the connection. Failures are
// non-fatal: the candidate is dropped and negotiation continues.
func (e *Engine) applyCandidate(candidate webrtc.ICECandidateInit) {
	if err := e.sess.pc.AddICECandidate(candidate); err != nil {
		util.Stats.AddCandidateDropped()
		util.LogWarning("dropping ICE candidate: %v", err)
		return
	}
	util.Stats.AddCandidateApplied()
}

// emitCandidate relays a locally gathered candidate to the peer, unless the
// session it belongs to has already been torn down.
func (e *Engine) emitCandidate(sess *peerSession, init webrtc.ICECandidateInit) {
	if e.sess != sess || init.Candidate == "" {
		return
	}
	msg := signal.Message{
		Type:          signal.MsgTypeCandidate,
		Candidate:     init.Candidate,
		SDPMLineIndex: init.SDPMLineIndex,
	}
	if init.SDPMid != nil {
		msg.SDPMid = *init.SDPMid
	}
	if err := e.emit.Emit(msg); err != nil {
		util.LogWarning("relay local candidate: %v", err)
	}
}

// handleConnectionState records connection-state transitions. It drives the
// Connected/Disconnected terminals but does not otherwise mutate
// negotiation state.
func (e *Engine) handleConnectionState(sess *peerSession, state webrtc.PeerConnectionState) {
	if e.sess != sess {
		return
	}
	util.LogInfo("peer connection state: %s", state)

	switch state {
	case webrtc.PeerConnectionStateConnected:
		if e.state == StateAnswerSent {
			e.setState(StateConnected)
		}
	case webrtc.PeerConnectionStateFailed,
		webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateClosed:
		e.setState(StateDisconnected)
		e.handleTeardown()
	}
}

// handleTeardown releases the active session and clears all buffered state.
// Idempotent: resources are freed exactly once and redundant calls find
// nothing to do.
func (e *Engine) handleTeardown() {
	if e.sess != nil {
		e.sess.release()
		e.sess = nil
	}
	e.sink.Detach()
	e.pending = nil
	e.setState(StateIdle)
}

// fail aborts the current negotiation: the session is torn down, the engine
// returns to Idle awaiting the next offer, and the error is surfaced to the
// caller. No automatic retry.
func (e *Engine) fail(err error) error {
	util.Stats.AddOfferRejected()
	e.setState(StateDisconnected)
	e.handleTeardown()
	return err
}

func (e *Engine) setState(next State) {
	if e.state != next {
		util.LogDebug("negotiation state: %s -> %s", e.state, next)
		e.state = next
	}
}
