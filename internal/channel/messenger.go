// Package channel owns data-channel readiness and outbound message
// delivery. Messages sent before the channel opens are parked in a FIFO
// queue and flushed the moment it does; an entry leaves the queue only after
// a reported-successful send.
package channel

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/castkit/castkit/internal/util"
)

// ChannelState is the observed readiness of the peer data channel.
type ChannelState int

const (
	StateConnecting ChannelState = iota
	StateOpen
	StateClosed
)

func (s ChannelState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	case StateClosed:
		return "Closed"
	}
	return "Unknown"
}

// Sender is the write side of an open data channel.
type Sender interface {
	Send(data []byte) error
}

// Messenger queues and delivers application messages over the peer data
// channel. It is safe for concurrent use; pion callbacks and application
// senders may race freely.
//
// Channel callbacks carry the generation they were wired under. A torn-down
// channel's OnClose can fire after the next session's channel has already
// attached; the generation check keeps such stale events from clobbering the
// live channel's state.
type Messenger struct {
	mu     sync.Mutex
	state  ChannelState
	queue  []string
	sender Sender
	onText func(string)
	gen    uint64 // current channel generation; bumped by Attach and Detach
}

// NewMessenger creates a messenger in the Connecting state. onText receives
// inbound channel payloads; the messenger does no further interpretation.
func NewMessenger(onText func(string)) *Messenger {
	return &Messenger{state: StateConnecting, onText: onText}
}

// Attach wires a peer-created data channel into the messenger. The
// channel's callbacks fire on pion goroutines and funnel into the handler
// methods below, tagged with the generation they were wired under so events
// from a superseded channel are ignored.
func (m *Messenger) Attach(dc *webrtc.DataChannel) {
	gen := m.nextGen()
	dc.OnOpen(func() { m.HandleOpen(gen, dcSender{dc}) })
	dc.OnClose(func() { m.HandleClose(gen) })
	dc.OnMessage(func(msg webrtc.DataChannelMessage) { m.Receive(msg.Data) })
}

func (m *Messenger) nextGen() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	return m.gen
}

type dcSender struct {
	dc *webrtc.DataChannel
}

func (s dcSender) Send(data []byte) error { return s.dc.Send(data) }

// HandleOpen transitions to Open and flushes the outbound queue in FIFO
// order. Events from a channel that is no longer current are ignored.
func (m *Messenger) HandleOpen(gen uint64, s Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		util.LogDebug("open from superseded channel ignored")
		return
	}
	m.sender = s
	m.state = StateOpen
	if n := len(m.queue); n > 0 {
		util.LogInfo("data channel open, flushing %d queued message(s)", n)
	} else {
		util.LogInfo("data channel open")
	}
	m.flushLocked()
}

// HandleClose transitions to Closed. No flush; subsequent sends are queued,
// not attempted. Events from a channel that is no longer current are
// ignored.
func (m *Messenger) HandleClose(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		util.LogDebug("close from superseded channel ignored")
		return
	}
	m.state = StateClosed
	m.sender = nil
	util.LogInfo("data channel closed")
}

// SendOrQueue delivers a message while the channel is Open and queues it
// otherwise. The message always enters the queue first and leaves it only
// after a reported-successful send, so FIFO order holds even when an earlier
// send failure left entries behind. A failure is reported to the caller; the
// message stays queued for the next flush.
func (m *Messenger) SendOrQueue(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queue = append(m.queue, text)
	if m.state != StateOpen || m.sender == nil {
		util.Stats.AddQueued()
		return nil
	}

	if err := m.flushLocked(); err != nil {
		return fmt.Errorf("channel send: %w", err)
	}
	return nil
}

// Receive hands an inbound channel payload to the application layer.
func (m *Messenger) Receive(data []byte) {
	util.Stats.AddReceived()
	m.mu.Lock()
	fn := m.onText
	m.mu.Unlock()
	if fn != nil {
		fn(string(data))
	}
}

// Detach discards the queue and resets the messenger for the next session.
// It also invalidates the current generation so late callbacks from the
// detached channel are ignored. Part of session teardown; safe to call
// repeatedly.
func (m *Messenger) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.queue); n > 0 {
		util.LogDebug("discarding %d undelivered message(s)", n)
	}
	m.gen++
	m.queue = nil
	m.sender = nil
	m.state = StateConnecting
}

// State returns the current channel state.
func (m *Messenger) State() ChannelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// QueueLen returns the number of undelivered outbound messages.
func (m *Messenger) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// flushLocked drains the queue front-to-back, stopping at the first send
// failure so the failed entry and everything behind it stay queued.
func (m *Messenger) flushLocked() error {
	for len(m.queue) > 0 {
		if err := m.sender.Send([]byte(m.queue[0])); err != nil {
			util.LogWarning("flush interrupted, %d message(s) kept: %v", len(m.queue), err)
			return err
		}
		m.queue = m.queue[1:]
		util.Stats.AddSent()
	}
	return nil
}
