package channel

import (
	"errors"
	"testing"
)

// Compile-time interface check.
var _ Sender = (*fakeSender)(nil)

// fakeSender records successful sends and can be told to fail the next N.
type fakeSender struct {
	sent     []string
	failNext int
}

func (s *fakeSender) Send(data []byte) error {
	if s.failNext > 0 {
		s.failNext--
		return errors.New("send failed")
	}
	s.sent = append(s.sent, string(data))
	return nil
}

// attach mirrors what Attach does for a real channel: claim a generation
// and open under it.
func attach(m *Messenger, s Sender) uint64 {
	gen := m.nextGen()
	m.HandleOpen(gen, s)
	return gen
}

func TestQueuedMessagesFlushInOrderOnOpen(t *testing.T) {
	m := NewMessenger(nil)

	// Three sends while the channel is not yet open.
	for _, text := range []string{"one", "two", "three"} {
		if err := m.SendOrQueue(text); err != nil {
			t.Fatalf("SendOrQueue(%q): %v", text, err)
		}
	}
	if m.QueueLen() != 3 {
		t.Fatalf("expected 3 queued, got %d", m.QueueLen())
	}

	s := &fakeSender{}
	attach(m, s)

	want := []string{"one", "two", "three"}
	if len(s.sent) != len(want) {
		t.Fatalf("expected %v sent, got %v", want, s.sent)
	}
	for i := range want {
		if s.sent[i] != want[i] {
			t.Errorf("send order: expected %v, got %v", want, s.sent)
			break
		}
	}
	if m.QueueLen() != 0 {
		t.Errorf("queue not drained: %d left", m.QueueLen())
	}
	if m.State() != StateOpen {
		t.Errorf("expected Open, got %s", m.State())
	}
}

func TestSendImmediateWhileOpen(t *testing.T) {
	m := NewMessenger(nil)
	s := &fakeSender{}
	attach(m, s)

	if err := m.SendOrQueue("now"); err != nil {
		t.Fatalf("SendOrQueue: %v", err)
	}
	if len(s.sent) != 1 || s.sent[0] != "now" {
		t.Errorf("expected immediate send, got %v", s.sent)
	}
	if m.QueueLen() != 0 {
		t.Errorf("immediate send left %d queued", m.QueueLen())
	}
}

func TestClosedChannelQueuesWithoutSending(t *testing.T) {
	m := NewMessenger(nil)
	s := &fakeSender{}
	gen := attach(m, s)
	m.HandleClose(gen)

	if err := m.SendOrQueue("later"); err != nil {
		t.Fatalf("SendOrQueue while closed: %v", err)
	}
	if len(s.sent) != 0 {
		t.Errorf("send attempted on closed channel: %v", s.sent)
	}
	if m.QueueLen() != 1 {
		t.Errorf("expected 1 queued, got %d", m.QueueLen())
	}
	if m.State() != StateClosed {
		t.Errorf("expected Closed, got %s", m.State())
	}

	// Reopen delivers the parked message.
	reopened := &fakeSender{}
	attach(m, reopened)
	if len(reopened.sent) != 1 || reopened.sent[0] != "later" {
		t.Errorf("expected flush on reopen, got %v", reopened.sent)
	}
}

func TestFailedSendStaysAtQueueHead(t *testing.T) {
	m := NewMessenger(nil)
	s := &fakeSender{failNext: 1}
	attach(m, s)

	if err := m.SendOrQueue("first"); err == nil {
		t.Fatal("expected send error")
	}
	if m.QueueLen() != 1 {
		t.Fatalf("failed message not kept: %d queued", m.QueueLen())
	}

	// The next send must deliver the failed entry first.
	if err := m.SendOrQueue("second"); err != nil {
		t.Fatalf("SendOrQueue: %v", err)
	}
	want := []string{"first", "second"}
	if len(s.sent) != 2 || s.sent[0] != want[0] || s.sent[1] != want[1] {
		t.Errorf("expected %v, got %v", want, s.sent)
	}
}

func TestReceiveHandsOffPayload(t *testing.T) {
	var got []string
	m := NewMessenger(func(text string) { got = append(got, text) })

	m.Receive([]byte("hello"))
	m.Receive([]byte("world"))

	if len(got) != 2 || got[0] != "hello" || got[1] != "world" {
		t.Errorf("unexpected handoff: %v", got)
	}
}

func TestDetachDiscardsQueueAndResets(t *testing.T) {
	m := NewMessenger(nil)
	m.SendOrQueue("doomed")
	gen := m.nextGen()
	m.HandleClose(gen)

	m.Detach()
	m.Detach() // redundant detach is a no-op

	if m.QueueLen() != 0 {
		t.Errorf("queue survived detach: %d", m.QueueLen())
	}
	if m.State() != StateConnecting {
		t.Errorf("expected Connecting after detach, got %s", m.State())
	}
}

func TestLateEventsFromReplacedChannelIgnored(t *testing.T) {
	m := NewMessenger(nil)
	s1 := &fakeSender{}
	gen1 := attach(m, s1)
	m.Detach()

	s2 := &fakeSender{}
	attach(m, s2)

	// The first channel's close lands after the second channel opened.
	m.HandleClose(gen1)

	if m.State() != StateOpen {
		t.Fatalf("stale close clobbered live channel: state=%s", m.State())
	}
	if err := m.SendOrQueue("for-current-channel"); err != nil {
		t.Fatalf("SendOrQueue: %v", err)
	}
	if len(s2.sent) != 1 || s2.sent[0] != "for-current-channel" {
		t.Errorf("expected immediate send on live channel, got %v (queued=%d)", s2.sent, m.QueueLen())
	}

	// A stale open must not resurrect the old sender either.
	m.HandleOpen(gen1, s1)
	m.SendOrQueue("still-for-current")
	if len(s1.sent) != 0 {
		t.Errorf("stale sender received traffic: %v", s1.sent)
	}
}
