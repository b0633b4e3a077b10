package signal

import (
	"errors"
	"testing"
)

func TestDecodeOffer(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"offer","sdp":"v=0\r\n"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.Type != MsgTypeOffer || msg.SDP != "v=0\r\n" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestDecodeCandidateDefaultsMLineIndex(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"candidate","candidate":"candidate:1 1 udp 2130706431 10.0.0.1 54321 typ host","sdpMid":"0"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.SDPMLineIndex == nil || *msg.SDPMLineIndex != 0 {
		t.Errorf("expected sdpMLineIndex default 0, got %v", msg.SDPMLineIndex)
	}
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"malformed JSON", `{"type":"offer"`},
		{"missing type", `{"sdp":"v=0"}`},
		{"offer without sdp", `{"type":"offer"}`},
		{"answer without sdp", `{"type":"answer"}`},
		{"candidate without payload", `{"type":"candidate","sdpMid":"0"}`},
		{"candidate without sdpMid", `{"type":"candidate","candidate":"candidate:1"}`},
		{"data without payload", `{"type":"data"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.raw))
			if err == nil {
				t.Fatal("expected decode error")
			}
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Errorf("expected *DecodeError, got %T", err)
			}
		})
	}
}

func TestDecodeUnknownTypePasses(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"ping"}`))
	if err != nil {
		t.Fatalf("unknown type should decode, got: %v", err)
	}
	if msg.Type != "ping" {
		t.Errorf("unexpected type: %q", msg.Type)
	}
}

func TestRoundTrip(t *testing.T) {
	idx := uint16(2)
	shapes := []Message{
		{Type: MsgTypeOffer, SDP: "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\n"},
		{Type: MsgTypeAnswer, SDP: "v=0\r\n"},
		{Type: MsgTypeCandidate, Candidate: "candidate:1 1 udp 2130706431 10.0.0.1 54321 typ host", SDPMid: "video", SDPMLineIndex: &idx},
		{Type: MsgTypeData, Data: "hello peer"},
	}

	for _, in := range shapes {
		raw, err := Encode(in)
		if err != nil {
			t.Fatalf("Encode(%+v): %v", in, err)
		}
		out, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode(%s): %v", raw, err)
		}
		if out.Type != in.Type || out.SDP != in.SDP || out.Candidate != in.Candidate ||
			out.SDPMid != in.SDPMid || out.Data != in.Data {
			t.Errorf("round trip mismatch: in=%+v out=%+v", in, out)
		}
		if in.SDPMLineIndex != nil && (out.SDPMLineIndex == nil || *out.SDPMLineIndex != *in.SDPMLineIndex) {
			t.Errorf("round trip lost sdpMLineIndex: in=%v out=%v", in.SDPMLineIndex, out.SDPMLineIndex)
		}
	}
}
