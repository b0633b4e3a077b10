// Package signal defines the wire envelope exchanged with peers during
// signaling and the codec for it.
package signal

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies the kind of signaling message.
type MessageType string

const (
	MsgTypeOffer     MessageType = "offer"
	MsgTypeAnswer    MessageType = "answer"
	MsgTypeCandidate MessageType = "candidate"
	MsgTypeData      MessageType = "data"
)

// Message is the JSON envelope carried over the signaling transport.
// Which fields are required depends on Type; see Decode.
type Message struct {
	Type          MessageType `json:"type"`
	SDP           string      `json:"sdp,omitempty"`
	Candidate     string      `json:"candidate,omitempty"`
	SDPMid        string      `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16     `json:"sdpMLineIndex,omitempty"`
	Data          string      `json:"data,omitempty"`
}

// DecodeError reports a message that could not be decoded or that is missing
// a field required for its declared type. Callers drop the message and
// continue.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode signaling message: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode signaling message: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode serializes a Message for transmission.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode signaling message: %w", err)
	}
	return data, nil
}

// Decode parses a raw signaling message and validates the fields required for
// its declared type. Candidate messages missing sdpMLineIndex get the default
// index 0. Types outside the known set decode successfully; routing decides
// what to do with them.
func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, &DecodeError{Reason: "malformed JSON", Err: err}
	}

	if msg.Type == "" {
		return Message{}, &DecodeError{Reason: "missing type"}
	}

	switch msg.Type {
	case MsgTypeOffer, MsgTypeAnswer:
		if msg.SDP == "" {
			return Message{}, &DecodeError{Reason: fmt.Sprintf("%s without sdp", msg.Type)}
		}

	case MsgTypeCandidate:
		if msg.Candidate == "" {
			return Message{}, &DecodeError{Reason: "candidate without candidate payload"}
		}
		if msg.SDPMid == "" {
			return Message{}, &DecodeError{Reason: "candidate without sdpMid"}
		}
		if msg.SDPMLineIndex == nil {
			idx := uint16(0)
			msg.SDPMLineIndex = &idx
		}

	case MsgTypeData:
		if msg.Data == "" {
			return Message{}, &DecodeError{Reason: "data without payload"}
		}
	}

	return msg, nil
}
