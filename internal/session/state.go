package session

// State tracks the negotiation lifecycle of the active peer session.
type State int

const (
	StateIdle State = iota
	StateRemoteOfferReceived
	StateRemoteDescriptionSet
	StateAnswerCreated
	StateAnswerSent
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRemoteOfferReceived:
		return "RemoteOfferReceived"
	case StateRemoteDescriptionSet:
		return "RemoteDescriptionSet"
	case StateAnswerCreated:
		return "AnswerCreated"
	case StateAnswerSent:
		return "AnswerSent"
	case StateConnected:
		return "Connected"
	case StateDisconnected:
		return "Disconnected"
	}
	return "Unknown"
}
