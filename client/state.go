package client

// State of the realtime connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateReconnecting follows a transport drop until the retry budget runs out.
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// StateEvent describes one transition. Err is set when a failure caused it.
type StateEvent struct {
	Old State
	New State
	Err error
}
