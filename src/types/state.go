package types

// ConnectionState is the lifecycle state of the duplex channel.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnectPending
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnectPending:
		return "reconnect_pending"
	default:
		return "unknown"
	}
}

// StateChange is reported to state hooks on every transition.
type StateChange struct {
	From ConnectionState
	To   ConnectionState
	Err  error // cause of a drop or failed attempt, if any
}
