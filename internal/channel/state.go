// Package channel provides a reconnecting push-message client for the
// dashboard WebSocket endpoint, with bounded exponential backoff, periodic
// heartbeats, and per-type subscriber fanout.
package channel

// State represents the lifecycle state of a channel connection.
type State int

const (
	// StateIdle means no connection has been attempted yet.
	StateIdle State = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateOpen means the transport is live and messages flow.
	StateOpen
	// StateClosing means an intentional close is in progress.
	StateClosing
	// StateClosed means the transport is down.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
