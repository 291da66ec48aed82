package message

import "time"

// SubscribeAll is the handshake sent after connecting to the dashboard-wide
// endpoint.
type SubscribeAll struct {
	Kind string `json:"type"`
}

// NewSubscribeAll builds the dashboard-wide subscribe handshake.
func NewSubscribeAll() SubscribeAll {
	return SubscribeAll{Kind: TypeSubscribeAll}
}

// SubscribeHostname is the handshake sent after connecting to a per-host
// endpoint.
type SubscribeHostname struct {
	Kind     string `json:"type"`
	Hostname string `json:"hostname"`
}

// NewSubscribeHostname builds the per-host subscribe handshake.
func NewSubscribeHostname(hostname string) SubscribeHostname {
	return SubscribeHostname{Kind: TypeSubscribeHostname, Hostname: hostname}
}

// Ping is the outbound heartbeat frame.
type Ping struct {
	Kind      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// NewPing builds a heartbeat frame stamped with the given time in epoch
// milliseconds.
func NewPing(now time.Time) Ping {
	return Ping{Kind: TypePing, Timestamp: now.UnixMilli()}
}
