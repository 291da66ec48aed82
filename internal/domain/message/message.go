// Package message defines the typed wire protocol for the dashboard push
// channel. Every inbound frame is a JSON object with a "type" tag; Decode
// maps each recognized tag to its own variant and everything else to Unknown.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/guttosm/dashwatch/internal/domain/model"
)

// Message type tags used on the wire.
const (
	TypeMetricsUpdate         = "metrics_update"
	TypeHostOffline           = "host_offline"
	TypeCacheInvalidation     = "cache_invalidation"
	TypeConnectionEstablished = "connection_established"
	TypeSubscriptionConfirmed = "subscription_confirmed"
	TypePing                  = "ping"
	TypePong                  = "pong"
	TypeSubscribeAll          = "subscribe_all"
	TypeSubscribeHostname     = "subscribe_hostname"
)

// Message is implemented by every inbound variant.
type Message interface {
	Type() string
}

// MetricsUpdate carries a fresh metrics sample for one host.
type MetricsUpdate struct {
	Hostname  string              `json:"hostname"`
	Metrics   model.SystemMetrics `json:"metrics"`
	Timestamp float64             `json:"timestamp"`
	EventType string              `json:"event_type,omitempty"`
}

// Type returns the wire tag for this variant.
func (MetricsUpdate) Type() string { return TypeMetricsUpdate }

// HostOffline signals that a host stopped reporting.
type HostOffline struct {
	Hostname  string  `json:"hostname"`
	Timestamp float64 `json:"timestamp,omitempty"`
}

// Type returns the wire tag for this variant.
func (HostOffline) Type() string { return TypeHostOffline }

// CacheInvalidation lists cache keys the server considers stale.
type CacheInvalidation struct {
	Hostname  string   `json:"hostname,omitempty"`
	CacheKeys []string `json:"cache_keys"`
}

// Type returns the wire tag for this variant.
func (CacheInvalidation) Type() string { return TypeCacheInvalidation }

// ConnectionEstablished is sent by the server once it accepts a connection.
type ConnectionEstablished struct {
	Hostname string `json:"hostname,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Type returns the wire tag for this variant.
func (ConnectionEstablished) Type() string { return TypeConnectionEstablished }

// SubscriptionConfirmed acknowledges a subscribe handshake.
type SubscriptionConfirmed struct {
	Hostname string `json:"hostname,omitempty"`
	Scope    string `json:"scope"`
}

// Type returns the wire tag for this variant.
func (SubscriptionConfirmed) Type() string { return TypeSubscriptionConfirmed }

// Pong is the server reply to an outbound heartbeat ping.
type Pong struct {
	Hostname  string `json:"hostname,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Type returns the wire tag for this variant.
func (Pong) Type() string { return TypePong }

// Unknown preserves frames whose tag is not part of the recognized set.
type Unknown struct {
	Tag string
	Raw json.RawMessage
}

// Type returns the wire tag carried by the frame.
func (u Unknown) Type() string { return u.Tag }

// envelope is the first decode pass, extracting only the tag.
type envelope struct {
	Type string `json:"type"`
}

// Decode parses a raw frame into its typed variant. Frames without a type
// field or with invalid JSON return an error; unrecognized tags decode into
// Unknown rather than failing.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("message: invalid frame: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("message: frame missing type field")
	}

	switch env.Type {
	case TypeMetricsUpdate:
		var m MetricsUpdate
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("message: decode %s: %w", env.Type, err)
		}
		return m, nil
	case TypeHostOffline:
		var m HostOffline
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("message: decode %s: %w", env.Type, err)
		}
		return m, nil
	case TypeCacheInvalidation:
		var m CacheInvalidation
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("message: decode %s: %w", env.Type, err)
		}
		return m, nil
	case TypeConnectionEstablished:
		var m ConnectionEstablished
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("message: decode %s: %w", env.Type, err)
		}
		return m, nil
	case TypeSubscriptionConfirmed:
		var m SubscriptionConfirmed
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("message: decode %s: %w", env.Type, err)
		}
		return m, nil
	case TypePong:
		var m Pong
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("message: decode %s: %w", env.Type, err)
		}
		return m, nil
	default:
		return Unknown{Tag: env.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}
