//go:build !integration

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHostSummary_SeenWithin(t *testing.T) {
	now := time.Unix(1_756_461_600, 0)
	window := 2 * time.Minute

	tests := []struct {
		name     string
		lastSeen float64
		want     bool
	}{
		{name: "just seen", lastSeen: float64(now.Unix()), want: true},
		{name: "inside window", lastSeen: float64(now.Add(-time.Minute).Unix()), want: true},
		{name: "exactly at window edge", lastSeen: float64(now.Add(-window).Unix()), want: false},
		{name: "outside window", lastSeen: float64(now.Add(-time.Hour).Unix()), want: false},
		{name: "never seen", lastSeen: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := HostSummary{Hostname: "web-1", LastSeen: tt.lastSeen}
			assert.Equal(t, tt.want, h.SeenWithin(window, now))
		})
	}
}
