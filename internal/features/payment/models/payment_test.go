package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFromGateway(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"pending", StatusPending},
		{"succeeded", StatusSucceeded},
		{"canceled", StatusCanceled},
		{"waiting_for_capture", StatusUnknown},
		{"failed", StatusUnknown},
		{"", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFromGateway(tt.raw))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	for _, s := range []Status{StatusSucceeded, StatusFailed, StatusCanceled, StatusUnknown} {
		assert.True(t, s.Terminal(), string(s))
	}
}
