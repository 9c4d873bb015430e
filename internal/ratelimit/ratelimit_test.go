package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		rps     int
		wantNil bool
	}{
		{name: "positive rate", rps: 5},
		{name: "zero disables", rps: 0, wantNil: true},
		{name: "negative disables", rps: -1, wantNil: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New("azure", tt.rps)
			if tt.wantNil {
				assert.Nil(t, l)
				assert.NoError(t, l.Wait(t.Context()))
				return
			}
			require.NotNil(t, l)
			assert.Equal(t, "azure", l.Name())
		})
	}
}

func TestWait_Cancelled(t *testing.T) {
	l := New("azure", 1)
	require.NoError(t, l.Wait(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := l.Wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait for azure")
}
