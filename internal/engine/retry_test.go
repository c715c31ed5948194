package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picket-io/picket/internal/provider"
)

func fastPolicy(attempts int) *RetryPolicy {
	return &RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Microsecond, MaxDelay: time.Millisecond}
}

func TestRetryWithBackoffSuccess(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastPolicy(5), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoffFatalStopsImmediately(t *testing.T) {
	calls := 0
	fatal := &provider.Error{Op: "create", Type: "aws:EC2.Vpc", Retryable: false, Err: errors.New("invalid cidr")}
	err := RetryWithBackoff(context.Background(), fastPolicy(5), func() error {
		calls++
		return fatal
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	var pe *provider.Error
	assert.ErrorAs(t, err, &pe)
}

func TestRetryWithBackoffExhaustsRetryable(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastPolicy(3), func() error {
		calls++
		return &provider.Error{Op: "create", Type: "aws:ECS.Service", Retryable: true, Err: errors.New("throttled")}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
}

func TestRetryWithBackoffEventualSuccess(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastPolicy(5), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("dial tcp: connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryWithBackoff(ctx, &RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}, func() error {
		return errors.New("timeout")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "provider retryable", err: &provider.Error{Retryable: true, Err: errors.New("x")}, want: true},
		{name: "provider fatal", err: &provider.Error{Retryable: false, Err: errors.New("x")}, want: false},
		{name: "wrapped provider error", err: fmt.Errorf("apply: %w", &provider.Error{Retryable: true, Err: errors.New("x")}), want: true},
		{name: "connection reset", err: errors.New("read: connection reset by peer"), want: true},
		{name: "throttle message", err: errors.New("Throttling: rate exceeded"), want: true},
		{name: "plain failure", err: errors.New("no such bucket"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
