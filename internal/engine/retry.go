package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/aws/smithy-go"

	"github.com/picket-io/picket/internal/provider"
)

// DefaultParallelism bounds concurrent provider calls within one phase.
const DefaultParallelism = 10

// DefaultAttempts is the bound on create/update/destroy attempts for a
// retryable failure.
const DefaultAttempts = 5

// RetryPolicy defines backoff behavior for retryable provider errors.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: DefaultAttempts,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// RetryWithBackoff runs fn up to policy.MaxAttempts times, sleeping a
// jittered exponential backoff between attempts. Only errors classified
// retryable are retried; everything else returns immediately.
func RetryWithBackoff(ctx context.Context, policy *RetryPolicy, fn func() error) error {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt < policy.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(backoffDelay(attempt, policy.BaseDelay, policy.MaxDelay)):
			}
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", policy.MaxAttempts, lastErr)
}

func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt))
	if d > float64(max) {
		d = float64(max)
	}
	// Full jitter: anywhere between 0 and the capped exponential delay.
	return time.Duration(rand.Float64() * d)
}

// retryableAPICodes are AWS API error codes that indicate a transient
// condition.
var retryableAPICodes = map[string]bool{
	"Throttling":               true,
	"ThrottlingException":      true,
	"RequestLimitExceeded":     true,
	"TooManyRequestsException": true,
	"ServiceUnavailable":       true,
	"InternalError":            true,
	"InternalFailure":          true,
	"RequestTimeout":           true,
	"ProvisionedThroughputExceededException": true,
}

// transientPatterns cover network-level failures that never reach the API
// error path.
var transientPatterns = []string{
	"throttl",
	"rate exceed",
	"too many requests",
	"service unavailable",
	"connection reset",
	"connection refused",
	"timeout",
	"i/o timeout",
	"tls handshake",
	"temporary failure",
}

// IsRetryable classifies an error as transient. Provider errors carry
// their own classification; AWS API errors are matched by code, raw
// network errors by message.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *provider.Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if retryableAPICodes[apiErr.ErrorCode()] {
			return true
		}
		return apiErr.ErrorFault() == smithy.FaultServer
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
