package storage

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
)

const (
	// DefaultMaxAttempts bounds upload retries, the first try included.
	DefaultMaxAttempts = 3

	// DefaultMaxBackoff caps the delay between attempts.
	DefaultMaxBackoff = 20 * time.Second
)

// RetryPolicy makes the SDK retry behavior an explicit part of the client
// contract instead of an opaque library default.
type RetryPolicy struct {
	MaxAttempts int
	MaxBackoff  time.Duration
}

// NewRetryPolicy returns a policy with maxAttempts attempts, falling back
// to the defaults for out-of-range values.
func NewRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		MaxBackoff:  DefaultMaxBackoff,
	}
}

// Retryer builds the aws.Retryer the S3 client is configured with.
// Only errors the SDK classifies as retryable (throttling, server faults,
// connection failures) are retried; client errors surface immediately.
func (p RetryPolicy) Retryer() aws.Retryer {
	return retry.NewStandard(func(o *retry.StandardOptions) {
		o.MaxAttempts = p.MaxAttempts
		o.MaxBackoff = p.MaxBackoff
	})
}
