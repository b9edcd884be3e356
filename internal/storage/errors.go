package storage

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

var (
	// ErrNotConfigured indicates required object store settings are absent.
	// Returned before any network call is made.
	ErrNotConfigured = errors.New("storage: object store configuration missing")

	// ErrAccessDenied indicates the credentials are rejected by the service.
	ErrAccessDenied = errors.New("storage: access denied")

	// ErrBucketNotFound indicates the configured bucket does not exist.
	ErrBucketNotFound = errors.New("storage: bucket not found")

	// ErrTransient indicates a network or service failure that survived the
	// SDK retry policy and may succeed if the call is repeated later.
	ErrTransient = errors.New("storage: transient object store failure")
)

// classify maps an S3 SDK error onto the package error taxonomy, keeping
// the original error in the chain for diagnostics.
func classify(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%s: %w: %w", op, ErrAccessDenied, err)
		case "NoSuchBucket":
			return fmt.Errorf("%s: %w: %w", op, ErrBucketNotFound, err)
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	// Non-API errors from the SDK are connection-level failures.
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}
