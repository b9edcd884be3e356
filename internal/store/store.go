package store

import (
	"context"

	"github.com/user/vistela-backend/internal/model"
)

// DefaultListLimit caps List results when the caller does not set one.
const DefaultListLimit = 100

// ListFilter narrows a List call. Zero-value fields impose no constraint;
// set fields are combined with logical AND.
type ListFilter struct {
	UserID string
	Status model.VideoStatus
	Limit  int
}

// Store defines the interface for video record persistence
type Store interface {
	// Insert durably writes a new record. Timestamps are generated by the
	// store; a duplicate video ID fails with ErrAlreadyExists.
	Insert(ctx context.Context, record *model.VideoRecord) error

	// Get returns the record for videoID, or (nil, nil) when absent.
	Get(ctx context.Context, videoID string) (*model.VideoRecord, error)

	// List returns records matching the filter, ordered by created_at DESC,
	// at most filter.Limit entries (DefaultListLimit when unset).
	List(ctx context.Context, filter ListFilter) ([]*model.VideoRecord, error)

	// UpdateStatus moves a record to a new status, enforcing the
	// pending -> processing -> completed|failed transition table.
	UpdateStatus(ctx context.Context, videoID string, status model.VideoStatus) error

	// Delete removes a record; ErrNotFound when absent.
	Delete(ctx context.Context, videoID string) error

	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)

	// Health check
	Ping(ctx context.Context) error
	Close() error
}
