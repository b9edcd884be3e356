package model

import (
	"time"
)

// VideoStatus defines the processing status of a video.
//
// The set is open by convention: the store accepts unknown values on
// insert, but status updates are validated against the transition table.
type VideoStatus string

const (
	StatusPending    VideoStatus = "pending"
	StatusProcessing VideoStatus = "processing"
	StatusCompleted  VideoStatus = "completed"
	StatusFailed     VideoStatus = "failed"
)

// validTransitions maps each status to the statuses it may move to.
var validTransitions = map[VideoStatus][]VideoStatus{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// CanTransitionTo reports whether a status update from s to next is legal.
func (s VideoStatus) CanTransitionTo(next VideoStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsKnown reports whether s is one of the documented status values.
func (s VideoStatus) IsKnown() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// VideoRecord represents one uploaded video's metadata and storage location
type VideoRecord struct {
	VideoID    string      `gorm:"primaryKey;size:64" json:"video_id"`
	UserID     string      `gorm:"size:64;not null;index" json:"user_id"`
	Filename   string      `gorm:"size:500;not null" json:"filename"`
	StorageKey string      `gorm:"size:500;not null" json:"storage_key"`
	Status     VideoStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// TableName returns the table name for VideoRecord
func (VideoRecord) TableName() string {
	return "videos"
}
