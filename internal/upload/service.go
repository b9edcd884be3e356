package upload

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/user/vistela-backend/internal/model"
	"github.com/user/vistela-backend/internal/store"
)

// BlobStore defines the interface for object storage operations
type BlobStore interface {
	Upload(ctx context.Context, stream io.ReadSeeker, name, folder string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Service ties the blob store and the video record store together: it
// uploads the bytes, then durably records the video's metadata.
type Service struct {
	store  store.Store
	blobs  BlobStore
	folder string
}

// NewService creates a new upload service. folder is the storage prefix
// all uploaded objects are placed under.
func NewService(s store.Store, blobs BlobStore, folder string) *Service {
	return &Service{
		store:  s,
		blobs:  blobs,
		folder: folder,
	}
}

// ObjectName derives a collision-resistant storage name for an upload by
// prefixing the client-supplied filename with the video ID. Any path
// components in the filename are discarded.
func ObjectName(videoID, filename string) string {
	base := path.Base(filename)
	if base == "." || base == "/" {
		base = "video"
	}
	return videoID + "_" + base
}

// UploadVideo uploads the stream to the blob store and inserts the video
// record with status pending. The returned record carries the generated
// video ID and the storage key.
func (s *Service) UploadVideo(ctx context.Context, userID, filename string, stream io.ReadSeeker) (*model.VideoRecord, error) {
	videoID := uuid.NewString()

	key, err := s.blobs.Upload(ctx, stream, ObjectName(videoID, filename), s.folder)
	if err != nil {
		return nil, fmt.Errorf("failed to upload video %q: %w", videoID, err)
	}

	record := &model.VideoRecord{
		VideoID:    videoID,
		UserID:     userID,
		Filename:   filename,
		StorageKey: key,
		Status:     model.StatusPending,
	}

	if err := s.store.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record video %q: %w", videoID, err)
	}

	log.Info().
		Str("videoID", videoID).
		Str("userID", userID).
		Str("key", key).
		Msg("Video uploaded and recorded")

	return record, nil
}

// DeleteVideo removes a video's record and its stored object. The blob is
// deleted first so a failure leaves the record pointing at a live object.
func (s *Service) DeleteVideo(ctx context.Context, videoID string) error {
	record, err := s.store.Get(ctx, videoID)
	if err != nil {
		return fmt.Errorf("failed to look up video %q: %w", videoID, err)
	}
	if record == nil {
		return fmt.Errorf("video %q: %w", videoID, store.ErrNotFound)
	}

	if err := s.blobs.Delete(ctx, record.StorageKey); err != nil {
		return fmt.Errorf("failed to delete blob for video %q: %w", videoID, err)
	}

	if err := s.store.Delete(ctx, videoID); err != nil {
		return fmt.Errorf("failed to delete record for video %q: %w", videoID, err)
	}

	log.Info().
		Str("videoID", videoID).
		Str("key", record.StorageKey).
		Msg("Video deleted")

	return nil
}
