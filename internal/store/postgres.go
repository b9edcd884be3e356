package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/vistela-backend/internal/config"
	"github.com/user/vistela-backend/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// PostgresStore implements Store interface using PostgreSQL
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore creates a new PostgreSQL store instance.
// Missing connection parameters fail with ErrNotConfigured before any
// connection is attempted.
func NewPostgresStore(cfg *config.DBConfig) (*PostgresStore, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" || cfg.Database == "" {
		return nil, fmt.Errorf("%w: DB_HOST, DB_USER, DB_PASS and DB_NAME must be set", ErrNotConfigured)
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Auto migrate tables
	if err := db.AutoMigrate(&model.VideoRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Insert durably writes a new video record in a single atomic statement.
// Timestamps are generated here, not taken from the caller.
func (s *PostgresStore) Insert(ctx context.Context, record *model.VideoRecord) error {
	if record.Status == "" {
		record.Status = model.StatusPending
	}

	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	result := s.db.WithContext(ctx).Create(record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("video %q: %w", record.VideoID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert video: %w", result.Error)
	}

	return nil
}

// Get retrieves a video record by its ID, returning (nil, nil) when absent
func (s *PostgresStore) Get(ctx context.Context, videoID string) (*model.VideoRecord, error) {
	var record model.VideoRecord
	result := s.db.WithContext(ctx).Where("video_id = ?", videoID).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get video: %w", result.Error)
	}
	return &record, nil
}

// List retrieves video records matching the filter, newest first
func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*model.VideoRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := s.db.WithContext(ctx)
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var records []*model.VideoRecord
	result := query.
		Order("created_at DESC").
		Limit(limit).
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list videos: %w", result.Error)
	}
	return records, nil
}

// UpdateStatus moves a video to a new status after validating the
// transition against the current row, which is locked for the update.
func (s *PostgresStore) UpdateStatus(ctx context.Context, videoID string, status model.VideoStatus) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record model.VideoRecord
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("video_id = ?", videoID).
			First(&record)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("video %q: %w", videoID, ErrNotFound)
			}
			return fmt.Errorf("failed to load video for status update: %w", result.Error)
		}

		if !record.Status.CanTransitionTo(status) {
			return fmt.Errorf("video %q: %s -> %s: %w", videoID, record.Status, status, ErrInvalidTransition)
		}

		updates := map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}
		if err := tx.Model(&record).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update video status: %w", err)
		}
		return nil
	})
}

// Delete removes a video record
func (s *PostgresStore) Delete(ctx context.Context, videoID string) error {
	result := s.db.WithContext(ctx).Where("video_id = ?", videoID).Delete(&model.VideoRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete video: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("video %q: %w", videoID, ErrNotFound)
	}
	return nil
}

// Count returns the total count of video records
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&model.VideoRecord{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count videos: %w", result.Error)
	}
	return count, nil
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection pool
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying gorm.DB instance (for testing purposes)
func (s *PostgresStore) DB() *gorm.DB {
	return s.db
}
