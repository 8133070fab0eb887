// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the File model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a file is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-docchat-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateFile inserts a new File row owned by userID in the PENDING state.
// The file ID is a randomly generated UUID, and CreatedAt is set to UTC.
func CreateFile(ctx context.Context, db *gorm.DB, userID, name, key, url string) (*domain.File, error) {
	f := &domain.File{
		ID:           uuid.NewString(),
		Name:         name,
		Key:          key,
		URL:          url,
		UserID:       userID,
		UploadStatus: domain.UploadStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// GetFile fetches a single file by its ID and owner (userID). If the record
// does not exist or belongs to another user, it returns ErrNotFound.
func GetFile(ctx context.Context, db *gorm.DB, id, userID string) (*domain.File, error) {
	var f domain.File
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFileByKey fetches a file by its object-storage key and owner. Used by
// the upload-completion handshake where the client only knows the key.
func GetFileByKey(ctx context.Context, db *gorm.DB, key, userID string) (*domain.File, error) {
	var f domain.File
	err := db.WithContext(ctx).
		Where("key = ? AND user_id = ?", key, userID).
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFiles returns all files belonging to userID, ordered by creation time
// descending (most recent first). It returns an empty slice if the user has
// no files.
func ListFiles(ctx context.Context, db *gorm.DB, userID string) ([]domain.File, error) {
	var out []domain.File
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// UpdateFileStatus advances a file's ingestion status. Terminal states are
// sticky: once a row reads SUCCESS or FAILED no further transition applies
// and ErrNotFound is returned, which callers may treat as a no-op.
func UpdateFileStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.File{}).
		Where("id = ? AND upload_status NOT IN (?, ?)", id, domain.UploadStatusSuccess, domain.UploadStatusFailed).
		Update("upload_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteFile removes a file owned by userID together with its chunks and
// messages, in one transaction. The file row is deleted for real (Unscoped),
// not soft-deleted, so dependent rows cannot outlive it; the dependents are
// removed explicitly rather than relying on the driver honoring FK cascades.
// Returns ErrNotFound when the row is absent or owned by someone else.
func DeleteFile(ctx context.Context, db *gorm.DB, id, userID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().
			Where("id = ? AND user_id = ?", id, userID).
			Delete(&domain.File{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("file_id = ?", id).Delete(&domain.Chunk{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("file_id = ?", id).Delete(&domain.Message{}).Error
	})
}
