// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-docchat-backend/internal/domain"
)

// CreateMessage inserts a new message row for fileID authored by userID.
// isUser distinguishes user turns from assistant turns.
func CreateMessage(ctx context.Context, db *gorm.DB, fileID, userID, text string, isUser bool) (*domain.Message, error) {
	m := &domain.Message{
		ID:            uuid.NewString(),
		Text:          text,
		IsUserMessage: isUser,
		FileID:        fileID,
		UserID:        userID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListRecentMessages returns the most recent messages for fileID, newest
// first, capped at limit. Callers reverse the slice when they need
// chronological order for a transcript.
func ListRecentMessages(ctx context.Context, db *gorm.DB, fileID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListMessagesBefore returns up to limit+1 messages for fileID strictly
// older than the cursor message (exclusive), newest first. An empty cursor
// starts from the latest message. The extra row lets the caller compute the
// next cursor without a second query.
func ListMessagesBefore(ctx context.Context, db *gorm.DB, fileID, cursor string, limit int) ([]domain.Message, error) {
	q := db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if cursor != "" {
		var pivot domain.Message
		if err := db.WithContext(ctx).Where("id = ? AND file_id = ?", cursor, fileID).First(&pivot).Error; err != nil {
			return nil, err
		}
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", pivot.CreatedAt, pivot.CreatedAt, pivot.ID)
	}

	var out []domain.Message
	err := q.Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, fileID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE file_id = ? AND deleted_at IS NULL", fileID).
		Scan(&total).Error
	return total, err
}
