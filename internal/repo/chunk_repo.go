// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chunk model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-docchat-backend/internal/domain"
)

// CreateChunks bulk-inserts the given texts as chunks of fileID, preserving
// their order via Position. A nil or empty slice is a no-op.
func CreateChunks(ctx context.Context, db *gorm.DB, fileID string, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]domain.Chunk, 0, len(texts))
	for i, t := range texts {
		rows = append(rows, domain.Chunk{
			ID:        uuid.NewString(),
			Text:      t,
			FileID:    fileID,
			Position:  i,
			CreatedAt: now,
		})
	}
	return db.WithContext(ctx).CreateInBatches(rows, 100).Error
}

// SearchChunks returns up to limit chunks of fileID whose text contains query
// as a case-insensitive substring, in extraction order. The result is
// deterministic for a given stored document: same data, same selection.
func SearchChunks(ctx context.Context, db *gorm.DB, fileID, query string, limit int) ([]domain.Chunk, error) {
	var out []domain.Chunk
	q := db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Where("LOWER(text) LIKE ? ESCAPE '\\'", "%"+escapeLike(loweredPattern(query))+"%").
		Order("position ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountChunks returns the number of chunks stored for fileID. A raw COUNT is
// used so a missing table surfaces as an error.
func CountChunks(ctx context.Context, db *gorm.DB, fileID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM chunks WHERE file_id = ?", fileID).
		Scan(&total).Error
	return total, err
}

// loweredPattern lowercases query for the LOWER(text) LIKE comparison.
// SQLite's LIKE is already case-insensitive for ASCII, but lowering both
// sides keeps the behavior portable across drivers.
func loweredPattern(q string) string {
	b := []byte(q)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// escapeLike escapes LIKE wildcards in user-supplied text so the query
// matches them literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
