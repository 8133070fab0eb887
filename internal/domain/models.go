// Package domain defines the persistence models for files, chunks, messages,
// and users. These types are mapped with GORM and form the core data layer
// of the document-chat application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Upload status values for File.UploadStatus. The lifecycle is monotonic:
// PENDING → PROCESSING → {SUCCESS | FAILED}. Terminal states never change
// again (enforced by repo.UpdateFileStatus).
const (
	UploadStatusPending    = "PENDING"
	UploadStatusProcessing = "PROCESSING"
	UploadStatusSuccess    = "SUCCESS"
	UploadStatusFailed     = "FAILED"
)

// IsTerminalStatus reports whether s is SUCCESS or FAILED.
func IsTerminalStatus(s string) bool {
	return s == UploadStatusSuccess || s == UploadStatusFailed
}

// File represents an uploaded PDF owned by a user. The row is created when
// the upload is accepted and its status is advanced by the ingestion step;
// clients observe progress by polling.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name: original filename shown in the dashboard.
//   - Key: object-storage key of the stored binary.
//   - URL: fetchable URL for the stored binary.
//   - UserID: identifier of the owner; indexed for listing.
//   - UploadStatus: PENDING/PROCESSING/SUCCESS/FAILED (DB constraint).
type File struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	Name         string         `json:"name"          gorm:"type:varchar(255);not null"`
	Key          string         `json:"key"           gorm:"type:varchar(255);not null;uniqueIndex"`
	URL          string         `json:"url"           gorm:"type:text;not null"`
	UserID       string         `json:"user_id"       gorm:"type:varchar(64);not null;index:idx_user_files"`
	UploadStatus string         `json:"upload_status" gorm:"type:varchar(16);not null;default:'PENDING';check:upload_status IN ('PENDING','PROCESSING','SUCCESS','FAILED')"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for File.
func (File) TableName() string { return "files" }

// Chunk is a fixed-size word-count segment of a page's extracted text.
// Chunks are written in bulk during ingestion and are immutable afterwards.
// Position preserves extraction order so selection stays deterministic.
type Chunk struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	Text      string    `json:"text"     gorm:"type:text;not null"`
	FileID    string    `json:"file_id"  gorm:"type:char(36);not null;index:idx_file_chunks,priority:1"`
	Position  int       `json:"position" gorm:"not null;index:idx_file_chunks,priority:2"`
	CreatedAt time.Time `json:"created_at"`

	// File is the owning document. Chunks are cascade-deleted with it.
	File File `json:"-" gorm:"foreignKey:FileID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Chunk.
func (Chunk) TableName() string { return "chunks" }

// Message is a single conversational turn against a file, authored either by
// the user or by the assistant. Messages are immutable and replayed in
// (created_at, id) order.
type Message struct {
	ID            string         `json:"id"              gorm:"type:char(36);primaryKey"`
	Text          string         `json:"text"            gorm:"type:text;not null"`
	IsUserMessage bool           `json:"is_user_message" gorm:"not null"`
	FileID        string         `json:"file_id"         gorm:"type:char(36);not null;index:idx_file_msgs,priority:1"`
	UserID        string         `json:"user_id"         gorm:"type:varchar(64);not null;index"`
	CreatedAt     time.Time      `json:"created_at"      gorm:"index:idx_file_msgs,priority:2"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"               gorm:"index"`

	// File is the conversation target. Messages are cascade-deleted with it.
	File File `json:"-" gorm:"foreignKey:FileID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// User carries the billing identity for an account. The row is read-mostly
// from this service's perspective; subscription fields are written when a
// checkout completes (webhooks are out of scope here).
type User struct {
	ID                     string         `json:"id"    gorm:"type:varchar(64);primaryKey"`
	Email                  string         `json:"email" gorm:"type:varchar(255);uniqueIndex"`
	StripeCustomerID       string         `json:"-"     gorm:"type:varchar(64);index"`
	StripeSubscriptionID   string         `json:"-"     gorm:"type:varchar(64)"`
	StripePriceID          string         `json:"-"     gorm:"type:varchar(64)"`
	StripeCurrentPeriodEnd *time.Time     `json:"-"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	DeletedAt              gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// SubscriptionGrace is how long past the recorded period end a subscription
// still counts as active, covering renewal webhook latency.
const SubscriptionGrace = 72 * time.Hour

// IsSubscribed reports whether the user has an active paid subscription at
// the given instant.
func (u *User) IsSubscribed(now time.Time) bool {
	if u == nil || u.StripeSubscriptionID == "" || u.StripeCurrentPeriodEnd == nil {
		return false
	}
	return u.StripeCurrentPeriodEnd.Add(SubscriptionGrace).After(now)
}
