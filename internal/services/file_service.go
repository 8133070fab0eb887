// Package services – FileService
//
// This file implements FileService, which owns the upload lifecycle of PDF
// documents: plan resolution, upload validation (size ceiling, PDF magic
// bytes), object-storage persistence, and the metadata row that ingestion and
// status polling operate on.
//
// Uploads are accepted in the PENDING state; the ingestion step advances the
// status asynchronously, so every read path here treats status as
// eventually consistent.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include file/user identifiers where applicable.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-docchat-backend/internal/config"
	"github.com/tbourn/go-docchat-backend/internal/domain"
	"github.com/tbourn/go-docchat-backend/internal/repo"
	"github.com/tbourn/go-docchat-backend/internal/storage"
)

// pdfMagic is the required prefix of every accepted upload.
var pdfMagic = []byte("%PDF")

// FileService provides file-level operations: upload acceptance, listing,
// status polling, lookup, and deletion. Ownership is enforced on every path.
type FileService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store is the object-storage backend holding the PDF binaries.
	Store storage.ObjectStore
	// Plans is the immutable plan table used for upload ceilings.
	Plans config.PlansConfig
	// PresignExpiry bounds the lifetime of generated download URLs.
	PresignExpiry time.Duration
}

// NewFileService constructs a FileService.
func NewFileService(db *gorm.DB, store storage.ObjectStore, plans config.PlansConfig, presignExpiry time.Duration) *FileService {
	return &FileService{DB: db, Store: store, Plans: plans, PresignExpiry: presignExpiry}
}

// PlanFor resolves the plan currently governing userID. Users without a row
// or without an active subscription fall back to the free tier.
func (s *FileService) PlanFor(ctx context.Context, userID string) config.Plan {
	u, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil || !u.IsSubscribed(time.Now().UTC()) {
		return s.Plans.Free
	}
	return s.Plans.Pro
}

// Upload validates and stores a PDF for userID, creating the PENDING metadata
// row. Validation covers emptiness, the plan's byte ceiling, and the PDF
// magic bytes; page-count enforcement happens during ingestion because the
// page count is unknown until extraction.
func (s *FileService) Upload(ctx context.Context, userID, name string, data []byte) (*domain.File, error) {
	tr := otel.Tracer("services/FileService")
	ctx, span := tr.Start(ctx, "Upload",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("upload.bytes", len(data)),
		),
	)
	defer span.End()

	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	plan := s.PlanFor(ctx, userID)
	if int64(len(data)) > plan.MaxUploadBytes {
		return nil, ErrUploadTooLarge
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, ErrNotPDF
	}

	name = sanitizeFilename(name)
	key := fmt.Sprintf("%s/%s/%s", userID, uuid.NewString(), name)

	if err := s.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	url, err := s.Store.PresignGet(ctx, key, s.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	f, err := repo.CreateFile(ctx, s.DB, userID, name, key, url)
	if err != nil {
		// The object is orphaned without its row; best-effort cleanup.
		_ = s.Store.Delete(ctx, key)
		return nil, err
	}
	return f, nil
}

// List returns all files owned by userID, newest first.
func (s *FileService) List(ctx context.Context, userID string) ([]domain.File, error) {
	tr := otel.Tracer("services/FileService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	return repo.ListFiles(ctx, s.DB, userID)
}

// Get fetches a single file owned by userID.
func (s *FileService) Get(ctx context.Context, userID, id string) (*domain.File, error) {
	f, err := repo.GetFile(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return f, nil
}

// GetByKey fetches a file by its object-storage key, used by the
// upload-completion handshake where the client only holds the key.
func (s *FileService) GetByKey(ctx context.Context, userID, key string) (*domain.File, error) {
	f, err := repo.GetFileByKey(ctx, s.DB, key, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return f, nil
}

// Status reports the ingestion status of a file. A missing row reads as
// PENDING rather than an error: the metadata row may not be visible yet while
// the upload handshake is still in flight, and polling clients should keep
// waiting rather than fail.
func (s *FileService) Status(ctx context.Context, userID, id string) (string, error) {
	tr := otel.Tracer("services/FileService")
	ctx, span := tr.Start(ctx, "Status",
		trace.WithAttributes(
			attribute.String("file.id", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	f, err := repo.GetFile(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UploadStatusPending, nil
		}
		return "", err
	}
	return f.UploadStatus, nil
}

// Delete removes a file owned by userID together with its stored binary.
// The repository layer deletes the chunks and messages in the same
// transaction as the file row. Object-storage deletion is best-effort: the
// row is the source of truth.
func (s *FileService) Delete(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/FileService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("file.id", id),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	f, err := repo.GetFile(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFileNotFound
		}
		return err
	}
	if err := repo.DeleteFile(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFileNotFound
		}
		return err
	}
	_ = s.Store.Delete(ctx, f.Key)
	return nil
}

// sanitizeFilename keeps only the final path element and falls back to a
// generic name when nothing usable remains.
func sanitizeFilename(name string) string {
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return "document.pdf"
	}
	return name
}
