// Package services – IngestService
//
// This file implements IngestService, the asynchronous pipeline that turns an
// accepted upload into queryable chunks: fetch the binary from object
// storage, extract page text, enforce the plan's page ceiling, segment into
// fixed word-count chunks, and persist them in bulk.
//
// The pipeline runs detached from the upload request: it carries its own
// deadline and reports outcomes exclusively through the file's upload status.
// Failures are logged but never propagated; the poller observes FAILED.
package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-docchat-backend/internal/config"
	"github.com/tbourn/go-docchat-backend/internal/domain"
	"github.com/tbourn/go-docchat-backend/internal/pdf"
	"github.com/tbourn/go-docchat-backend/internal/repo"
	"github.com/tbourn/go-docchat-backend/internal/storage"
)

// maxPDFBytes is a hard read ceiling independent of plan limits, protecting
// the extractor from oversized objects that bypassed upload validation.
const maxPDFBytes = 64 << 20

// IngestService extracts and chunks uploaded PDFs.
type IngestService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store is the object-storage backend the binaries are fetched from.
	Store storage.ObjectStore
	// Plans supplies the per-plan page ceilings.
	Plans config.PlansConfig
	// ChunkWords is the fixed word-count window per stored chunk.
	ChunkWords int
	// Timeout bounds a single ingestion run end to end.
	Timeout time.Duration
	// PlanResolver returns the plan governing a user at ingestion time.
	// Defaults to the free tier when nil.
	PlanResolver func(ctx context.Context, userID string) config.Plan
	// Observe, when set, is called with the terminal status of every run.
	Observe func(status string)
}

// NewIngestService constructs an IngestService wired to the file service's
// plan resolution.
func NewIngestService(db *gorm.DB, store storage.ObjectStore, cfg config.IngestConfig, plans config.PlansConfig, files *FileService) *IngestService {
	return &IngestService{
		DB:           db,
		Store:        store,
		Plans:        plans,
		ChunkWords:   cfg.ChunkWords,
		Timeout:      cfg.Timeout,
		PlanResolver: files.PlanFor,
	}
}

// Run executes the ingestion pipeline for a file. It is meant to be launched
// in its own goroutine after the upload is accepted; it never returns an
// error because there is no caller left to receive one. The file's upload
// status is the only output channel.
func (s *IngestService) Run(fileID, userID string) {
	ctx := context.Background()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "Run",
		trace.WithAttributes(
			attribute.String("file.id", fileID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	if err := s.ingest(ctx, fileID, userID); err != nil {
		log.Error().Err(err).
			Str("file_id", fileID).
			Str("user_id", userID).
			Msg("ingestion failed")
		s.markFailed(fileID)
		if s.Observe != nil {
			s.Observe(domain.UploadStatusFailed)
		}
		return
	}
	log.Info().
		Str("file_id", fileID).
		Str("user_id", userID).
		Msg("ingestion succeeded")
	if s.Observe != nil {
		s.Observe(domain.UploadStatusSuccess)
	}
}

// ingest performs the actual pipeline; Run handles status bookkeeping on
// failure.
func (s *IngestService) ingest(ctx context.Context, fileID, userID string) error {
	f, err := repo.GetFile(ctx, s.DB, fileID, userID)
	if err != nil {
		return fmt.Errorf("load file: %w", err)
	}
	if domain.IsTerminalStatus(f.UploadStatus) {
		// Another run already finished this file.
		return nil
	}
	if err := repo.UpdateFileStatus(ctx, s.DB, fileID, domain.UploadStatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	rc, err := s.Store.Get(ctx, f.Key)
	if err != nil {
		return fmt.Errorf("fetch object: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxPDFBytes))
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}

	pages, err := pdf.ExtractPages(data)
	if err != nil {
		return fmt.Errorf("extract pages: %w", err)
	}

	plan := s.Plans.Free
	if s.PlanResolver != nil {
		plan = s.PlanResolver(ctx, userID)
	}
	if len(pages) > plan.PagesPerPDF {
		return fmt.Errorf("%w: %d pages, plan allows %d", ErrTooManyPages, len(pages), plan.PagesPerPDF)
	}

	chunks := pdf.ChunkPages(pages, s.ChunkWords)
	if err := repo.CreateChunks(ctx, s.DB, fileID, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	if err := repo.UpdateFileStatus(ctx, s.DB, fileID, domain.UploadStatusSuccess); err != nil {
		return fmt.Errorf("mark success: %w", err)
	}
	return nil
}

// markFailed moves the file to FAILED. A fresh context is used because the
// run's context may already be past its deadline.
func (s *IngestService) markFailed(fileID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.UpdateFileStatus(ctx, s.DB, fileID, domain.UploadStatusFailed); err != nil {
		log.Error().Err(err).Str("file_id", fileID).Msg("could not mark file failed")
	}
}
