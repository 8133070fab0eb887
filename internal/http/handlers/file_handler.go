// File HTTP handlers.
//
// This file exposes REST endpoints for PDF file resources:
//   - POST   /files              (upload, starts async ingestion)
//   - GET    /files              (list, ETag support)
//   - GET    /files/lookup       (lookup by object-storage key)
//   - GET    /files/:id          (fetch one)
//   - GET    /files/:id/status   (ingestion status poll)
//   - DELETE /files/:id          (delete)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-docchat-backend/internal/domain"
	"github.com/tbourn/go-docchat-backend/internal/http/middleware"
	"github.com/tbourn/go-docchat-backend/internal/llm"
	"github.com/tbourn/go-docchat-backend/internal/repo"
	"github.com/tbourn/go-docchat-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// FileService defines file lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type FileService interface {
	// Upload validates and stores a PDF, creating the PENDING metadata row.
	Upload(ctx context.Context, userID, name string, data []byte) (*domain.File, error)
	// List returns all files owned by the user, newest first.
	List(ctx context.Context, userID string) ([]domain.File, error)
	// Get fetches a single file owned by the user.
	Get(ctx context.Context, userID, id string) (*domain.File, error)
	// GetByKey fetches a file by its object-storage key.
	GetByKey(ctx context.Context, userID, key string) (*domain.File, error)
	// Status reports the ingestion status; missing rows read as PENDING.
	Status(ctx context.Context, userID, id string) (string, error)
	// Delete removes a file and its stored binary.
	Delete(ctx context.Context, userID, id string) error
}

// MessageService defines the conversational operations consumed by HTTP
// handlers.
type MessageService interface {
	// Stream runs one turn, relaying completion deltas to onDelta.
	Stream(ctx context.Context, userID, fileID, text string, onDelta llm.DeltaFunc) (*domain.Message, error)
	// ListPage returns a page of messages older than cursor, newest first.
	ListPage(ctx context.Context, userID, fileID, cursor string, limit int) ([]domain.Message, string, error)
}

// BillingService defines the payment-session operations consumed by HTTP
// handlers.
type BillingService interface {
	// Session returns the checkout or portal redirect URL for the user.
	Session(ctx context.Context, userID string) (string, error)
	// Plan resolves the plan currently governing the user.
	Plan(ctx context.Context, userID string) (services.PlanInfo, error)
}

// Ingestor starts the asynchronous ingestion pipeline for an uploaded file.
type Ingestor interface {
	Run(fileID, userID string)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for files, messages, and billing. It
// depends on abstract service interfaces to keep transport concerns separate
// from business logic.
type Handlers struct {
	fileSvc FileService
	msgSvc  MessageService
	billSvc BillingService
	ingest  Ingestor
}

// New constructs a Handlers instance bound to the given services.
func New(fileSvc FileService, msgSvc MessageService, billSvc BillingService, ingest Ingestor) *Handlers {
	return &Handlers{fileSvc: fileSvc, msgSvc: msgSvc, billSvc: billSvc, ingest: ingest}
}

// userID extracts the authenticated user id from the Gin context (set by the
// auth middleware). Empty means unauthenticated.
func userID(c *gin.Context) string {
	return middleware.UserIDFrom(c)
}

// requireUser returns the user id or writes a 401 and returns "".
func requireUser(c *gin.Context) string {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	}
	return uid
}

//
// DTOs
//

// FileStatusResponse is the body of the ingestion status poll.
type FileStatusResponse struct {
	Status string `json:"status" example:"PROCESSING"`
}

// ListFilesResponse wraps the user's file list.
type ListFilesResponse struct {
	Files []domain.File `json:"files"`
}

//
// Handlers
//

// UploadFile godoc
// @ID          uploadFile
// @Summary     Upload a PDF
// @Description Accepts a multipart PDF upload, stores it, and starts asynchronous ingestion. Poll the status endpoint to observe progress.
// @Tags        Files
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       file  formData  file  true  "PDF document"
//
// @Success     201  {object}  domain.File
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     413  {object}  handlers.ErrorResponse  "Payload too large"
// @Failure     415  {object}  handlers.ErrorResponse  "Not a PDF"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /files [post]
func (h *Handlers) UploadFile(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field 'file' required")
		return
	}
	src, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not open upload")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read upload")
		return
	}

	f, err := h.fileSvc.Upload(c.Request.Context(), uid, fh.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyUpload):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "upload is empty")
		case errors.Is(err, services.ErrUploadTooLarge):
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "upload exceeds plan size limit")
		case errors.Is(err, services.ErrNotPDF):
			fail(c, http.StatusUnsupportedMediaType, ErrCodeUnsupportedMedia, "only PDF uploads are accepted")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeUploadFailed, err.Error())
		}
		return
	}

	// Ingestion continues after this response; the poller takes over.
	go h.ingest.Run(f.ID, uid)

	ok(c, http.StatusCreated, f)
}

// ListFiles godoc
// @ID          listFiles
// @Summary     List files
// @Description Returns the user's files, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Files
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object}  handlers.ListFilesResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /files [get]
func (h *Handlers) ListFiles(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.fileSvc.(*services.FileService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.FilesStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"files:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.fileSvc.List(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListFilesResponse{Files: items})
}

// LookupFile godoc
// @ID          lookupFile
// @Summary     Look up a file by storage key
// @Description Returns the file whose object-storage key matches the query. Used by the upload-completion handshake.
// @Tags        Files
// @Produce     json
//
// @Param       key  query  string  true  "Object-storage key"
//
// @Success     200  {object}  domain.File
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "File not found"
// @Router      /files/lookup [get]
func (h *Handlers) LookupFile(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "query parameter 'key' required")
		return
	}

	f, err := h.fileSvc.GetByKey(c.Request.Context(), uid, key)
	if err != nil {
		if errors.Is(err, services.ErrFileNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "file not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, f)
}

// GetFile godoc
// @ID          getFile
// @Summary     Fetch a file
// @Description Returns a single file owned by the current user.
// @Tags        Files
// @Produce     json
//
// @Param       id  path  string  true  "File ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.File
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "File not found"
// @Router      /files/{id} [get]
func (h *Handlers) GetFile(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file id must be a UUID")
		return
	}

	f, err := h.fileSvc.Get(c.Request.Context(), uid, id)
	if err != nil {
		if errors.Is(err, services.ErrFileNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "file not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, f)
}

// FileStatus godoc
// @ID          fileStatus
// @Summary     Poll ingestion status
// @Description Returns the file's ingestion status. A file not visible yet reads as PENDING so pollers keep waiting instead of failing.
// @Tags        Files
// @Produce     json
//
// @Param       id  path  string  true  "File ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.FileStatusResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /files/{id}/status [get]
func (h *Handlers) FileStatus(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file id must be a UUID")
		return
	}

	status, err := h.fileSvc.Status(c.Request.Context(), uid, id)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, FileStatusResponse{Status: status})
}

// DeleteFile godoc
// @ID          deleteFile
// @Summary     Delete a file
// @Description Removes a file, its chunks, its messages, and the stored binary.
// @Tags        Files
// @Produce     json
//
// @Param       id  path  string  true  "File ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "File not found"
// @Router      /files/{id} [delete]
func (h *Handlers) DeleteFile(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file id must be a UUID")
		return
	}

	if err := h.fileSvc.Delete(c.Request.Context(), uid, id); err != nil {
		if errors.Is(err, services.ErrFileNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "file not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
