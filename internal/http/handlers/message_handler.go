// Message HTTP handlers.
//
// This file exposes the conversational endpoints:
//   - POST /messages                (ask a question, streamed reply)
//   - GET  /files/:id/messages      (transcript, cursor-paginated)
//
// The POST endpoint streams the assistant reply as plain text: the response
// body is the raw completion, flushed fragment by fragment as the model
// produces it. Errors detected before the first fragment are reported as the
// standard JSON envelope; once streaming has begun the connection is simply
// closed, because the status line is already on the wire.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-docchat-backend/internal/domain"
	"github.com/tbourn/go-docchat-backend/internal/http/middleware"
	"github.com/tbourn/go-docchat-backend/internal/services"
	"github.com/tbourn/go-docchat-backend/internal/utils"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for asking a question.
type PostMessageRequest struct {
	// FileID is the document the question targets.
	FileID string `json:"file_id" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// Message is the user's question.
	Message string `json:"message" binding:"required" example:"What does section 3 say about termination?"`
}

// ListMessagesResponse wraps a transcript page and its continuation cursor.
type ListMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
	// NextCursor is the id to pass as ?cursor= for the next (older) page;
	// empty when the transcript is exhausted.
	NextCursor string `json:"next_cursor,omitempty"`
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Ask a question about a document
// @Description Streams the assistant reply as text/plain. The user and assistant messages are persisted once the stream completes.
// @Tags        Messages
// @Accept      json
// @Produce     plain
//
// @Param       body  body  handlers.PostMessageRequest  true  "Question payload"
//
// @Success     200  {string}  string "Streamed completion text"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "File not found"
// @Failure     500  {object}  handlers.ErrorResponse "Answer failed"
// @Router      /messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file_id and message required")
		return
	}
	if _, err := uuid.Parse(req.FileID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file_id must be a UUID")
		return
	}

	w := c.Writer
	started := false
	onDelta := func(delta string) error {
		if !started {
			started = true
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			// Disable proxy buffering so fragments reach the client promptly.
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
		}
		if _, err := w.WriteString(delta); err != nil {
			return err
		}
		w.Flush()
		return nil
	}

	_, err := h.msgSvc.Stream(c.Request.Context(), uid, req.FileID, req.Message, onDelta)
	if err != nil {
		if started {
			// Headers are gone; log and close the stream.
			middleware.LoggerFrom(c).Error().Err(err).
				Str("file_id", req.FileID).
				Msg("stream aborted")
			c.Abort()
			return
		}
		switch err {
		case services.ErrFileNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "file not found")
		case services.ErrEmptyMessage:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is empty")
		case services.ErrTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message too long")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeAnswerFailed, err.Error())
		}
		return
	}
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages (cursor-paginated)
// @Description Returns a page of the file's transcript, newest first, strictly older than the cursor message.
// @Tags        Messages
// @Produce     json
//
// @Param       id      path   string  true   "File ID (UUID)"  format(uuid)
// @Param       limit   query  int     false  "Page size"       minimum(1) maximum(100) default(10)
// @Param       cursor  query  string  false  "Message ID to page from (exclusive)"
//
// @Success     200  {object}  handlers.ListMessagesResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "File not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /files/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	fileID := c.Param("id")
	if _, err := uuid.Parse(fileID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file id must be a UUID")
		return
	}

	limit := utils.AtoiDefault(c.Query("limit"), 10)
	cursor := strings.TrimSpace(c.Query("cursor"))

	items, next, err := h.msgSvc.ListPage(c.Request.Context(), uid, fileID, cursor, limit)
	if err != nil {
		if err == services.ErrFileNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "file not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Message{}
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, NextCursor: next})
}
