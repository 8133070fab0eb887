// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns the document-chat turn: it validates the incoming message, verifies
// file ownership, retrieves matching chunks and recent history, assembles the
// model prompt, streams the completion to the caller, and persists the
// user/assistant message pair.
//
// Persistence ordering is deliberate: the user message is stored only once
// the model stream has produced its first token, and the assistant message is
// stored after the stream completes. A turn that never starts leaves no
// partial transcript behind.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include file/user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-docchat-backend/internal/domain"
	"github.com/tbourn/go-docchat-backend/internal/llm"
	"github.com/tbourn/go-docchat-backend/internal/repo"
)

// systemPrompt is the fixed instruction sent as the system message of every
// turn.
const systemPrompt = "Use the following pieces of context (or previous conversation if needed) to answer the user's question in markdown format."

// MessageService coordinates retrieval, completion streaming, and message
// persistence for a single document conversation.
type MessageService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Completer streams model completions.
	Completer llm.Completer

	// MaxChunks caps the chunks included in the prompt's context region.
	MaxChunks int
	// MaxMessages caps the prior turns included in the history region.
	MaxMessages int
	// MaxMessageRunes caps accepted message length (0 disables the check).
	MaxMessageRunes int
}

// NewMessageService constructs a MessageService with the given retrieval
// bounds.
func NewMessageService(db *gorm.DB, completer llm.Completer, maxChunks, maxMessages int) *MessageService {
	return &MessageService{
		DB:              db,
		Completer:       completer,
		MaxChunks:       maxChunks,
		MaxMessages:     maxMessages,
		MaxMessageRunes: 4000,
	}
}

// Stream runs one conversational turn against fileID. Each completion
// fragment is relayed to onDelta as it arrives; the full assistant message is
// returned once the stream ends. Ownership is checked before anything is
// read or written.
func (s *MessageService) Stream(ctx context.Context, userID, fileID, text string, onDelta llm.DeltaFunc) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Stream",
		trace.WithAttributes(
			attribute.String("file.id", fileID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(text) > s.MaxMessageRunes {
		return nil, ErrTooLong
	}

	if _, err := repo.GetFile(ctx, s.DB, fileID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	chunks, err := repo.SearchChunks(ctx, s.DB, fileID, text, s.MaxChunks)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	history, err := repo.ListRecentMessages(ctx, s.DB, fileID, s.MaxMessages)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	messages := buildPrompt(text, chunks, history)

	// Persist the user turn on the first delta so a stream that never starts
	// leaves no transcript behind.
	var persisted bool
	relay := func(delta string) error {
		if !persisted {
			if _, err := repo.CreateMessage(ctx, s.DB, fileID, userID, text, true); err != nil {
				return fmt.Errorf("store user message: %w", err)
			}
			persisted = true
		}
		if onDelta != nil {
			return onDelta(delta)
		}
		return nil
	}

	full, err := s.Completer.StreamCompletion(ctx, messages, relay)
	if err != nil {
		return nil, err
	}

	m, err := repo.CreateMessage(ctx, s.DB, fileID, userID, full, false)
	if err != nil {
		return nil, fmt.Errorf("store assistant message: %w", err)
	}
	return m, nil
}

// ListPage returns up to limit messages of fileID older than cursor, newest
// first, plus the cursor for the next page ("" when exhausted). An empty
// cursor starts from the latest message.
func (s *MessageService) ListPage(ctx context.Context, userID, fileID, cursor string, limit int) ([]domain.Message, string, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("file.id", fileID),
			attribute.String("user.id", userID),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	if _, err := repo.GetFile(ctx, s.DB, fileID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrFileNotFound
		}
		return nil, "", err
	}

	items, err := repo.ListMessagesBefore(ctx, s.DB, fileID, cursor, limit)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Cursor row vanished; treat as an exhausted page.
			return []domain.Message{}, "", nil
		}
		return nil, "", err
	}

	next := ""
	if len(items) > limit {
		items = items[:limit]
		next = items[limit-1].ID
	}
	return items, next, nil
}

// buildPrompt assembles the model messages for one turn: a fixed system
// instruction followed by a single user message carrying the recent
// conversation, the retrieved context, and the question.
func buildPrompt(text string, chunks []domain.Chunk, history []domain.Message) []llm.Message {
	var b strings.Builder
	b.WriteString("Use the following context (and previous messages if helpful) to answer the question.\n")
	b.WriteString("\n----------------\n")
	b.WriteString("PREVIOUS CONVERSATION:\n")
	// History arrives newest first; replay it chronologically.
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.IsUserMessage {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Text)
		b.WriteByte('\n')
	}
	b.WriteString("\n----------------\n")
	b.WriteString("CONTEXT:\n")
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(c.Text)
	}
	b.WriteString("\n\nUSER INPUT: ")
	b.WriteString(text)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}
}
