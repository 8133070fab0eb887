package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-docchat-backend/internal/domain"
	"github.com/tbourn/go-docchat-backend/internal/llm"
	"github.com/tbourn/go-docchat-backend/internal/repo"
)

// stubCompleter scripts a completion stream.
type stubCompleter struct {
	deltas   []string
	err      error
	captured []llm.Message
}

func (s *stubCompleter) StreamCompletion(ctx context.Context, messages []llm.Message, onDelta llm.DeltaFunc) (string, error) {
	s.captured = messages
	if s.err != nil {
		return "", s.err
	}
	var b strings.Builder
	for _, d := range s.deltas {
		if onDelta != nil {
			if err := onDelta(d); err != nil {
				return "", err
			}
		}
		b.WriteString(d)
	}
	return b.String(), nil
}

func newMessageService(t *testing.T, completer llm.Completer) (*MessageService, *domain.File) {
	t.Helper()
	db := newSvcDB(t)
	f, err := repo.CreateFile(context.Background(), db, "u1", "doc.pdf", "u1/k/doc.pdf", "u")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	return NewMessageService(db, completer, 2, 2), f
}

func TestStream_RejectsEmptyMessage(t *testing.T) {
	svc, f := newMessageService(t, &stubCompleter{})
	if _, err := svc.Stream(context.Background(), "u1", f.ID, "   \n\t ", nil); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("want ErrEmptyMessage, got %v", err)
	}
}

func TestStream_RejectsOverlongMessage(t *testing.T) {
	svc, f := newMessageService(t, &stubCompleter{})
	svc.MaxMessageRunes = 10
	if _, err := svc.Stream(context.Background(), "u1", f.ID, strings.Repeat("x", 11), nil); !errors.Is(err, ErrTooLong) {
		t.Fatalf("want ErrTooLong, got %v", err)
	}
}

func TestStream_ChecksOwnershipBeforeAnything(t *testing.T) {
	svc, f := newMessageService(t, &stubCompleter{deltas: []string{"hi"}})
	if _, err := svc.Stream(context.Background(), "intruder", f.ID, "hello", nil); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("want ErrFileNotFound, got %v", err)
	}
	n, err := repo.CountMessages(context.Background(), svc.DB, f.ID)
	if err != nil || n != 0 {
		t.Fatalf("messages persisted for rejected turn: %d, %v", n, err)
	}
}

func TestStream_PersistsTurnAndBuildsPrompt(t *testing.T) {
	completer := &stubCompleter{deltas: []string{"The notice ", "period is 30 days."}}
	svc, f := newMessageService(t, completer)
	ctx := context.Background()

	chunks := []string{
		"Either party may terminate with thirty days notice.",
		"Payment is due within fourteen days of invoice.",
	}
	if err := repo.CreateChunks(ctx, svc.DB, f.ID, chunks); err != nil {
		t.Fatalf("CreateChunks: %v", err)
	}
	if _, err := repo.CreateMessage(ctx, svc.DB, f.ID, "u1", "What does this cover?", true); err != nil {
		t.Fatalf("seed history: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := repo.CreateMessage(ctx, svc.DB, f.ID, "u1", "It covers the service terms.", false); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	// The whole message is matched as a substring of chunk text.
	var relayed []string
	m, err := svc.Stream(ctx, "u1", f.ID, "Terminate", func(d string) error {
		relayed = append(relayed, d)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if m.Text != "The notice period is 30 days." || m.IsUserMessage {
		t.Fatalf("assistant message wrong: %+v", m)
	}
	if len(relayed) != 2 {
		t.Fatalf("relayed %d deltas, want 2", len(relayed))
	}

	// Both sides of the turn are in the transcript, user first.
	recent, err := repo.ListRecentMessages(ctx, svc.DB, f.ID, 10)
	if err != nil {
		t.Fatalf("ListRecentMessages: %v", err)
	}
	if len(recent) != 4 {
		t.Fatalf("transcript rows = %d, want 4", len(recent))
	}
	if recent[0].Text != m.Text || recent[0].IsUserMessage {
		t.Fatalf("newest row should be the assistant message: %+v", recent[0])
	}
	if recent[1].Text != "Terminate" || !recent[1].IsUserMessage {
		t.Fatalf("user message not persisted before assistant: %+v", recent[1])
	}

	if len(completer.captured) != 2 {
		t.Fatalf("prompt messages = %d, want 2", len(completer.captured))
	}
	if completer.captured[0].Role != llm.RoleSystem {
		t.Fatalf("first prompt message role = %q", completer.captured[0].Role)
	}
	prompt := completer.captured[1].Content
	if !strings.Contains(prompt, "thirty days notice") {
		t.Fatalf("matching chunk missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "User: What does this cover?\nAssistant: It covers the service terms.") {
		t.Fatalf("history not replayed chronologically:\n%s", prompt)
	}
	if !strings.HasSuffix(prompt, "USER INPUT: Terminate") {
		t.Fatalf("question not at prompt tail:\n%s", prompt)
	}
}

func TestStream_NoTranscriptWhenStreamNeverStarts(t *testing.T) {
	completer := &stubCompleter{err: errors.New("upstream unavailable")}
	svc, f := newMessageService(t, completer)

	if _, err := svc.Stream(context.Background(), "u1", f.ID, "hello", nil); err == nil {
		t.Fatalf("expected completion error")
	}
	n, err := repo.CountMessages(context.Background(), svc.DB, f.ID)
	if err != nil || n != 0 {
		t.Fatalf("failed turn left %d rows, %v", n, err)
	}
}

func TestStream_WorksWithoutChunksOrHistory(t *testing.T) {
	svc, f := newMessageService(t, &stubCompleter{deltas: []string{"Answer."}})
	m, err := svc.Stream(context.Background(), "u1", f.ID, "hello", nil)
	if err != nil || m.Text != "Answer." {
		t.Fatalf("Stream on empty file: msg=%+v err=%v", m, err)
	}
}

func TestListPage_PagesThroughTranscript(t *testing.T) {
	svc, f := newMessageService(t, &stubCompleter{})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := repo.CreateMessage(ctx, svc.DB, f.ID, "u1", strings.Repeat("x", i+1), i%2 == 0); err != nil {
			t.Fatalf("seed: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	page1, next, err := svc.ListPage(ctx, "u1", f.ID, "", 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if len(page1) != 2 || next == "" {
		t.Fatalf("first page: len=%d next=%q", len(page1), next)
	}
	if page1[0].Text != "xxxxx" {
		t.Fatalf("first page not newest first: %q", page1[0].Text)
	}

	page2, next2, err := svc.ListPage(ctx, "u1", f.ID, next, 2)
	if err != nil || len(page2) != 2 {
		t.Fatalf("second page: len=%d err=%v", len(page2), err)
	}

	page3, next3, err := svc.ListPage(ctx, "u1", f.ID, next2, 2)
	if err != nil || len(page3) != 1 || next3 != "" {
		t.Fatalf("last page: len=%d next=%q err=%v", len(page3), next3, err)
	}
}

func TestListPage_OwnershipEnforced(t *testing.T) {
	svc, f := newMessageService(t, &stubCompleter{})
	if _, _, err := svc.ListPage(context.Background(), "intruder", f.ID, "", 10); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("want ErrFileNotFound, got %v", err)
	}
}

func TestListPage_ClampsLimit(t *testing.T) {
	svc, f := newMessageService(t, &stubCompleter{})
	if _, _, err := svc.ListPage(context.Background(), "u1", f.ID, "", -3); err != nil {
		t.Fatalf("negative limit: %v", err)
	}
	if _, _, err := svc.ListPage(context.Background(), "u1", f.ID, "", 10000); err != nil {
		t.Fatalf("huge limit: %v", err)
	}
}
