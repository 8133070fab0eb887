package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tbourn/go-docchat-backend/internal/domain"
	"gorm.io/gorm"
)

func seedMessages(t *testing.T, db *gorm.DB, fileID string, n int) []domain.Message {
	t.Helper()
	base := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	out := make([]domain.Message, 0, n)
	for i := 0; i < n; i++ {
		m := domain.Message{
			ID:            fmt.Sprintf("m%02d", i),
			Text:          fmt.Sprintf("text %d", i),
			IsUserMessage: i%2 == 0,
			FileID:        fileID,
			UserID:        "u1",
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed message %d: %v", i, err)
		}
		out = append(out, m)
	}
	return out
}

func newMessageDB(t *testing.T) (*gorm.DB, *domain.File) {
	t.Helper()
	db := newRepoDB(t, &domain.File{}, &domain.Message{})
	f, err := CreateFile(context.Background(), db, "u1", "doc.pdf", "k-msgs", "u")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	return db, f
}

func TestCreateMessage(t *testing.T) {
	db, f := newMessageDB(t)

	m, err := CreateMessage(context.Background(), db, f.ID, "u1", "hello", true)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m.ID == "" || !m.IsUserMessage || m.Text != "hello" || m.FileID != f.ID {
		t.Fatalf("unexpected Message fields: %+v", m)
	}
}

func TestListRecentMessages_NewestFirstCapped(t *testing.T) {
	db, f := newMessageDB(t)
	seedMessages(t, db, f.ID, 5)

	got, err := ListRecentMessages(context.Background(), db, f.ID, 2)
	if err != nil {
		t.Fatalf("ListRecentMessages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "m04" || got[1].ID != "m03" {
		t.Fatalf("order wrong: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestListMessagesBefore_FirstPage(t *testing.T) {
	db, f := newMessageDB(t)
	seedMessages(t, db, f.ID, 5)

	// limit+1 rows are returned so callers can detect the next page.
	got, err := ListMessagesBefore(context.Background(), db, f.ID, "", 3)
	if err != nil {
		t.Fatalf("ListMessagesBefore: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want limit+1 = 4", len(got))
	}
	if got[0].ID != "m04" {
		t.Fatalf("first row = %s, want m04", got[0].ID)
	}
}

func TestListMessagesBefore_CursorIsExclusive(t *testing.T) {
	db, f := newMessageDB(t)
	seedMessages(t, db, f.ID, 5)

	got, err := ListMessagesBefore(context.Background(), db, f.ID, "m02", 10)
	if err != nil {
		t.Fatalf("ListMessagesBefore: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "m01" || got[1].ID != "m00" {
		t.Fatalf("page wrong: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestListMessagesBefore_UnknownCursor(t *testing.T) {
	db, f := newMessageDB(t)
	seedMessages(t, db, f.ID, 2)

	if _, err := ListMessagesBefore(context.Background(), db, f.ID, "ghost", 10); err == nil {
		t.Fatalf("expected error for unknown cursor")
	}
}

func TestCountMessages(t *testing.T) {
	db, f := newMessageDB(t)
	seedMessages(t, db, f.ID, 3)

	n, err := CountMessages(context.Background(), db, f.ID)
	if err != nil || n != 3 {
		t.Fatalf("CountMessages = %d, %v; want 3, nil", n, err)
	}
}
