package repo

import (
	"context"
	"testing"

	"github.com/tbourn/go-docchat-backend/internal/domain"
	"gorm.io/gorm"
)

func seedChunkFile(t *testing.T, db *gorm.DB, texts []string) *domain.File {
	t.Helper()
	ctx := context.Background()
	f, err := CreateFile(ctx, db, "u1", "doc.pdf", "k-chunks", "u")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := CreateChunks(ctx, db, f.ID, texts); err != nil {
		t.Fatalf("CreateChunks: %v", err)
	}
	return f
}

func TestCreateChunks_EmptyIsNoOp(t *testing.T) {
	db := newRepoDB(t, &domain.File{}, &domain.Chunk{})
	if err := CreateChunks(context.Background(), db, "f1", nil); err != nil {
		t.Fatalf("nil slice: %v", err)
	}
	if err := CreateChunks(context.Background(), db, "f1", []string{}); err != nil {
		t.Fatalf("empty slice: %v", err)
	}
}

func TestCreateChunks_PreservesPosition(t *testing.T) {
	db := newRepoDB(t, &domain.File{}, &domain.Chunk{})
	f := seedChunkFile(t, db, []string{"first", "second", "third"})

	var got []domain.Chunk
	if err := db.Where("file_id = ?", f.ID).Order("position ASC").Find(&got).Error; err != nil {
		t.Fatalf("list chunks: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, c := range got {
		if c.Position != i {
			t.Fatalf("chunk[%d].Position = %d", i, c.Position)
		}
	}
	if got[0].Text != "first" || got[2].Text != "third" {
		t.Fatalf("order wrong: %q .. %q", got[0].Text, got[2].Text)
	}
}

func TestSearchChunks_CaseInsensitiveSubstring(t *testing.T) {
	db := newRepoDB(t, &domain.File{}, &domain.Chunk{})
	f := seedChunkFile(t, db, []string{
		"The Termination clause applies after notice.",
		"Nothing relevant here.",
		"Early termination requires thirty days.",
	})

	got, err := SearchChunks(context.Background(), db, f.ID, "TERMINATION", 0)
	if err != nil {
		t.Fatalf("SearchChunks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Position != 0 || got[1].Position != 2 {
		t.Fatalf("positions = %d,%d; want 0,2", got[0].Position, got[1].Position)
	}
}

func TestSearchChunks_LimitKeepsEarliestPositions(t *testing.T) {
	db := newRepoDB(t, &domain.File{}, &domain.Chunk{})
	f := seedChunkFile(t, db, []string{"match a", "match b", "match c"})

	got, err := SearchChunks(context.Background(), db, f.ID, "match", 2)
	if err != nil {
		t.Fatalf("SearchChunks: %v", err)
	}
	if len(got) != 2 || got[0].Position != 0 || got[1].Position != 1 {
		t.Fatalf("unexpected page: %+v", got)
	}
}

func TestSearchChunks_EscapesWildcards(t *testing.T) {
	db := newRepoDB(t, &domain.File{}, &domain.Chunk{})
	f := seedChunkFile(t, db, []string{"discount of 100% applies", "no percent sign"})

	got, err := SearchChunks(context.Background(), db, f.ID, "100%", 0)
	if err != nil {
		t.Fatalf("SearchChunks: %v", err)
	}
	if len(got) != 1 || got[0].Position != 0 {
		t.Fatalf("wildcard not matched literally: %+v", got)
	}

	// "_" must not act as a single-character wildcard.
	got, err = SearchChunks(context.Background(), db, f.ID, "n_", 0)
	if err != nil {
		t.Fatalf("SearchChunks: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("underscore acted as wildcard: %+v", got)
	}
}

func TestCountChunks(t *testing.T) {
	db := newRepoDB(t, &domain.File{}, &domain.Chunk{})
	f := seedChunkFile(t, db, []string{"a", "b"})

	n, err := CountChunks(context.Background(), db, f.ID)
	if err != nil || n != 2 {
		t.Fatalf("CountChunks = %d, %v; want 2, nil", n, err)
	}
}

func TestEscapeLike(t *testing.T) {
	cases := map[string]string{
		"plain":   "plain",
		"100%":    "100\\%",
		"a_b":     "a\\_b",
		"back\\s": "back\\\\s",
	}
	for in, want := range cases {
		if got := escapeLike(in); got != want {
			t.Errorf("escapeLike(%q) = %q; want %q", in, got, want)
		}
	}
}
