package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-docchat-backend/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCreateFile_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	f, err := CreateFile(context.Background(), db, "u1", "doc.pdf", "k1", "http://x/k1")
	if err == nil || f != nil {
		t.Fatalf("expected error creating without table, got file=%v err=%v", f, err)
	}
}

func TestCreateFile_Success_StartsPending(t *testing.T) {
	db := newRepoDB(t, &domain.File{})

	f, err := CreateFile(context.Background(), db, "u1", "doc.pdf", "k1", "http://x/k1")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if f.ID == "" || f.UserID != "u1" || f.Key != "k1" {
		t.Fatalf("unexpected File fields: %+v", f)
	}
	if f.UploadStatus != domain.UploadStatusPending {
		t.Fatalf("new file status = %q, want PENDING", f.UploadStatus)
	}
}

func TestGetFile_OwnershipEnforced(t *testing.T) {
	db := newRepoDB(t, &domain.File{})
	f, err := CreateFile(context.Background(), db, "u1", "doc.pdf", "k1", "u")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	if _, err := GetFile(context.Background(), db, f.ID, "u1"); err != nil {
		t.Fatalf("owner fetch failed: %v", err)
	}
	if _, err := GetFile(context.Background(), db, f.ID, "intruder"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("other user fetch: want ErrRecordNotFound, got %v", err)
	}
}

func TestGetFileByKey(t *testing.T) {
	db := newRepoDB(t, &domain.File{})
	if _, err := CreateFile(context.Background(), db, "u1", "doc.pdf", "k1", "u"); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	f, err := GetFileByKey(context.Background(), db, "k1", "u1")
	if err != nil || f.Key != "k1" {
		t.Fatalf("GetFileByKey: file=%+v err=%v", f, err)
	}
	if _, err := GetFileByKey(context.Background(), db, "missing", "u1"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("missing key: want ErrRecordNotFound, got %v", err)
	}
}

func TestListFiles_NewestFirst(t *testing.T) {
	db := newRepoDB(t, &domain.File{})
	ctx := context.Background()

	t1 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, ts := range []time.Time{t1, t1.Add(time.Hour), t1.Add(2 * time.Hour)} {
		f := &domain.File{
			ID: fmt.Sprintf("f%d", i), Name: "d.pdf", Key: fmt.Sprintf("k%d", i),
			URL: "u", UserID: "u1", UploadStatus: domain.UploadStatusPending, CreatedAt: ts,
		}
		if err := db.Create(f).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	// Another user's file must not appear.
	other := &domain.File{ID: "fx", Name: "d.pdf", Key: "kx", URL: "u", UserID: "u2", UploadStatus: domain.UploadStatusPending}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("seed other: %v", err)
	}

	got, err := ListFiles(ctx, db, "u1")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != "f2" || got[2].ID != "f0" {
		t.Fatalf("order wrong: %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestUpdateFileStatus_TerminalStatesAreSticky(t *testing.T) {
	db := newRepoDB(t, &domain.File{})
	ctx := context.Background()
	f, err := CreateFile(ctx, db, "u1", "doc.pdf", "k1", "u")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	if err := UpdateFileStatus(ctx, db, f.ID, domain.UploadStatusProcessing); err != nil {
		t.Fatalf("to PROCESSING: %v", err)
	}
	if err := UpdateFileStatus(ctx, db, f.ID, domain.UploadStatusSuccess); err != nil {
		t.Fatalf("to SUCCESS: %v", err)
	}

	// SUCCESS is terminal; further transitions are rejected.
	if err := UpdateFileStatus(ctx, db, f.ID, domain.UploadStatusFailed); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("transition out of SUCCESS: want ErrRecordNotFound, got %v", err)
	}
	got, err := GetFile(ctx, db, f.ID, "u1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.UploadStatus != domain.UploadStatusSuccess {
		t.Fatalf("status = %q, want SUCCESS", got.UploadStatus)
	}
}

func TestUpdateFileStatus_MissingRow(t *testing.T) {
	db := newRepoDB(t, &domain.File{})
	err := UpdateFileStatus(context.Background(), db, "nope", domain.UploadStatusProcessing)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("want ErrRecordNotFound, got %v", err)
	}
}

func TestDeleteFile(t *testing.T) {
	db := newRepoDB(t, &domain.File{}, &domain.Chunk{}, &domain.Message{})
	ctx := context.Background()
	f, err := CreateFile(ctx, db, "u1", "doc.pdf", "k1", "u")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	if err := DeleteFile(ctx, db, f.ID, "intruder"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("delete by other user: want ErrRecordNotFound, got %v", err)
	}
	if err := DeleteFile(ctx, db, f.ID, "u1"); err != nil {
		t.Fatalf("delete by owner: %v", err)
	}
	if _, err := GetFile(ctx, db, f.ID, "u1"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("deleted file still readable: %v", err)
	}
}

func TestDeleteFile_RemovesDependentRows(t *testing.T) {
	db := newRepoDB(t, &domain.File{}, &domain.Chunk{}, &domain.Message{})
	ctx := context.Background()
	f, err := CreateFile(ctx, db, "u1", "doc.pdf", "k1", "u")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if err := CreateChunks(ctx, db, f.ID, []string{"alpha", "beta"}); err != nil {
		t.Fatalf("CreateChunks: %v", err)
	}
	if _, err := CreateMessage(ctx, db, f.ID, "u1", "hello", true); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	if err := DeleteFile(ctx, db, f.ID, "u1"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	// The delete is hard, not a soft-delete UPDATE: the row must be gone even
	// when soft-delete filtering is bypassed.
	var raw domain.File
	if err := db.Unscoped().Where("id = ?", f.ID).First(&raw).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("file row survived as soft delete: %v", err)
	}

	nChunks, err := CountChunks(ctx, db, f.ID)
	if err != nil || nChunks != 0 {
		t.Fatalf("chunks after delete = %d, %v; want 0", nChunks, err)
	}
	var nMsgs int64
	if err := db.Unscoped().Model(&domain.Message{}).Where("file_id = ?", f.ID).Count(&nMsgs).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if nMsgs != 0 {
		t.Fatalf("messages after delete = %d, want 0", nMsgs)
	}
}
