package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tahcohcat/pizzeria-ops/internal/database"
)

type fakeUploader struct {
	uploadFn func(ctx context.Context, path string) (string, error)
}

func (f fakeUploader) Upload(ctx context.Context, path string) (string, error) {
	return f.uploadFn(ctx, path)
}

func TestBackupRotation(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()

	var uploaded []string
	b := NewBackup(db, dir, 3, fakeUploader{uploadFn: func(_ context.Context, path string) (string, error) {
		uploaded = append(uploaded, path)
		return "pizzeria/" + filepath.Base(path), nil
	}})

	clock := time.Date(2024, 3, 4, 3, 30, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }

	for i := 0; i < 5; i++ {
		if _, err := b.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		clock = clock.Add(24 * time.Hour)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("backups kept: want=3 got=%d", len(entries))
	}
	if entries[0].Name() != "pizzeria-20240306-033000.000.db" {
		t.Fatalf("oldest kept: got %s", entries[0].Name())
	}
	if len(uploaded) != 5 {
		t.Fatalf("uploads: want=5 got=%d", len(uploaded))
	}

	// Each backup is a usable database.
	copyDB, err := database.NewDB(database.DriverSQLite, filepath.Join(dir, entries[2].Name()))
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer copyDB.Close()
	var n int
	if err := copyDB.Get(&n, `SELECT COUNT(*) FROM employees`); err != nil {
		t.Fatalf("query backup: %v", err)
	}
}

func TestBackupIgnoresForeignFiles(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep me"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	b := NewBackup(db, dir, 1, nil)
	for i := 0; i < 2; i++ {
		b.now = func() time.Time { return time.Date(2024, 3, 4+i, 0, 0, 0, 0, time.UTC) }
		if _, err := b.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatalf("foreign file removed: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Fatalf("entries: want=2 got=%d", len(entries))
	}
}

func TestBackupUnsupportedDriver(t *testing.T) {
	b := NewBackup(&database.DB{Driver: database.DriverPostgres}, t.TempDir(), 1, nil)
	if _, err := b.Run(context.Background()); !errors.Is(err, ErrBackupUnsupported) {
		t.Fatalf("want=%v got=%v", ErrBackupUnsupported, err)
	}
	if err := BackupJob(b)(context.Background()); err != nil {
		t.Fatalf("BackupJob should skip unsupported drivers, got %v", err)
	}
}
