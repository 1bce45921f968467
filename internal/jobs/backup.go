package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tahcohcat/pizzeria-ops/internal/database"
	"github.com/tahcohcat/pizzeria-ops/internal/logger"
)

var ErrBackupUnsupported = errors.New("backups are only supported for sqlite; use pg_dump for postgres")

const (
	backupPrefix = "pizzeria-"
	backupSuffix = ".db"
	backupStamp  = "20060102-150405.000"
)

// Uploader copies a finished backup somewhere off the host.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

type Backup struct {
	db       *database.DB
	dir      string
	keep     int
	uploader Uploader
	now      func() time.Time
	log      *logger.Log
}

type BackupResult struct {
	Path      string   `json:"path"`
	ObjectKey string   `json:"object_key,omitempty"`
	Removed   []string `json:"removed"`
}

// NewBackup creates the job. uploader may be nil.
func NewBackup(db *database.DB, dir string, keep int, uploader Uploader) *Backup {
	if keep <= 0 {
		keep = 7
	}
	return &Backup{
		db:       db,
		dir:      dir,
		keep:     keep,
		uploader: uploader,
		now:      time.Now,
		log:      logger.New().With("job", "backup"),
	}
}

// Run writes a consistent copy of the sqlite database with VACUUM INTO,
// rotates old copies and uploads the new one when an uploader is set.
func (b *Backup) Run(ctx context.Context) (*BackupResult, error) {
	if b.db.Driver != database.DriverSQLite {
		return nil, ErrBackupUnsupported
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup dir: %w", err)
	}

	name := backupPrefix + b.now().UTC().Format(backupStamp) + backupSuffix
	path := filepath.Join(b.dir, name)
	if _, err := b.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}

	res := &BackupResult{Path: path}

	removed, err := b.rotate()
	if err != nil {
		return res, err
	}
	res.Removed = removed

	if b.uploader != nil {
		key, err := b.uploader.Upload(ctx, path)
		if err != nil {
			return res, err
		}
		res.ObjectKey = key
	}

	b.log.Info("backup written", "path", path, "removed", len(removed), "object_key", res.ObjectKey)
	return res, nil
}

// rotate keeps the newest b.keep backups. File names sort by time.
func (b *Backup) rotate() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), backupSuffix) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= b.keep {
		return nil, nil
	}
	sort.Strings(names)

	var removed []string
	for _, name := range names[:len(names)-b.keep] {
		if err := os.Remove(filepath.Join(b.dir, name)); err != nil {
			return removed, fmt.Errorf("failed to remove old backup: %w", err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}
