// Package backup keeps point-in-time copies of the ledger database on the
// persistent disk, next to the live file.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/cameronsjo/savingsbot/internal/fileutil"
)

const (
	// Prefix starts every backup file name.
	Prefix = "backup-"
	// PreRestorePrefix marks the copy taken right before a restore. These are
	// listed and restorable but never pruned by Cleanup.
	PreRestorePrefix = "pre-restore-"
	// Ext is the backup file extension.
	Ext = ".db"
	// DateFormat is the timestamp in backup names. Nanoseconds keep two
	// backups in the same second apart.
	DateFormat = "20060102-150405.000000000"
	// MinFreeDiskBytes is the headroom left on the disk after a copy (10MB).
	MinFreeDiskBytes = 10 * 1024 * 1024
)

var (
	// ErrNotFound indicates the named backup does not exist.
	ErrNotFound = errors.New("backup not found")
	// ErrInvalidName indicates a name that is not a backup file name.
	ErrInvalidName = errors.New("invalid backup name")
	// ErrInsufficientSpace indicates the disk is too full for a copy.
	ErrInsufficientSpace = errors.New("insufficient disk space")
)

var logger = log.WithField("component", "backup")

// Info describes a backup on disk.
type Info struct {
	Name    string
	Path    string
	Created time.Time
	Size    int64
	// PreRestore is set for the safety copy Restore takes.
	PreRestore bool
}

// Source is anything that can stream a consistent copy of the database.
type Source interface {
	io.WriterTo
}

// Create writes a new backup of db into dir and returns it.
func Create(db Source, dir string) (*Info, error) {
	return create(db, dir, Prefix, time.Now())
}

func create(db Source, dir, prefix string, now time.Time) (*Info, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	if err := checkDiskSpace(dir, MinFreeDiskBytes); err != nil {
		return nil, err
	}

	name := prefix + now.UTC().Format(DateFormat) + Ext
	path := filepath.Join(dir, name)

	n, err := fileutil.WriteFrom(path, db, 0600)
	if err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}

	logger.WithFields(log.Fields{"name": name, "bytes": n}).Info("Backup created")
	return &Info{Name: name, Path: path, Created: now.UTC(), Size: n}, nil
}

// List returns the backups in dir, newest first, pre-restore copies
// included. A missing directory has no backups.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		if entry.IsDir() || !isBackupName(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			logger.WithError(err).WithField("name", entry.Name()).Warn("Cannot read backup")
			continue
		}

		pre := strings.HasPrefix(entry.Name(), PreRestorePrefix)
		stamp := strings.TrimSuffix(entry.Name(), Ext)
		if pre {
			stamp = strings.TrimPrefix(stamp, PreRestorePrefix)
		} else {
			stamp = strings.TrimPrefix(stamp, Prefix)
		}
		created, err := time.Parse(DateFormat, stamp)
		if err != nil {
			created = info.ModTime()
		}

		backups = append(backups, Info{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			Created:    created,
			Size:       info.Size(),
			PreRestore: pre,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Created.After(backups[j].Created)
	})
	return backups, nil
}

// Cleanup removes all but the newest max backups. It keeps going past
// individual failures and reports them together. max <= 0 keeps everything.
func Cleanup(dir string, max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	listed, err := List(dir)
	if err != nil {
		return 0, err
	}
	var backups []Info
	for _, b := range listed {
		if !b.PreRestore {
			backups = append(backups, b)
		}
	}
	if len(backups) <= max {
		return 0, nil
	}

	removed := 0
	var errs []error
	for _, b := range backups[max:] {
		if err := removeWithRetry(b.Path, 3); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name, err))
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.WithField("removed", removed).Info("Pruned old backups")
	}
	return removed, errors.Join(errs...)
}

// Restore replaces dbPath with the named backup. The current database, if
// any, is first copied to a pre-restore file in dir. The worker must not be
// running; callers hold the data directory lock.
func Restore(dir, name, dbPath string) error {
	if name != filepath.Base(name) || !isBackupName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	src := filepath.Join(dir, name)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if current, err := os.Open(dbPath); err == nil {
		_, err := create(fileSource{current}, dir, PreRestorePrefix, time.Now())
		current.Close()
		if err != nil {
			return fmt.Errorf("save current database: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("open current database: %w", err)
	}

	if err := fileutil.CopyFile(src, dbPath); err != nil {
		return fmt.Errorf("restore %s: %w", name, err)
	}

	logger.WithFields(log.Fields{"name": name, "db": dbPath}).Info("Backup restored")
	return nil
}

func isBackupName(name string) bool {
	if !strings.HasSuffix(name, Ext) {
		return false
	}
	return strings.HasPrefix(name, Prefix) || strings.HasPrefix(name, PreRestorePrefix)
}

type fileSource struct {
	f *os.File
}

func (s fileSource) WriteTo(w io.Writer) (int64, error) {
	return io.Copy(w, s.f)
}

func checkDiskSpace(dir string, required int64) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return fmt.Errorf("check disk space: %w", err)
	}

	available := int64(stat.Bavail) * int64(stat.Bsize)
	if available < required {
		return fmt.Errorf("%w: need %d bytes, only %d available", ErrInsufficientSpace, required, available)
	}
	return nil
}

func removeWithRetry(path string, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			lastErr = err
			time.Sleep(time.Duration(10*(1<<i)) * time.Millisecond)
			continue
		}
		return nil
	}
	return lastErr
}
