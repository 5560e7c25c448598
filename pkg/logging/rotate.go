// Package logging provides the size-rotating log file the application
// root wires in as slog's output destination. Rotated files are kept
// alongside the live log with a timestamp suffix and pruned oldest
// first once they exceed the configured backup count.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	DefaultMaxSize    = 10 * 1024 * 1024 // 10MB
	DefaultMaxBackups = 3

	// backupLayout orders lexicographically the same as chronologically,
	// so pruning can sort backup filenames directly.
	backupLayout = "20060102-150405.000000000"
)

// RotatingFile is an io.WriteCloser that starts a fresh log file when
// the current one would exceed the size limit.
type RotatingFile struct {
	path       string
	maxSize    int64
	maxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

// Option configures a RotatingFile.
type Option func(*RotatingFile)

// WithMaxSize overrides DefaultMaxSize.
func WithMaxSize(size int64) Option {
	return func(r *RotatingFile) { r.maxSize = size }
}

// WithMaxBackups overrides DefaultMaxBackups.
func WithMaxBackups(count int) Option {
	return func(r *RotatingFile) { r.maxBackups = count }
}

// NewRotatingFile opens (appending) or creates the log file at path,
// creating parent directories as needed.
func NewRotatingFile(path string, opts ...Option) (*RotatingFile, error) {
	r := &RotatingFile{
		path:       path,
		maxSize:    DefaultMaxSize,
		maxBackups: DefaultMaxBackups,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("logging: create log directory: %w", err)
	}
	if err := r.openFile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RotatingFile) openFile() error {
	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("logging: open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	r.file = file
	r.size = info.Size()
	return nil
}

func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// rotate moves the live file aside under a timestamped name, prunes
// backups beyond maxBackups, and reopens a fresh file.
func (r *RotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}

	backup := r.path + "." + time.Now().UTC().Format(backupLayout)
	if err := os.Rename(r.path, backup); err != nil && !os.IsNotExist(err) {
		return err
	}
	r.pruneBackups()

	r.size = 0
	return r.openFile()
}

// pruneBackups removes the oldest timestamped backups until at most
// maxBackups remain. Prune failures are ignored; an unremovable stale
// backup must not block logging.
func (r *RotatingFile) pruneBackups() {
	backups, err := filepath.Glob(r.path + ".*")
	if err != nil {
		return
	}
	if len(backups) <= r.maxBackups {
		return
	}
	sort.Strings(backups) // timestamp suffix: ascending = oldest first
	for _, old := range backups[:len(backups)-r.maxBackups] {
		_ = os.Remove(old)
	}
}
