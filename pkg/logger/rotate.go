package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	defaultAuditMaxSizeMB  = 100
	defaultAuditMaxBackups = 7
	defaultAuditMaxAgeDays = 30
)

// rotatingWriter appends to path and shifts it to path.1..path.N once the
// size limit is reached. Backups older than maxAge are removed on rotation.
type rotatingWriter struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	maxSize    int64
	maxBackups int
	maxAge     time.Duration
	size       int64
	now        func() time.Time
}

func newRotatingWriter(path string, maxSizeMB, maxBackups, maxAgeDays int) (*rotatingWriter, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = defaultAuditMaxSizeMB
	}
	if maxBackups <= 0 {
		maxBackups = defaultAuditMaxBackups
	}
	if maxAgeDays <= 0 {
		maxAgeDays = defaultAuditMaxAgeDays
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	return &rotatingWriter{
		path:       path,
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
		maxAge:     time.Duration(maxAgeDays) * 24 * time.Hour,
		now:        time.Now,
	}, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.open(); err != nil {
		return 0, err
	}
	if w.maxSize > 0 && w.size+int64(len(p)) > w.maxSize && w.size > 0 {
		w.rotate()
		if err := w.open(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.size = 0
	return err
}

func (w *rotatingWriter) open() error {
	if w.file != nil {
		return nil
	}
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}
	w.file = file
	w.size = info.Size()
	return nil
}

func (w *rotatingWriter) backup(i int) string {
	return fmt.Sprintf("%s.%d", w.path, i)
}

func (w *rotatingWriter) rotate() {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	w.size = 0

	_ = os.Remove(w.backup(w.maxBackups))
	for i := w.maxBackups - 1; i >= 1; i-- {
		if _, err := os.Stat(w.backup(i)); err == nil {
			_ = os.Rename(w.backup(i), w.backup(i+1))
		}
	}
	_ = os.Rename(w.path, w.backup(1))

	cutoff := w.now().Add(-w.maxAge)
	for i := 1; i <= w.maxBackups; i++ {
		info, err := os.Stat(w.backup(i))
		if err == nil && info.ModTime().Before(cutoff) {
			_ = os.Remove(w.backup(i))
		}
	}
}
