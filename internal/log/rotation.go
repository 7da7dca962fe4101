package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Defaults for log files opened by the command line client.
const (
	DefaultMaxSize    = 10 << 20 // 10MB
	DefaultMaxBackups = 3
)

// RotatingFile is an io.WriteCloser that writes to a file and rotates it
// when it reaches maxSize bytes. Rotated files are named path.1 (newest)
// through path.N (oldest).
type RotatingFile struct {
	mu sync.Mutex

	path       string
	maxSize    int64
	maxBackups int

	file *os.File
	size int64
}

// NewRotatingFile opens or creates path for appending. A maxSize of zero or
// less disables rotation. maxBackups is the number of old files to keep;
// with zero the current file is truncated on rotation.
func NewRotatingFile(path string, maxSize int64, maxBackups int) (*RotatingFile, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if maxBackups < 0 {
		maxBackups = 0
	}
	rf := &RotatingFile{
		path:       path,
		maxSize:    maxSize,
		maxBackups: maxBackups,
	}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *RotatingFile) open() error {
	if err := os.MkdirAll(filepath.Dir(rf.path), 0750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// 0600: log files can carry hostnames and user names.
	f, err := os.OpenFile(rf.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	rf.file = f
	rf.size = info.Size()
	return nil
}

// Write implements io.Writer, rotating first if p would exceed maxSize.
// A single write larger than maxSize goes to a fresh file unsplit.
func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, os.ErrClosed
	}

	if rf.maxSize > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.maxSize {
		if err := rf.rotate(); err != nil {
			return 0, fmt.Errorf("failed to rotate log: %w", err)
		}
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// rotate closes the current file, shifts the backups and opens a new file.
// Must be called with mu held.
func (rf *RotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		return err
	}
	rf.file = nil

	if rf.maxBackups == 0 {
		if err := os.Remove(rf.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to truncate log: %w", err)
		}
		return rf.open()
	}

	// log.N is dropped, log.i becomes log.i+1, log becomes log.1.
	if err := os.Remove(rf.backup(rf.maxBackups)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove old backup: %w", err)
	}
	for i := rf.maxBackups - 1; i >= 1; i-- {
		if err := os.Rename(rf.backup(i), rf.backup(i+1)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to rename backup: %w", err)
		}
	}
	if err := os.Rename(rf.path, rf.backup(1)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rotate current log: %w", err)
	}

	return rf.open()
}

func (rf *RotatingFile) backup(i int) string {
	return fmt.Sprintf("%s.%d", rf.path, i)
}

// Close implements io.Closer. Close is idempotent.
func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}
