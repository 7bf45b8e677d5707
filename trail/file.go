package trail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileSink appends records to a JSONL file with size-based rotation.
// It is the default sink when no database is configured.
type FileSink struct {
	mu           sync.Mutex
	path         string
	writer       io.WriteCloser
	rotationSize int64
	currentSize  int64
}

// NewFileSink opens (or creates) the trail file at path.
func NewFileSink(path string) (*FileSink, error) {
	s := &FileSink{
		path:         path,
		rotationSize: 100 * 1024 * 1024, // 100MB
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSink) open() error {
	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create trail directory: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open trail file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat trail file: %w", err)
	}

	s.writer = f
	s.currentSize = info.Size()
	return nil
}

// maybeRotate renames the current file aside once it crosses the
// rotation threshold and reopens a fresh one.
func (s *FileSink) maybeRotate() error {
	if s.currentSize < s.rotationSize {
		return nil
	}

	s.writer.Close()
	rotatedPath := fmt.Sprintf("%s.%s", s.path, time.Now().Format("20060102-150405"))
	if err := os.Rename(s.path, rotatedPath); err != nil {
		return fmt.Errorf("failed to rotate trail file: %w", err)
	}
	return s.open()
}

// Append writes one record as a JSON line.
func (s *FileSink) Append(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.maybeRotate(); err != nil {
		return err
	}

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	entry, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal trail record: %w", err)
	}

	n, err := fmt.Fprintln(s.writer, string(entry))
	if err != nil {
		return fmt.Errorf("failed to write trail record: %w", err)
	}
	s.currentSize += int64(n)
	return nil
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Close()
}
