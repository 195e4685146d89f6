package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liquidityPool/internal/model"
)

// JsonlStorage appends log records to a JSONL file. The file is opened on the
// first batch and kept open until Close; every batch is synced before
// PutLogBatch returns so a recorder never drops a batch it saw succeed.
type JsonlStorage struct {
	path string

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutLogBatch writes the batch as JSON lines.
func (s *JsonlStorage) PutLogBatch(_ context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}

	lines := make([][]byte, 0, len(logs))
	for _, record := range logs {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal log %d: %w", record.Sequence, err)
		}
		lines = append(lines, line)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.openLocked(); err != nil {
		return err
	}
	for _, line := range lines {
		s.writer.Write(line)
		s.writer.WriteByte('\n')
	}
	if err := s.writer.Flush(); err != nil {
		return s.resetLocked(fmt.Errorf("flush event log: %w", err))
	}
	if err := s.file.Sync(); err != nil {
		return s.resetLocked(fmt.Errorf("sync event log: %w", err))
	}
	return nil
}

// Close releases the file handle. A later batch reopens it.
func (s *JsonlStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.writer = nil, nil
	return err
}

func (s *JsonlStorage) openLocked() error {
	if s.file != nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create event log dir: %w", err)
		}
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	s.file = file
	s.writer = bufio.NewWriter(file)
	return nil
}

// resetLocked drops a handle whose buffer is in an unknown state so the
// retry reopens the file.
func (s *JsonlStorage) resetLocked(err error) error {
	s.file.Close()
	s.file, s.writer = nil, nil
	return err
}
