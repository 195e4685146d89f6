package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"liquidityPool/internal/model"
)

// FileSnapshotStore persists one snapshot per file, replaced atomically.
type FileSnapshotStore struct {
	path string
	mu   sync.Mutex
}

func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

func (s *FileSnapshotStore) LoadSnapshot(_ context.Context, poolAddress string) (model.StateSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(poolAddress)
}

// SaveSnapshot writes snap unless the file already holds a later sequence.
func (s *FileSnapshotStore) SaveSnapshot(_ context.Context, snap model.StateSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok, err := s.loadLocked(snap.Pool.Address)
	if err != nil {
		return err
	}
	if ok && current.Pool.Sequence > snap.Pool.Sequence {
		return fmt.Errorf("save sequence %d over %d: %w", snap.Pool.Sequence, current.Pool.Sequence, ErrStaleSnapshot)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func (s *FileSnapshotStore) loadLocked(poolAddress string) (model.StateSnapshot, bool, error) {
	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.StateSnapshot{}, false, nil
		}
		return model.StateSnapshot{}, false, fmt.Errorf("stat snapshot: %w", err)
	}
	if stat.IsDir() {
		return model.StateSnapshot{}, false, fmt.Errorf("snapshot path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return model.StateSnapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	var snap model.StateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.StateSnapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	if !strings.EqualFold(snap.Pool.Address, poolAddress) {
		return model.StateSnapshot{}, false, fmt.Errorf("snapshot belongs to pool %s, not %s", snap.Pool.Address, poolAddress)
	}
	return snap, true, nil
}
