package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateStore persists the last aggregated event sequence.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, sequence uint64) error
}

// FileStateStore keeps progress in a JSON file next to the output. When
// WindowSeconds is set, resuming with a different window is refused since
// the saved sequence only lines up with windows of the original size.
type FileStateStore struct {
	Path          string
	WindowSeconds uint64
}

type fileState struct {
	LastSequence  uint64 `json:"last_sequence"`
	WindowSeconds uint64 `json:"window_seconds,omitempty"`
	UpdatedAt     string `json:"updated_at"`
}

func (s *FileStateStore) Load(_ context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read aggregate state: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return 0, false, fmt.Errorf("parse aggregate state %s: %w", s.Path, err)
	}
	if s.WindowSeconds != 0 && state.WindowSeconds != 0 && state.WindowSeconds != s.WindowSeconds {
		return 0, false, fmt.Errorf("aggregate state was saved with a %ds window, not %ds; use recompute-from to restart",
			state.WindowSeconds, s.WindowSeconds)
	}
	return state.LastSequence, true, nil
}

func (s *FileStateStore) Save(_ context.Context, sequence uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	data, err := json.Marshal(fileState{
		LastSequence:  sequence,
		WindowSeconds: s.WindowSeconds,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal aggregate state: %w", err)
	}

	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write aggregate state: %w", err)
	}
	return os.Rename(tmp, s.Path)
}
