package cooldownstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"newstack/internal/ports"
)

type fileState struct {
	LastSuccessAt int64 `json:"lastSuccessAt,omitempty"`
	LastFailureAt int64 `json:"lastFailureAt,omitempty"`
}

// FileStore persists cooldown timestamps as millisecond epochs in a JSON file,
// so they survive process restarts.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ ports.CooldownStore = (*FileStore)(nil)

// NewFileStore points the store at path; the file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// LastSuccess returns the recorded success time, or zero when none is on disk.
func (f *FileStore) LastSuccess(context.Context) (time.Time, error) {
	state, err := f.read()
	if err != nil {
		return time.Time{}, err
	}
	return fromMillis(state.LastSuccessAt), nil
}

// LastFailure returns the recorded failure time, or zero when none is on disk.
func (f *FileStore) LastFailure(context.Context) (time.Time, error) {
	state, err := f.read()
	if err != nil {
		return time.Time{}, err
	}
	return fromMillis(state.LastFailureAt), nil
}

// RecordSuccess rewrites the file with a new success time.
func (f *FileStore) RecordSuccess(_ context.Context, at time.Time) error {
	return f.update(func(s *fileState) { s.LastSuccessAt = at.UnixMilli() })
}

// RecordFailure rewrites the file with a new failure time.
func (f *FileStore) RecordFailure(_ context.Context, at time.Time) error {
	return f.update(func(s *fileState) { s.LastFailureAt = at.UnixMilli() })
}

func (f *FileStore) read() (fileState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readLocked()
}

func (f *FileStore) readLocked() (fileState, error) {
	var state fileState

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("read cooldown file: %w", err)
	}
	if len(raw) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return fileState{}, fmt.Errorf("decode cooldown file %s: %w", f.path, err)
	}
	return state, nil
}

// update rewrites the file through a temp file + rename; last write wins.
func (f *FileStore) update(mutate func(*fileState)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.readLocked()
	if err != nil {
		return err
	}
	mutate(&state)

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode cooldown state: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cooldown dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cooldown-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace cooldown file: %w", err)
	}
	return nil
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
