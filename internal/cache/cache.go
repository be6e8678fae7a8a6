// Package cache is the local durable cache: one JSON file holding the
// whole state, written after every change and read once at startup.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/julianstephens/habitflow/internal/state"
)

const formatVersion = 1

type blob struct {
	Version int           `json:"version"`
	State   state.Partial `json:"state"`
}

// File persists state snapshots to a single file.
type File struct {
	path string
	mu   sync.Mutex
}

func New(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// Save replaces the cached blob with s. The file is written to a
// temporary sibling first and renamed into place.
func (f *File) Save(s state.State) error {
	data, err := json.MarshalIndent(blob{Version: formatVersion, State: s.Snapshot()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Load returns the cached snapshot. ok is false when nothing has been
// saved yet.
func (f *File) Load() (p state.Partial, ok bool, err error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path)
	f.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return state.Partial{}, false, nil
	}
	if err != nil {
		return state.Partial{}, false, fmt.Errorf("failed to read cache: %w", err)
	}

	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return state.Partial{}, false, fmt.Errorf("failed to parse cache %s: %w", f.path, err)
	}
	if b.Version > formatVersion {
		return state.Partial{}, false, fmt.Errorf("cache %s has version %d, newer than supported %d", f.path, b.Version, formatVersion)
	}
	return b.State, true, nil
}

// Clear removes the cached blob, if any.
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cache: %w", err)
	}
	return nil
}
