package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/igitd/igit/internal/lock"
)

// Store loads and saves the manifest document at a fixed path
type Store struct {
	path string
}

// NewStore creates a store for the JSON document at path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the manifest document path
func (s *Store) Path() string {
	return s.path
}

// LockPath returns the path of the lock file guarding writers
func (s *Store) LockPath() string {
	return s.path + ".lock"
}

// Load reads the manifest. A missing document is initialized to an empty
// manifest and persisted before returning.
func (s *Store) Load() (Manifest, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m := Manifest{}
			if err := s.Save(m); err != nil {
				return nil, fmt.Errorf("failed to initialize manifest: %w", err)
			}
			return m, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if m == nil {
		// a literal "null" document
		m = Manifest{}
	}
	for machine, entries := range m {
		if entries == nil {
			m[machine] = EntrySet{}
		}
	}

	return m, nil
}

// Save replaces the manifest document. The new content is written to a
// temporary file in the same directory and renamed over the old one, so a
// crash leaves either the old or the new document.
func (s *Store) Save(m Manifest) error {
	if m == nil {
		m = Manifest{}
	}

	data, err := Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".stash-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write temp manifest: %w", err)
	}
	if err := tmpFile.Chmod(0644); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to chmod temp manifest: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to sync temp manifest: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp manifest: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace manifest: %w", err)
	}

	return nil
}

// Update runs fn against the current manifest while holding the writer
// lock. The manifest is saved only when fn reports a change.
func (s *Store) Update(fn func(m Manifest) (bool, error)) (err error) {
	l, err := lock.Acquire(s.LockPath())
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := l.Release(); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()

	m, err := s.Load()
	if err != nil {
		return err
	}

	changed, err := fn(m)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	return s.Save(m)
}

// Marshal renders a manifest or entry set the way it is stored on disk:
// 4-space indentation, sorted keys and a trailing newline.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
