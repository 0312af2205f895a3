// Package manifest persists the per-machine stash: which source paths each
// machine archives and where under its staging directory they land.
package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// All selects every machine in list and clear operations. It is reserved
// and cannot be used as a machine name.
const All = "all"

var (
	// ErrUnknownMachine indicates the machine has not been created
	ErrUnknownMachine = errors.New("unknown machine")

	// ErrInvalidMachine indicates a machine name that cannot be used as a directory name
	ErrInvalidMachine = errors.New("invalid machine name")

	// ErrInvalidDest indicates a destination subpath that escapes the staging directory
	ErrInvalidDest = errors.New("invalid destination subpath")

	// ErrCorrupt indicates the manifest document exists but cannot be parsed
	ErrCorrupt = errors.New("manifest is corrupt")
)

// EntrySet maps an absolute source path to its destination subpath.
// An empty destination means the root of the machine's staging directory.
type EntrySet map[string]string

// Manifest maps a lowercase machine name to its entries
type Manifest map[string]EntrySet

// Machines returns the machine names in sorted order
func (m Manifest) Machines() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the entries for machine, which must already be normalized
func (m Manifest) Lookup(machine string) (EntrySet, error) {
	entries, ok := m[machine]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownMachine, machine, strings.Join(m.Machines(), ", "))
	}
	return entries, nil
}

// Sources returns the source paths in sorted order
func (e EntrySet) Sources() []string {
	paths := make([]string, 0, len(e))
	for p := range e {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// NormalizeMachine lowercases and validates a machine name
func NormalizeMachine(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case n == "":
		return "", fmt.Errorf("%w: name is empty", ErrInvalidMachine)
	case n == All:
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidMachine, All)
	case n == "." || n == "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidMachine, name)
	case strings.ContainsAny(n, `/\`):
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidMachine, name)
	}
	return n, nil
}

// NormalizeDest cleans a destination subpath and rejects absolute paths and
// paths that climb out of the machine's staging directory.
func NormalizeDest(dest string) (string, error) {
	if dest == "" {
		return "", nil
	}
	if filepath.IsAbs(dest) {
		return "", fmt.Errorf("%w: %q must be relative", ErrInvalidDest, dest)
	}
	clean := filepath.Clean(dest)
	if clean == "." {
		return "", nil
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q leaves the staging directory", ErrInvalidDest, dest)
	}
	return clean, nil
}

// SourcePath resolves a user-supplied path to the absolute, cleaned form
// used as an entry key.
func SourcePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return abs, nil
}
