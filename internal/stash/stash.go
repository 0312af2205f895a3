// Package stash edits the manifest of files and directories each machine
// archives.
package stash

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/igitd/igit/internal/manifest"
)

// AddOptions controls how risky paths are handled by Add
type AddOptions struct {
	// Force adds directories and large files without asking
	Force bool
	// FilesOnly skips directories
	FilesOnly bool
	// Dest is the subpath under the machine's staging directory
	Dest string
}

// Editor applies stash commands to the manifest store
type Editor struct {
	store     *manifest.Store
	confirm   Confirmer
	logger    *slog.Logger
	threshold int64
}

// NewEditor creates an editor. Files larger than threshold bytes need
// confirmation (or Force) to be added.
func NewEditor(store *manifest.Store, confirm Confirmer, logger *slog.Logger, threshold int64) *Editor {
	return &Editor{
		store:     store,
		confirm:   confirm,
		logger:    logger,
		threshold: threshold,
	}
}

// Create adds machine with no entries. Creating an existing machine only warns.
func (e *Editor) Create(machine string) error {
	name, err := manifest.NormalizeMachine(machine)
	if err != nil {
		return err
	}

	e.logger.Info("adding machine to stash", "machine", name, "manifest", e.store.Path())

	return e.store.Update(func(m manifest.Manifest) (bool, error) {
		if _, exists := m[name]; exists {
			e.logger.Warn("machine already exists in stash", "machine", name)
			return false, nil
		}
		m[name] = manifest.EntrySet{}
		return true, nil
	})
}

// Add records paths for machine and returns the absolute paths that were
// added. Paths already present are skipped with a warning. Directories and
// files above the size threshold need Force or confirmation; a declined
// confirmation skips the path and is not an error. The manifest is saved
// once after all paths are processed.
func (e *Editor) Add(machine string, paths []string, opts AddOptions) ([]string, error) {
	name, err := manifest.NormalizeMachine(machine)
	if err != nil {
		return nil, err
	}
	dest, err := manifest.NormalizeDest(opts.Dest)
	if err != nil {
		return nil, err
	}

	e.logger.Info("adding paths to stash",
		"machine", name,
		"paths", paths,
		"force", opts.Force,
		"files_only", opts.FilesOnly,
		"dest", dest)

	var added []string
	err = e.store.Update(func(m manifest.Manifest) (bool, error) {
		entries, err := m.Lookup(name)
		if err != nil {
			return false, err
		}

		for _, p := range paths {
			src, err := manifest.SourcePath(p)
			if err != nil {
				return false, err
			}

			if _, exists := entries[src]; exists {
				e.logger.Warn("path already in stash", "machine", name, "path", src)
				continue
			}

			ok, err := e.admit(src, opts)
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}

			entries[src] = dest
			added = append(added, src)
			e.logger.Debug("added path to stash", "machine", name, "path", src, "dest", dest)
		}

		e.logger.Debug("saving changes to stash", "added", len(added))
		return len(added) > 0, nil
	})
	if err != nil {
		return nil, err
	}

	return added, nil
}

// admit decides whether src may be added under opts
func (e *Editor) admit(src string, opts AddOptions) (bool, error) {
	info, err := os.Stat(src)
	if err != nil {
		e.logger.Warn("cannot stat path, skipping", "path", src, "error", err)
		return false, nil
	}

	if info.IsDir() {
		switch {
		case opts.FilesOnly:
			e.logger.Debug("not adding directory, files only", "path", src)
			return false, nil
		case opts.Force:
			e.logger.Debug("force adding directory", "path", src)
			return true, nil
		}
		return e.ask(src, fmt.Sprintf("%s is a directory; add anyway?", src))
	}

	if info.Mode().IsRegular() && info.Size() > e.threshold {
		mb := float64(info.Size()) / (1 << 20)
		if opts.Force {
			e.logger.Debug("force adding large file", "path", src, "size_mb", fmt.Sprintf("%.3f", mb))
			return true, nil
		}
		return e.ask(src, fmt.Sprintf("File size for %s: %.3f MB; add anyway?", src, mb))
	}

	return true, nil
}

func (e *Editor) ask(src, question string) (bool, error) {
	ok, err := e.confirm.Confirm(question)
	if err != nil {
		return false, fmt.Errorf("confirmation for %s failed: %w", src, err)
	}
	if !ok {
		e.logger.Debug("not adding path, declined", "path", src)
	}
	return ok, nil
}

// List returns the entries recorded for machine
func (e *Editor) List(machine string) (manifest.EntrySet, error) {
	name, err := manifest.NormalizeMachine(machine)
	if err != nil {
		return nil, err
	}

	e.logger.Info("listing stash", "machine", name)

	m, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	return m.Lookup(name)
}

// ListAll returns the whole manifest
func (e *Editor) ListAll() (manifest.Manifest, error) {
	e.logger.Info("listing stash", "machine", manifest.All)
	return e.store.Load()
}

// Clear removes every entry of machine, or every machine when machine is "all"
func (e *Editor) Clear(machine string) error {
	if isAll(machine) {
		e.logger.Info("clearing stash", "machine", manifest.All)
		return e.store.Update(func(m manifest.Manifest) (bool, error) {
			for name := range m {
				delete(m, name)
			}
			return true, nil
		})
	}

	name, err := manifest.NormalizeMachine(machine)
	if err != nil {
		return err
	}

	e.logger.Info("clearing stash", "machine", name)

	return e.store.Update(func(m manifest.Manifest) (bool, error) {
		if _, err := m.Lookup(name); err != nil {
			return false, err
		}
		m[name] = manifest.EntrySet{}
		return true, nil
	})
}

// Remove deletes paths from machine's entries and returns the paths that
// were removed. Paths that are not recorded only warn; they need not exist
// on disk.
func (e *Editor) Remove(machine string, paths []string) ([]string, error) {
	name, err := manifest.NormalizeMachine(machine)
	if err != nil {
		return nil, err
	}

	e.logger.Info("removing paths from stash", "machine", name, "paths", paths)

	var removed []string
	err = e.store.Update(func(m manifest.Manifest) (bool, error) {
		entries, err := m.Lookup(name)
		if err != nil {
			return false, err
		}

		for _, p := range paths {
			src, err := manifest.SourcePath(p)
			if err != nil {
				return false, err
			}
			if _, exists := entries[src]; !exists {
				e.logger.Warn("path not in stash", "machine", name, "path", src)
				continue
			}
			delete(entries, src)
			removed = append(removed, src)
			e.logger.Debug("removed path from stash", "machine", name, "path", src)
		}

		return len(removed) > 0, nil
	})
	if err != nil {
		return nil, err
	}

	return removed, nil
}

func isAll(machine string) bool {
	return strings.EqualFold(strings.TrimSpace(machine), manifest.All)
}
