// Package reconcile mirrors a machine's stash entries into its staging
// directory so the next sync can commit them.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/igitd/igit/internal/manifest"
)

var errTargetInsideSource = errors.New("staging target lies inside the source directory")

// Engine copies manifest entries into <stagingDir>/<machine>/<dest>/<basename>
type Engine struct {
	store      *manifest.Store
	stagingDir string
	logger     *slog.Logger
}

// NewEngine creates a reconcile engine
func NewEngine(store *manifest.Store, stagingDir string, logger *slog.Logger) *Engine {
	return &Engine{
		store:      store,
		stagingDir: stagingDir,
		logger:     logger,
	}
}

// Reconcile mirrors every entry of machine. An unknown machine, an
// unreadable manifest or an uncreatable staging root is fatal; failures of
// individual entries are logged, collected in the report, and do not stop
// the run.
func (e *Engine) Reconcile(ctx context.Context, machine string) (*Report, error) {
	name, err := manifest.NormalizeMachine(machine)
	if err != nil {
		return nil, err
	}

	m, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	entries, err := m.Lookup(name)
	if err != nil {
		return nil, err
	}

	root := filepath.Join(e.stagingDir, name)
	report := &Report{Machine: name, Root: root}

	e.logger.Info("starting reconcile", "machine", name, "root", root, "entries", len(entries))

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	for _, src := range entries.Sources() {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("reconcile interrupted: %w", err)
		}
		e.reconcileEntry(report, src, entries[src])
	}

	e.logger.Info("reconcile finished",
		"machine", name,
		"copied", len(report.Copied),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed))

	return report, nil
}

// reconcileEntry mirrors one entry and records the outcome in report
func (e *Engine) reconcileEntry(report *Report, src, dest string) {
	target, err := targetPath(report.Root, src, dest)
	if err != nil {
		e.fail(report, src, target, err)
		return
	}

	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("source is neither a file nor a directory", "source", src)
			report.Skipped = append(report.Skipped, src)
			return
		}
		e.fail(report, src, target, err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		e.fail(report, src, target, fmt.Errorf("failed to create destination directory: %w", err))
		return
	}

	switch {
	case info.IsDir():
		contained, err := targetInside(src, report.Root, target)
		if err != nil {
			e.fail(report, src, target, err)
			return
		}
		if contained {
			e.fail(report, src, target, errTargetInsideSource)
			return
		}
		e.logger.Debug("copying directory", "source", src, "target", target)
		if err := removeTree(target); err != nil {
			e.fail(report, src, target, fmt.Errorf("failed to remove stale copy: %w", err))
			return
		}
		if err := copyTree(src, target, e.logger); err != nil {
			e.fail(report, src, target, err)
			return
		}
		report.Copied = append(report.Copied, Copy{Source: src, Target: target, Dir: true})

	case info.Mode().IsRegular():
		e.logger.Debug("copying file", "source", src, "target", target)
		if existing, err := os.Lstat(target); err == nil && existing.IsDir() {
			if err := removeTree(target); err != nil {
				e.fail(report, src, target, fmt.Errorf("failed to remove stale copy: %w", err))
				return
			}
		}
		if err := copyFile(src, target, info); err != nil {
			e.fail(report, src, target, err)
			return
		}
		report.Copied = append(report.Copied, Copy{Source: src, Target: target})

	default:
		e.logger.Warn("source is neither a file nor a directory", "source", src, "mode", info.Mode().String())
		report.Skipped = append(report.Skipped, src)
	}
}

func (e *Engine) fail(report *Report, src, target string, err error) {
	e.logger.Error("unable to copy entry", "source", src, "target", target, "error", err)
	report.Failed = append(report.Failed, Failure{Source: src, Target: target, Err: err})
}

// targetPath computes <root>/<dest>/<basename(src)>, rejecting entries
// whose destination would leave root or replace it entirely.
func targetPath(root, src, dest string) (string, error) {
	clean, err := manifest.NormalizeDest(dest)
	if err != nil {
		return "", err
	}
	base := filepath.Base(src)
	if !filepath.IsAbs(src) || base == string(filepath.Separator) || base == "." {
		return "", fmt.Errorf("source %q is not an absolute path to a named file", src)
	}
	return filepath.Join(root, clean, base), nil
}

// targetInside reports whether target would land inside src once symlinks
// in both are resolved. root must exist; target is a path below it.
func targetInside(src, root, target string) (bool, error) {
	realSrc, err := filepath.EvalSymlinks(src)
	if err != nil {
		return false, err
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return false, err
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false, err
	}
	return inside(src, target) || inside(realSrc, filepath.Join(realRoot, rel)), nil
}

// inside reports whether path is dir or lies beneath it
func inside(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
