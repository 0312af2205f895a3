package reconcile

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// copyFile copies src to dst with its permissions and timestamps.
// The content is written to a temp file next to dst and renamed into place.
func copyFile(src, dst string, srcInfo os.FileInfo) error {
	atime := accessTime(src, srcInfo)

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".igit-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Chmod(srcInfo.Mode().Perm()); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	if err := os.Chtimes(tmpPath, atime, srcInfo.ModTime()); err != nil {
		return err
	}

	return os.Rename(tmpPath, dst)
}

// copyTree recreates the directory src at dst. Symlinks are recreated as
// symlinks rather than followed; sockets, devices and pipes are skipped.
func copyTree(src, dst string, logger *slog.Logger) error {
	type dirMeta struct {
		path  string
		info  os.FileInfo
		atime time.Time
	}
	var dirs []dirMeta

	// a stash entry may itself be a symlink to a directory
	root, err := filepath.EvalSymlinks(src)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			// owner-writable until the walk finishes so children can be created
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			dirs = append(dirs, dirMeta{path: target, info: info, atime: accessTime(path, info)})

		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := os.Symlink(link, target); err != nil {
				return err
			}

		case d.Type().IsRegular():
			if err := copyFile(path, target, info); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

		default:
			logger.Warn("skipping special file", "path", path, "mode", info.Mode().String())
		}
		return nil
	})
	if err != nil {
		return err
	}

	// deepest first, so creating children does not bump a parent's mtime afterwards
	for i := len(dirs) - 1; i >= 0; i-- {
		dm := dirs[i]
		if err := os.Chmod(dm.path, dm.info.Mode().Perm()); err != nil {
			return err
		}
		if err := os.Chtimes(dm.path, dm.atime, dm.info.ModTime()); err != nil {
			return err
		}
	}

	return nil
}

// removeTree deletes path, first restoring owner write permission on every
// directory below it so read-only copies from an earlier run can go.
func removeTree(path string) error {
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return nil
	}
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			_ = os.Chmod(p, 0700)
		}
		return nil
	})
	return os.RemoveAll(path)
}
