//go:build integration

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/igitd/igit/internal/testutil"
)

const defaultTimeout = 2 * time.Minute

// Harness runs the compiled igit binary against a scratch base directory
type Harness struct {
	t       *testing.T
	bin     string
	dir     string
	baseDir string
	config  string
}

// NewHarness builds igit and writes a config rooted at a fresh base directory
func NewHarness(ctx context.Context, t *testing.T) *Harness {
	t.Helper()

	dir := t.TempDir()
	h := &Harness{
		t:       t,
		bin:     testutil.BuildBinary(ctx, t),
		dir:     dir,
		baseDir: filepath.Join(dir, "repo"),
		config:  filepath.Join(dir, "config.yaml"),
	}

	testutil.WriteFile(t, h.config, fmt.Sprintf(`paths:
  base_dir: %q
log:
  level: "debug"
`, h.baseDir))
	if err := os.MkdirAll(h.baseDir, 0755); err != nil {
		t.Fatalf("create base dir: %v", err)
	}
	return h
}

// Exec runs igit with args and the harness config
func (h *Harness) Exec(ctx context.Context, args ...string) (string, string, int, error) {
	h.t.Helper()

	cmd := exec.CommandContext(ctx, h.bin, append([]string{"--config", h.config}, args...)...)
	cmd.Dir = h.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", "", 0, fmt.Errorf("exec failed: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	return stdout.String(), stderr.String(), exitCode, nil
}

// MustExec runs igit and fails the test on a non-zero exit
func (h *Harness) MustExec(ctx context.Context, args ...string) (string, string) {
	h.t.Helper()
	stdout, stderr, exitCode, err := h.Exec(ctx, args...)
	if err != nil {
		h.t.Fatalf("exec failed: %v", err)
	}
	if exitCode != 0 {
		h.t.Fatalf("igit failed with exit code %d\nstdout: %s\nstderr: %s\nargs: %v",
			exitCode, stdout, stderr, args)
	}
	return stdout, stderr
}

// Git runs git in dir and fails the test on error
func (h *Harness) Git(ctx context.Context, dir string, args ...string) string {
	h.t.Helper()
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		h.t.Fatalf("git %v: %v: %s", args, err, out)
	}
	return string(out)
}
