package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Client commits and publishes the staging tree
type Client interface {
	// Sync stages every change in dir, commits it with message and pushes
	Sync(ctx context.Context, dir, message string) error
}

// Result is the captured outcome of one command
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes a command in dir
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

// ExecRunner implements Runner with os/exec
type ExecRunner struct{}

// Run executes name with args in dir. A non-zero exit is reported through
// Result.ExitCode, not as an error; errors mean the command could not run.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}

// ShellClient implements Client by shelling out to the git command
type ShellClient struct {
	runner Runner
	logger *slog.Logger
	remote string
	branch string
}

// NewShellClient creates a git client. remote and branch are optional push
// arguments; empty values push to the configured upstream.
func NewShellClient(runner Runner, logger *slog.Logger, remote, branch string) *ShellClient {
	return &ShellClient{
		runner: runner,
		logger: logger,
		remote: remote,
		branch: branch,
	}
}

// CommitMessage returns the timestamped message used for scheduled commits
func CommitMessage(now time.Time) string {
	return now.Format("2006-01-02 15:04:05") + " igit add/commit"
}

// Sync runs add, commit and push in dir. Output on stderr is logged as a
// warning since git writes progress there. A commit with nothing to commit
// is not an error; pushing still runs so earlier unpushed commits go out.
func (c *ShellClient) Sync(ctx context.Context, dir, message string) error {
	c.logger.Info("starting git sync", "dir", dir)

	res, err := c.step(ctx, dir, "add", ".")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("git add failed with exit code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	res, err = c.step(ctx, dir, "commit", "-m", message)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		if !nothingToCommit(res) {
			return fmt.Errorf("git commit failed with exit code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr+res.Stdout))
		}
		c.logger.Info("nothing to commit")
	}

	pushArgs := []string{"push"}
	if c.remote != "" {
		pushArgs = append(pushArgs, c.remote)
		if c.branch != "" {
			pushArgs = append(pushArgs, c.branch)
		}
	}
	res, err = c.step(ctx, dir, pushArgs...)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("git push failed with exit code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	c.logger.Info("git sync completed")
	return nil
}

// step runs one git subcommand and logs its output
func (c *ShellClient) step(ctx context.Context, dir string, args ...string) (Result, error) {
	call := "git " + strings.Join(args, " ")
	res, err := c.runner.Run(ctx, dir, "git", args...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", call, err)
	}

	if out := strings.TrimSpace(res.Stdout); out != "" {
		c.logger.Info("git output", "call", call, "output", out)
	}
	if errOut := strings.TrimSpace(res.Stderr); errOut != "" {
		c.logger.Warn("git error stream", "call", call, "stderr", errOut, "exit_code", res.ExitCode)
	}
	return res, nil
}

func nothingToCommit(res Result) bool {
	out := res.Stdout + res.Stderr
	return strings.Contains(out, "nothing to commit") || strings.Contains(out, "nothing added to commit")
}
