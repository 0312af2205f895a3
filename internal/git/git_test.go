package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igitd/igit/internal/testutil"
)

// fakeRunner returns scripted results keyed by git subcommand
type fakeRunner struct {
	results map[string]Result
	errs    map[string]error
	calls   [][]string
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) (Result, error) {
	f.calls = append(f.calls, append([]string{dir, name}, args...))
	return f.results[args[0]], f.errs[args[0]]
}

func TestCommitMessage(t *testing.T) {
	now := time.Date(2020, 7, 18, 9, 5, 3, 0, time.UTC)
	assert.Equal(t, "2020-07-18 09:05:03 igit add/commit", CommitMessage(now))
}

func TestSync_Sequence(t *testing.T) {
	runner := &fakeRunner{}
	client := NewShellClient(runner, testutil.Logger(), "", "")

	require.NoError(t, client.Sync(context.Background(), "/repo", "msg"))

	assert.Equal(t, [][]string{
		{"/repo", "git", "add", "."},
		{"/repo", "git", "commit", "-m", "msg"},
		{"/repo", "git", "push"},
	}, runner.calls)
}

func TestSync_PushTarget(t *testing.T) {
	runner := &fakeRunner{}
	client := NewShellClient(runner, testutil.Logger(), "backup", "main")

	require.NoError(t, client.Sync(context.Background(), "/repo", "msg"))
	assert.Equal(t, []string{"/repo", "git", "push", "backup", "main"}, runner.calls[2])
}

func TestSync_StderrIsWarningOnly(t *testing.T) {
	logger, logs := testutil.BufferLogger()
	runner := &fakeRunner{results: map[string]Result{
		"push": {Stderr: "To github.com:me/backups.git\n   abc..def  main -> main"},
	}}
	client := NewShellClient(runner, logger, "", "")

	require.NoError(t, client.Sync(context.Background(), "/repo", "msg"))
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "git push")
}

func TestSync_NothingToCommit(t *testing.T) {
	runner := &fakeRunner{results: map[string]Result{
		"commit": {Stdout: "On branch main\nnothing to commit, working tree clean\n", ExitCode: 1},
	}}
	client := NewShellClient(runner, testutil.Logger(), "", "")

	require.NoError(t, client.Sync(context.Background(), "/repo", "msg"))
	assert.Len(t, runner.calls, 3, "push still runs")
}

func TestSync_Failures(t *testing.T) {
	tests := []struct {
		name      string
		runner    *fakeRunner
		wantCalls int
		wantErr   string
	}{
		{
			name:      "add fails",
			runner:    &fakeRunner{results: map[string]Result{"add": {ExitCode: 128, Stderr: "fatal: not a git repository"}}},
			wantCalls: 1,
			wantErr:   "not a git repository",
		},
		{
			name:      "commit fails",
			runner:    &fakeRunner{results: map[string]Result{"commit": {ExitCode: 128, Stderr: "Please tell me who you are"}}},
			wantCalls: 2,
			wantErr:   "who you are",
		},
		{
			name:      "push fails",
			runner:    &fakeRunner{results: map[string]Result{"push": {ExitCode: 1, Stderr: "rejected"}}},
			wantCalls: 3,
			wantErr:   "git push failed",
		},
		{
			name:      "git missing",
			runner:    &fakeRunner{errs: map[string]error{"add": errors.New("executable file not found")}},
			wantCalls: 1,
			wantErr:   "git add .",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewShellClient(tt.runner, testutil.Logger(), "", "")
			err := client.Sync(context.Background(), "/repo", "msg")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Len(t, tt.runner.calls, tt.wantCalls)
		})
	}
}

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()

	res, err := ExecRunner{}.Run(context.Background(), dir, "sh", "-c", "pwd; echo oops >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops\n", res.Stderr)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, resolved, strings.TrimSpace(res.Stdout))

	_, err = ExecRunner{}.Run(context.Background(), dir, "igit-no-such-binary")
	assert.Error(t, err)
}

// gitCmd runs git with args and fails the test on error
func gitCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := exec.Command("git", args...).CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
	return string(out)
}

func TestSync_RealRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	ctx := context.Background()

	remote := filepath.Join(t.TempDir(), "remote.git")
	gitCmd(t, "init", "--bare", remote)

	work := filepath.Join(t.TempDir(), "work")
	gitCmd(t, "clone", remote, work)
	gitCmd(t, "-C", work, "config", "user.email", "test@test.com")
	gitCmd(t, "-C", work, "config", "user.name", "Test")
	gitCmd(t, "-C", work, "config", "commit.gpgsign", "false")

	testutil.WriteFile(t, filepath.Join(work, "host1", "report.txt"), "quarterly numbers")

	client := NewShellClient(ExecRunner{}, testutil.Logger(), "origin", "HEAD")
	msg := CommitMessage(time.Date(2020, 7, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, client.Sync(ctx, work, msg))

	log := gitCmd(t, "--git-dir", remote, "log", "--format=%s", "--all")
	assert.Contains(t, log, msg)

	// A second sync with no changes must succeed
	require.NoError(t, client.Sync(ctx, work, msg))

	_, err := os.Stat(filepath.Join(work, ".git"))
	require.NoError(t, err)
}
