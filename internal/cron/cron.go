// Package cron installs the scheduled reconcile and sync jobs into the
// user's crontab.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/igitd/igit/internal/manifest"
)

// ErrInvalidSchedule indicates a timing expression igit does not accept
var ErrInvalidSchedule = errors.New("invalid cron schedule")

// Marker tags every crontab line igit manages so it can be replaced later
const Marker = "# igit"

const note = "# NOTE: jobs below are managed by igit; cron runs them with a minimal environment " + Marker

var fieldPattern = regexp.MustCompile(`^\*$|^[0-9]{1,2}$|^\*/[0-9]{1,2}$`)

// Validate checks expr has the five fields (minute hour day-of-month month
// day-of-week), each `*`, a one or two digit number, or `*/` followed by
// one.
func Validate(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return fmt.Errorf("%w: %q has %d fields, want 5", ErrInvalidSchedule, expr, len(fields))
	}
	for _, f := range fields {
		if !fieldPattern.MatchString(f) {
			return fmt.Errorf("%w: %q: field %q must be *, N or */N", ErrInvalidSchedule, expr, f)
		}
	}
	return nil
}

// Job describes the two scheduled invocations for one machine
type Job struct {
	Machine           string
	ReconcileSchedule string
	SyncSchedule      string
}

// Paths locates the files a rewrite reads and writes
type Paths struct {
	// Executable is the igit binary cron should run
	Executable string
	// ConfigFile is passed to scheduled runs with --config when set
	ConfigFile string
	// CronsDir receives the generated crontab files
	CronsDir string
	// Template is used when the current crontab cannot be read
	Template string
	// ReconcileLog and SyncLog receive the jobs' output
	ReconcileLog string
	SyncLog      string
}

// Editor rewrites and activates the crontab
type Editor struct {
	crontab Crontab
	paths   Paths
	logger  *slog.Logger
	now     func() time.Time
}

// NewEditor creates a crontab editor
func NewEditor(crontab Crontab, paths Paths, logger *slog.Logger) *Editor {
	return &Editor{
		crontab: crontab,
		paths:   paths,
		logger:  logger,
		now:     time.Now,
	}
}

// Edit validates the machine name and both schedules, merges the job lines into the current
// crontab (or the template when it cannot be read), writes the result to a
// timestamped file in the crons directory and activates it. It returns the
// path of the written file. When save is set the previous crontab is
// written next to it with a .old suffix. Activation failures are logged,
// not returned, so the operator can install the file by hand.
func (e *Editor) Edit(ctx context.Context, job Job, save bool) (string, error) {
	if err := Validate(job.ReconcileSchedule); err != nil {
		return "", fmt.Errorf("reconcile schedule: %w", err)
	}
	if err := Validate(job.SyncSchedule); err != nil {
		return "", fmt.Errorf("sync schedule: %w", err)
	}

	machine, err := manifest.NormalizeMachine(job.Machine)
	if err != nil {
		return "", err
	}

	e.logger.Info("editing crontab",
		"machine", machine,
		"reconcile", job.ReconcileSchedule,
		"sync", job.SyncSchedule,
		"save", save)

	if err := os.MkdirAll(e.paths.CronsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create crons directory: %w", err)
	}
	filename := filepath.Join(e.paths.CronsDir, e.now().Format("20060102-150405")+".cron")

	current, err := e.crontab.List(ctx)
	if err != nil {
		e.logger.Warn("unable to read crontab, starting from template", "error", err, "template", e.paths.Template)
		current, err = e.readTemplate()
		if err != nil {
			return "", err
		}
	} else if save {
		if err := os.WriteFile(filename+".old", []byte(current), 0644); err != nil {
			return "", fmt.Errorf("failed to save previous crontab: %w", err)
		}
		e.logger.Debug("saved previous crontab", "path", filename+".old")
	}

	lines := Merge(current, e.jobLines(machine, job))
	for _, l := range lines[len(lines)-3:] {
		e.logger.Debug("crontab line", "line", l)
	}

	if err := os.WriteFile(filename, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		return "", fmt.Errorf("failed to write crontab file: %w", err)
	}
	e.logger.Info("saved crontab file", "path", filename)

	out, err := e.crontab.Install(ctx, filename)
	if out != "" {
		e.logger.Info("crontab activation output", "output", out)
	}
	if err != nil {
		e.logger.Warn("crontab activation failed; activate manually with 'crontab <file>'", "path", filename, "error", err)
	}

	return filename, nil
}

// Merge drops previously managed lines and blank lines from current and
// appends managed.
func Merge(current string, managed []string) []string {
	var lines []string
	for _, l := range strings.Split(current, "\n") {
		if strings.TrimSpace(l) == "" || strings.HasSuffix(strings.TrimRight(l, " \t\r"), Marker) {
			continue
		}
		lines = append(lines, strings.TrimRight(l, "\r"))
	}
	return append(lines, managed...)
}

// jobLines renders the note and the two job lines, each tagged with Marker
func (e *Editor) jobLines(machine string, job Job) []string {
	base := shellQuote(e.paths.Executable)
	if e.paths.ConfigFile != "" {
		base += " --config " + shellQuote(e.paths.ConfigFile)
	}
	return []string{
		note,
		fmt.Sprintf("%s %s reconcile --machine %s >> %s 2>&1 %s",
			strings.Join(strings.Fields(job.ReconcileSchedule), " "), base, shellQuote(machine), shellQuote(e.paths.ReconcileLog), Marker),
		fmt.Sprintf("%s %s sync >> %s 2>&1 %s",
			strings.Join(strings.Fields(job.SyncSchedule), " "), base, shellQuote(e.paths.SyncLog), Marker),
	}
}

func (e *Editor) readTemplate() (string, error) {
	data, err := os.ReadFile(e.paths.Template)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read crontab template: %w", err)
	}
	return string(data), nil
}

// shellQuote wraps s in single quotes when it contains anything a shell
// would interpret, escaping embedded single quotes.
func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("/._-+=:@", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
