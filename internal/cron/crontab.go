package cron

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Crontab reads and installs the current user's crontab
type Crontab interface {
	// List returns the installed crontab
	List(ctx context.Context) (string, error)
	// Install replaces the installed crontab with the file at path and
	// returns anything the tool printed
	Install(ctx context.Context, path string) (string, error)
}

// Client implements Crontab by shelling out to crontab(1)
type Client struct{}

// NewClient creates a new crontab client
func NewClient() *Client {
	return &Client{}
}

// List runs crontab -l. A user without a crontab gets an error, since
// crontab(1) reports "no crontab for <user>" on stderr with a non-zero exit.
func (c *Client) List(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "crontab", "-l")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("crontab -l failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return "", fmt.Errorf("crontab -l: %s", msg)
	}
	return string(out), nil
}

// Install runs crontab <path>
func (c *Client) Install(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "crontab", path)
	output, err := cmd.CombinedOutput()
	out := strings.TrimSpace(string(output))
	if err != nil {
		return out, fmt.Errorf("crontab %s failed: %w", path, err)
	}
	return out, nil
}
