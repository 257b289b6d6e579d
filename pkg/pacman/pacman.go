// Package pacman wraps the system package manager as an opaque
// collaborator: synchronize the index, install named packages, and
// query installation or availability.
package pacman

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner executes a package manager invocation and returns combined
// output. Injectable so tests avoid touching the real system.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	return cmd.CombinedOutput()
}

// Client invokes pacman, elevating through sudo when not running as
// root.
type Client struct {
	run  Runner
	sudo bool
}

// New returns a Client for the live system.
func New() *Client {
	return &Client{run: execRunner, sudo: os.Geteuid() != 0}
}

// NewWithRunner returns a Client using the provided runner and no
// privilege elevation.
func NewWithRunner(r Runner) *Client {
	return &Client{run: r}
}

// InstallError reports the packages that failed within a batch; the
// rest of the batch installed normally.
type InstallError struct {
	Packages []string
	Output   string
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install failed for %s", strings.Join(e.Packages, ", "))
}

// SyncDatabase refreshes the package index (pacman -Sy).
func (c *Client) SyncDatabase(ctx context.Context) error {
	out, err := c.pacman(ctx, "-Sy", "--noconfirm")
	if err != nil {
		return fmt.Errorf("sync package database: %w: %s", err, firstLines(out, 3))
	}
	return nil
}

// Install installs the named packages, skipping ones already present
// (--needed keeps re-runs idempotent). A batch failure is retried
// per-package so one unavailable package does not sink the rest; the
// returned *InstallError lists only genuinely failed packages.
func (c *Client) Install(ctx context.Context, pkgs []string) error {
	if len(pkgs) == 0 {
		return nil
	}
	args := append([]string{"-S", "--needed", "--noconfirm"}, pkgs...)
	if _, err := c.pacman(ctx, args...); err == nil {
		return nil
	}
	var failed []string
	var lastOut []byte
	for _, pkg := range pkgs {
		out, err := c.pacman(ctx, "-S", "--needed", "--noconfirm", pkg)
		if err != nil {
			failed = append(failed, pkg)
			lastOut = out
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &InstallError{Packages: failed, Output: firstLines(lastOut, 3)}
}

// Installed reports whether the named package is installed locally.
func (c *Client) Installed(ctx context.Context, pkg string) bool {
	_, err := c.pacman(ctx, "-Q", pkg)
	return err == nil
}

// Available reports whether the named package exists in any enabled
// repository.
func (c *Client) Available(ctx context.Context, pkg string) bool {
	_, err := c.pacman(ctx, "-Si", pkg)
	return err == nil
}

func (c *Client) pacman(ctx context.Context, args ...string) ([]byte, error) {
	if c.run == nil {
		return nil, errors.New("nil runner")
	}
	if c.sudo {
		return c.run(ctx, "sudo", append([]string{"pacman"}, args...)...)
	}
	return c.run(ctx, "pacman", args...)
}

func firstLines(out []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, " / ")
}
