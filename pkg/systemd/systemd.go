// Package systemd wraps service enablement as an opaque, idempotent
// collaborator.
package systemd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner executes a systemctl invocation and returns combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Client invokes systemctl, elevating through sudo for mutating
// operations when not running as root.
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

// Enabled reports whether the named unit is already enabled.
func (c *Client) Enabled(ctx context.Context, unit string) bool {
	out, err := c.systemctl(ctx, false, "is-enabled", unit)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "enabled"
}

// Enable enables the named unit. Enabling an already-enabled unit is a
// no-op for systemd, so re-runs are naturally idempotent.
func (c *Client) Enable(ctx context.Context, unit string) error {
	out, err := c.systemctl(ctx, true, "enable", unit)
	if err != nil {
		return fmt.Errorf("enable %s: %w: %s", unit, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *Client) systemctl(ctx context.Context, mutate bool, args ...string) ([]byte, error) {
	if c.run == nil {
		return nil, errors.New("nil runner")
	}
	if mutate && c.sudo {
		return c.run(ctx, "sudo", append([]string{"systemctl"}, args...)...)
	}
	return c.run(ctx, "systemctl", args...)
}
