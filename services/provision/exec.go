package provision

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandRunner executes a system command for steps that shell out
// beyond the pacman and systemd collaborators. Injectable for tests.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// mirrorProbeHost is pinged once during validation to establish that
// package downloads have a network to use.
const mirrorProbeHost = "archlinux.org"

// checkSudo verifies cached sudo credentials without prompting. The
// package and system-file steps all elevate through sudo; discovering a
// dead sudo session mid-pipeline would fail them one by one instead.
func checkSudo(ctx context.Context, run CommandRunner) error {
	out, err := run(ctx, "sudo", "-n", "true")
	if err != nil {
		return fmt.Errorf("sudo access unavailable, run `sudo -v` first: %w: %s", err, firstLine(out))
	}
	return nil
}

// checkNetwork verifies the mirror host is reachable.
func checkNetwork(ctx context.Context, run CommandRunner) error {
	out, err := run(ctx, "ping", "-c", "1", "-W", "3", mirrorProbeHost)
	if err != nil {
		return fmt.Errorf("network unreachable (no route to %s): %w: %s", mirrorProbeHost, err, firstLine(out))
	}
	return nil
}

// regenerateInitramfs rebuilds all initramfs presets. Called at most
// once per run, after the system-file step, and only when a
// kernel-module fragment actually changed.
func (e *Env) regenerateInitramfs(ctx context.Context) error {
	out, err := e.root(ctx, "mkinitcpio", "-P")
	if err != nil {
		return fmt.Errorf("mkinitcpio: %w: %s", err, firstLine(out))
	}
	return nil
}

// reloadLiveConfig asks a running Hyprland session to re-read its
// configuration. Best effort: no session is a normal condition.
func (e *Env) reloadLiveConfig(ctx context.Context) error {
	out, err := e.Exec(ctx, "hyprctl", "reload")
	if err != nil {
		return fmt.Errorf("hyprctl reload: %w: %s", err, firstLine(out))
	}
	return nil
}

func (e *Env) root(ctx context.Context, name string, args ...string) ([]byte, error) {
	if os.Geteuid() != 0 {
		return e.Exec(ctx, "sudo", append([]string{name}, args...)...)
	}
	return e.Exec(ctx, name, args...)
}

func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
