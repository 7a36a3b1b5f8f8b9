// Package wsl is the host command executor: it runs commands inside the
// managed WSL distribution and on the Windows host itself. Every mutation the
// tool performs crosses through a Runner, which is what makes dry-run and
// testing possible.
package wsl

import (
	"context"
	"fmt"
	"strings"
)

// Runner executes commands against the target distro and the host.
// Implementations: HostRunner (production), Recorder (dry run),
// MockRunner (tests).
type Runner interface {
	// Shell runs a command line inside the distro as root via sh -c and
	// returns stdout. A nonzero exit status is returned as an error that
	// includes the command and its stderr.
	Shell(ctx context.Context, command string) (string, error)

	// ShellInput is Shell with an stdin payload, used to push rendered
	// file content into the distro without quoting hazards.
	ShellInput(ctx context.Context, input, command string) (string, error)

	// PowerShell runs a command on the Windows host (firewall rule CRUD,
	// host file access, wsl.exe lifecycle control).
	PowerShell(ctx context.Context, command string) (string, error)
}

// Helpers built on the Runner interface. Engines use these instead of
// hand-rolling shell fragments so probe semantics stay consistent.

// FileExists probes a path inside the distro.
func FileExists(ctx context.Context, r Runner, path string) (bool, error) {
	out, err := r.Shell(ctx, fmt.Sprintf("test -e %s && echo yes || echo no", shellQuote(path)))
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", path, err)
	}
	return strings.TrimSpace(out) == "yes", nil
}

// ReadFile returns the content of a file inside the distro.
func ReadFile(ctx context.Context, r Runner, path string) ([]byte, error) {
	out, err := r.Shell(ctx, "cat "+shellQuote(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return []byte(out), nil
}

// WriteFile writes content to a path inside the distro with the given mode,
// creating parent directories as needed. Always overwrites.
func WriteFile(ctx context.Context, r Runner, path, content, mode string) error {
	q := shellQuote(path)
	cmd := fmt.Sprintf("mkdir -p \"$(dirname %s)\" && cat > %s && chmod %s %s", q, q, mode, q)
	if _, err := r.ShellInput(ctx, content, cmd); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RemoveFile deletes a path inside the distro. Removing a path that is
// already absent is not an error.
func RemoveFile(ctx context.Context, r Runner, path string) error {
	// chattr may have pinned the file (DNS resolver protection).
	q := shellQuote(path)
	if _, err := r.Shell(ctx, fmt.Sprintf("chattr -i %s 2>/dev/null; rm -f %s", q, q)); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// RestartService restarts a systemd unit inside the distro.
func RestartService(ctx context.Context, r Runner, unit string) error {
	if _, err := r.Shell(ctx, "systemctl restart "+shellQuote(unit)); err != nil {
		return fmt.Errorf("restart %s: %w", unit, err)
	}
	return nil
}

// Reachable reports whether the distro answers a trivial command.
func Reachable(ctx context.Context, r Runner) error {
	out, err := r.Shell(ctx, "echo ok")
	if err != nil {
		return fmt.Errorf("distro unreachable: %w", err)
	}
	if strings.TrimSpace(out) != "ok" {
		return fmt.Errorf("distro unreachable: unexpected probe output %q", strings.TrimSpace(out))
	}
	return nil
}

// Shutdown terminates the WSL VM so wsl.conf / .wslconfig changes take
// effect on next start.
func Shutdown(ctx context.Context, r Runner) error {
	if _, err := r.PowerShell(ctx, "wsl.exe --shutdown"); err != nil {
		return fmt.Errorf("wsl shutdown: %w", err)
	}
	return nil
}

// shellQuote single-quotes s for POSIX sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
