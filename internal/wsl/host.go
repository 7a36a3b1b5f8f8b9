package wsl

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hardenlabs/wslharden/internal/logging"
)

// HostRunner executes commands through wsl.exe and powershell.exe on the
// Windows host. Each invocation is bounded by the configured timeout.
type HostRunner struct {
	distro  string
	timeout time.Duration
	log     *logging.Logger
}

// NewHostRunner creates a runner for the named distro.
func NewHostRunner(distro string, timeout time.Duration) *HostRunner {
	return &HostRunner{
		distro:  distro,
		timeout: timeout,
		log:     logging.WithComponent("exec"),
	}
}

// Shell runs a command inside the distro as root and returns stdout.
func (h *HostRunner) Shell(ctx context.Context, command string) (string, error) {
	return h.run(ctx, "", "wsl.exe", "-d", h.distro, "-u", "root", "--", "sh", "-c", command)
}

// ShellInput runs a command inside the distro with stdin attached.
func (h *HostRunner) ShellInput(ctx context.Context, input, command string) (string, error) {
	return h.run(ctx, input, "wsl.exe", "-d", h.distro, "-u", "root", "--", "sh", "-c", command)
}

// PowerShell runs a command on the host.
func (h *HostRunner) PowerShell(ctx context.Context, command string) (string, error) {
	return h.run(ctx, "", "powershell.exe", "-NoProfile", "-NonInteractive", "-Command", command)
}

func (h *HostRunner) run(ctx context.Context, input, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	h.log.Debug("exec", "command", name+" "+strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("command %s timed out after %s", name, h.timeout)
		}
		return "", fmt.Errorf("command %s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
