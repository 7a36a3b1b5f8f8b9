package wsl

import (
	"context"
	"fmt"
	"sync"
)

// Recorder implements Runner but only records what would run. It backs
// dry-run mode: the engines execute their full sequence and the recorded
// commands become the textual plan.
type Recorder struct {
	mu       sync.Mutex
	Commands []string
}

// NewRecorder creates a new recording runner.
func NewRecorder() *Recorder {
	return &Recorder{
		Commands: make([]string, 0),
	}
}

// Shell records the command instead of executing it.
func (r *Recorder) Shell(ctx context.Context, command string) (string, error) {
	r.record("distro$ " + command)
	return "", nil
}

// ShellInput records the command and the size of its payload.
func (r *Recorder) ShellInput(ctx context.Context, input, command string) (string, error) {
	r.record(fmt.Sprintf("distro$ %s  <<(%d bytes)", command, len(input)))
	return "", nil
}

// PowerShell records the host command.
func (r *Recorder) PowerShell(ctx context.Context, command string) (string, error) {
	r.record("host> " + command)
	return "", nil
}

func (r *Recorder) record(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Commands = append(r.Commands, line)
}

// Plan returns the recorded commands in execution order.
func (r *Recorder) Plan() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Commands))
	copy(out, r.Commands)
	return out
}
