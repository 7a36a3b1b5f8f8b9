package wsl

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// FakeDistro is an in-memory Runner for engine tests. It interprets the
// command shapes the package helpers emit (probe, cat, write, remove,
// restart) against a file map and records everything else verbatim.
type FakeDistro struct {
	mu sync.Mutex

	// Files maps distro paths to content.
	Files map[string]string

	// Fail maps a command substring to an error injected when a command
	// containing it runs.
	Fail map[string]error

	// Executed collects ShellInput payload commands that are not writes
	// (rendered step scripts).
	Executed []string
	// Scripts collects the stdin payloads of Executed entries.
	Scripts []string

	// Restarted collects systemd units restarted.
	Restarted []string

	// HostCommands collects PowerShell invocations.
	HostCommands []string

	// HostResponses maps a PowerShell command substring to canned output.
	HostResponses map[string]string

	// Responses maps a Shell command substring to canned output for
	// commands the fake does not interpret itself.
	Responses map[string]string
}

// NewFakeDistro creates a fake with the given initial files.
func NewFakeDistro(files map[string]string) *FakeDistro {
	if files == nil {
		files = make(map[string]string)
	}
	return &FakeDistro{Files: files}
}

var (
	probeRe   = regexp.MustCompile(`^test -e '(.+)' && echo yes \|\| echo no$`)
	catRe     = regexp.MustCompile(`^cat '(.+)'$`)
	writeRe   = regexp.MustCompile(`^mkdir -p "\$\(dirname '(.+)'\)" && cat > '.+' && chmod \S+ '.+'$`)
	removeRe  = regexp.MustCompile(`^chattr -i '(.+)' 2>/dev/null; rm -f '.+'$`)
	restartRe = regexp.MustCompile(`^systemctl restart '(.+)'$`)
)

func (f *FakeDistro) Shell(ctx context.Context, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failFor(command); err != nil {
		return "", err
	}

	switch {
	case command == "echo ok":
		return "ok\n", nil
	case probeRe.MatchString(command):
		path := probeRe.FindStringSubmatch(command)[1]
		if _, ok := f.Files[path]; ok {
			return "yes\n", nil
		}
		return "no\n", nil
	case catRe.MatchString(command):
		path := catRe.FindStringSubmatch(command)[1]
		content, ok := f.Files[path]
		if !ok {
			return "", fmt.Errorf("command wsl.exe failed: exit status 1: cat: %s: No such file or directory", path)
		}
		return content, nil
	case removeRe.MatchString(command):
		delete(f.Files, removeRe.FindStringSubmatch(command)[1])
		return "", nil
	case restartRe.MatchString(command):
		f.Restarted = append(f.Restarted, restartRe.FindStringSubmatch(command)[1])
		return "", nil
	default:
		f.Executed = append(f.Executed, command)
		for sub, out := range f.Responses {
			if strings.Contains(command, sub) {
				return out, nil
			}
		}
		return "", nil
	}
}

func (f *FakeDistro) ShellInput(ctx context.Context, input, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failFor(command); err != nil {
		return "", err
	}
	if err := f.failFor(input); err != nil {
		return "", err
	}

	if writeRe.MatchString(command) {
		f.Files[writeRe.FindStringSubmatch(command)[1]] = input
		return "", nil
	}

	f.Executed = append(f.Executed, command)
	f.Scripts = append(f.Scripts, input)
	return "", nil
}

func (f *FakeDistro) PowerShell(ctx context.Context, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failFor(command); err != nil {
		return "", err
	}
	f.HostCommands = append(f.HostCommands, command)
	for sub, out := range f.HostResponses {
		if strings.Contains(command, sub) {
			return out, nil
		}
	}
	return "", nil
}

func (f *FakeDistro) failFor(s string) error {
	for sub, err := range f.Fail {
		if strings.Contains(s, sub) {
			return err
		}
	}
	return nil
}
