// Package rollback restores the pre-apply state from a backup bundle. Every
// restore step is attempted independently: a failure is logged and counted
// but never prevents later steps, maximizing partial recovery.
package rollback

import (
	"context"
	"fmt"
	"os"

	"github.com/hardenlabs/wslharden/internal/apply"
	"github.com/hardenlabs/wslharden/internal/artifact"
	"github.com/hardenlabs/wslharden/internal/backup"
	"github.com/hardenlabs/wslharden/internal/config"
	"github.com/hardenlabs/wslharden/internal/logging"
	"github.com/hardenlabs/wslharden/internal/wsl"
)

// Scope selects which side of the WSL boundary is rolled back.
type Scope string

const (
	ScopeAll    Scope = "all"
	ScopeHost   Scope = "host"
	ScopeTarget Scope = "target"
)

// ParseScope validates an operator-supplied scope string.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeAll, ScopeHost, ScopeTarget:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("invalid scope %q (want all, host, or target)", s)
	}
}

// StepStatus is the outcome of one rollback step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepResult is one artifact or cleanup action's outcome.
type StepResult struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// Result reports exactly which steps succeeded so the operator can act on
// what did not.
type Result struct {
	BundlePath string       `json:"bundle_path"`
	Degraded   bool         `json:"degraded"`
	Steps      []StepResult `json:"steps"`
	Failed     int          `json:"failed"`
}

// Engine restores artifacts from a bundle.
type Engine struct {
	runner wsl.Runner
	cfg    *config.Run
	log    *logging.Logger
}

// NewEngine creates a rollback engine.
func NewEngine(runner wsl.Runner, cfg *config.Run) *Engine {
	return &Engine{
		runner: runner,
		cfg:    cfg,
		log:    logging.WithComponent("rollback"),
	}
}

// Run restores every artifact the bundle captured, deletes what apply
// created without a prior counterpart, strips the host firewall rules, and
// resets the runtime. Only a missing bundle is fatal.
func (e *Engine) Run(ctx context.Context, bundlePath string, scope Scope) (*Result, error) {
	bundle, err := backup.Load(bundlePath)
	if err != nil {
		return nil, err
	}

	result := &Result{BundlePath: bundle.Path, Degraded: bundle.Degraded}
	if bundle.Degraded {
		// Metadata loss reduces precision but never aborts a rollback.
		e.log.Warn("bundle metadata missing or unreadable, proceeding in degraded mode",
			"bundle", bundle.Path, "assumed_distro", e.cfg.Distro)
	}

	for _, a := range artifact.Catalog() {
		if !scopeIncludes(scope, a.Scope) {
			continue
		}
		result.record(e.restoreArtifact(ctx, bundle, a))
	}

	if scopeIncludes(scope, artifact.ScopeTarget) {
		// Apply disables third-party source definitions by renaming
		// them in place; those files are not cataloged individually.
		result.record(e.step("reenable-apt-sources", func() error {
			return reenableAptSources(ctx, e.runner)
		}))
	}

	if scopeIncludes(scope, artifact.ScopeHost) {
		// Host rules are stripped by naming convention, never restored:
		// their absence is the pre-apply state by construction.
		result.record(e.step("host-firewall-strip", func() error {
			return apply.StripHostRules(ctx, e.runner)
		}))
	}

	result.record(e.step("runtime-restart", func() error {
		return wsl.Shutdown(ctx, e.runner)
	}))

	logging.Audit("rollback", e.cfg.Distro, map[string]any{
		"bundle": bundle.Path,
		"scope":  string(scope),
		"failed": result.Failed,
	})
	return result, nil
}

// restoreArtifact brings one artifact back to its captured state.
func (e *Engine) restoreArtifact(ctx context.Context, b *backup.Bundle, a artifact.Artifact) StepResult {
	capture, captured := b.Find(a.Name)

	switch {
	case !a.BackupSlot:
		// Created unconditionally by apply: the pre-apply state is
		// "does not exist", regardless of what a bundle captured.
		return e.step("delete "+a.Name, func() error {
			return e.deleteLive(ctx, a)
		})

	case captured && capture.Status == backup.StatusPresent:
		return e.step("restore "+a.Name, func() error {
			content, err := b.Content(a.Name)
			if err != nil {
				return err
			}
			if err := e.writeBack(ctx, a, content); err != nil {
				return err
			}
			if a.RestartUnit != "" {
				// A restore that does not take effect is a failed
				// restore for operational purposes.
				return wsl.RestartService(ctx, e.runner, a.RestartUnit)
			}
			return nil
		})

	case captured && capture.Status == backup.StatusFailed:
		e.log.Warn("capture failed at backup time, skipping", "artifact", a.Name)
		return StepResult{Name: "restore " + a.Name, Status: StepSkipped, Detail: "capture failed at backup time"}

	case captured && capture.Status == backup.StatusAbsent:
		// Absent at backup time: restore means delete.
		return e.step("delete "+a.Name, func() error {
			return e.deleteLive(ctx, a)
		})

	default:
		// A slot artifact missing from the manifest: the bundle predates
		// the artifact or is degraded. Nothing safe to do.
		return StepResult{Name: "restore " + a.Name, Status: StepSkipped, Detail: "not captured in bundle"}
	}
}

// disabledSuffix is the rename marker the repository-restriction step puts
// on third-party source definitions under /etc/apt/sources.list.d.
const disabledSuffix = ".wslharden-disabled"

// reenableAptSources strips the disabled marker from every source definition
// so the repositories apply sidelined come back. Renaming nothing is fine.
func reenableAptSources(ctx context.Context, r wsl.Runner) error {
	cmd := `for f in /etc/apt/sources.list.d/*` + disabledSuffix + `; do ` +
		`[ -e "$f" ] || continue; mv -f "$f" "${f%` + disabledSuffix + `}"; done`
	if _, err := r.Shell(ctx, cmd); err != nil {
		return fmt.Errorf("reenable apt sources: %w", err)
	}
	return nil
}

func (e *Engine) writeBack(ctx context.Context, a artifact.Artifact, content []byte) error {
	if a.Scope == artifact.ScopeHost {
		path, err := a.HostPath()
		if err != nil {
			return err
		}
		return os.WriteFile(path, content, 0644)
	}
	// Clear any immutable flag before overwriting.
	if err := wsl.RemoveFile(ctx, e.runner, a.Path); err != nil {
		return err
	}
	return wsl.WriteFile(ctx, e.runner, a.Path, string(content), "0644")
}

func (e *Engine) deleteLive(ctx context.Context, a artifact.Artifact) error {
	if a.Scope == artifact.ScopeHost {
		path, err := a.HostPath()
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return wsl.RemoveFile(ctx, e.runner, a.Path)
}

func (e *Engine) step(name string, fn func() error) StepResult {
	if err := fn(); err != nil {
		e.log.Error("rollback step failed, continuing", "step", name, "error", err)
		return StepResult{Name: name, Status: StepFailed, Detail: err.Error()}
	}
	e.log.Info("rollback step complete", "step", name)
	return StepResult{Name: name, Status: StepOK}
}

func (r *Result) record(s StepResult) {
	r.Steps = append(r.Steps, s)
	if s.Status == StepFailed {
		r.Failed++
	}
}

func scopeIncludes(scope Scope, s artifact.Scope) bool {
	switch scope {
	case ScopeAll:
		return true
	case ScopeHost:
		return s == artifact.ScopeHost
	case ScopeTarget:
		return s == artifact.ScopeTarget
	default:
		return false
	}
}
