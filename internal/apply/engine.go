// Package apply implements the setup engine: it provisions the hardened
// baseline as a strictly sequential run-book. Each step depends on the
// previous succeeding, and nothing mutates until a backup bundle exists.
package apply

import (
	"context"
	"fmt"

	"github.com/hardenlabs/wslharden/internal/backup"
	"github.com/hardenlabs/wslharden/internal/config"
	"github.com/hardenlabs/wslharden/internal/logging"
	"github.com/hardenlabs/wslharden/internal/render"
	"github.com/hardenlabs/wslharden/internal/verify"
	"github.com/hardenlabs/wslharden/internal/wsl"
)

// StepStatus is the outcome of one apply step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepResult is one entry in the per-step outcome list.
type StepResult struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// Result carries the backup bundle path and the per-step outcomes of an
// apply run.
type Result struct {
	BundlePath string       `json:"bundle_path,omitempty"`
	Steps      []StepResult `json:"steps"`
	Failed     int          `json:"failed"`
	DryRun     bool         `json:"dry_run"`

	// Plan is the recorded command sequence in dry-run mode.
	Plan []string `json:"plan,omitempty"`

	// VerifyReport is the informational verification outcome, nil when
	// verification was skipped (dry run).
	VerifyReport *verify.Report `json:"verify,omitempty"`
}

// targetSteps is the fixed, ordered configuration sequence applied inside
// the distro. Each step renders its template and executes it as root.
var targetSteps = []struct {
	name     string
	template string
}{
	{"ssh-hardening", "ssh_hardening.sh"},
	{"repo-restriction", "repo_restriction.sh"},
	{"registry-restriction", "registry_restriction.sh"},
	{"rootless-enforcement", "rootless.sh"},
	{"distro-firewall", "distro_firewall.sh"},
	{"dns-pinning", "dns_pinning.sh"},
	{"proxy-configuration", "proxy.sh"},
	{"maintenance-deployment", "maintenance.sh"},
}

// Engine orchestrates one apply run.
type Engine struct {
	// probe is the real runner, used for read-only preconditions even in
	// dry-run mode.
	probe wsl.Runner
	// exec receives mutations: the real runner normally, a Recorder in
	// dry-run mode.
	exec wsl.Runner

	cfg      *config.Run
	renderer *render.Renderer
	backups  *backup.Engine
	log      *logging.Logger

	// Swappable for tests.
	ping      func(host string) error
	elevated  func() bool
	runVerify func(ctx context.Context) *verify.Report
}

// NewEngine builds an apply engine. In dry-run mode mutations are recorded
// instead of executed.
func NewEngine(runner wsl.Runner, cfg *config.Run) *Engine {
	e := &Engine{
		probe:    runner,
		exec:     runner,
		cfg:      cfg,
		renderer: render.New(),
		backups:  backup.NewEngine(runner),
		log:      logging.WithComponent("apply"),
		ping:     pingHost,
		elevated: wsl.IsElevated,
	}
	if cfg.DryRun {
		e.exec = wsl.NewRecorder()
	}
	e.runVerify = func(ctx context.Context) *verify.Report {
		return verify.NewEngine(e.probe, e.cfg).Run(ctx)
	}
	return e
}

// Run executes the full apply sequence. A returned error is a fatal abort
// (precondition or backup failure) before or between steps; per-step
// failures are reported through Result.Failed instead.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	result := &Result{DryRun: e.cfg.DryRun}

	// 1. Preconditions. Read-only, so they run against the real runner
	// even in dry-run mode.
	if err := e.precheck(ctx); err != nil {
		if !e.cfg.SkipPrecheck {
			return nil, fmt.Errorf("precondition failed: %w", err)
		}
		e.log.Warn("precondition failed, continuing on operator override", "error", err)
	}

	// 2. Backup. Never mutate without a restorable prior state. Dry runs
	// mutate nothing, so they create no bundle either.
	if e.cfg.DryRun {
		if rec, ok := e.exec.(*wsl.Recorder); ok {
			rec.PowerShell(ctx, fmt.Sprintf("# would create backup bundle under %s", e.cfg.BackupRoot))
		}
	} else {
		bundle, err := e.backups.Create(ctx, e.cfg, e.cfg.IncludeHost)
		if err != nil {
			return nil, fmt.Errorf("refusing to apply without a backup: %w", err)
		}
		result.BundlePath = bundle.Path
	}

	// 3. Host network policy.
	result.record(e.step(ctx, "host-firewall", func() error {
		return applyHostRules(ctx, e.exec)
	}))

	// 4. Target configuration steps, halting at the first failure.
	halted := result.Failed > 0
	for _, step := range targetSteps {
		if halted {
			result.record(StepResult{Name: step.name, Status: StepSkipped, Detail: "earlier step failed"})
			continue
		}
		res := e.step(ctx, step.name, func() error {
			return e.runTemplate(ctx, step.template)
		})
		result.record(res)
		if res.Status == StepFailed {
			halted = true
		}
	}

	// 5. Verification, informational only. Never triggers rollback.
	if !e.cfg.DryRun && !halted {
		report := e.runVerify(ctx)
		result.VerifyReport = report
		e.log.Info("verification complete", "passed", report.Passed, "failed", report.Failed)
	}

	// 6. Restart the WSL runtime so wsl.conf/.wslconfig settings land.
	if !halted {
		result.record(e.step(ctx, "runtime-restart", func() error {
			return wsl.Shutdown(ctx, e.exec)
		}))
	}

	if rec, ok := e.exec.(*wsl.Recorder); ok {
		result.Plan = rec.Plan()
	}

	logging.Audit("apply", e.cfg.Distro, map[string]any{
		"dry_run": e.cfg.DryRun,
		"bundle":  result.BundlePath,
		"failed":  result.Failed,
	})
	return result, nil
}

// runTemplate renders one step template and executes it inside the distro.
// Transfer and execution are a single piped invocation so no partially
// written script is ever left on the target.
func (e *Engine) runTemplate(ctx context.Context, name string) error {
	script, err := e.renderer.Render(name, e.cfg.TemplateVars())
	if err != nil {
		return err
	}
	if _, err := e.exec.ShellInput(ctx, script, "sh -s"); err != nil {
		return fmt.Errorf("step script %s: %w", name, err)
	}
	return nil
}

func (e *Engine) step(ctx context.Context, name string, fn func() error) StepResult {
	e.log.Info("step starting", "name", name)
	if err := fn(); err != nil {
		e.log.Error("step failed", "name", name, "error", err)
		return StepResult{Name: name, Status: StepFailed, Detail: err.Error()}
	}
	e.log.Info("step complete", "name", name)
	return StepResult{Name: name, Status: StepOK}
}

func (r *Result) record(s StepResult) {
	r.Steps = append(r.Steps, s)
	if s.Status == StepFailed {
		r.Failed++
	}
}
