package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/hardenlabs/wslharden/internal/brand"
	"github.com/hardenlabs/wslharden/internal/config"
	"github.com/hardenlabs/wslharden/internal/rollback"
)

// RunRollback restores a backup bundle. The exit code is the number of
// failed restore steps.
func RunRollback(args []string) int {
	cfg := config.Default()
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	configFile := runFlags(fs, cfg)
	bundlePath := fs.String("bundle", "", "Bundle to restore (default: latest)")
	fs.StringVar(bundlePath, "b", "", "Bundle to restore (short)")
	scopeStr := fs.String("scope", "all", "Rollback scope: all, host, or target")
	fs.BoolVar(&cfg.AssumeYes, "yes", false, "Skip the confirmation prompt")
	fs.BoolVar(&cfg.AssumeYes, "y", false, "Skip the confirmation prompt (short)")
	fs.Parse(args)

	if err := finishConfig(fs, cfg, *configFile, false); err != nil {
		errorf("rollback: %v", err)
		return 1
	}

	scope, err := rollback.ParseScope(*scopeStr)
	if err != nil {
		errorf("rollback: %v", err)
		return 1
	}

	bundle, err := resolveBundle(*bundlePath, cfg.BackupRoot)
	if err != nil {
		errorf("rollback: %v", err)
		return 1
	}

	if !cfg.AssumeYes {
		proceed, err := confirmRollback(cfg.Distro, bundle.Path, string(scope))
		if err != nil {
			errorf("rollback: %v", err)
			return 1
		}
		if !proceed {
			fmt.Println("Rollback cancelled.")
			return 0
		}
	}

	result, err := rollback.NewEngine(newRunner(cfg), cfg).Run(context.Background(), bundle.Path, scope)
	if err != nil {
		errorf("rollback: %v", err)
		return 1
	}

	if result.Degraded {
		errorf("warning: bundle metadata was missing, restored with reduced precision")
	}
	for _, s := range result.Steps {
		line := fmt.Sprintf("  %-32s %s", s.Name, statusLabel(string(s.Status)))
		if s.Detail != "" && s.Status != rollback.StepOK {
			line += "  " + s.Detail
		}
		fmt.Println(line)
	}
	fmt.Printf("\nRollback complete: %d step(s) failed\n", result.Failed)
	return result.Failed
}

func confirmRollback(distro, bundle, scope string) (bool, error) {
	var proceed bool
	confirm := huh.NewConfirm().
		Title(fmt.Sprintf("Roll back %s (scope: %s)?", distro, scope)).
		Description(fmt.Sprintf("Restores %s and strips the %s* host firewall rules.\nThe WSL runtime will be shut down.", bundle, brand.FirewallRulePrefix)).
		Affirmative("Roll back").
		Negative("Cancel").
		Value(&proceed)
	if err := confirm.Run(); err != nil {
		return false, err
	}
	return proceed, nil
}
