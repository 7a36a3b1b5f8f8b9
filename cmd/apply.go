package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/hardenlabs/wslharden/internal/apply"
	"github.com/hardenlabs/wslharden/internal/config"
)

// RunApply provisions the hardened baseline on the target distro. The exit
// code is the number of failed steps; fatal aborts exit 1.
func RunApply(args []string) int {
	cfg := config.Default()
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	configFile := runFlags(fs, cfg)
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Print the full plan without mutating anything")
	fs.BoolVar(&cfg.DryRun, "n", false, "Dry run (short)")
	fs.BoolVar(&cfg.SkipPrecheck, "skip-precheck", false, "Downgrade failed preconditions to warnings")
	fs.BoolVar(&cfg.IncludeHost, "include-host", false, "Also capture host artifacts in the backup bundle")
	fs.Parse(args)

	if err := finishConfig(fs, cfg, *configFile, true); err != nil {
		errorf("apply: %v", err)
		return 1
	}

	result, err := apply.NewEngine(newRunner(cfg), cfg).Run(context.Background())
	if err != nil {
		errorf("apply: %v", err)
		return 1
	}

	if result.DryRun {
		fmt.Printf("Dry run for %s. Planned commands:\n\n", cfg.Distro)
		for _, line := range result.Plan {
			fmt.Println(line)
		}
		return 0
	}

	fmt.Printf("Backup bundle: %s\n\n", result.BundlePath)
	for _, s := range result.Steps {
		line := fmt.Sprintf("  %-24s %s", s.Name, statusLabel(string(s.Status)))
		if s.Detail != "" && s.Status != apply.StepOK {
			line += "  " + s.Detail
		}
		fmt.Println(line)
	}

	if r := result.VerifyReport; r != nil {
		fmt.Printf("\nVerification: %d passed, %d failed\n", r.Passed, r.Failed)
		for _, res := range r.Results {
			if !res.Passed {
				fmt.Printf("  %-24s %s  %s\n", res.Name, statusLabel("failed"), res.Detail)
			}
		}
	}

	if result.Failed > 0 {
		errorf("\napply halted: %d step(s) failed, state preserved for diagnosis", result.Failed)
		errorf("roll back with: wslharden rollback -d %s -b %s", cfg.Distro, result.BundlePath)
	}
	return result.Failed
}
