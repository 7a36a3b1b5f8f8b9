package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/hardenlabs/wslharden/internal/artifact"
	"github.com/hardenlabs/wslharden/internal/backup"
	"github.com/hardenlabs/wslharden/internal/config"
)

// RunBackup dispatches the backup subcommands: create (the default), list,
// and diff.
func RunBackup(args []string) int {
	sub := "create"
	if len(args) > 0 {
		switch args[0] {
		case "create", "list", "diff":
			sub = args[0]
			args = args[1:]
		}
	}

	switch sub {
	case "list":
		return runBackupList(args)
	case "diff":
		return runBackupDiff(args)
	default:
		return runBackupCreate(args)
	}
}

func runBackupCreate(args []string) int {
	cfg := config.Default()
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	configFile := runFlags(fs, cfg)
	fs.BoolVar(&cfg.IncludeHost, "include-host", false, "Also capture host artifacts")
	fs.Parse(args)

	if err := finishConfig(fs, cfg, *configFile, false); err != nil {
		errorf("backup: %v", err)
		return 1
	}

	bundle, err := backup.NewEngine(newRunner(cfg)).Create(context.Background(), cfg, cfg.IncludeHost)
	if err != nil {
		errorf("backup: %v", err)
		return 1
	}

	fmt.Printf("Created bundle %s\n\n", bundle.Path)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ARTIFACT\tPATH\tSTATUS")
	for _, c := range bundle.Meta.Manifest {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Path, c.Status)
	}
	w.Flush()
	return 0
}

func runBackupList(args []string) int {
	cfg := config.Default()
	fs := flag.NewFlagSet("backup list", flag.ExitOnError)
	root := fs.String("backup-root", cfg.BackupRoot, "Backup bundle root directory")
	fs.Parse(args)

	bundles, err := backup.List(*root)
	if err != nil {
		errorf("backup list: %v", err)
		return 1
	}
	if len(bundles) == 0 {
		fmt.Printf("No bundles under %s\n", *root)
		return 0
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BUNDLE\tDISTRO\tCREATED\tARTIFACTS\tHOST")
	for _, b := range bundles {
		if b.Degraded {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.Path, "?", "?", "?", "degraded")
			continue
		}
		host := "no"
		if b.Meta.IncludesHost {
			host = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			b.Path, b.Meta.Distro, b.Meta.CreatedAt.Format("2006-01-02 15:04:05"), len(b.Meta.Manifest), host)
	}
	w.Flush()
	return 0
}

// runBackupDiff shows what rollback to a bundle would change, per artifact.
func runBackupDiff(args []string) int {
	cfg := config.Default()
	fs := flag.NewFlagSet("backup diff", flag.ExitOnError)
	configFile := runFlags(fs, cfg)
	bundlePath := fs.String("bundle", "", "Bundle to diff against (default: latest)")
	fs.StringVar(bundlePath, "b", "", "Bundle to diff against (short)")
	fs.Parse(args)

	if err := finishConfig(fs, cfg, *configFile, false); err != nil {
		errorf("backup diff: %v", err)
		return 1
	}

	bundle, err := resolveBundle(*bundlePath, cfg.BackupRoot)
	if err != nil {
		errorf("backup diff: %v", err)
		return 1
	}
	if bundle.Degraded {
		errorf("backup diff: bundle %s has no metadata, nothing to diff", bundle.Path)
		return 1
	}

	runner := newRunner(cfg)
	ctx := context.Background()
	clean := true
	for _, c := range bundle.Meta.Manifest {
		if c.Scope == artifact.ScopeHost {
			// Host captures are plain files; the operator can inspect
			// them directly in the bundle.
			continue
		}
		diff, err := backup.Compare(ctx, runner, bundle, c.Name)
		if err != nil {
			errorf("%s: %v", c.Name, err)
			clean = false
			continue
		}
		if diff != "" {
			fmt.Print(diff)
			clean = false
		}
	}
	if clean {
		fmt.Println("Live state matches the bundle.")
	}
	return 0
}

func resolveBundle(path, root string) (*backup.Bundle, error) {
	if path != "" {
		return backup.Load(path)
	}
	return backup.Latest(root)
}
