package main

import (
	"fmt"
	"os"

	"github.com/hardenlabs/wslharden/cmd"
	"github.com/hardenlabs/wslharden/internal/brand"
	"github.com/hardenlabs/wslharden/internal/logging"
)

func main() {
	if os.Getenv(brand.ConfigEnvPrefix+"_DEBUG") == "1" {
		logging.Default().SetLevel(logging.LevelDebug)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "apply":
		os.Exit(cmd.RunApply(os.Args[2:]))

	case "verify":
		os.Exit(cmd.RunVerify(os.Args[2:]))

	case "backup":
		os.Exit(cmd.RunBackup(os.Args[2:]))

	case "rollback":
		os.Exit(cmd.RunRollback(os.Args[2:]))

	case "version":
		fmt.Printf("%s version %s\n", brand.Name, brand.Version)
		fmt.Printf("Build: %s (%s)\n", brand.BuildTime, brand.GitCommit)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage:
  %s <command> [options]

Commands:
  apply     Harden the target distro and the host firewall
            Options: --dry-run (-n), --skip-precheck, --include-host
  verify    Run the read-only compliance checks (exit code = failed checks)
            Options: --output (-o) text|json|yaml
  backup    Capture the current state into a backup bundle
            Subcommands: create (default), list, diff [--bundle (-b)]
  rollback  Restore a backup bundle and strip the host firewall rules
            Options: --bundle (-b) <path>, --scope all|host|target, --yes (-y)
  version   Print version information

Common options:
  --distro (-d) <name>      WSL distribution to manage
  --config (-c) <file>      HCL configuration file
  --mirror <url>            Internal package mirror
  --registry <host>         Internal container registry
  --dns <ip>                Internal DNS server
  --proxy <url>             Internal HTTP proxy
  --backup-root <dir>       Backup bundle root
  --timeout <duration>      Per-command timeout

Examples:
  %s apply -d Ubuntu-24.04 -c corp.hcl
  %s apply -d Ubuntu-24.04 -c corp.hcl --dry-run
  %s verify -d Ubuntu-24.04 -c corp.hcl -o json
  %s backup list
  %s rollback -d Ubuntu-24.04 --scope target -y
`,
		brand.Name, brand.Description,
		brand.BinaryName,
		brand.BinaryName, brand.BinaryName, brand.BinaryName, brand.BinaryName, brand.BinaryName)
}
