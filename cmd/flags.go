// Package cmd implements the CLI subcommands. Each RunX function parses its
// own flag set, builds the run configuration, drives the matching engine, and
// returns the process exit code.
package cmd

import (
	"flag"
	"os"

	"github.com/hardenlabs/wslharden/internal/brand"
	"github.com/hardenlabs/wslharden/internal/config"
	"github.com/hardenlabs/wslharden/internal/wsl"
)

// runFlags registers the flags shared by every subcommand and returns the
// config file flag value.
func runFlags(fs *flag.FlagSet, cfg *config.Run) *string {
	fs.StringVar(&cfg.Distro, "distro", cfg.Distro, "WSL distribution name")
	fs.StringVar(&cfg.Distro, "d", cfg.Distro, "WSL distribution name (short)")

	fs.StringVar(&cfg.MirrorURL, "mirror", cfg.MirrorURL, "Internal package mirror URL")
	fs.StringVar(&cfg.RegistryHost, "registry", cfg.RegistryHost, "Internal container registry host")
	fs.StringVar(&cfg.DNSServer, "dns", cfg.DNSServer, "Internal DNS server IP")
	fs.StringVar(&cfg.ProxyURL, "proxy", cfg.ProxyURL, "Internal HTTP proxy URL")

	fs.StringVar(&cfg.BackupRoot, "backup-root", cfg.BackupRoot, "Backup bundle root directory")
	fs.DurationVar(&cfg.CommandTimeout, "timeout", cfg.CommandTimeout, "Per-command timeout")

	configFile := fs.String("config", "", "HCL configuration file")
	fs.StringVar(configFile, "c", "", "HCL configuration file (short)")
	return configFile
}

// shortAliases maps short flag names onto the long names the config loader
// keys on, so -d counts as an explicit -distro during the merge.
var shortAliases = map[string]string{
	"d": "distro",
	"c": "config",
	"n": "dry-run",
	"b": "bundle",
	"y": "yes",
	"o": "output",
}

// finishConfig merges the optional HCL file under the explicitly set flags
// and validates the result. Endpoint validation is only demanded by commands
// that substitute or probe the internal endpoints.
func finishConfig(fs *flag.FlagSet, cfg *config.Run, configFile string, needEndpoints bool) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for short, long := range shortAliases {
		if set[short] {
			set[long] = true
		}
	}

	path := configFile
	if path == "" {
		if def := brand.DefaultConfigPath(); fileExists(def) {
			path = def
		}
	}
	if path != "" {
		if err := config.LoadFile(path, cfg, set); err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if needEndpoints {
		return cfg.ValidateEndpoints()
	}
	return nil
}

func newRunner(cfg *config.Run) wsl.Runner {
	return wsl.NewHostRunner(cfg.Distro, cfg.CommandTimeout)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
