package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// fileConfig mirrors the HCL file schema. Every field is optional; flags
// always win over file values.
type fileConfig struct {
	Distro         *string `hcl:"distro,optional"`
	MirrorURL      *string `hcl:"mirror_url,optional"`
	RegistryHost   *string `hcl:"registry_host,optional"`
	DNSServer      *string `hcl:"dns_server,optional"`
	ProxyURL       *string `hcl:"proxy_url,optional"`
	BackupRoot     *string `hcl:"backup_root,optional"`
	CommandTimeout *string `hcl:"command_timeout,optional"`
}

// LoadFile reads an HCL config file and applies its values onto r, skipping
// any field the caller already set on the command line.
//
// setFlags names the flags the user passed explicitly (flag.Visit output);
// file values never override those.
func LoadFile(path string, r *Run, setFlags map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return loadBytes(path, data, r, setFlags)
}

func loadBytes(filename string, data []byte, r *Run, setFlags map[string]bool) error {
	var fc fileConfig
	if err := hclsimple.Decode(filename, data, nil, &fc); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	apply := func(flag string, dst *string, src *string) {
		if src != nil && !setFlags[flag] {
			*dst = *src
		}
	}

	apply("distro", &r.Distro, fc.Distro)
	apply("mirror", &r.MirrorURL, fc.MirrorURL)
	apply("registry", &r.RegistryHost, fc.RegistryHost)
	apply("dns", &r.DNSServer, fc.DNSServer)
	apply("proxy", &r.ProxyURL, fc.ProxyURL)
	apply("backup-root", &r.BackupRoot, fc.BackupRoot)

	if fc.CommandTimeout != nil && !setFlags["timeout"] {
		d, err := time.ParseDuration(*fc.CommandTimeout)
		if err != nil {
			return fmt.Errorf("invalid command_timeout %q: %w", *fc.CommandTimeout, err)
		}
		r.CommandTimeout = d
	}

	return nil
}
