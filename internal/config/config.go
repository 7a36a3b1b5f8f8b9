// Package config defines the immutable run configuration shared by every
// engine in a single invocation. It is constructed once (file + flag merge),
// validated, and then only read.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/hardenlabs/wslharden/internal/brand"
)

// DefaultCommandTimeout bounds every external command invocation so an
// unreachable distro cannot hang a run indefinitely.
const DefaultCommandTimeout = 2 * time.Minute

// Run holds all inputs for one invocation. Every component receives it by
// pointer and must not mutate it.
type Run struct {
	// Distro is the WSL distribution name (e.g. "Ubuntu-24.04").
	Distro string

	// Internal service endpoints substituted into templates.
	MirrorURL    string
	RegistryHost string
	DNSServer    string
	ProxyURL     string

	// BackupRoot is where backup bundles are created and looked up.
	BackupRoot string

	// CommandTimeout bounds each Host Command Executor invocation.
	CommandTimeout time.Duration

	// Behavior flags.
	DryRun       bool
	SkipPrecheck bool
	IncludeHost  bool
	AssumeYes    bool
}

// Default returns a Run with defaults filled in. Flag parsing starts from
// this value so an empty flag set still yields a usable config.
func Default() *Run {
	return &Run{
		BackupRoot:     brand.DefaultBackupRoot(),
		CommandTimeout: DefaultCommandTimeout,
	}
}

// Validate checks fields every command needs.
func (r *Run) Validate() error {
	if strings.TrimSpace(r.Distro) == "" {
		return fmt.Errorf("distro name is required (-distro)")
	}
	if strings.TrimSpace(r.BackupRoot) == "" {
		return fmt.Errorf("backup root is required (-backup-root)")
	}
	if r.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive, got %s", r.CommandTimeout)
	}
	return nil
}

// ValidateEndpoints checks the internal service endpoints apply and verify
// substitute into templates and probe during checks.
func (r *Run) ValidateEndpoints() error {
	if err := validateHTTPURL("mirror", r.MirrorURL); err != nil {
		return err
	}
	if err := validateHost("registry", r.RegistryHost); err != nil {
		return err
	}
	if ip := net.ParseIP(r.DNSServer); ip == nil {
		return fmt.Errorf("dns server %q is not a valid IP address", r.DNSServer)
	}
	if err := validateHTTPURL("proxy", r.ProxyURL); err != nil {
		return err
	}
	return nil
}

func validateHTTPURL(name, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s URL is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s URL %q: %w", name, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s URL %q: scheme must be http or https", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s URL %q: missing host", name, raw)
	}
	return nil
}

func validateHost(name, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s host is required", name)
	}
	host := raw
	if h, _, err := net.SplitHostPort(raw); err == nil {
		host = h
	}
	if strings.ContainsAny(host, " /\\") {
		return fmt.Errorf("%s host %q is not a valid hostname", name, raw)
	}
	return nil
}

// TemplateVars returns the substitution map every template renders with.
func (r *Run) TemplateVars() map[string]string {
	host := r.RegistryHost
	return map[string]string{
		"DISTRO":        r.Distro,
		"MIRROR_URL":    r.MirrorURL,
		"REGISTRY_HOST": host,
		"DNS_SERVER":    r.DNSServer,
		"PROXY_URL":     r.ProxyURL,
	}
}
