// Package artifact defines the fixed catalog of configuration artifacts
// under management. Backup, verify, and rollback all iterate this one list,
// so the three engines can never disagree about what is managed.
package artifact

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Scope says which side of the WSL boundary an artifact lives on.
type Scope string

const (
	// ScopeTarget is a file inside the distro.
	ScopeTarget Scope = "target"
	// ScopeHost is a file on the Windows host.
	ScopeHost Scope = "host"
)

// Artifact is one managed configuration file.
type Artifact struct {
	// Name is the canonical identifier used in bundle manifests.
	Name string

	// Path is the absolute path inside the distro for target scope, or a
	// path relative to the user's home directory for host scope.
	Path string

	Scope Scope

	// BackupSlot marks artifacts whose prior state is captured before
	// apply. Artifacts without a slot are created unconditionally by
	// apply and deleted unconditionally by rollback.
	BackupSlot bool

	// RestartUnit is the systemd unit to bounce after this artifact is
	// restored, so the restore actually takes effect.
	RestartUnit string
}

// Catalog returns the full managed artifact list in a fixed order.
func Catalog() []Artifact {
	return []Artifact{
		{Name: "ssh-hardening", Path: "/etc/ssh/sshd_config.d/99-wslharden.conf", Scope: ScopeTarget, BackupSlot: true, RestartUnit: "ssh"},
		{Name: "apt-sources", Path: "/etc/apt/sources.list", Scope: ScopeTarget, BackupSlot: true},
		{Name: "containers-registries", Path: "/etc/containers/registries.conf", Scope: ScopeTarget, BackupSlot: true},
		{Name: "subuid", Path: "/etc/subuid", Scope: ScopeTarget, BackupSlot: true},
		{Name: "subgid", Path: "/etc/subgid", Scope: ScopeTarget, BackupSlot: true},
		{Name: "nftables-conf", Path: "/etc/nftables.conf", Scope: ScopeTarget, BackupSlot: true, RestartUnit: "nftables"},
		{Name: "resolv-conf", Path: "/etc/resolv.conf", Scope: ScopeTarget, BackupSlot: true},
		{Name: "wsl-conf", Path: "/etc/wsl.conf", Scope: ScopeTarget, BackupSlot: true},
		{Name: "environment", Path: "/etc/environment", Scope: ScopeTarget, BackupSlot: true},
		{Name: "apt-proxy", Path: "/etc/apt/apt.conf.d/80wslharden-proxy", Scope: ScopeTarget, BackupSlot: true},

		// Created unconditionally by apply; no prior state to capture.
		{Name: "apt-internal-source", Path: "/etc/apt/sources.list.d/wslharden-internal.list", Scope: ScopeTarget},
		{Name: "maintenance-script", Path: "/usr/local/sbin/wslharden-maintenance.sh", Scope: ScopeTarget},
		{Name: "maintenance-service", Path: "/etc/systemd/system/wslharden-maintenance.service", Scope: ScopeTarget},
		{Name: "maintenance-timer", Path: "/etc/systemd/system/wslharden-maintenance.timer", Scope: ScopeTarget},

		{Name: "wslconfig", Path: ".wslconfig", Scope: ScopeHost, BackupSlot: true},
	}
}

// ByName looks an artifact up in the catalog.
func ByName(name string) (Artifact, bool) {
	for _, a := range Catalog() {
		if a.Name == name {
			return a, true
		}
	}
	return Artifact{}, false
}

// InScope filters the catalog.
func InScope(scope Scope) []Artifact {
	var out []Artifact
	for _, a := range Catalog() {
		if a.Scope == scope {
			out = append(out, a)
		}
	}
	return out
}

// BundleRelPath returns where an artifact's capture lives inside a bundle,
// always with forward slashes.
func (a Artifact) BundleRelPath() string {
	switch a.Scope {
	case ScopeHost:
		return path.Join("host", a.Path)
	default:
		return path.Join("target", strings.TrimPrefix(a.Path, "/"))
	}
}

// HostPath resolves a host-scope artifact to an absolute path on this
// machine.
func (a Artifact) HostPath() (string, error) {
	if a.Scope != ScopeHost {
		return "", fmt.Errorf("artifact %s is not host-scoped", a.Name)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, a.Path), nil
}
