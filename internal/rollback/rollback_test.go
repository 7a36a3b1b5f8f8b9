package rollback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hardenlabs/wslharden/internal/backup"
	"github.com/hardenlabs/wslharden/internal/config"
	"github.com/hardenlabs/wslharden/internal/render"
	"github.com/hardenlabs/wslharden/internal/wsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Run {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	r := config.Default()
	r.Distro = "Ubuntu-24.04"
	r.BackupRoot = t.TempDir()
	return r
}

// makeBundle captures the fake's current state into a fresh bundle.
func makeBundle(t *testing.T, fake *wsl.FakeDistro, cfg *config.Run, includeHost bool) *backup.Bundle {
	t.Helper()
	bundle, err := backup.NewEngine(fake).Create(context.Background(), cfg, includeHost)
	require.NoError(t, err)
	return bundle
}

func TestRollbackRestoresPresentArtifacts(t *testing.T) {
	original := map[string]string{
		"/etc/apt/sources.list": "deb http://archive.ubuntu.com/ubuntu noble main\n",
		"/etc/resolv.conf":      "nameserver 1.1.1.1\n",
		"/etc/nftables.conf":    "table inet filter {}\n",
	}
	fake := wsl.NewFakeDistro(map[string]string{})
	for p, c := range original {
		fake.Files[p] = c
	}
	cfg := testConfig(t)
	bundle := makeBundle(t, fake, cfg, false)

	// Simulate an apply having rewritten everything.
	fake.Files["/etc/apt/sources.list"] = "# deb ... disabled\n"
	fake.Files["/etc/resolv.conf"] = "nameserver 10.10.0.53\n"
	fake.Files["/etc/nftables.conf"] = "table inet filter { chain input { policy drop; } }\n"

	result, err := NewEngine(fake, cfg).Run(context.Background(), bundle.Path, ScopeAll)
	require.NoError(t, err)
	assert.Zero(t, result.Failed)
	assert.False(t, result.Degraded)

	for p, want := range original {
		assert.Equal(t, want, fake.Files[p], p)
	}
	assert.Contains(t, fake.Restarted, "nftables", "restore fires the dependent unit restart")
}

func TestRollbackDeletesAbsentAndUnconditionalArtifacts(t *testing.T) {
	// Nothing exists before apply, so every slot capture is absent.
	fake := wsl.NewFakeDistro(nil)
	cfg := testConfig(t)
	bundle := makeBundle(t, fake, cfg, false)

	// Simulate apply creating hardened files plus the no-slot artifacts.
	fake.Files["/etc/wsl.conf"] = "[network]\ngenerateResolvConf = false\n"
	fake.Files["/etc/apt/sources.list.d/wslharden-internal.list"] = "deb https://mirror.corp.example.com/ubuntu noble main\n"
	fake.Files["/usr/local/sbin/wslharden-maintenance.sh"] = "#!/bin/sh\n"
	fake.Files["/etc/systemd/system/wslharden-maintenance.timer"] = "[Timer]\n"

	result, err := NewEngine(fake, cfg).Run(context.Background(), bundle.Path, ScopeAll)
	require.NoError(t, err)
	assert.Zero(t, result.Failed)

	assert.NotContains(t, fake.Files, "/etc/wsl.conf")
	assert.NotContains(t, fake.Files, "/etc/apt/sources.list.d/wslharden-internal.list")
	assert.NotContains(t, fake.Files, "/usr/local/sbin/wslharden-maintenance.sh")
	assert.NotContains(t, fake.Files, "/etc/systemd/system/wslharden-maintenance.timer")
}

func TestRollbackSkipsFailedCaptures(t *testing.T) {
	fake := wsl.NewFakeDistro(map[string]string{
		"/etc/subuid": "user:100000:65536\n",
	})
	fake.Fail = map[string]error{"/etc/subuid": errors.New("exit status 1")}
	cfg := testConfig(t)
	bundle := makeBundle(t, fake, cfg, false)
	fake.Fail = nil

	fake.Files["/etc/subuid"] = "user:200000:65536\n"

	result, err := NewEngine(fake, cfg).Run(context.Background(), bundle.Path, ScopeAll)
	require.NoError(t, err)
	assert.Zero(t, result.Failed, "a skipped capture is not a failed step")

	var skipped bool
	for _, s := range result.Steps {
		if s.Name == "restore subuid" {
			skipped = s.Status == StepSkipped
		}
	}
	assert.True(t, skipped)
	assert.Equal(t, "user:200000:65536\n", fake.Files["/etc/subuid"], "failed capture leaves the live file alone")
}

func TestRollbackDegradedBundle(t *testing.T) {
	fake := wsl.NewFakeDistro(nil)
	cfg := testConfig(t)

	// A bundle directory without metadata: partial run or corruption.
	dir := filepath.Join(cfg.BackupRoot, "20260830-120000")
	require.NoError(t, os.MkdirAll(dir, 0755))

	fake.Files["/etc/systemd/system/wslharden-maintenance.service"] = "[Service]\n"
	fake.Files["/etc/resolv.conf"] = "nameserver 10.10.0.53\n"

	result, err := NewEngine(fake, cfg).Run(context.Background(), dir, ScopeAll)
	require.NoError(t, err, "degraded bundles roll back, never abort")
	assert.True(t, result.Degraded)
	assert.Zero(t, result.Failed)

	// No-slot artifacts are still removable without a manifest; slot
	// artifacts without captures are left untouched.
	assert.NotContains(t, fake.Files, "/etc/systemd/system/wslharden-maintenance.service")
	assert.Contains(t, fake.Files, "/etc/resolv.conf")
}

func TestRollbackHostScope(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	cfg := config.Default()
	cfg.Distro = "Ubuntu-24.04"
	cfg.BackupRoot = t.TempDir()

	wslconfig := filepath.Join(home, ".wslconfig")
	require.NoError(t, os.WriteFile(wslconfig, []byte("[wsl2]\nmemory=8GB\n"), 0644))

	fake := wsl.NewFakeDistro(map[string]string{
		"/etc/resolv.conf": "nameserver 1.1.1.1\n",
	})
	bundle := makeBundle(t, fake, cfg, true)

	require.NoError(t, os.WriteFile(wslconfig, []byte("[wsl2]\nfirewall=true\n"), 0644))
	fake.Files["/etc/resolv.conf"] = "nameserver 10.10.0.53\n"

	result, err := NewEngine(fake, cfg).Run(context.Background(), bundle.Path, ScopeHost)
	require.NoError(t, err)
	assert.Zero(t, result.Failed)

	restored, err := os.ReadFile(wslconfig)
	require.NoError(t, err)
	assert.Equal(t, "[wsl2]\nmemory=8GB\n", string(restored))

	assert.Equal(t, "nameserver 10.10.0.53\n", fake.Files["/etc/resolv.conf"], "host scope leaves the distro untouched")

	host := strings.Join(fake.HostCommands, "\n")
	assert.Contains(t, host, "Remove-NetFirewallRule")
	assert.Contains(t, host, "wsl.exe --shutdown")
}

func TestRollbackTargetScopeSkipsHostRules(t *testing.T) {
	fake := wsl.NewFakeDistro(map[string]string{
		"/etc/resolv.conf": "nameserver 1.1.1.1\n",
	})
	cfg := testConfig(t)
	bundle := makeBundle(t, fake, cfg, false)

	fake.Files["/etc/resolv.conf"] = "nameserver 10.10.0.53\n"

	result, err := NewEngine(fake, cfg).Run(context.Background(), bundle.Path, ScopeTarget)
	require.NoError(t, err)
	assert.Zero(t, result.Failed)
	assert.Equal(t, "nameserver 1.1.1.1\n", fake.Files["/etc/resolv.conf"])

	host := strings.Join(fake.HostCommands, "\n")
	assert.NotContains(t, host, "Remove-NetFirewallRule")
	assert.Contains(t, host, "wsl.exe --shutdown", "runtime restart happens in every scope")
}

func TestRollbackContinuesPastFailures(t *testing.T) {
	fake := wsl.NewFakeDistro(map[string]string{
		"/etc/resolv.conf":      "nameserver 1.1.1.1\n",
		"/etc/apt/sources.list": "deb http://archive.ubuntu.com/ubuntu noble main\n",
	})
	cfg := testConfig(t)
	bundle := makeBundle(t, fake, cfg, false)

	fake.Files["/etc/resolv.conf"] = "nameserver 10.10.0.53\n"
	fake.Files["/etc/apt/sources.list"] = "# disabled\n"
	fake.Fail = map[string]error{"/etc/resolv.conf": errors.New("chattr: operation not permitted")}

	result, err := NewEngine(fake, cfg).Run(context.Background(), bundle.Path, ScopeAll)
	require.NoError(t, err, "per-step failures never abort the run")

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "deb http://archive.ubuntu.com/ubuntu noble main\n", fake.Files["/etc/apt/sources.list"],
		"other artifacts are still restored")
	assert.Contains(t, strings.Join(fake.HostCommands, "\n"), "wsl.exe --shutdown",
		"the run continues through to the runtime restart")

	var failed StepResult
	for _, s := range result.Steps {
		if s.Status == StepFailed {
			failed = s
		}
	}
	assert.Equal(t, "restore resolv-conf", failed.Name)
	assert.Contains(t, failed.Detail, "not permitted")
}

func TestRollbackReenablesDisabledAptSources(t *testing.T) {
	fake := wsl.NewFakeDistro(nil)
	cfg := testConfig(t)
	bundle := makeBundle(t, fake, cfg, false)

	result, err := NewEngine(fake, cfg).Run(context.Background(), bundle.Path, ScopeAll)
	require.NoError(t, err)
	assert.Zero(t, result.Failed)

	var reenable string
	for _, cmd := range fake.Executed {
		if strings.Contains(cmd, disabledSuffix) {
			reenable = cmd
		}
	}
	require.NotEmpty(t, reenable, "rollback renames sidelined source definitions back")
	assert.Contains(t, reenable, "mv -f")
	assert.Contains(t, reenable, "/etc/apt/sources.list.d/*"+disabledSuffix)

	// The suffix must match what the repository-restriction step applies.
	script, err := render.New().Render("repo_restriction.sh", map[string]string{
		"MIRROR_URL": "https://mirror.corp.example.com/ubuntu",
	})
	require.NoError(t, err)
	assert.Contains(t, script, `"$f`+disabledSuffix+`"`)
}

func TestRollbackHostScopeSkipsAptReenable(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	cfg := config.Default()
	cfg.Distro = "Ubuntu-24.04"
	cfg.BackupRoot = t.TempDir()

	fake := wsl.NewFakeDistro(nil)
	bundle := makeBundle(t, fake, cfg, true)

	_, err := NewEngine(fake, cfg).Run(context.Background(), bundle.Path, ScopeHost)
	require.NoError(t, err)

	for _, cmd := range fake.Executed {
		assert.NotContains(t, cmd, disabledSuffix, "host scope must not touch distro sources")
	}
}

func TestRollbackDeletesUnconditionalArtifactsEvenWhenCaptured(t *testing.T) {
	// A bundle taken after an earlier apply captures the maintenance
	// artifacts as present. They still get deleted, never restored.
	fake := wsl.NewFakeDistro(map[string]string{
		"/usr/local/sbin/wslharden-maintenance.sh":          "#!/bin/sh\n",
		"/etc/systemd/system/wslharden-maintenance.service": "[Service]\n",
		"/etc/systemd/system/wslharden-maintenance.timer":   "[Timer]\n",
		"/etc/apt/sources.list.d/wslharden-internal.list":   "deb https://mirror.corp.example.com/ubuntu noble main\n",
	})
	cfg := testConfig(t)
	bundle := makeBundle(t, fake, cfg, false)

	capture, ok := bundle.Find("maintenance-script")
	require.True(t, ok)
	require.Equal(t, backup.StatusPresent, capture.Status)

	result, err := NewEngine(fake, cfg).Run(context.Background(), bundle.Path, ScopeAll)
	require.NoError(t, err)
	assert.Zero(t, result.Failed)

	assert.NotContains(t, fake.Files, "/usr/local/sbin/wslharden-maintenance.sh")
	assert.NotContains(t, fake.Files, "/etc/systemd/system/wslharden-maintenance.service")
	assert.NotContains(t, fake.Files, "/etc/systemd/system/wslharden-maintenance.timer")
	assert.NotContains(t, fake.Files, "/etc/apt/sources.list.d/wslharden-internal.list")

	byName := make(map[string]StepResult)
	for _, s := range result.Steps {
		byName[s.Name] = s
	}
	assert.Equal(t, StepOK, byName["delete maintenance-script"].Status)
	_, restored := byName["restore maintenance-script"]
	assert.False(t, restored)
}

func TestRollbackMissingBundleIsFatal(t *testing.T) {
	fake := wsl.NewFakeDistro(nil)
	cfg := testConfig(t)

	_, err := NewEngine(fake, cfg).Run(context.Background(), filepath.Join(cfg.BackupRoot, "nope"), ScopeAll)
	require.Error(t, err)
	assert.Empty(t, fake.HostCommands, "nothing touched when the bundle is missing")
}

func TestParseScope(t *testing.T) {
	for _, valid := range []string{"all", "host", "target"} {
		s, err := ParseScope(valid)
		require.NoError(t, err)
		assert.Equal(t, Scope(valid), s)
	}
	_, err := ParseScope("distro")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scope")
}
