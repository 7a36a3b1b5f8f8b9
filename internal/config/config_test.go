package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRun() *Run {
	r := Default()
	r.Distro = "Ubuntu-24.04"
	r.MirrorURL = "https://mirror.corp.example.com/ubuntu"
	r.RegistryHost = "reg.corp.example.com"
	r.DNSServer = "10.10.0.53"
	r.ProxyURL = "http://proxy.corp.example.com:3128"
	r.BackupRoot = "backups"
	return r
}

func TestValidate(t *testing.T) {
	r := validRun()
	assert.NoError(t, r.Validate())
	assert.NoError(t, r.ValidateEndpoints())

	t.Run("MissingDistro", func(t *testing.T) {
		r := validRun()
		r.Distro = "  "
		assert.Error(t, r.Validate())
	})

	t.Run("ZeroTimeout", func(t *testing.T) {
		r := validRun()
		r.CommandTimeout = 0
		assert.Error(t, r.Validate())
	})

	t.Run("BadMirrorScheme", func(t *testing.T) {
		r := validRun()
		r.MirrorURL = "ftp://mirror.example.com"
		assert.Error(t, r.ValidateEndpoints())
	})

	t.Run("BadDNS", func(t *testing.T) {
		r := validRun()
		r.DNSServer = "not-an-ip"
		assert.Error(t, r.ValidateEndpoints())
	})

	t.Run("RegistryWithPort", func(t *testing.T) {
		r := validRun()
		r.RegistryHost = "reg.corp.example.com:5000"
		assert.NoError(t, r.ValidateEndpoints())
	})

	t.Run("BadRegistry", func(t *testing.T) {
		r := validRun()
		r.RegistryHost = "reg example com"
		assert.Error(t, r.ValidateEndpoints())
	})
}

func TestTemplateVars(t *testing.T) {
	r := validRun()
	vars := r.TemplateVars()
	assert.Equal(t, "Ubuntu-24.04", vars["DISTRO"])
	assert.Equal(t, "reg.corp.example.com", vars["REGISTRY_HOST"])
	assert.Equal(t, "10.10.0.53", vars["DNS_SERVER"])
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wslharden.hcl")
	content := `
distro        = "Debian"
mirror_url    = "https://mirror.internal/debian"
registry_host = "registry.internal"
dns_server    = "192.168.10.53"
proxy_url     = "http://proxy.internal:8080"
command_timeout = "45s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r := Default()
	require.NoError(t, LoadFile(path, r, nil))

	assert.Equal(t, "Debian", r.Distro)
	assert.Equal(t, "https://mirror.internal/debian", r.MirrorURL)
	assert.Equal(t, 45*time.Second, r.CommandTimeout)

	t.Run("FlagsWin", func(t *testing.T) {
		r := Default()
		r.Distro = "Ubuntu"
		set := map[string]bool{"distro": true}
		require.NoError(t, LoadFile(path, r, set))
		assert.Equal(t, "Ubuntu", r.Distro, "explicit flag must not be overridden by file")
		assert.Equal(t, "registry.internal", r.RegistryHost)
	})

	t.Run("BadTimeout", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.hcl")
		require.NoError(t, os.WriteFile(bad, []byte(`command_timeout = "soon"`), 0644))
		assert.Error(t, LoadFile(bad, Default(), nil))
	})

	t.Run("Missing", func(t *testing.T) {
		assert.Error(t, LoadFile(filepath.Join(dir, "nope.hcl"), Default(), nil))
	})
}
