package render

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutes(t *testing.T) {
	fsys := fstest.MapFS{
		"tpl/greet.sh.tmpl": {Data: []byte("echo {{NAME}} at {{WHERE}}\n")},
	}
	r := NewFromFS(fsys, "tpl")

	out, err := r.Render("greet.sh", map[string]string{"NAME": "ops", "WHERE": "corp"})
	require.NoError(t, err)
	assert.Equal(t, "echo ops at corp\n", out)
}

func TestRenderUnresolvedPlaceholder(t *testing.T) {
	fsys := fstest.MapFS{
		"tpl/x.sh.tmpl": {Data: []byte("a={{A}} b={{B}} c={{C}}")},
	}
	r := NewFromFS(fsys, "tpl")

	_, err := r.Render("x.sh", map[string]string{"A": "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved placeholders")
	assert.Contains(t, err.Error(), "B, C")
}

func TestRenderUnknownTemplate(t *testing.T) {
	r := New()
	_, err := r.Render("nope.sh", nil)
	assert.Error(t, err)
}

func TestEmbeddedTemplates(t *testing.T) {
	r := New()

	names, err := r.Names()
	require.NoError(t, err)
	for _, want := range []string{
		"ssh_hardening.sh", "repo_restriction.sh", "registry_restriction.sh",
		"rootless.sh", "distro_firewall.sh", "dns_pinning.sh", "proxy.sh",
		"maintenance.sh",
	} {
		assert.Contains(t, names, want)
		assert.True(t, r.Exists(want), want)
	}

	vars := map[string]string{
		"DISTRO":        "Ubuntu",
		"MIRROR_URL":    "https://mirror.internal/ubuntu",
		"REGISTRY_HOST": "reg.example.com",
		"DNS_SERVER":    "10.0.0.53",
		"PROXY_URL":     "http://proxy.internal:3128",
	}
	for _, name := range names {
		out, err := r.Render(name, vars)
		require.NoError(t, err, name)
		assert.False(t, strings.Contains(out, "{{"), "%s: leftover placeholder", name)
	}
}

func TestRegistryPolicyContent(t *testing.T) {
	r := New()
	out, err := r.Render("registry_restriction.sh", map[string]string{"REGISTRY_HOST": "reg.example.com"})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, `location = "reg.example.com"`),
		"exactly one allow rule for the internal registry")
	for _, blocked := range []string{"docker.io", "quay.io", "gcr.io", "ghcr.io", "registry.k8s.io"} {
		assert.Contains(t, out, `location = "`+blocked+`"`)
	}
	assert.Equal(t, 6, strings.Count(out, "blocked = true"))
}
