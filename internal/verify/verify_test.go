package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/hardenlabs/wslharden/internal/config"
	"github.com/hardenlabs/wslharden/internal/wsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const compliantRegistries = `unqualified-search-registries = ["reg.corp.example.com"]

[[registry]]
location = "reg.corp.example.com"

[[registry]]
location = "docker.io"
blocked = true

[[registry]]
location = "registry-1.docker.io"
blocked = true

[[registry]]
location = "quay.io"
blocked = true

[[registry]]
location = "gcr.io"
blocked = true

[[registry]]
location = "ghcr.io"
blocked = true

[[registry]]
location = "registry.k8s.io"
blocked = true
`

func testConfig() *config.Run {
	r := config.Default()
	r.Distro = "Ubuntu-24.04"
	r.MirrorURL = "https://mirror.corp.example.com/ubuntu"
	r.RegistryHost = "reg.corp.example.com"
	r.DNSServer = "10.10.0.53"
	r.ProxyURL = "http://proxy.corp.example.com:3128"
	return r
}

func compliantDistro() *wsl.FakeDistro {
	fake := wsl.NewFakeDistro(map[string]string{
		"/etc/apt/sources.list":                           "# wslharden-disabled: deb http://archive.ubuntu.com/ubuntu noble main\n",
		"/etc/apt/sources.list.d/wslharden-internal.list": "deb https://mirror.corp.example.com/ubuntu noble main\n",
		"/etc/containers/registries.conf":                 compliantRegistries,
		"/etc/resolv.conf":                                "nameserver 10.10.0.53\noptions timeout:2\n",
		"/etc/environment":                                "http_proxy=http://proxy.corp.example.com:3128\nhttps_proxy=http://proxy.corp.example.com:3128\n",
		"/etc/apt/apt.conf.d/80wslharden-proxy":           "Acquire::http::Proxy \"http://proxy.corp.example.com:3128\";\n",
	})
	fake.Responses = map[string]string{
		"ss -ltnH":       "LISTEN 0 128 127.0.0.1:22 0.0.0.0:*\n",
		"podman info":    "true\n",
		"nft list chain": "chain input {\n type filter hook input priority 0; policy drop;\n}\n",
		"lsattr":         "----i---------e-------\n",
		"test -x":        "yes\n",
	}
	fake.HostResponses = map[string]string{
		"Get-NetFirewallRule": "4\n",
	}
	return fake
}

func newTestEngine(fake *wsl.FakeDistro) *Engine {
	e := NewEngine(fake, testConfig())
	e.dnsExchange = func(server, name string) error { return nil }
	return e
}

func TestFullyCompliant(t *testing.T) {
	report := newTestEngine(compliantDistro()).Run(context.Background())
	for _, r := range report.Results {
		assert.True(t, r.Passed, "%s: %s", r.Name, r.Detail)
	}
	assert.Equal(t, 10, report.Passed)
	assert.Zero(t, report.Failed)
}

func TestIndividualFailures(t *testing.T) {
	cases := []struct {
		name      string
		breakIt   func(f *wsl.FakeDistro, e *Engine)
		checkName string
	}{
		{
			name: "SSHExposed",
			breakIt: func(f *wsl.FakeDistro, e *Engine) {
				f.Responses["ss -ltnH"] = "LISTEN 0 128 0.0.0.0:22 0.0.0.0:*\n"
			},
			checkName: "ssh-loopback-only",
		},
		{
			name: "Rootful",
			breakIt: func(f *wsl.FakeDistro, e *Engine) {
				f.Responses["podman info"] = "false\n"
			},
			checkName: "container-rootless",
		},
		{
			name: "PublicRepoEnabled",
			breakIt: func(f *wsl.FakeDistro, e *Engine) {
				f.Files["/etc/apt/sources.list"] = "deb http://archive.ubuntu.com/ubuntu noble main\n"
			},
			checkName: "repo-internal-only",
		},
		{
			name: "RegistryUnblocked",
			breakIt: func(f *wsl.FakeDistro, e *Engine) {
				f.Files["/etc/containers/registries.conf"] = `[[registry]]
location = "reg.corp.example.com"
`
			},
			checkName: "registry-allowlist",
		},
		{
			name: "FirewallAcceptPolicy",
			breakIt: func(f *wsl.FakeDistro, e *Engine) {
				f.Responses["nft list chain"] = "chain input {\n policy accept;\n}\n"
			},
			checkName: "firewall-default-deny",
		},
		{
			name: "ResolvMutable",
			breakIt: func(f *wsl.FakeDistro, e *Engine) {
				f.Responses["lsattr"] = "--------------e-------\n"
			},
			checkName: "dns-pinned",
		},
		{
			name: "WrongNameserver",
			breakIt: func(f *wsl.FakeDistro, e *Engine) {
				f.Files["/etc/resolv.conf"] = "nameserver 8.8.8.8\n"
			},
			checkName: "dns-pinned",
		},
		{
			name: "ResolverDown",
			breakIt: func(f *wsl.FakeDistro, e *Engine) {
				e.dnsExchange = func(server, name string) error { return errors.New("i/o timeout") }
			},
			checkName: "dns-internal-resolver",
		},
		{
			name: "NoProxy",
			breakIt: func(f *wsl.FakeDistro, e *Engine) {
				f.Files["/etc/environment"] = "PATH=/usr/bin\n"
			},
			checkName: "proxy-configured",
		},
		{
			name: "MaintenanceMissing",
			breakIt: func(f *wsl.FakeDistro, e *Engine) {
				f.Responses["test -x"] = "no\n"
			},
			checkName: "maintenance-deployed",
		},
		{
			name: "HostRulesMissing",
			breakIt: func(f *wsl.FakeDistro, e *Engine) {
				f.HostResponses["Get-NetFirewallRule"] = "0\n"
			},
			checkName: "host-firewall-rules",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := compliantDistro()
			e := newTestEngine(fake)
			tc.breakIt(fake, e)

			report := e.Run(context.Background())
			assert.Equal(t, 1, report.Failed, "exactly the broken check fails")
			for _, r := range report.Results {
				if r.Name == tc.checkName {
					assert.False(t, r.Passed, "%s should fail: %s", r.Name, r.Detail)
				} else {
					assert.True(t, r.Passed, "%s: %s", r.Name, r.Detail)
				}
			}
		})
	}
}

func TestOrderIndependence(t *testing.T) {
	fake := compliantDistro()
	fake.Responses["podman info"] = "false\n"
	e := newTestEngine(fake)

	forward := e.Run(context.Background())

	checks := e.Checks()
	reversed := make(map[string]Result)
	for i := len(checks) - 1; i >= 0; i-- {
		res := checks[i].run(context.Background(), e)
		res.Name = checks[i].Name
		reversed[res.Name] = res
	}

	for _, r := range forward.Results {
		assert.Equal(t, r.Passed, reversed[r.Name].Passed, r.Name)
	}
}

func TestCheckErrorsBecomeFailures(t *testing.T) {
	fake := compliantDistro()
	fake.Fail = map[string]error{"nft list chain": errors.New("nft: command not found")}
	report := newTestEngine(fake).Run(context.Background())

	require.Equal(t, 1, report.Failed)
	for _, r := range report.Results {
		if r.Name == "firewall-default-deny" {
			assert.False(t, r.Passed)
			assert.Contains(t, r.Detail, "nft")
		}
	}
}
