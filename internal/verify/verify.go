// Package verify runs the fixed battery of read-only compliance checks.
// Every check is independent: one failure never skips the rest, and the
// outcome of a check does not depend on execution order. Nothing here ever
// mutates state.
package verify

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hardenlabs/wslharden/internal/brand"
	"github.com/hardenlabs/wslharden/internal/config"
	"github.com/hardenlabs/wslharden/internal/logging"
	"github.com/hardenlabs/wslharden/internal/wsl"
	"github.com/miekg/dns"
)

// Result is a single check outcome.
type Result struct {
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Report aggregates a verification run. Failed doubles as the process exit
// status so compliance composes with automation.
type Report struct {
	Passed  int      `json:"passed" yaml:"passed"`
	Failed  int      `json:"failed" yaml:"failed"`
	Results []Result `json:"results" yaml:"results"`
}

// Check is one named probe.
type Check struct {
	Name string
	run  func(ctx context.Context, e *Engine) Result
}

// Engine runs the battery.
type Engine struct {
	runner wsl.Runner
	cfg    *config.Run
	log    *logging.Logger

	// dnsExchange is swappable for tests; production resolves through
	// the internal DNS server directly.
	dnsExchange func(server, name string) error
}

// NewEngine creates a verification engine.
func NewEngine(runner wsl.Runner, cfg *config.Run) *Engine {
	return &Engine{
		runner:      runner,
		cfg:         cfg,
		log:         logging.WithComponent("verify"),
		dnsExchange: queryDNS,
	}
}

// Checks returns the fixed battery in canonical order.
func (e *Engine) Checks() []Check {
	return []Check{
		{Name: "ssh-loopback-only", run: checkSSHLoopback},
		{Name: "container-rootless", run: checkRootless},
		{Name: "repo-internal-only", run: checkRepoRestricted},
		{Name: "registry-allowlist", run: checkRegistryPolicy},
		{Name: "firewall-default-deny", run: checkFirewallDefaultDeny},
		{Name: "dns-pinned", run: checkDNSPinned},
		{Name: "dns-internal-resolver", run: checkDNSResolves},
		{Name: "proxy-configured", run: checkProxy},
		{Name: "maintenance-deployed", run: checkMaintenance},
		{Name: "host-firewall-rules", run: checkHostFirewall},
	}
}

// Run executes every check and aggregates the report.
func (e *Engine) Run(ctx context.Context) *Report {
	report := &Report{}
	for _, c := range e.Checks() {
		res := c.run(ctx, e)
		res.Name = c.Name
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		e.log.Debug("check complete", "name", c.Name, "passed", res.Passed)
		report.Results = append(report.Results, res)
	}
	return report
}

func pass(detail string) Result { return Result{Passed: true, Detail: detail} }
func fail(detail string) Result { return Result{Passed: false, Detail: detail} }
func failErr(err error) Result  { return Result{Passed: false, Detail: err.Error()} }

func checkSSHLoopback(ctx context.Context, e *Engine) Result {
	out, err := e.runner.Shell(ctx, "ss -ltnH 'sport = :22' || true")
	if err != nil {
		return failErr(err)
	}
	lines := nonEmptyLines(out)
	if len(lines) == 0 {
		return pass("sshd not listening")
	}
	for _, line := range lines {
		if !strings.Contains(line, "127.0.0.1:22") {
			return fail("sshd listening beyond loopback: " + line)
		}
	}
	return pass("loopback only")
}

func checkRootless(ctx context.Context, e *Engine) Result {
	cmd := `RUNUSER=$(awk -F: '$3 == 1000 { print $1; exit }' /etc/passwd); ` +
		`su - "$RUNUSER" -c 'podman info --format {{.Host.Security.Rootless}}' 2>/dev/null`
	out, err := e.runner.Shell(ctx, cmd)
	if err != nil {
		return failErr(err)
	}
	if strings.TrimSpace(out) != "true" {
		return fail("container runtime not reporting rootless mode")
	}
	return pass("rootless active")
}

func checkRepoRestricted(ctx context.Context, e *Engine) Result {
	if exists, err := wsl.FileExists(ctx, e.runner, "/etc/apt/sources.list"); err != nil {
		return failErr(err)
	} else if exists {
		out, err := wsl.ReadFile(ctx, e.runner, "/etc/apt/sources.list")
		if err != nil {
			return failErr(err)
		}
		for _, line := range nonEmptyLines(string(out)) {
			if strings.HasPrefix(strings.TrimSpace(line), "deb ") {
				return fail("public source still enabled: " + strings.TrimSpace(line))
			}
		}
	}

	out, err := wsl.ReadFile(ctx, e.runner, "/etc/apt/sources.list.d/wslharden-internal.list")
	if err != nil {
		return fail("internal source definition missing")
	}
	if !strings.Contains(string(out), e.cfg.MirrorURL) {
		return fail("internal source does not reference the configured mirror")
	}
	return pass("internal mirror only")
}

func checkRegistryPolicy(ctx context.Context, e *Engine) Result {
	out, err := wsl.ReadFile(ctx, e.runner, "/etc/containers/registries.conf")
	if err != nil {
		return fail("registry policy missing")
	}
	content := string(out)
	if !strings.Contains(content, fmt.Sprintf("location = %q", e.cfg.RegistryHost)) {
		return fail("internal registry not allowed")
	}
	for _, public := range []string{"docker.io", "quay.io", "gcr.io", "ghcr.io", "registry.k8s.io"} {
		if !blocked(content, public) {
			return fail("public registry not blocked: " + public)
		}
	}
	return pass("internal registry only")
}

// blocked reports whether the registries.conf fragment for location has
// blocked = true before the next [[registry]] entry.
func blocked(content, location string) bool {
	idx := strings.Index(content, fmt.Sprintf("location = %q", location))
	if idx < 0 {
		return false
	}
	rest := content[idx:]
	if end := strings.Index(rest[1:], "[[registry]]"); end >= 0 {
		rest = rest[:end+1]
	}
	return strings.Contains(rest, "blocked = true")
}

func checkFirewallDefaultDeny(ctx context.Context, e *Engine) Result {
	out, err := e.runner.Shell(ctx, "nft list chain inet filter input 2>/dev/null")
	if err != nil {
		return failErr(err)
	}
	if !strings.Contains(out, "policy drop") {
		return fail("input chain does not default-deny")
	}
	return pass("default deny")
}

func checkDNSPinned(ctx context.Context, e *Engine) Result {
	out, err := wsl.ReadFile(ctx, e.runner, "/etc/resolv.conf")
	if err != nil {
		return failErr(err)
	}
	if !strings.Contains(string(out), "nameserver "+e.cfg.DNSServer) {
		return fail("resolv.conf does not point at the internal server")
	}

	attrs, err := e.runner.Shell(ctx, "lsattr /etc/resolv.conf 2>/dev/null | cut -d' ' -f1")
	if err != nil {
		return failErr(err)
	}
	if !strings.Contains(attrs, "i") {
		return fail("resolv.conf is not protected against overwrite")
	}
	return pass("pinned and immutable")
}

func checkDNSResolves(ctx context.Context, e *Engine) Result {
	if err := e.dnsExchange(e.cfg.DNSServer, e.cfg.RegistryHost); err != nil {
		return fail("internal DNS server not answering: " + err.Error())
	}
	return pass("internal resolver answering")
}

func checkProxy(ctx context.Context, e *Engine) Result {
	out, err := wsl.ReadFile(ctx, e.runner, "/etc/environment")
	if err != nil {
		return failErr(err)
	}
	if !strings.Contains(string(out), "http_proxy="+e.cfg.ProxyURL) {
		return fail("environment-wide proxy not set")
	}
	if exists, err := wsl.FileExists(ctx, e.runner, "/etc/apt/apt.conf.d/80wslharden-proxy"); err != nil || !exists {
		return fail("apt proxy setting missing")
	}
	return pass("proxy injected")
}

func checkMaintenance(ctx context.Context, e *Engine) Result {
	out, err := e.runner.Shell(ctx,
		"test -x "+brand.MaintenanceScriptPath+" && test -f /etc/systemd/system/wslharden-maintenance.timer && echo yes || echo no")
	if err != nil {
		return failErr(err)
	}
	if strings.TrimSpace(out) != "yes" {
		return fail("maintenance script or timer missing")
	}
	return pass("deployed and executable")
}

func checkHostFirewall(ctx context.Context, e *Engine) Result {
	out, err := e.runner.PowerShell(ctx,
		fmt.Sprintf("(Get-NetFirewallRule -DisplayName '%s*' -ErrorAction SilentlyContinue | Measure-Object).Count", brand.FirewallRulePrefix))
	if err != nil {
		return failErr(err)
	}
	if strings.TrimSpace(out) != "4" {
		return fail(fmt.Sprintf("expected 4 host rules, found %q", strings.TrimSpace(out)))
	}
	return pass("4 rules present")
}

func queryDNS(server, name string) error {
	c := &dns.Client{Timeout: 3 * time.Second}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	resp, _, err := c.Exchange(m, net.JoinHostPort(server, "53"))
	if err != nil {
		return err
	}
	if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
		return fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])
	}
	return nil
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
