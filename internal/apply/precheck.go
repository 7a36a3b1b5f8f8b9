package apply

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hardenlabs/wslharden/internal/wsl"
	probing "github.com/prometheus-community/pro-bing"
)

// precheck validates run preconditions before anything mutates. Reachability,
// elevation, and template presence are fatal; endpoint pings are best-effort
// because ICMP is frequently filtered on internal networks.
func (e *Engine) precheck(ctx context.Context) error {
	if err := wsl.Reachable(ctx, e.probe); err != nil {
		return err
	}

	if !e.elevated() {
		return fmt.Errorf("administrative rights required for firewall and WSL lifecycle control")
	}

	for _, step := range targetSteps {
		if !e.renderer.Exists(step.template) {
			return fmt.Errorf("required template %q missing", step.template)
		}
	}

	for name, host := range e.endpointHosts() {
		if host == "" {
			continue
		}
		if err := e.ping(host); err != nil {
			e.log.Warn("endpoint did not answer ping, continuing", "endpoint", name, "host", host, "error", err)
		}
	}

	return nil
}

// endpointHosts extracts the ping targets from the run configuration.
func (e *Engine) endpointHosts() map[string]string {
	return map[string]string{
		"mirror":   urlHost(e.cfg.MirrorURL),
		"registry": hostOnly(e.cfg.RegistryHost),
		"dns":      e.cfg.DNSServer,
		"proxy":    urlHost(e.cfg.ProxyURL),
	}
}

func urlHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func hostOnly(raw string) string {
	if u, err := url.Parse("//" + raw); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return raw
}

// pingHost sends a single ICMP echo with a short timeout.
func pingHost(host string) error {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return err
	}
	pinger.Count = 1
	pinger.Timeout = 3 * time.Second
	pinger.SetPrivileged(true)
	if err := pinger.Run(); err != nil {
		return err
	}
	if pinger.Statistics().PacketsRecv == 0 {
		return fmt.Errorf("no reply from %s", host)
	}
	return nil
}
