package apply

import (
	"context"
	"fmt"

	"github.com/hardenlabs/wslharden/internal/brand"
	"github.com/hardenlabs/wslharden/internal/wsl"
)

// wslInterfaceAlias is the host-side adapter carrying WSL VM traffic.
const wslInterfaceAlias = "vEthernet (WSL (Hyper-V firewall))"

// hostRule is one host firewall rule. The set is fixed and ordered:
// deny-by-default exists alongside the narrower allows, and creation order is
// deterministic so policy evaluation is reproducible.
type hostRule struct {
	Name    string
	Command string
}

// hostRules returns the ordered rule-set for the WSL adapter.
func hostRules() []hostRule {
	alias := wslInterfaceAlias
	return []hostRule{
		{
			Name: brand.FirewallRulePrefix + "Deny-Outbound",
			Command: fmt.Sprintf(
				"New-NetFirewallRule -DisplayName '%sDeny-Outbound' -Direction Outbound -Action Block -InterfaceAlias '%s'",
				brand.FirewallRulePrefix, alias),
		},
		{
			Name: brand.FirewallRulePrefix + "Allow-Outbound-Internal",
			Command: fmt.Sprintf(
				"New-NetFirewallRule -DisplayName '%sAllow-Outbound-Internal' -Direction Outbound -Action Allow -InterfaceAlias '%s' -RemoteAddress 10.0.0.0/8,172.16.0.0/12,192.168.0.0/16",
				brand.FirewallRulePrefix, alias),
		},
		{
			Name: brand.FirewallRulePrefix + "Allow-Outbound-Loopback",
			Command: fmt.Sprintf(
				"New-NetFirewallRule -DisplayName '%sAllow-Outbound-Loopback' -Direction Outbound -Action Allow -InterfaceAlias '%s' -RemoteAddress 127.0.0.0/8",
				brand.FirewallRulePrefix, alias),
		},
		{
			Name: brand.FirewallRulePrefix + "Deny-Inbound",
			Command: fmt.Sprintf(
				"New-NetFirewallRule -DisplayName '%sDeny-Inbound' -Direction Inbound -Action Block -InterfaceAlias '%s'",
				brand.FirewallRulePrefix, alias),
		},
	}
}

// StripHostRules removes every rule matching the tool's naming convention.
// Removing rules that do not exist is not an error; this is what makes rule
// creation idempotent across repeated applies.
func StripHostRules(ctx context.Context, r wsl.Runner) error {
	cmd := fmt.Sprintf(
		"Get-NetFirewallRule -DisplayName '%s*' -ErrorAction SilentlyContinue | Remove-NetFirewallRule",
		brand.FirewallRulePrefix)
	if _, err := r.PowerShell(ctx, cmd); err != nil {
		return fmt.Errorf("strip host firewall rules: %w", err)
	}
	return nil
}

// applyHostRules resets then creates the fixed rule-set in order.
func applyHostRules(ctx context.Context, r wsl.Runner) error {
	if err := StripHostRules(ctx, r); err != nil {
		return err
	}
	for _, rule := range hostRules() {
		if _, err := r.PowerShell(ctx, rule.Command); err != nil {
			return fmt.Errorf("create rule %s: %w", rule.Name, err)
		}
	}
	return nil
}
