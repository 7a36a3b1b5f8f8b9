package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/hardenlabs/wslharden/internal/config"
	"github.com/hardenlabs/wslharden/internal/verify"
	"gopkg.in/yaml.v2"
)

// RunVerify runs the read-only compliance battery. The exit code is the
// number of failed checks, so automation can gate on `wslharden verify`.
func RunVerify(args []string) int {
	cfg := config.Default()
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	configFile := runFlags(fs, cfg)
	output := fs.String("output", "text", "Output format: text, json, or yaml")
	fs.StringVar(output, "o", "text", "Output format (short)")
	fs.Parse(args)

	if err := finishConfig(fs, cfg, *configFile, true); err != nil {
		errorf("verify: %v", err)
		return 1
	}

	report := verify.NewEngine(newRunner(cfg), cfg).Run(context.Background())

	switch *output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			errorf("verify: %v", err)
			return 1
		}
	case "yaml":
		data, err := yaml.Marshal(report)
		if err != nil {
			errorf("verify: %v", err)
			return 1
		}
		os.Stdout.Write(data)
	case "text":
		printReport(report)
	default:
		errorf("verify: unknown output format %q (want text, json, or yaml)", *output)
		return 1
	}

	return report.Failed
}

func printReport(report *verify.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tSTATUS\tDETAIL")
	for _, r := range report.Results {
		status := statusLabel("passed")
		if !r.Passed {
			status = statusLabel("failed")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, status, r.Detail)
	}
	w.Flush()
	fmt.Printf("\n%d passed, %d failed\n", report.Passed, report.Failed)
}
