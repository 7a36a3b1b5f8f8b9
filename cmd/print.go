package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// statusLabel colors a step or check status for terminal output.
func statusLabel(status string) string {
	switch status {
	case "ok", "passed":
		return okStyle.Render("OK")
	case "failed":
		return failStyle.Render("FAILED")
	case "skipped":
		return skipStyle.Render("SKIPPED")
	default:
		return status
	}
}

func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
