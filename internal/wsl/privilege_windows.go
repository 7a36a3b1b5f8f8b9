//go:build windows
// +build windows

package wsl

import (
	"golang.org/x/sys/windows"
)

// IsElevated reports whether the process runs with administrative rights.
// Firewall rule management and wsl --shutdown both require elevation.
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
