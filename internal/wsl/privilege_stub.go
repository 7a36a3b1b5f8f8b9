//go:build !windows
// +build !windows

package wsl

// IsElevated always reports true off-Windows; elevation is a host-side
// concept and non-Windows builds exist for development and tests only.
func IsElevated() bool {
	return true
}
