package wsl

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRunner is a mock implementation of Runner for testing.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Shell(ctx context.Context, command string) (string, error) {
	args := m.Called(command)
	return args.String(0), args.Error(1)
}

func (m *MockRunner) ShellInput(ctx context.Context, input, command string) (string, error) {
	args := m.Called(input, command)
	return args.String(0), args.Error(1)
}

func (m *MockRunner) PowerShell(ctx context.Context, command string) (string, error) {
	args := m.Called(command)
	return args.String(0), args.Error(1)
}
