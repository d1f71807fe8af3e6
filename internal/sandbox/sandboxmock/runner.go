// Package sandboxmock contains mocks for the sandbox package contracts.
package sandboxmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/alpack/alpack/internal/model"
)

// MockRunner is a mock implementation of sandbox.Runner.
type MockRunner struct {
	mock.Mock
}

// NewMockRunner creates a new runner mock that asserts its expectations on
// test cleanup.
func NewMockRunner(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRunner {
	m := &MockRunner{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Run mocks sandbox.Runner.Run.
func (m *MockRunner) Run(ctx context.Context, req model.SandboxRequest) (*model.ExecutionResult, error) {
	args := m.Called(ctx, req)

	var r0 *model.ExecutionResult
	if args.Get(0) != nil {
		r0 = args.Get(0).(*model.ExecutionResult)
	}

	return r0, args.Error(1)
}
