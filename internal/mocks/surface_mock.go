// File: internal/mocks/surface_mock.go
package mocks

import "github.com/stretchr/testify/mock"

// MockSurface mocks an acquired display.
type MockSurface struct {
	mock.Mock
}

func (m *MockSurface) Env() []string {
	args := m.Called()
	if env, ok := args.Get(0).([]string); ok {
		return env
	}
	return nil
}

func (m *MockSurface) Release() error {
	args := m.Called()
	return args.Error(0)
}
