// File: internal/mocks/page_mock.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/filterctl/internal/browser"
	"github.com/xkilldash9x/filterctl/internal/locator"
)

// MockPage mocks a browser page driven by the automation workflow.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockPage) Location(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Present(ctx context.Context, sel locator.Selector) (bool, error) {
	args := m.Called(ctx, sel)
	return args.Bool(0), args.Error(1)
}

func (m *MockPage) Find(ctx context.Context, sel locator.Selector) error {
	args := m.Called(ctx, sel)
	return args.Error(0)
}

func (m *MockPage) Fill(ctx context.Context, sel locator.Selector, text string) error {
	args := m.Called(ctx, sel, text)
	return args.Error(0)
}

func (m *MockPage) Click(ctx context.Context, sel locator.Selector) error {
	args := m.Called(ctx, sel)
	return args.Error(0)
}

func (m *MockPage) Checked(ctx context.Context, sel locator.Selector) (bool, error) {
	args := m.Called(ctx, sel)
	return args.Bool(0), args.Error(1)
}

func (m *MockPage) MarkDocument(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPage) DocumentMarked(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockPage) Snapshot(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// WaitUntil evaluates cond once when the expectation returns nil, so mocked
// Present/Location calls still flow through the condition.
func (m *MockPage) WaitUntil(ctx context.Context, timeout time.Duration, cond browser.Condition) error {
	args := m.Called(ctx, timeout, cond)
	if err := args.Error(0); err != nil {
		return err
	}
	ok, err := cond(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return browser.ErrWaitTimeout
	}
	return nil
}

// Close implements the session part of the interface.
func (m *MockPage) Close() error {
	args := m.Called()
	return args.Error(0)
}
