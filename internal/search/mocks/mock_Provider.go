// Package mocks provides test doubles for search providers.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/research-agent/internal/model"
)

// MockProvider is a mock type for the search.Provider interface.
type MockProvider struct {
	mock.Mock
}

// Name provides a mock function with no fields
func (_m *MockProvider) Name() string {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Name")
	}

	if rf, ok := ret.Get(0).(func() string); ok {
		return rf()
	}
	return ret.String(0)
}

// Search provides a mock function with given fields: ctx, query
func (_m *MockProvider) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	ret := _m.Called(ctx, query)

	if len(ret) == 0 {
		panic("no return value specified for Search")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) ([]model.SearchResult, error)); ok {
		return rf(ctx, query)
	}

	var r0 []model.SearchResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.SearchResult)
	}
	return r0, ret.Error(1)
}

// NewMockProvider creates a new instance of MockProvider. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProvider {
	m := &MockProvider{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
