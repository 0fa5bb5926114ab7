// Package mocks provides test doubles for the drive client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	drive "github.com/primary-workspace/pulseai-hackshodh/pkg/drive"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// ListFiles provides a mock function with given fields: ctx, query, pageToken
func (_m *MockClient) ListFiles(ctx context.Context, query string, pageToken string) (*drive.FileList, error) {
	ret := _m.Called(ctx, query, pageToken)

	if len(ret) == 0 {
		panic("no return value specified for ListFiles")
	}

	var r0 *drive.FileList
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) (*drive.FileList, error)); ok {
		return rf(ctx, query, pageToken)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string) *drive.FileList); ok {
		r0 = rf(ctx, query, pageToken)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*drive.FileList)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string) error); ok {
		r1 = rf(ctx, query, pageToken)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Download provides a mock function with given fields: ctx, fileID
func (_m *MockClient) Download(ctx context.Context, fileID string) ([]byte, error) {
	ret := _m.Called(ctx, fileID)

	if len(ret) == 0 {
		panic("no return value specified for Download")
	}

	var r0 []byte
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]byte, error)); ok {
		return rf(ctx, fileID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []byte); ok {
		r0 = rf(ctx, fileID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]byte)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, fileID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// About provides a mock function with given fields: ctx
func (_m *MockClient) About(ctx context.Context) (*drive.Account, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for About")
	}

	var r0 *drive.Account
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (*drive.Account, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) *drive.Account); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*drive.Account)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
