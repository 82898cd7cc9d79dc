// Package mocks provides testify-based mocks of the apiclient interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/apiclient/httpclient"
)

// MockClient is a testify mock of httpclient.Client for code that makes API calls.
//
// Example usage:
//
//	client := &mocks.MockClient{}
//	client.On("Get", mock.Anything, mock.Anything).Return(&httpclient.Response{StatusCode: 200}, nil)
//	client.ExpectCallJSONFailure(httpclient.ErrRequestFailed)
type MockClient struct {
	mock.Mock
}

var _ httpclient.Client = (*MockClient)(nil)

func responseResult(args mock.Arguments) (*httpclient.Response, error) {
	resp, _ := args.Get(0).(*httpclient.Response)
	return resp, args.Error(1)
}

// Call implements httpclient.Client
func (m *MockClient) Call(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return responseResult(m.Called(ctx, req))
}

// CallJSON implements httpclient.Client
func (m *MockClient) CallJSON(ctx context.Context, req *httpclient.Request) (any, error) {
	args := m.Called(ctx, req)
	return args.Get(0), args.Error(1)
}

// Get implements httpclient.Client
func (m *MockClient) Get(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return responseResult(m.Called(ctx, req))
}

// Head implements httpclient.Client
func (m *MockClient) Head(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return responseResult(m.Called(ctx, req))
}

// Post implements httpclient.Client
func (m *MockClient) Post(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return responseResult(m.Called(ctx, req))
}

// Put implements httpclient.Client
func (m *MockClient) Put(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return responseResult(m.Called(ctx, req))
}

// Patch implements httpclient.Client
func (m *MockClient) Patch(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return responseResult(m.Called(ctx, req))
}

// Delete implements httpclient.Client
func (m *MockClient) Delete(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return responseResult(m.Called(ctx, req))
}

// Do implements httpclient.Client
func (m *MockClient) Do(ctx context.Context, method string, req *httpclient.Request) (*httpclient.Response, error) {
	return responseResult(m.Called(ctx, method, req))
}

// Stats implements httpclient.Client
func (m *MockClient) Stats() httpclient.StatsSnapshot {
	args := m.Called()
	snap, _ := args.Get(0).(httpclient.StatsSnapshot)
	return snap
}

// ExpectCallJSON stubs any CallJSON with payload.
func (m *MockClient) ExpectCallJSON(payload any) *mock.Call {
	return m.On("CallJSON", mock.Anything, mock.Anything).Return(payload, nil)
}

// ExpectCallJSONFailure stubs any CallJSON with err.
func (m *MockClient) ExpectCallJSONFailure(err error) *mock.Call {
	return m.On("CallJSON", mock.Anything, mock.Anything).Return(nil, err)
}

// ExpectStats stubs Stats with snap.
func (m *MockClient) ExpectStats(snap httpclient.StatsSnapshot) *mock.Call {
	return m.On("Stats").Return(snap)
}
