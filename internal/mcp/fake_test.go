package mcp

import (
	"context"
	"sync"
	"sync/atomic"
)

// fakeClient is an in-memory Client used across the package tests. It
// records every request and answers from a canned response table keyed
// by method.
type fakeClient struct {
	name string

	mu        sync.Mutex
	sent      []*Request
	responses map[string]*Response

	connectErr   error
	connectCalls atomic.Int64
	sendErr      error
	healthy      bool
	closed       atomic.Bool
	listID       atomic.Int64
}

func newFakeClient(name string) *fakeClient {
	return &fakeClient{
		name:      name,
		responses: map[string]*Response{},
		healthy:   true,
	}
}

func (f *fakeClient) respond(method string, resp *Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method] = resp
}

func (f *fakeClient) sentRequests() []*Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Request(nil), f.sent...)
}

func (f *fakeClient) Connect(_ context.Context) error {
	f.connectCalls.Add(1)
	return f.connectErr
}

func (f *fakeClient) Send(_ context.Context, req *Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}

	resp, ok := f.responses[req.Method]
	if !ok {
		return &Response{JSONRPC: jsonrpcVersion, ID: req.ID}, nil
	}
	out := *resp
	out.ID = req.ID
	return &out, nil
}

func (f *fakeClient) Healthy(_ context.Context) bool { return f.healthy }

func (f *fakeClient) ListTools(ctx context.Context) ([]map[string]any, error) {
	resp, err := f.Send(ctx, NewRequest(f.listID.Add(1), methodListTools, nil))
	if err != nil {
		return nil, err
	}
	return unwrapTools(f.name, resp)
}

func (f *fakeClient) Close() error {
	f.closed.Store(true)
	return nil
}
