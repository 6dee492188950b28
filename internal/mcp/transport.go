package mcp

import (
	"context"
	"encoding/json"
)

// Client is the uniform contract over both wire transports. A client owns
// at most one live channel to exactly one server and is not reusable after
// Close; reconnecting means constructing a new client.
//
// Send is call-and-response with at most one request in flight per client;
// implementations serialize concurrent callers internally. The caller
// bounds each exchange with a context deadline.
type Client interface {
	// Connect establishes the underlying channel. Returns a
	// *ConnectionError when the channel cannot be established.
	Connect(ctx context.Context) error

	// Send writes one request and reads the one correlated response.
	// Fails with *TimeoutError on deadline expiry, *TransportError on
	// an empty or malformed response, *ConnectionError when not
	// connected. A timed-out Send leaves the client usable for the
	// next call.
	Send(ctx context.Context, req *Request) (*Response, error)

	// Healthy is a cheap liveness probe. It never returns an error;
	// any failure during the probe reads as false.
	Healthy(ctx context.Context) bool

	// ListTools issues tools/list and unwraps the tools array, empty
	// when the server reports none.
	ListTools(ctx context.Context) ([]map[string]any, error)

	// Close tears the channel down. Best-effort and idempotent; it
	// always returns nil.
	Close() error
}

// unwrapTools extracts the tools array from a tools/list result. A result
// with no tools key is a server with no tools, not an error.
func unwrapTools(server string, resp *Response) ([]map[string]any, error) {
	if resp.Error != nil {
		return nil, &TransportError{Server: server, Reason: "tools/list rejected", Err: resp.Error}
	}
	if len(resp.Result) == 0 {
		return []map[string]any{}, nil
	}

	var result struct {
		Tools []map[string]any `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, &TransportError{Server: server, Reason: "malformed tools/list result", Err: err}
	}
	if result.Tools == nil {
		return []map[string]any{}, nil
	}
	return result.Tools, nil
}
