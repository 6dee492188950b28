package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mcpHandler answers GET probes with 200 and POSTs with a canned
// JSON-RPC responder.
func mcpHandler(respond func(req *Request) *Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := respond(&req)
		resp.ID = req.ID
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func httpTestClient(t *testing.T, handler http.Handler, env map[string]string) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewHTTPClient("api", ServerConfig{
		Command:   srv.URL,
		Env:       env,
		Transport: TransportHTTP,
		Enabled:   true,
	}, discardLogger())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestHTTPConnectProbe(t *testing.T) {
	c := httpTestClient(t, mcpHandler(func(*Request) *Response {
		return &Response{JSONRPC: jsonrpcVersion}
	}), nil)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
}

func TestHTTPConnectProbeFailure(t *testing.T) {
	c := httpTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}), nil)

	err := c.Connect(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("Connect() error = %v, want *ConnectionError on 503", err)
	}
}

func TestHTTPConnectRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient("api", ServerConfig{Command: url, Transport: TransportHTTP}, discardLogger())
	err := c.Connect(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("Connect() error = %v, want *ConnectionError on refused connection", err)
	}
}

func TestHTTPSendNotConnected(t *testing.T) {
	c := httpTestClient(t, mcpHandler(func(*Request) *Response {
		return &Response{JSONRPC: jsonrpcVersion}
	}), nil)

	_, err := c.Send(context.Background(), NewRequest(1, "ping", nil))
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("Send() before Connect error = %v, want *ConnectionError", err)
	}
}

func TestHTTPSendRoundTrip(t *testing.T) {
	var gotAuth, gotContentType string
	var gotMethod string

	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&Response{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Result:  json.RawMessage(`{"tools":[{"name":"search"}]}`),
		})
	}

	c := httpTestClient(t, http.HandlerFunc(handler), map[string]string{
		"Authorization": "Bearer token123",
	})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	resp, err := c.Send(context.Background(), NewRequest(5, methodListTools, nil))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.ID != 5 {
		t.Errorf("resp.ID = %d, want 5", resp.ID)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotAuth != "Bearer token123" {
		t.Errorf("Authorization = %q; env map must ride as headers", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
}

func TestHTTPSendServerError(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "overloaded", http.StatusBadGateway)
	}
	c := httpTestClient(t, http.HandlerFunc(handler), nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := c.Send(context.Background(), NewRequest(1, "ping", nil))
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Errorf("Send() error = %v, want *TransportError on HTTP 502", err)
	}
}

func TestHTTPSendMalformedBody(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write([]byte("this is not json"))
	}
	c := httpTestClient(t, http.HandlerFunc(handler), nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := c.Send(context.Background(), NewRequest(1, "ping", nil))
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Errorf("Send() error = %v, want *TransportError on malformed body", err)
	}
}

func TestHTTPSendTimeout(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		time.Sleep(2 * time.Second)
	}
	c := httpTestClient(t, http.HandlerFunc(handler), nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Send(ctx, NewRequest(1, "ping", nil))
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Errorf("Send() error = %v, want *TimeoutError", err)
	}
}

func TestHTTPHealthy(t *testing.T) {
	srv := httptest.NewServer(mcpHandler(func(*Request) *Response {
		return &Response{JSONRPC: jsonrpcVersion}
	}))
	c := NewHTTPClient("api", ServerConfig{Command: srv.URL, Transport: TransportHTTP}, discardLogger())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !c.Healthy(context.Background()) {
		t.Error("Healthy() = false for a live endpoint")
	}

	srv.Close()
	if c.Healthy(context.Background()) {
		t.Error("Healthy() = true for a dead endpoint")
	}
}

func TestHTTPListTools(t *testing.T) {
	c := httpTestClient(t, mcpHandler(func(req *Request) *Response {
		if req.Method != methodListTools {
			return &Response{JSONRPC: jsonrpcVersion, Error: &RPCError{Code: -32601, Message: "method not found"}}
		}
		return &Response{
			JSONRPC: jsonrpcVersion,
			Result:  json.RawMessage(`{"tools":[{"name":"search","description":"Web search"}]}`),
		}
	}), nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	entries, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(entries) != 1 || entries[0]["name"] != "search" {
		t.Errorf("entries = %v", entries)
	}
}
