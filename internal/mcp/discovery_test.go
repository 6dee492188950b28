package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func toolsResponse(t *testing.T, result any) *Response {
	t.Helper()
	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatal(err)
	}
	return &Response{JSONRPC: jsonrpcVersion, Result: raw}
}

func TestDiscoverTools(t *testing.T) {
	client := newFakeClient("fs")
	client.respond(methodListTools, toolsResponse(t, map[string]any{
		"tools": []map[string]any{
			{
				"name":        "read_file",
				"description": "Read file contents",
				"inputSchema": map[string]any{
					"type":       "object",
					"properties": map[string]any{"path": map[string]any{"type": "string"}},
					"required":   []string{"path"},
				},
			},
			{"name": "list_directory"},
		},
	}))

	descs, err := DiscoverTools(context.Background(), client)
	if err != nil {
		t.Fatalf("DiscoverTools() error = %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("len(descs) = %d, want 2", len(descs))
	}

	if descs[0].LocalName != "read_file" || descs[0].Description != "Read file contents" {
		t.Errorf("descs[0] = %+v", descs[0])
	}
	if _, ok := descs[0].InputSchema["required"]; !ok {
		t.Error("inputSchema not passed through verbatim")
	}

	// A tool with no schema gets the empty object schema.
	schema := descs[1].InputSchema
	if schema["type"] != "object" {
		t.Errorf("default schema type = %v, want object", schema["type"])
	}
	if props, ok := schema["properties"].(map[string]any); !ok || len(props) != 0 {
		t.Errorf("default schema properties = %v, want empty object", schema["properties"])
	}
}

func TestDiscoverToolsEmptyResult(t *testing.T) {
	// {"result": {}} — a server with no tools key is a server with no
	// tools, not a protocol violation.
	client := newFakeClient("fs")
	client.respond(methodListTools, toolsResponse(t, map[string]any{}))

	descs, err := DiscoverTools(context.Background(), client)
	if err != nil {
		t.Fatalf("DiscoverTools() error = %v", err)
	}
	if len(descs) != 0 {
		t.Errorf("len(descs) = %d, want 0", len(descs))
	}
}

func TestDiscoverToolsMissingName(t *testing.T) {
	client := newFakeClient("fs")
	client.respond(methodListTools, toolsResponse(t, map[string]any{
		"tools": []map[string]any{
			{"description": "nameless"},
		},
	}))

	_, err := DiscoverTools(context.Background(), client)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("DiscoverTools() error = %v, want *ValidationError", err)
	}
}

func TestDiscoverToolsPropagatesTransportErrors(t *testing.T) {
	client := newFakeClient("fs")
	client.sendErr = &TimeoutError{Server: "fs", Err: context.DeadlineExceeded}

	_, err := DiscoverTools(context.Background(), client)
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Errorf("DiscoverTools() error = %v, want *TimeoutError unchanged", err)
	}
}

func TestDiscoverAllOmitsFailingServers(t *testing.T) {
	good := newFakeClient("good")
	good.respond(methodListTools, toolsResponse(t, map[string]any{
		"tools": []map[string]any{{"name": "ping"}},
	}))
	bad := newFakeClient("bad")
	bad.sendErr = &TransportError{Server: "bad", Reason: "broken pipe"}

	m := managerWithClients(t, map[string]*fakeClient{
		"good":         good,
		"bad":          bad,
		"disconnected": nil, // configured but never connected
	})

	found := DiscoverAll(context.Background(), m, nil)
	if len(found) != 1 {
		t.Fatalf("len(found) = %d, want 1 (bad and disconnected omitted)", len(found))
	}
	if len(found["good"]) != 1 || found["good"][0].LocalName != "ping" {
		t.Errorf("found[good] = %+v", found["good"])
	}
}

func TestDiscoverAndRegister(t *testing.T) {
	fs := newFakeClient("fs")
	fs.respond(methodListTools, toolsResponse(t, map[string]any{
		"tools": []map[string]any{{"name": "read_file"}, {"name": "write_file"}},
	}))

	m := managerWithClients(t, map[string]*fakeClient{"fs": fs})
	reg := NewRegistry()

	n := DiscoverAndRegister(context.Background(), m, reg, nil)
	if n != 2 {
		t.Errorf("DiscoverAndRegister() = %d, want 2", n)
	}
	if _, ok := reg.Get("fs.read_file"); !ok {
		t.Error("fs.read_file not registered")
	}
}
