package mcp

import (
	"errors"
	"testing"
)

func TestParseTransport(t *testing.T) {
	tests := []struct {
		in      string
		want    TransportKind
		wantErr bool
	}{
		{"stdio", TransportStdio, false},
		{"http", TransportHTTP, false},
		{"sse", TransportHTTP, false},
		{"HTTP", TransportHTTP, false},
		{" stdio ", TransportStdio, false},
		{"", TransportStdio, false},
		{"grpc", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTransport(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTransport(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTransport(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateServerName(t *testing.T) {
	valid := []string{"fs", "web-search", "server_1", "A2b"}
	for _, name := range valid {
		if err := ValidateServerName(name); err != nil {
			t.Errorf("ValidateServerName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "a.b", "a b", "x/y", "tools;rm"}
	for _, name := range invalid {
		err := ValidateServerName(name)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("ValidateServerName(%q) = %v, want *ValidationError", name, err)
		}
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr bool
	}{
		{"valid stdio", ServerConfig{Command: "npx", Transport: TransportStdio}, false},
		{"valid http", ServerConfig{Command: "https://api.example.com", Transport: TransportHTTP}, false},
		{"empty command", ServerConfig{Command: "", Transport: TransportStdio}, true},
		{"whitespace command", ServerConfig{Command: "   ", Transport: TransportStdio}, true},
		{"bad transport", ServerConfig{Command: "npx", Transport: "carrier-pigeon"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPlaceholders(t *testing.T) {
	t.Setenv("MCP_TEST_TOKEN", "s3cret")

	got, err := expandPlaceholders("Bearer ${MCP_TEST_TOKEN}")
	if err != nil {
		t.Fatalf("expandPlaceholders() error = %v", err)
	}
	if got != "Bearer s3cret" {
		t.Errorf("expandPlaceholders() = %q, want %q", got, "Bearer s3cret")
	}

	// No placeholder: string passes through untouched, $PLAIN included.
	got, err = expandPlaceholders("plain $NOT_A_REF text")
	if err != nil {
		t.Fatalf("expandPlaceholders() error = %v", err)
	}
	if got != "plain $NOT_A_REF text" {
		t.Errorf("expandPlaceholders() = %q", got)
	}

	// Unresolved reference is a hard error, not an empty substitution.
	_, err = expandPlaceholders("${MCP_TEST_DEFINITELY_UNSET_VAR}")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("expandPlaceholders(unset) error = %v, want *ValidationError", err)
	}
}

func TestNewClientDispatch(t *testing.T) {
	stdio, err := NewClient("fs", ServerConfig{Command: "npx", Transport: TransportStdio}, nil)
	if err != nil {
		t.Fatalf("NewClient(stdio) error = %v", err)
	}
	if _, ok := stdio.(*StdioClient); !ok {
		t.Errorf("NewClient(stdio) = %T, want *StdioClient", stdio)
	}

	httpc, err := NewClient("api", ServerConfig{Command: "https://x", Transport: TransportHTTP}, nil)
	if err != nil {
		t.Fatalf("NewClient(http) error = %v", err)
	}
	if _, ok := httpc.(*HTTPClient); !ok {
		t.Errorf("NewClient(http) = %T, want *HTTPClient", httpc)
	}

	_, err = NewClient("bad", ServerConfig{Command: "x", Transport: "smoke-signal"}, nil)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("NewClient(unknown transport) error = %v, want *ValidationError", err)
	}
}
