package mcp

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// TransportKind selects how the gateway reaches a server.
type TransportKind string

const (
	// TransportStdio runs the server as a subprocess and exchanges
	// newline-delimited JSON over its stdin/stdout.
	TransportStdio TransportKind = "stdio"

	// TransportHTTP reaches the server over HTTP, one POST per request.
	TransportHTTP TransportKind = "http"
)

// ParseTransport normalizes a configured transport string. "sse" is an
// accepted legacy alias for HTTP-style servers. An empty value defaults
// to stdio.
func ParseTransport(s string) (TransportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stdio":
		return TransportStdio, nil
	case "http", "sse":
		return TransportHTTP, nil
	default:
		return "", &ValidationError{Reason: fmt.Sprintf("unknown transport %q (valid: stdio, http)", s)}
	}
}

// ServerConfig declares how to reach one MCP server. For stdio servers
// Command is an executable; for HTTP servers it is the endpoint URL.
// Configs are immutable once loaded.
type ServerConfig struct {
	Command     string            `json:"command"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Transport   TransportKind     `json:"transport,omitempty"`
	Enabled     bool              `json:"enabled"`
	Description string            `json:"description,omitempty"`
}

// ServerSet maps server name to its configuration. Built once at startup
// and read-only after.
type ServerSet map[string]ServerConfig

// serverNameRE restricts server names to characters that are safe in
// qualified tool names and log output.
var serverNameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateServerName reports whether name is usable as a server key.
func ValidateServerName(name string) error {
	if !serverNameRE.MatchString(name) {
		return &ValidationError{Reason: fmt.Sprintf("invalid server name %q (allowed: letters, digits, hyphen, underscore)", name)}
	}
	return nil
}

// Validate checks a single server configuration.
func (c ServerConfig) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return &ValidationError{Reason: "command must not be empty"}
	}
	if _, err := ParseTransport(string(c.Transport)); err != nil {
		return err
	}
	return nil
}

// placeholderRE matches ${VAR_NAME} references in configured strings.
var placeholderRE = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandPlaceholders substitutes ${VAR_NAME} references against the process
// environment. An unresolved reference is a hard configuration error, not a
// silent empty string: a missing API key should fail at load time, not at
// the first tool call.
func expandPlaceholders(s string) (string, error) {
	var missing []string
	out := placeholderRE.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderRE.FindStringSubmatch(match)[1]
		val, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		return val
	})
	if len(missing) > 0 {
		return "", &ValidationError{Reason: fmt.Sprintf("unresolved environment reference ${%s}", missing[0])}
	}
	return out, nil
}

// expand resolves all ${VAR} references in the config's string fields.
func (c ServerConfig) expand() (ServerConfig, error) {
	var err error
	if c.Command, err = expandPlaceholders(c.Command); err != nil {
		return c, err
	}
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		if args[i], err = expandPlaceholders(a); err != nil {
			return c, err
		}
	}
	c.Args = args
	if len(c.Env) > 0 {
		env := make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			if env[k], err = expandPlaceholders(v); err != nil {
				return c, err
			}
		}
		c.Env = env
	}
	return c, nil
}
