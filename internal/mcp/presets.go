package mcp

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Presets for widely deployed MCP servers, so operators can enable the
// common ones without hand-writing JSON.

// npm packages behind the presets.
const (
	filesystemServerPackage  = "@modelcontextprotocol/server-filesystem"
	braveSearchServerPackage = "@modelcontextprotocol/server-brave-search"
)

// systemDirs are directories the filesystem preset refuses to expose.
var systemDirs = []string{"/", "/etc", "/usr", "/bin", "/sbin", "/sys", "/proc", "/dev"}

// ValidateServedDirectory checks that a directory is safe to hand to the
// filesystem server: absolute and not a system directory.
func ValidateServedDirectory(dir string) error {
	if !filepath.IsAbs(dir) {
		return &ValidationError{Reason: fmt.Sprintf("served directory must be absolute, got %q", dir)}
	}
	clean := filepath.Clean(dir)
	for _, sys := range systemDirs {
		if clean == sys || strings.HasPrefix(clean, sys+"/") {
			return &ValidationError{Reason: fmt.Sprintf("refusing to serve system directory %q", dir)}
		}
	}
	return nil
}

// FilesystemServer builds the configuration for the reference filesystem
// MCP server, granting access to exactly one directory.
func FilesystemServer(dir string) (ServerConfig, error) {
	if err := ValidateServedDirectory(dir); err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{
		Command:     "npx",
		Args:        []string{"-y", filesystemServerPackage, filepath.Clean(dir)},
		Transport:   TransportStdio,
		Enabled:     true,
		Description: "Filesystem access to " + filepath.Clean(dir),
	}, nil
}

// BraveSearchServer builds the configuration for the Brave Search MCP
// server. apiKeyVar names the environment variable holding the API key;
// the reference stays a ${VAR} placeholder so the key is resolved at
// load time, never stored in config.
func BraveSearchServer(apiKeyVar string) ServerConfig {
	if apiKeyVar == "" {
		apiKeyVar = "BRAVE_API_KEY"
	}
	return ServerConfig{
		Command:     "npx",
		Args:        []string{"-y", braveSearchServerPackage},
		Env:         map[string]string{"BRAVE_API_KEY": "${" + apiKeyVar + "}"},
		Transport:   TransportStdio,
		Enabled:     true,
		Description: "Brave Search web search integration",
	}
}

// HTTPSearchServer builds the configuration for an HTTP-based search
// API speaking MCP, authenticated with a bearer token from the named
// environment variable.
func HTTPSearchServer(endpoint, tokenVar string) ServerConfig {
	if tokenVar == "" {
		tokenVar = "SEARCH_API_TOKEN"
	}
	return ServerConfig{
		Command:     endpoint,
		Env:         map[string]string{"Authorization": "Bearer ${" + tokenVar + "}"},
		Transport:   TransportHTTP,
		Enabled:     true,
		Description: "Web search API at " + endpoint,
	}
}
