package mcp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// envPrefix is the prefix for environment-defined servers:
// MCP_SERVER_1_NAME, MCP_SERVER_1_COMMAND, and so on.
const envPrefix = "MCP_SERVER_"

// envScanLimit caps the index scan when no MCP_SERVER_COUNT hint is set.
const envScanLimit = 100

// Load builds the ServerSet from the JSON document at path (if path is
// non-empty) merged with environment-defined servers. An environment
// definition replaces a same-named file definition wholesale; the two are
// never field-merged.
func Load(path string, logger *slog.Logger) (ServerSet, error) {
	if logger == nil {
		logger = slog.Default()
	}

	servers := ServerSet{}
	if path != "" {
		fromFile, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		servers = fromFile
	}

	fromEnv, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	for name, cfg := range fromEnv {
		if _, shadowed := servers[name]; shadowed {
			logger.Info("environment overrides file-defined MCP server", "mcp_server", name)
		}
		servers[name] = cfg
	}

	return servers, nil
}

// serversFile is the on-disk JSON document shape. Enabled is a pointer so
// that an omitted field defaults to true rather than false.
type serversFile struct {
	Servers map[string]struct {
		Command     string            `json:"command"`
		Args        []string          `json:"args"`
		Env         map[string]string `json:"env"`
		Transport   string            `json:"transport"`
		Enabled     *bool             `json:"enabled"`
		Description string            `json:"description"`
	} `json:"mcpServers"`
}

// LoadFile parses a JSON server document of the form
//
//	{"mcpServers": {"name": {"command": ..., "args": [...], ...}}}
//
// ${VAR} references in string values are resolved against the process
// environment; an unresolved reference is an error.
func LoadFile(path string) (ServerSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read server config %s: %w", path, err)
	}

	var doc serversFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse server config %s: %w", path, err)
	}

	servers := make(ServerSet, len(doc.Servers))
	for name, raw := range doc.Servers {
		if err := ValidateServerName(name); err != nil {
			return nil, fmt.Errorf("server config %s: %w", path, err)
		}

		transport, err := ParseTransport(raw.Transport)
		if err != nil {
			return nil, fmt.Errorf("server %q: %w", name, err)
		}

		cfg := ServerConfig{
			Command:     raw.Command,
			Args:        raw.Args,
			Env:         raw.Env,
			Transport:   transport,
			Enabled:     raw.Enabled == nil || *raw.Enabled,
			Description: raw.Description,
		}
		if cfg, err = cfg.expand(); err != nil {
			return nil, fmt.Errorf("server %q: %w", name, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("server %q: %w", name, err)
		}
		servers[name] = cfg
	}

	return servers, nil
}

// LoadEnv builds servers from MCP_SERVER_<N>_* environment variables,
// scanning indices from 1. When MCP_SERVER_COUNT is set it is a strict
// upper bound and gaps in the index sequence are skipped; without it the
// scan stops at the first index with no _NAME, capped at 100.
func LoadEnv() (ServerSet, error) {
	servers := ServerSet{}

	limit := envScanLimit
	strict := false
	if raw := os.Getenv(envPrefix + "COUNT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, &ValidationError{Reason: fmt.Sprintf("invalid %sCOUNT value %q", envPrefix, raw)}
		}
		if n < limit {
			limit = n
		}
		strict = true
	}

	for i := 1; i <= limit; i++ {
		name, ok := os.LookupEnv(indexedVar(i, "NAME"))
		if !ok {
			if strict {
				continue
			}
			break
		}

		cfg, err := envServer(i)
		if err != nil {
			return nil, fmt.Errorf("server %q (index %d): %w", name, i, err)
		}
		if err := ValidateServerName(name); err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		servers[name] = cfg
	}

	return servers, nil
}

// envServer assembles the configuration for one environment-defined index.
func envServer(i int) (ServerConfig, error) {
	transport, err := ParseTransport(os.Getenv(indexedVar(i, "TRANSPORT")))
	if err != nil {
		return ServerConfig{}, err
	}

	enabled := true
	if raw, ok := os.LookupEnv(indexedVar(i, "ENABLED")); ok {
		enabled, err = strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return ServerConfig{}, &ValidationError{Reason: fmt.Sprintf("invalid ENABLED value %q", raw)}
		}
	}

	var args []string
	if raw := os.Getenv(indexedVar(i, "ARGS")); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}

	cfg := ServerConfig{
		Command:     os.Getenv(indexedVar(i, "COMMAND")),
		Args:        args,
		Env:         envServerVars(i),
		Transport:   transport,
		Enabled:     enabled,
		Description: os.Getenv(indexedVar(i, "DESCRIPTION")),
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// envServerVars collects MCP_SERVER_<i>_ENV_<KEY> entries into the
// server's environment map.
func envServerVars(i int) map[string]string {
	prefix := indexedVar(i, "ENV_")
	var env map[string]string
	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		if env == nil {
			env = map[string]string{}
		}
		env[strings.TrimPrefix(key, prefix)] = val
	}
	return env
}

func indexedVar(i int, suffix string) string {
	return fmt.Sprintf("%s%d_%s", envPrefix, i, suffix)
}
