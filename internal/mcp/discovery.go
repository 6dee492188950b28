package mcp

import (
	"context"
	"fmt"
	"log/slog"
)

// defaultInputSchema is the schema assumed for tools that declare none:
// an object with no properties.
func defaultInputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// DiscoverTools queries one connected client for its tool catalog and
// normalizes the entries into descriptors. A catalog with no tools is an
// empty slice, not an error. A tool entry without a name is a malformed
// server response and fails with a *ValidationError. Transport failures
// from the client propagate unchanged.
func DiscoverTools(ctx context.Context, client Client) ([]*ToolDescriptor, error) {
	entries, err := client.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	descs := make([]*ToolDescriptor, 0, len(entries))
	for i, entry := range entries {
		name, _ := entry["name"].(string)
		if name == "" {
			return nil, &ValidationError{Reason: fmt.Sprintf("tool entry %d is missing a name", i)}
		}

		desc := &ToolDescriptor{LocalName: name}
		if d, ok := entry["description"].(string); ok {
			desc.Description = d
		}
		if schema, ok := entry["inputSchema"].(map[string]any); ok {
			desc.InputSchema = schema
		} else {
			desc.InputSchema = defaultInputSchema()
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

// DiscoverAll discovers tools from every server the manager knows,
// keyed by server name. Servers with no pooled client and servers whose
// discovery fails are omitted; partial discovery is a normal outcome,
// and one broken server never fails the sweep.
func DiscoverAll(ctx context.Context, m *Manager, logger *slog.Logger) map[string][]*ToolDescriptor {
	if logger == nil {
		logger = slog.Default()
	}

	found := map[string][]*ToolDescriptor{}
	for _, name := range m.ListServers() {
		client, err := m.Client(name)
		if err != nil {
			logger.Debug("skipping discovery, no client", "mcp_server", name)
			continue
		}

		descs, err := DiscoverTools(ctx, client)
		if err != nil {
			logger.Warn("tool discovery failed", "mcp_server", name, "error", err)
			continue
		}
		found[name] = descs
		logger.Info("discovered tools", "mcp_server", name, "count", len(descs))
	}
	return found
}

// DiscoverAndRegister runs DiscoverAll and registers everything found,
// returning the number of tools registered.
func DiscoverAndRegister(ctx context.Context, m *Manager, reg *Registry, logger *slog.Logger) int {
	total := 0
	for server, descs := range DiscoverAll(ctx, m, logger) {
		for _, desc := range descs {
			reg.Register(server, desc)
			total++
		}
	}
	return total
}
