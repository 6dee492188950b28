package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bradcstevens/ms-teams-ai-agent/internal/tools"
)

// defaultRequestTimeout bounds a tool call when the caller's context has
// no deadline of its own.
const defaultRequestTimeout = 30 * time.Second

// Bridge is the single call path between the chat agent and the MCP
// subsystem. It routes tool executions Registry -> Manager -> client,
// gated by the owning server's circuit breaker, and publishes the
// catalog in the agent's function-calling schema.
type Bridge struct {
	registry *Registry
	manager  *Manager
	logger   *slog.Logger
	nextID   atomic.Int64
}

// NewBridge wires a bridge over the given registry and manager.
func NewBridge(registry *Registry, manager *Manager, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		registry: registry,
		manager:  manager,
		logger:   logger,
	}
}

// ExecuteTool runs the named tool with the given arguments and returns
// the server's raw result, which may be null. The registry lookup happens
// before any I/O: an unknown qualified name fails with *NotFoundError
// without touching the network or a subprocess. A remote failure reported
// in the response's error field becomes a *ToolCallError carrying the
// server's message.
func (b *Bridge) ExecuteTool(ctx context.Context, qualifiedName string, args map[string]any) (json.RawMessage, error) {
	desc, ok := b.registry.Get(qualifiedName)
	if !ok {
		return nil, &NotFoundError{Tool: qualifiedName}
	}

	client, err := b.manager.Client(desc.OwningServer)
	if err != nil {
		return nil, err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultRequestTimeout)
		defer cancel()
	}

	req := NewRequest(b.nextID.Add(1), methodCallTool, callParams{
		Name:      desc.LocalName,
		Arguments: args,
	})

	b.logger.Debug("executing MCP tool",
		"tool", qualifiedName,
		"mcp_server", desc.OwningServer,
		"request_id", req.ID,
	)

	var resp *Response
	breaker := b.manager.Breaker(desc.OwningServer)
	err = breaker.Do(ctx, func(ctx context.Context) error {
		var sendErr error
		resp, sendErr = client.Send(ctx, req)
		return sendErr
	})
	if err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, &ToolCallError{Tool: qualifiedName, RPC: resp.Error}
	}
	return resp.Result, nil
}

// AvailableTools maps every registered descriptor into the external
// tool-definition shape the agent runtime consumes. The advertised name
// is the qualified name; "required" appears only when the source schema
// declares it.
func (b *Bridge) AvailableTools() []map[string]any {
	descs := b.registry.List("")

	defs := make([]map[string]any, 0, len(descs))
	for _, desc := range descs {
		params := map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
		if t, ok := desc.InputSchema["type"].(string); ok {
			params["type"] = t
		}
		if props, ok := desc.InputSchema["properties"].(map[string]any); ok {
			params["properties"] = props
		}
		if required, ok := desc.InputSchema["required"]; ok {
			params["required"] = required
		}

		defs = append(defs, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        desc.QualifiedName,
				"description": desc.Description,
				"parameters":  params,
			},
		})
	}
	return defs
}

// BridgeInto registers every cataloged tool into the agent's tool
// registry, with handlers that execute through the bridge. Returns the
// number of tools registered.
func (b *Bridge) BridgeInto(reg *tools.Registry) int {
	descs := b.registry.List("")
	for _, desc := range descs {
		desc := desc
		reg.Register(&tools.Tool{
			Name:        desc.QualifiedName,
			Description: desc.Description,
			Parameters:  desc.InputSchema,
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				result, err := b.ExecuteTool(ctx, desc.QualifiedName, args)
				if err != nil {
					return "", err
				}
				if result == nil {
					return "", nil
				}
				return string(result), nil
			},
		})
	}
	return len(descs)
}
