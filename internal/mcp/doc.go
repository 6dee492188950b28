// Package mcp implements the gateway's connection to external tool servers
// speaking the Model Context Protocol (MCP).
//
// An MCP server is an independent process or HTTP service exposing callable
// tools over JSON-RPC 2.0. This package provides the full connection and
// resilience stack:
//
//   - transport clients for stdio subprocesses and HTTP endpoints, behind
//     one [Client] interface ([NewClient] selects the variant)
//   - a per-server [CircuitBreaker] that fails fast while a server is down
//   - a [Manager] owning the pool of live clients, with retrying connect,
//     concurrent bulk connect, health checks, and graceful shutdown
//   - a [Registry] of discovered [ToolDescriptor] entries keyed by
//     collision-free qualified names ("server.tool")
//   - [DiscoverTools] / [DiscoverAll] to populate the registry
//   - a [Bridge] giving the chat agent a single call path into all of it
//
// Server configuration comes from a JSON document and/or MCP_SERVER_N_*
// environment variables; see [Load].
package mcp
