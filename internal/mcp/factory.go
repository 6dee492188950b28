package mcp

import (
	"fmt"
	"log/slog"
)

// NewClient constructs the transport client matching the server's
// configured transport kind. Configuration validation normally rejects
// unknown kinds before they get here.
func NewClient(name string, cfg ServerConfig, logger *slog.Logger) (Client, error) {
	switch cfg.Transport {
	case TransportStdio, "":
		return NewStdioClient(name, cfg, logger), nil
	case TransportHTTP:
		return NewHTTPClient(name, cfg, logger), nil
	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown transport %q for server %q", cfg.Transport, name)}
	}
}
