package mcp

import (
	"fmt"
	"time"
)

// The error types below form the failure taxonomy for everything in this
// package. They are mutually exclusive signals and are never converted into
// one another: a timeout stays a *TimeoutError all the way up through
// discovery and the bridge. Callers distinguish them with errors.As.

// ConnectionError indicates a channel to a server could not be established
// or is not available: missing executable, refused connection, unknown or
// disabled server, open circuit breaker.
type ConnectionError struct {
	Server string
	Reason string
	Err    error

	// RetryIn is non-zero when the error comes from an open circuit
	// breaker and reports how long until a trial call is allowed.
	RetryIn time.Duration
}

func (e *ConnectionError) Error() string {
	msg := fmt.Sprintf("mcp server %q: %s", e.Server, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError indicates a server produced no response within the deadline.
type TimeoutError struct {
	Server string
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("mcp server %q: request timed out: %v", e.Server, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// TransportError indicates a protocol-level failure on an established
// channel: an empty or malformed response, or an I/O error mid-exchange.
type TransportError struct {
	Server string
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("mcp server %q: %s", e.Server, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError indicates malformed configuration or a malformed tool
// catalog entry from a server.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NotFoundError indicates a tool name that is not present in the registry.
// The bridge returns it before any network or process I/O is attempted.
type NotFoundError struct {
	Tool string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool %q is not registered", e.Tool)
}

// ToolCallError carries a remote execution failure reported by the server
// in the response's error field. The tool was reached; it just failed.
type ToolCallError struct {
	Tool string
	RPC  *RPCError
}

func (e *ToolCallError) Error() string {
	return fmt.Sprintf("tool %q failed: %s", e.Tool, e.RPC.Message)
}

func (e *ToolCallError) Unwrap() error { return e.RPC }
