package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// stopGrace is how long Close waits for a subprocess to exit after its
// stdin is closed before force-killing it.
const stopGrace = 5 * time.Second

// StdioClient talks to an MCP server running as a subprocess. JSON-RPC
// envelopes are newline-delimited on the subprocess's stdin/stdout; stderr
// is drained to the log.
type StdioClient struct {
	name   string
	cfg    ServerConfig
	logger *slog.Logger
	nextID atomic.Int64

	mu        sync.Mutex
	connected bool
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	lines     chan readResult
	done      chan struct{}
}

// NewStdioClient creates a stdio client for the named server. The
// subprocess is not spawned until Connect.
func NewStdioClient(name string, cfg ServerConfig, logger *slog.Logger) *StdioClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioClient{
		name:   name,
		cfg:    cfg,
		logger: logger.With("mcp_server", name),
	}
}

// Connect spawns the subprocess with the merged environment and wires up
// its pipes. Idempotent while the channel is up.
func (c *StdioClient) Connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	c.logger.Info("starting MCP subprocess",
		"command", c.cfg.Command,
		"args", c.cfg.Args,
	)

	cmd := exec.Command(c.cfg.Command, c.cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range c.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &ConnectionError{Server: c.name, Reason: "create stdin pipe", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return &ConnectionError{Server: c.name, Reason: "create stdout pipe", Err: err}
	}

	// Stderr is diagnostics only, never part of the protocol.
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return &ConnectionError{Server: c.name, Reason: "create stderr pipe", Err: err}
	}

	if err := cmd.Start(); err != nil {
		stderrPipe.Close()
		stdout.Close()
		stdin.Close()
		return &ConnectionError{Server: c.name, Reason: fmt.Sprintf("cannot start %s", c.cfg.Command), Err: err}
	}

	c.cmd = cmd
	c.stdin = stdin
	c.lines = make(chan readResult, 8)
	c.done = make(chan struct{})
	c.connected = true

	go c.readLines(stdout)
	go c.drainStderr(stderrPipe)

	c.logger.Info("MCP subprocess started", "pid", cmd.Process.Pid)
	return nil
}

// readResult is the outcome of a single line read from stdout.
type readResult struct {
	line []byte
	err  error
}

// readLines feeds stdout lines to the channel Send drains. Running the
// read in its own goroutine lets a Send time out and a later Send pick up
// the late line instead of racing on the reader.
func (c *StdioClient) readLines(stdout io.Reader) {
	reader := bufio.NewReaderSize(stdout, 1<<20) // 1 MiB buffer for large responses
	for {
		line, err := reader.ReadBytes('\n')
		select {
		case c.lines <- readResult{line: line, err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// drainStderr logs subprocess stderr lines at debug level.
func (c *StdioClient) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		c.logger.Debug("MCP subprocess stderr", "line", scanner.Text())
	}
}

// Send writes one request line to stdin and reads lines from stdout until
// the response with the matching ID arrives. Servers may interleave
// notifications; those are skipped. An empty or non-JSON line is a
// protocol violation and fails the call.
func (c *StdioClient) Send(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, &ConnectionError{Server: c.name, Reason: "not connected"}
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		return nil, &TransportError{Server: c.name, Reason: "write to subprocess stdin", Err: err}
	}

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, &TimeoutError{Server: c.name, Err: ctx.Err()}
			}
			return nil, ctx.Err()
		case res := <-c.lines:
			if res.err != nil {
				return nil, &TransportError{Server: c.name, Reason: "read from subprocess stdout", Err: res.err}
			}

			line := bytes.TrimSpace(res.line)
			if len(line) == 0 {
				return nil, &TransportError{Server: c.name, Reason: "empty response from server"}
			}

			var resp Response
			if err := json.Unmarshal(line, &resp); err != nil {
				return nil, &TransportError{Server: c.name, Reason: "malformed response from server", Err: err}
			}

			if resp.ID == req.ID {
				return &resp, nil
			}
			c.logger.Debug("skipping unmatched MCP message", "id", resp.ID)
		}
	}
}

// Healthy reports whether the subprocess is still running.
func (c *StdioClient) Healthy(_ context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.cmd == nil || c.cmd.Process == nil {
		return false
	}
	return c.cmd.Process.Signal(syscall.Signal(0)) == nil
}

// ListTools issues tools/list and unwraps the catalog.
func (c *StdioClient) ListTools(ctx context.Context) ([]map[string]any, error) {
	resp, err := c.Send(ctx, NewRequest(c.nextID.Add(1), methodListTools, nil))
	if err != nil {
		return nil, err
	}
	return unwrapTools(c.name, resp)
}

// Close stops the subprocess: stdin is closed to request a graceful exit,
// and after the grace period the process is killed. Idempotent; failures
// during teardown are logged, never returned.
func (c *StdioClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	close(c.done)

	c.logger.Info("stopping MCP subprocess", "pid", c.cmd.Process.Pid)

	c.stdin.Close()

	waited := make(chan error, 1)
	go func() { waited <- c.cmd.Wait() }()

	select {
	case err := <-waited:
		if err != nil {
			c.logger.Debug("MCP subprocess exit", "error", err)
		}
	case <-time.After(stopGrace):
		c.logger.Warn("MCP subprocess did not exit gracefully, killing",
			"pid", c.cmd.Process.Pid,
		)
		_ = c.cmd.Process.Kill()
		<-waited
	}

	c.cmd = nil
	c.stdin = nil
	return nil
}
