package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bradcstevens/ms-teams-ai-agent/internal/httpkit"
)

// healthProbeTimeout caps the Healthy GET so a hung server reads as down
// instead of stalling the health sweep.
const healthProbeTimeout = 5 * time.Second

// maxResponseSize limits how much of an HTTP response body we will read.
const maxResponseSize = 10 << 20 // 10 MiB

// HTTPClient talks to an MCP server over HTTP. Each envelope is one POST
// with a JSON body against the configured endpoint URL. The server's env
// map rides along as request headers, which is how Authorization-style
// entries reach the server.
type HTTPClient struct {
	name    string
	cfg     ServerConfig
	logger  *slog.Logger
	httpc   *http.Client
	headers map[string]string
	nextID  atomic.Int64

	mu        sync.Mutex
	connected bool
}

// NewHTTPClient creates an HTTP client for the named server. No network
// traffic happens until Connect.
func NewHTTPClient(name string, cfg ServerConfig, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		name:   name,
		cfg:    cfg,
		logger: logger.With("mcp_server", name),
		httpc: httpkit.NewClient(
			httpkit.WithTimeout(0), // deadlines come from the caller's context
			httpkit.WithLogger(logger),
		),
		headers: cfg.Env,
	}
}

// Connect probes the endpoint with a GET and marks the client connected
// on any 2xx answer.
func (c *HTTPClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Command, nil)
	if err != nil {
		return &ConnectionError{Server: c.name, Reason: "build probe request", Err: err}
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &ConnectionError{Server: c.name, Reason: "probe endpoint", Err: err}
	}
	httpkit.DrainAndClose(resp.Body, 1<<20)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ConnectionError{
			Server: c.name,
			Reason: fmt.Sprintf("probe returned HTTP %d", resp.StatusCode),
		}
	}

	c.connected = true
	c.logger.Info("MCP endpoint connected", "url", c.cfg.Command)
	return nil
}

// Send POSTs one envelope and decodes the one response.
func (c *HTTPClient) Send(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, &ConnectionError{Server: c.name, Reason: "not connected"}
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Command, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	c.setHeaders(httpReq)

	httpResp, err := c.httpc.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Server: c.name, Err: err}
		}
		return nil, &TransportError{Server: c.name, Reason: "post request", Err: err}
	}
	defer httpkit.DrainAndClose(httpResp.Body, 1<<20)

	if httpResp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Server: c.name,
			Reason: fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode, httpkit.ReadErrorBody(httpResp.Body, 2048)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Server: c.name, Reason: "read response body", Err: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &TransportError{Server: c.name, Reason: "empty response from server"}
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{Server: c.name, Reason: "malformed response from server", Err: err}
	}
	return &resp, nil
}

// Healthy GETs the endpoint under a short deadline. Any failure, including
// a non-2xx status, reads as unhealthy.
func (c *HTTPClient) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Command, nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	httpkit.DrainAndClose(resp.Body, 1<<20)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

// ListTools issues tools/list and unwraps the catalog.
func (c *HTTPClient) ListTools(ctx context.Context) ([]map[string]any, error) {
	resp, err := c.Send(ctx, NewRequest(c.nextID.Add(1), methodListTools, nil))
	if err != nil {
		return nil, err
	}
	return unwrapTools(c.name, resp)
}

// Close releases pooled connections. Idempotent, never fails.
func (c *HTTPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	c.httpc.CloseIdleConnections()
	return nil
}

// setHeaders applies the configured header map to an outgoing request.
func (c *HTTPClient) setHeaders(req *http.Request) {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}
