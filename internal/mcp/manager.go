package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultConnectRetries is how many connect attempts ConnectServer makes
// when the caller does not care to choose.
const DefaultConnectRetries = 3

// Manager owns the pool of live transport clients, one per server, plus
// one circuit breaker per server. It is the only component that creates,
// replaces, or destroys clients.
//
// Breakers outlive their clients: reconnecting a server does not reset
// its breaker, only an explicit Reset does.
type Manager struct {
	logger     *slog.Logger
	servers    ServerSet
	breakerCfg BreakerConfig

	// Swapped out in tests.
	newClient func(name string, cfg ServerConfig, logger *slog.Logger) (Client, error)
	jitter    func() float64
	sleep     func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	pool     map[string]*pooledClient
	breakers map[string]*CircuitBreaker
}

// pooledClient pairs a live client with the correlation ID stamped on its
// log lines and status output.
type pooledClient struct {
	id     string
	client Client
}

// NewManager creates a manager over the given server set. The set is
// read-only from here on; servers cannot be added at runtime.
func NewManager(servers ServerSet, breakerCfg BreakerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initialized MCP connection manager", "servers", len(servers))
	return &Manager{
		logger:     logger,
		servers:    servers,
		breakerCfg: breakerCfg,
		newClient:  NewClient,
		jitter:     rand.Float64,
		sleep:      sleepCtx,
		pool:       map[string]*pooledClient{},
		breakers:   map[string]*CircuitBreaker{},
	}
}

// ConnectServer connects the named server, retrying up to maxRetries
// times with exponential backoff between attempts. Unknown and disabled
// servers fail with *ConnectionError before any transport work happens;
// disabled is a hard invariant, not a retryable condition.
func (m *Manager) ConnectServer(ctx context.Context, name string, maxRetries int) error {
	cfg, ok := m.servers[name]
	if !ok {
		return &ConnectionError{Server: name, Reason: "not found in configuration"}
	}
	if !cfg.Enabled {
		return &ConnectionError{Server: name, Reason: "server is disabled"}
	}
	if maxRetries <= 0 {
		maxRetries = DefaultConnectRetries
	}

	client, err := m.newClient(name, cfg, m.logger)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		m.logger.Info("connecting to MCP server",
			"mcp_server", name,
			"attempt", attempt+1,
			"max_attempts", maxRetries,
		)

		err := client.Connect(ctx)
		if err == nil {
			m.addToPool(name, client)
			return nil
		}
		lastErr = err
		m.logger.Warn("connection attempt failed",
			"mcp_server", name,
			"attempt", attempt+1,
			"error", err,
		)

		if attempt < maxRetries-1 {
			delay := backoffDelay(attempt, backoffBase, backoffMax, m.jitter)
			m.logger.Info("retrying connection", "mcp_server", name, "delay", delay)
			if err := m.sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	return &ConnectionError{
		Server: name,
		Reason: fmt.Sprintf("failed to connect after %d attempts", maxRetries),
		Err:    lastErr,
	}
}

// addToPool stores a freshly connected client, closing any previous one
// for the same server.
func (m *Manager) addToPool(name string, client Client) {
	id := uuid.NewString()

	m.mu.Lock()
	old := m.pool[name]
	m.pool[name] = &pooledClient{id: id, client: client}
	if _, ok := m.breakers[name]; !ok {
		m.breakers[name] = NewCircuitBreaker(name, m.breakerCfg, m.logger)
	}
	m.mu.Unlock()

	if old != nil {
		m.logger.Info("replacing pooled client", "mcp_server", name, "old_conn_id", old.id)
		_ = old.client.Close()
	}
	m.logger.Info("connected to MCP server", "mcp_server", name, "conn_id", id)
}

// DisconnectServer closes and removes the named server's pooled client.
func (m *Manager) DisconnectServer(name string) error {
	m.mu.Lock()
	entry, ok := m.pool[name]
	delete(m.pool, name)
	m.mu.Unlock()

	if !ok {
		return &ConnectionError{Server: name, Reason: "not connected"}
	}

	_ = entry.client.Close()
	m.logger.Info("disconnected from MCP server", "mcp_server", name, "conn_id", entry.id)
	return nil
}

// Client returns the live client for a connected server. There is no lazy
// connect; callers must ConnectServer first.
func (m *Manager) Client(name string) (Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.pool[name]
	if !ok {
		return nil, &ConnectionError{Server: name, Reason: "not connected, call ConnectServer first"}
	}
	return entry.client, nil
}

// Breaker returns the named server's circuit breaker, creating it on
// first use so callers can gate requests even before the first connect.
func (m *Manager) Breaker(name string) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.breakers[name]
	if !ok {
		b = NewCircuitBreaker(name, m.breakerCfg, m.logger)
		m.breakers[name] = b
	}
	return b
}

// ConnectAllEnabled connects every enabled server concurrently and
// reports the per-server outcome. One server's failure never aborts the
// others.
func (m *Manager) ConnectAllEnabled(ctx context.Context) map[string]bool {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = map[string]bool{}
	)

	for name, cfg := range m.servers {
		if !cfg.Enabled {
			continue
		}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			err := m.ConnectServer(ctx, name, DefaultConnectRetries)
			if err != nil {
				m.logger.Error("failed to connect MCP server", "mcp_server", name, "error", err)
			}
			mu.Lock()
			results[name] = err == nil
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	return results
}

// HealthCheckAll probes every pooled client. Probe failures degrade to
// false; nothing propagates.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]bool {
	m.mu.Lock()
	clients := make(map[string]Client, len(m.pool))
	for name, entry := range m.pool {
		clients[name] = entry.client
	}
	m.mu.Unlock()

	health := make(map[string]bool, len(clients))
	for name, client := range clients {
		healthy := client.Healthy(ctx)
		health[name] = healthy
		m.logger.Debug("health check", "mcp_server", name, "healthy", healthy)
	}
	return health
}

// Shutdown disconnects every pooled client concurrently, best-effort,
// and clears the pool.
func (m *Manager) Shutdown(ctx context.Context) {
	m.logger.Info("shutting down MCP connection manager")

	m.mu.Lock()
	entries := m.pool
	m.pool = map[string]*pooledClient{}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for name, entry := range entries {
		wg.Add(1)
		go func(name string, entry *pooledClient) {
			defer wg.Done()
			_ = entry.client.Close()
			m.logger.Info("disconnected from MCP server", "mcp_server", name, "conn_id", entry.id)
		}(name, entry)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown deadline expired before all servers disconnected")
	}

	m.logger.Info("MCP connection manager shutdown complete")
}

// ServerStatus is one server's entry in the Status snapshot.
type ServerStatus struct {
	Enabled      bool   `json:"enabled"`
	Connected    bool   `json:"connected"`
	ConnectionID string `json:"connection_id,omitempty"`
	Breaker      string `json:"breaker,omitempty"`
}

// Status snapshots every configured server's state.
func (m *Manager) Status() map[string]ServerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := make(map[string]ServerStatus, len(m.servers))
	for name, cfg := range m.servers {
		s := ServerStatus{Enabled: cfg.Enabled}
		if entry, ok := m.pool[name]; ok {
			s.Connected = true
			s.ConnectionID = entry.id
		}
		if b, ok := m.breakers[name]; ok {
			s.Breaker = b.State().String()
		}
		status[name] = s
	}
	return status
}

// ListServers returns all configured server names, connected or not,
// in sorted order.
func (m *Manager) ListServers() []string {
	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Watch polls pooled clients at the given interval and rebuilds any that
// turn unhealthy, using the same retrying connect as ConnectServer. It
// blocks until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, interval time.Duration) {
	m.logger.Info("starting MCP health watch", "interval", interval)

	for {
		if err := m.sleep(ctx, interval); err != nil {
			m.logger.Info("MCP health watch stopped")
			return
		}

		for name, healthy := range m.HealthCheckAll(ctx) {
			if healthy {
				continue
			}
			m.logger.Warn("MCP server unhealthy, reconnecting", "mcp_server", name)
			_ = m.DisconnectServer(name)
			if err := m.ConnectServer(ctx, name, DefaultConnectRetries); err != nil {
				m.logger.Error("reconnect failed", "mcp_server", name, "error", err)
			}
		}
	}
}
