// Teamsgw is a Teams chatbot gateway for MCP tool servers.
//
// It connects to configured Model Context Protocol servers over stdio or
// HTTP, discovers the tools they expose, and bridges chat tool calls to
// the owning server with circuit-breaker protection. Configuration is
// loaded from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]); provider definitions come from a JSON
// document and MCP_SERVER_N_* environment variables.
//
// Usage:
//
//	teamsgw serve               Connect servers and run the gateway
//	teamsgw tools [server]      List discovered tools (from the catalog cache)
//	teamsgw call <tool> [json]  Invoke one tool and print the result
//	teamsgw status              Show configured servers
//	teamsgw version             Print version and build information
//	teamsgw -o json version     Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bradcstevens/ms-teams-ai-agent/internal/buildinfo"
	"github.com/bradcstevens/ms-teams-ai-agent/internal/catalog"
	"github.com/bradcstevens/ms-teams-ai-agent/internal/config"
	"github.com/bradcstevens/ms-teams-ai-agent/internal/mcp"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the teamsgw command. All OS-level
// dependencies are injected as parameters:
//
//   - ctx controls the lifetime of the process. Cancelling it triggers
//     graceful shutdown of all connections and background goroutines.
//   - stdout and stderr receive all program output. Structured logs go
//     to stdout; fatal error messages go to stderr.
//   - args is os.Args[1:] — the command-line arguments after the program
//     name. We parse these manually rather than using the flag package
//     to avoid global state that interferes with parallel tests.
//
// run returns nil on clean shutdown and a non-nil error for any failure.
// The caller (main) is responsible for printing the error and exiting.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	// Parse arguments by hand. The flag package relies on package-level
	// globals (flag.CommandLine), which makes it impossible to call run()
	// concurrently from tests. Our argument surface is small enough that
	// manual parsing is clearer than bringing in a CLI framework.
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				// Collect remaining args as subcommand arguments.
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	// Default to human-readable text output.
	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "tools":
		server := ""
		if len(cmdArgs) > 0 {
			server = cmdArgs[0]
		}
		return runTools(stdout, configPath, server, outputFmt)
	case "call":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: teamsgw call <server.tool> [json-arguments]")
		}
		argsJSON := "{}"
		if len(cmdArgs) > 1 {
			argsJSON = cmdArgs[1]
		}
		return runCall(ctx, stdout, stderr, configPath, cmdArgs[0], argsJSON)
	case "status":
		return runStatus(stdout, configPath, outputFmt)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w. It is called when
// teamsgw is invoked with no arguments, or with -h / --help.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Teamsgw - Teams chatbot gateway for MCP tool servers")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: teamsgw [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve               Connect servers, discover tools, and run the gateway")
	fmt.Fprintln(w, "  tools [server]      List discovered tools from the catalog cache")
	fmt.Fprintln(w, "  call <tool> [json]  Invoke one tool and print the result")
	fmt.Fprintln(w, "  status              Show configured servers")
	fmt.Fprintln(w, "  version             Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./teamsgw.yaml, ~/.config/teamsgw/teamsgw.yaml, /etc/teamsgw/teamsgw.yaml")
	return nil
}

// runServe connects every enabled server, discovers and registers their
// tools, refreshes the catalog cache, and then holds the connections open
// (with background health watching) until the process is signalled.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := newLogger(stdout, level, cfg.LogJSON)
	if cfgPath != "" {
		logger.Info("config loaded", "path", cfgPath)
	}
	logger.Info("starting", "build", buildinfo.String())

	servers, err := mcp.Load(cfg.Servers.File, logger)
	if err != nil {
		return fmt.Errorf("load server definitions: %w", err)
	}
	if len(servers) == 0 {
		return fmt.Errorf("no MCP servers configured (set servers.file or MCP_SERVER_1_* variables)")
	}

	manager := mcp.NewManager(servers, breakerConfig(cfg), logger)

	// --- Signal handling and graceful shutdown ---
	// NotifyContext wraps the parent context so that SIGINT/SIGTERM
	// cancellation flows through the same ctx used by all components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	results := manager.ConnectAllEnabled(ctx)
	connected := 0
	for name, ok := range results {
		if ok {
			connected++
		} else {
			logger.Warn("server unavailable at startup", "mcp_server", name)
		}
	}
	logger.Info("servers connected", "connected", connected, "configured", len(servers))

	registry := mcp.NewRegistry()
	registered := mcp.DiscoverAndRegister(ctx, manager, registry, logger)
	logger.Info("tools registered", "count", registered)

	if err := refreshCatalog(cfg, manager, registry, logger); err != nil {
		// The cache is an optimization for the CLI; a broken cache file
		// should not take the gateway down.
		logger.Error("catalog refresh failed", "error", err)
	}

	if interval := cfg.HealthPollInterval(); interval > 0 {
		go manager.Watch(ctx, interval)
		logger.Info("health watcher started", "interval", interval)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	manager.Shutdown(shutdownCtx)

	logger.Info("teamsgw stopped")
	return nil
}

// runTools lists tools from the catalog cache. It does not spawn or
// contact any server; run serve (or call) first to populate the cache.
func runTools(stdout io.Writer, configPath, server, outputFmt string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	store, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(server)
	if err != nil {
		return err
	}

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(stdout, "no tools cached (run 'teamsgw serve' to discover)")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(stdout, "%-40s %s\n", e.QualifiedName, e.Description)
	}
	return nil
}

// runCall connects to the server owning the qualified tool name, discovers
// its tools, and executes a single call. The result JSON is printed raw.
func runCall(ctx context.Context, stdout io.Writer, logOut io.Writer, configPath, qualifiedName, argsJSON string) error {
	server, _, found := strings.Cut(qualifiedName, ".")
	if !found {
		return fmt.Errorf("tool name %q is not qualified (expected server.tool)", qualifiedName)
	}

	var toolArgs map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &toolArgs); err != nil {
		return fmt.Errorf("parse arguments: %w", err)
	}

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := newLogger(logOut, level, cfg.LogJSON)

	servers, err := mcp.Load(cfg.Servers.File, logger)
	if err != nil {
		return fmt.Errorf("load server definitions: %w", err)
	}

	manager := mcp.NewManager(servers, breakerConfig(cfg), logger)
	if err := manager.ConnectServer(ctx, server, cfg.Servers.ConnectRetries); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		manager.Shutdown(shutdownCtx)
	}()

	registry := mcp.NewRegistry()
	client, err := manager.Client(server)
	if err != nil {
		return err
	}
	descriptors, err := mcp.DiscoverTools(ctx, client)
	if err != nil {
		return fmt.Errorf("discover tools on %s: %w", server, err)
	}
	for _, d := range descriptors {
		registry.Register(server, d)
	}

	bridge := mcp.NewBridge(registry, manager, logger)
	result, err := bridge.ExecuteTool(ctx, qualifiedName, toolArgs)
	if err != nil {
		return err
	}

	if result == nil {
		fmt.Fprintln(stdout, "null")
		return nil
	}
	fmt.Fprintln(stdout, string(result))
	return nil
}

// runStatus prints the configured servers without connecting to them.
func runStatus(stdout io.Writer, configPath, outputFmt string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	servers, err := mcp.Load(cfg.Servers.File, logger)
	if err != nil {
		return fmt.Errorf("load server definitions: %w", err)
	}

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(servers)
	}

	if len(servers) == 0 {
		fmt.Fprintln(stdout, "no MCP servers configured")
		return nil
	}
	manager := mcp.NewManager(servers, breakerConfig(cfg), logger)
	for _, name := range manager.ListServers() {
		s := servers[name]
		state := "enabled"
		if !s.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(stdout, "%-20s %-6s %-9s %s\n", name, s.Transport, state, s.Command)
	}
	return nil
}

// refreshCatalog rewrites the catalog cache from the live registry, one
// server at a time so an unreachable server keeps its previous listing.
func refreshCatalog(cfg *config.Config, manager *mcp.Manager, registry *mcp.Registry, logger *slog.Logger) error {
	store, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		return err
	}
	defer store.Close()

	for _, name := range manager.ListServers() {
		listed := registry.List(name)
		if len(listed) == 0 {
			continue
		}
		descriptors := make([]*mcp.ToolDescriptor, len(listed))
		for i := range listed {
			descriptors[i] = &listed[i]
		}
		if err := store.ReplaceServer(name, descriptors); err != nil {
			return err
		}
		logger.Debug("catalog updated", "mcp_server", name, "tools", len(descriptors))
	}
	return nil
}

// breakerConfig maps the YAML breaker section onto the manager's breaker
// parameters. Zero values select the package defaults.
func breakerConfig(cfg *config.Config) mcp.BreakerConfig {
	return mcp.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout(),
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
	}
}

// newLogger creates a structured logger that writes to w at the given
// level. All log output in teamsgw goes through slog; this helper
// standardizes the handler configuration across subcommands.
func newLogger(w io.Writer, level slog.Level, jsonFormat bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Otherwise,
// [config.FindConfig] searches the default locations; when nothing is
// found the built-in defaults apply, since an env-only server setup is a
// first-class deployment mode.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		return config.Default(), "", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
