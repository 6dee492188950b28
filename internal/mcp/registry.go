package mcp

import (
	"sort"
	"sync"
)

// ToolDescriptor describes one tool discovered from a server. The
// registry fills in OwningServer and QualifiedName at registration time;
// everything else comes verbatim from the server's catalog.
//
// InputSchema is the server's JSON Schema for the tool's arguments,
// passed through untouched. It is treated as immutable once registered.
type ToolDescriptor struct {
	LocalName     string
	Description   string
	InputSchema   map[string]any
	OwningServer  string
	QualifiedName string
}

// QualifiedToolName builds the collision-free registry key for a tool:
// "server.tool". Two servers exposing the same tool name never collide.
func QualifiedToolName(server, tool string) string {
	return server + "." + tool
}

// Registry is the process-wide catalog of discovered tools, keyed by
// qualified name. All operations serialize through one mutex and reads
// return independent copies; this is a small protected map, not a hot
// path, so a coarse lock keeps it obviously correct.
type Registry struct {
	mu    sync.Mutex
	tools map[string]ToolDescriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]ToolDescriptor{}}
}

// Register stores a tool under its qualified name, filling in the
// descriptor's OwningServer and QualifiedName fields, and returns the
// qualified name. Re-registering the same qualified name overwrites the
// previous entry.
func (r *Registry) Register(server string, desc *ToolDescriptor) string {
	desc.OwningServer = server
	desc.QualifiedName = QualifiedToolName(server, desc.LocalName)

	r.mu.Lock()
	r.tools[desc.QualifiedName] = *desc
	r.mu.Unlock()

	return desc.QualifiedName
}

// Get looks up a tool by qualified name.
func (r *Registry) Get(qualifiedName string) (ToolDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc, ok := r.tools[qualifiedName]
	return desc, ok
}

// List returns a snapshot of registered tools, sorted by qualified name.
// With a non-empty server argument only that server's tools are returned.
func (r *Registry) List(server string) []ToolDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, desc := range r.tools {
		if server != "" && desc.OwningServer != server {
			continue
		}
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })
	return out
}

// Remove deletes a tool by qualified name, reporting whether it existed.
func (r *Registry) Remove(qualifiedName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.tools[qualifiedName]
	delete(r.tools, qualifiedName)
	return ok
}

// Clear removes every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = map[string]ToolDescriptor{}
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tools)
}
