package catalog

import (
	"path/filepath"
	"testing"

	"github.com/bradcstevens/ms-teams-ai-agent/internal/mcp"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func descriptor(server, name string) *mcp.ToolDescriptor {
	return &mcp.ToolDescriptor{
		LocalName:     name,
		Description:   "test tool " + name,
		InputSchema:   map[string]any{"type": "object", "properties": map[string]any{}},
		OwningServer:  server,
		QualifiedName: mcp.QualifiedToolName(server, name),
	}
}

func TestReplaceServerAndList(t *testing.T) {
	s := testStore(t)

	err := s.ReplaceServer("filesystem", []*mcp.ToolDescriptor{
		descriptor("filesystem", "read_file"),
		descriptor("filesystem", "write_file"),
	})
	if err != nil {
		t.Fatalf("ReplaceServer() error = %v", err)
	}

	entries, err := s.List("")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].QualifiedName != "filesystem.read_file" {
		t.Errorf("entries[0] = %q, want filesystem.read_file", entries[0].QualifiedName)
	}
	if entries[0].DiscoveredAt.IsZero() {
		t.Error("DiscoveredAt is zero")
	}
}

func TestReplaceServerSwapsListing(t *testing.T) {
	s := testStore(t)

	if err := s.ReplaceServer("search", []*mcp.ToolDescriptor{
		descriptor("search", "old_tool"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceServer("search", []*mcp.ToolDescriptor{
		descriptor("search", "web_search"),
	}); err != nil {
		t.Fatal(err)
	}

	entries, err := s.List("search")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].LocalName != "web_search" {
		t.Errorf("entries = %+v, want only web_search", entries)
	}
}

func TestReplaceServerLeavesOtherServers(t *testing.T) {
	s := testStore(t)

	s.ReplaceServer("filesystem", []*mcp.ToolDescriptor{descriptor("filesystem", "read_file")})
	s.ReplaceServer("search", []*mcp.ToolDescriptor{descriptor("search", "web_search")})
	s.ReplaceServer("search", nil)

	entries, err := s.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Server != "filesystem" {
		t.Errorf("entries = %+v, want filesystem listing untouched", entries)
	}
}

func TestGet(t *testing.T) {
	s := testStore(t)
	s.ReplaceServer("filesystem", []*mcp.ToolDescriptor{descriptor("filesystem", "read_file")})

	e, err := s.Get("filesystem.read_file")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if e == nil || e.LocalName != "read_file" {
		t.Errorf("Get() = %+v", e)
	}

	e, err = s.Get("filesystem.missing")
	if err != nil {
		t.Fatalf("Get(missing) error = %v", err)
	}
	if e != nil {
		t.Errorf("Get(missing) = %+v, want nil", e)
	}
}

func TestServers(t *testing.T) {
	s := testStore(t)
	s.ReplaceServer("search", []*mcp.ToolDescriptor{descriptor("search", "web_search")})
	s.ReplaceServer("filesystem", []*mcp.ToolDescriptor{descriptor("filesystem", "read_file")})

	names, err := s.Servers()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "filesystem" || names[1] != "search" {
		t.Errorf("Servers() = %v, want sorted [filesystem search]", names)
	}
}
