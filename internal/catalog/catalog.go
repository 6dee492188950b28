// Package catalog persists discovered MCP tool descriptors so the CLI can
// list tools without spawning every provider. The gateway refreshes it on
// each successful discovery pass.
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bradcstevens/ms-teams-ai-agent/internal/mcp"
)

// Entry is one cached tool descriptor with its discovery timestamp.
type Entry struct {
	Server        string    `json:"server"`
	LocalName     string    `json:"local_name"`
	QualifiedName string    `json:"qualified_name"`
	Description   string    `json:"description,omitempty"`
	InputSchema   string    `json:"input_schema,omitempty"`
	DiscoveredAt  time.Time `json:"discovered_at"`
}

// Store manages tool catalog persistence.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog pragmas: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tools (
			qualified_name TEXT PRIMARY KEY,
			server TEXT NOT NULL,
			local_name TEXT NOT NULL,
			description TEXT,
			input_schema TEXT,
			discovered_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tools_server ON tools(server);
	`)
	return err
}

// ReplaceServer swaps the cached tools for one server with a fresh
// discovery result. Runs in a transaction so a partial write never leaves
// the server's listing half-updated.
func (s *Store) ReplaceServer(server string, descriptors []*mcp.ToolDescriptor) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tools WHERE server = ?`, server); err != nil {
		return fmt.Errorf("clear server %s: %w", server, err)
	}

	now := time.Now().UTC()
	for _, d := range descriptors {
		schemaJSON, err := json.Marshal(d.InputSchema)
		if err != nil {
			return fmt.Errorf("marshal schema for %s: %w", d.QualifiedName, err)
		}
		_, err = tx.Exec(`
			INSERT INTO tools (qualified_name, server, local_name, description, input_schema, discovered_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, d.QualifiedName, server, d.LocalName, d.Description, string(schemaJSON), now)
		if err != nil {
			return fmt.Errorf("insert %s: %w", d.QualifiedName, err)
		}
	}

	return tx.Commit()
}

// List returns cached entries, optionally filtered by server. Results are
// ordered by qualified name.
func (s *Store) List(server string) ([]*Entry, error) {
	query := `SELECT qualified_name, server, local_name, description, input_schema, discovered_at FROM tools`
	args := []any{}
	if server != "" {
		query += ` WHERE server = ?`
		args = append(args, server)
	}
	query += ` ORDER BY qualified_name`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var desc, schema sql.NullString
		if err := rows.Scan(&e.QualifiedName, &e.Server, &e.LocalName, &desc, &schema, &e.DiscoveredAt); err != nil {
			return nil, err
		}
		e.Description = desc.String
		e.InputSchema = schema.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Get returns a single cached entry by qualified name, or nil if absent.
func (s *Store) Get(qualifiedName string) (*Entry, error) {
	row := s.db.QueryRow(`
		SELECT qualified_name, server, local_name, description, input_schema, discovered_at
		FROM tools WHERE qualified_name = ?
	`, qualifiedName)

	var e Entry
	var desc, schema sql.NullString
	err := row.Scan(&e.QualifiedName, &e.Server, &e.LocalName, &desc, &schema, &e.DiscoveredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Description = desc.String
	e.InputSchema = schema.String
	return &e, nil
}

// Servers returns the distinct server names present in the cache.
func (s *Store) Servers() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT server FROM tools ORDER BY server`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
