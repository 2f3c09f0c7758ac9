// Package storage persists remembered permission approvals in a sqlite
// database, keyed by workspace so separate projects keep separate allow
// lists.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"loom/internal/permission"
)

const schema = `
CREATE TABLE IF NOT EXISTS allow_entries (
	workspace  TEXT NOT NULL,
	kind       TEXT NOT NULL,
	value      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (workspace, kind, value)
);
`

// Store is a workspace-scoped allow-list store.
type Store struct {
	db        *sql.DB
	path      string
	workspace string
}

var _ permission.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and scopes all
// operations to the given workspace directory.
func Open(path, workspace string) (*Store, error) {
	if workspace == "" {
		return nil, fmt.Errorf("store requires a workspace")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	// Normalized workspace key so /work and /work/ share entries.
	cleaned := filepath.Clean(workspace)

	return &Store{db: db, path: path, workspace: cleaned}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Workspace returns the workspace key entries are scoped to.
func (s *Store) Workspace() string { return s.workspace }

// LoadEntries returns all entries for this workspace.
func (s *Store) LoadEntries() ([]permission.Entry, error) {
	rows, err := s.db.Query(
		"SELECT kind, value FROM allow_entries WHERE workspace = ? ORDER BY kind, value",
		s.workspace,
	)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	var entries []permission.Entry
	for rows.Next() {
		var kind, value string
		if err := rows.Scan(&kind, &value); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, permission.Entry{Kind: permission.Kind(kind), Value: value})
	}
	return entries, rows.Err()
}

// SaveEntry persists one entry. Saving an existing entry is a no-op.
func (s *Store) SaveEntry(e permission.Entry) error {
	if e.Kind == "" || e.Value == "" {
		return fmt.Errorf("entry requires kind and value")
	}
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO allow_entries (workspace, kind, value) VALUES (?, ?, ?)",
		s.workspace, string(e.Kind), e.Value,
	)
	if err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	return nil
}

// DeleteEntry removes one entry.
func (s *Store) DeleteEntry(e permission.Entry) error {
	_, err := s.db.Exec(
		"DELETE FROM allow_entries WHERE workspace = ? AND kind = ? AND value = ?",
		s.workspace, string(e.Kind), e.Value,
	)
	return err
}

// Clear removes every entry for this workspace.
func (s *Store) Clear() error {
	_, err := s.db.Exec("DELETE FROM allow_entries WHERE workspace = ?", s.workspace)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
